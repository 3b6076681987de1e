package providers

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	t.Run("starts with a full bucket", func(t *testing.T) {
		rl := NewRateLimiter(60)
		start := time.Now()
		for i := 0; i < 5; i++ {
			if err := rl.Wait(context.Background()); err != nil {
				t.Fatal(err)
			}
		}
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Errorf("full bucket should not block, waited %v", elapsed)
		}
		if st := rl.Status(); st.TotalConsumed != 5 {
			t.Errorf("consumed = %d, want 5", st.TotalConsumed)
		}
	})

	t.Run("429 drains the bucket", func(t *testing.T) {
		rl := NewRateLimiter(60)
		rl.Record429(time.Second)

		st := rl.Status()
		if st.TokensAvailable != 0 {
			t.Errorf("tokens = %d after 429, want 0", st.TokensAvailable)
		}
		if st.TimeUntilToken <= 0 {
			t.Error("expected a wait before the next token")
		}
		if st.Last429Time.IsZero() {
			t.Error("429 time not recorded")
		}
	})

	t.Run("wait honors cancellation", func(t *testing.T) {
		rl := NewRateLimiter(1) // one token a minute
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatal(err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := rl.Wait(ctx); err == nil {
			t.Fatal("expected cancellation while waiting for a token")
		}
	})

	t.Run("bucket refills over time", func(t *testing.T) {
		rl := NewRateLimiter(6000) // 100 tokens a second
		rl.Record429(time.Second)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		start := time.Now()
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("refill never produced a token: %v", err)
		}
		if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
			t.Errorf("refill took %v", elapsed)
		}
	})

	t.Run("zero limit defaults", func(t *testing.T) {
		rl := NewRateLimiter(0)
		if st := rl.Status(); st.TokensLimit != 60 {
			t.Errorf("default limit = %d, want 60", st.TokensLimit)
		}
	})
}

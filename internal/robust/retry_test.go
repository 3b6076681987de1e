package robust

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		Factor:      2.0,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("returns first success", func(t *testing.T) {
		calls := 0
		got, err := Do(ctx, fastPolicy(3), func(context.Context) (string, error) {
			calls++
			return "ok", nil
		})
		if err != nil || got != "ok" {
			t.Fatalf("got (%q, %v)", got, err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("always-failing retryable runs exactly max attempts", func(t *testing.T) {
		for _, attempts := range []int{1, 3, 5} {
			calls := 0
			_, err := Do(ctx, fastPolicy(attempts), func(context.Context) (int, error) {
				calls++
				return 0, RateLimitError(errors.New("slow down"))
			})
			if err == nil {
				t.Fatal("expected failure")
			}
			if calls != attempts {
				t.Errorf("maxAttempts=%d: got %d calls", attempts, calls)
			}
		}
	})

	t.Run("recovers after transient failures", func(t *testing.T) {
		calls := 0
		got, err := Do(ctx, fastPolicy(3), func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, APIError(503, errors.New("overloaded"))
			}
			return 42, nil
		})
		if err != nil || got != 42 {
			t.Fatalf("got (%d, %v)", got, err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("non-retryable propagates immediately", func(t *testing.T) {
		calls := 0
		_, err := Do(ctx, fastPolicy(5), func(context.Context) (int, error) {
			calls++
			return 0, APIError(400, errors.New("bad request"))
		})
		if err == nil {
			t.Fatal("expected failure")
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("error is tagged", func(t *testing.T) {
		_, err := Do(ctx, fastPolicy(1), func(context.Context) (int, error) {
			return 0, fmt.Errorf("connection reset by peer")
		})
		var pe *PipelineError
		if !errors.As(err, &pe) {
			t.Fatalf("error not tagged: %v", err)
		}
	})
}

func TestDelayFor(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, Factor: 2.0, MaxDelay: 30 * time.Second}.normalized()

	tests := []struct {
		n    uint
		want time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{10, 30 * time.Second}, // capped
	}
	for _, tc := range tests {
		if got := p.delayFor(tc.n); got != tc.want {
			t.Errorf("delayFor(%d) = %v, want %v", tc.n, got, tc.want)
		}
	}
}

func TestWithTimeout(t *testing.T) {
	t.Run("expiry becomes timeout error", func(t *testing.T) {
		fn := WithTimeout(5*time.Millisecond, func(ctx context.Context) (int, error) {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(time.Second):
				return 1, nil
			}
		})
		_, err := fn(context.Background())
		pe := Classify(err)
		if pe == nil || pe.Kind != KindTimeout {
			t.Fatalf("expected timeout classification, got %v", err)
		}
		if !IsRetryable(err) {
			t.Error("timeout should be retryable")
		}
	})

	t.Run("zero timeout disables", func(t *testing.T) {
		fn := WithTimeout(0, func(ctx context.Context) (int, error) {
			if _, ok := ctx.Deadline(); ok {
				t.Error("unexpected deadline")
			}
			return 7, nil
		})
		if got, err := fn(context.Background()); err != nil || got != 7 {
			t.Fatalf("got (%d, %v)", got, err)
		}
	})
}

func TestWithRateLimit(t *testing.T) {
	t.Run("releases slot on failure", func(t *testing.T) {
		limiter := NewLimiter(1, 0)
		fn := WithRateLimit(limiter, func(context.Context) (int, error) {
			return 0, errors.New("boom")
		})
		for i := 0; i < 3; i++ {
			if _, err := fn(context.Background()); err == nil {
				t.Fatal("expected failure")
			}
		}
		if st := limiter.Status(); st.InFlight != 0 {
			t.Errorf("slot leaked: in-flight %d", st.InFlight)
		}
	})
}

func TestDecoratorsCompose(t *testing.T) {
	limiter := NewLimiter(2, 0)
	calls := 0
	fn := WithRetry(fastPolicy(3),
		WithTimeout(100*time.Millisecond,
			WithRateLimit(limiter, func(context.Context) (string, error) {
				calls++
				if calls == 1 {
					return "", RateLimitError(errors.New("first call throttled"))
				}
				return "done", nil
			})))

	got, err := fn(context.Background())
	if err != nil || got != "done" {
		t.Fatalf("got (%q, %v)", got, err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
	if st := limiter.Status(); st.InFlight != 0 {
		t.Errorf("slot leaked: in-flight %d", st.InFlight)
	}
}

package passes

import (
	"reflect"
	"testing"
)

func TestNormalizePattern(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Page 12", "Page #"},
		{"Page 13", "Page #"},
		{"  Chapter   4:  Results ", "Chapter #: Results"},
		{"", ""},
		{"no digits here", "no digits here"},
	}
	for _, tc := range tests {
		if got := NormalizePattern(tc.in); got != tc.want {
			t.Errorf("NormalizePattern(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		pattern string
		want    bool
	}{
		{"digit variants match", "Page 12", "Page 99", true},
		{"exact match", "Annual Report", "Annual Report", true},
		{"near match over threshold", "Annual Report 2023 - Draft", "Annual Report 2024 - Draft", true},
		{"unrelated", "Introduction", "Bibliography", false},
		{"short strings need exact", "abc", "abd", false},
		{"empty", "", "Page #", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MatchesPattern(tc.line, tc.pattern); got != tc.want {
				t.Errorf("MatchesPattern(%q, %q) = %v, want %v", tc.line, tc.pattern, got, tc.want)
			}
		})
	}
}

func TestIsPageNumberLine(t *testing.T) {
	yes := []string{"12", " - 12 - ", "Page 12", "p. 7", "3/80", "— 4 —"}
	no := []string{"Chapter 12", "12 angry men", "", "see page 12 for details"}
	for _, s := range yes {
		if !IsPageNumberLine(s) {
			t.Errorf("IsPageNumberLine(%q) = false, want true", s)
		}
	}
	for _, s := range no {
		if IsPageNumberLine(s) {
			t.Errorf("IsPageNumberLine(%q) = true, want false", s)
		}
	}
}

func TestFilterRepeatedLines(t *testing.T) {
	t.Run("drops matching header and page number", func(t *testing.T) {
		text := "Annual Report 2023\nReal content here.\nMore content.\n12"
		got := FilterRepeatedLines(text, []string{"Annual Report #"}, "")
		want := "Real content here.\nMore content."
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("explicit page number pattern", func(t *testing.T) {
		text := "body\n~ 7 ~"
		got := FilterRepeatedLines(text, nil, `^~\s*\d+\s*~$`)
		if got != "body" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("keeps blank lines", func(t *testing.T) {
		got := FilterRepeatedLines("a\n\nb", nil, "")
		if got != "a\n\nb" {
			t.Errorf("blank line dropped: %q", got)
		}
	})
}

func TestTail(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 3, "llo"},
		{"hi", 10, "hi"},
		{"héllo", 4, "éllo"},
		{"x", 0, ""},
	}
	for _, tc := range tests {
		if got := Tail(tc.in, tc.n); got != tc.want {
			t.Errorf("Tail(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestEndsIncomplete(t *testing.T) {
	complete := []string{"Done.", "Really?", "Stop!", "a list:", "quote”", "(aside)", ""}
	incomplete := []string{"and then the", "mid-sentence", "trailing comma,"}
	for _, s := range complete {
		if EndsIncomplete(s) {
			t.Errorf("EndsIncomplete(%q) = true, want false", s)
		}
	}
	for _, s := range incomplete {
		if !EndsIncomplete(s) {
			t.Errorf("EndsIncomplete(%q) = false, want true", s)
		}
	}
}

func TestPercentOffsets(t *testing.T) {
	t.Run("standard spread", func(t *testing.T) {
		got := PercentOffsets(100, []int{10, 30, 50, 70, 90})
		want := []int{10, 30, 50, 70, 90}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})
	t.Run("small document deduplicates", func(t *testing.T) {
		got := PercentOffsets(2, []int{10, 30, 50, 70, 90})
		if len(got) > 2 {
			t.Errorf("expected at most 2 pages, got %v", got)
		}
		for _, p := range got {
			if p < 1 || p > 2 {
				t.Errorf("page %d out of range", p)
			}
		}
	})
}

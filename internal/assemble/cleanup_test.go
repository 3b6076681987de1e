package assemble

import (
	"strings"
	"testing"
)

func TestCleanupMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trailing whitespace stripped", "line one   \nline two\t\n", "line one\nline two\n"},
		{"empty heading removed", "# Title\n\n##\n\nbody\n", "# Title\n\nbody\n"},
		{"doubled heading collapsed", "# # Title\n", "# Title\n"},
		{"hr normalized", "above\n\n* * *\n\nbelow\n", "above\n\n---\n\nbelow\n"},
		{"blank runs collapsed", "a\n\n\n\n\n\nb\n", "a\n\n\nb\n"},
		{"crlf normalized", "a\r\nb\r\n", "a\nb\n"},
		{"single trailing newline", "text\n\n\n", "text\n"},
		{"whitespace only", "   \n\n", "\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanupMarkdown(tc.in); got != tc.want {
				t.Errorf("CleanupMarkdown(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}

	t.Run("idempotent", func(t *testing.T) {
		inputs := []string{
			"# Title\n\n\n\nbody text   \n* * *\n## ## Sub\n\n\n\n\nend",
			"plain",
			"\n\n\n",
			"a\r\n\r\n\r\n\r\nb",
		}
		for _, in := range inputs {
			once := CleanupMarkdown(in)
			twice := CleanupMarkdown(once)
			if once != twice {
				t.Errorf("not idempotent for %q: %q != %q", in, once, twice)
			}
		}
	})

	t.Run("non-empty input ends with exactly one newline", func(t *testing.T) {
		inputs := []string{"x", "x\n", "x\n\n\n", "# h\nbody", " "}
		for _, in := range inputs {
			got := CleanupMarkdown(in)
			if !strings.HasSuffix(got, "\n") || strings.HasSuffix(got, "\n\n") {
				t.Errorf("CleanupMarkdown(%q) = %q: want exactly one trailing newline", in, got)
			}
		}
	})
}

package assemble

import (
	"regexp"
	"strings"
)

var (
	trailingWSRe    = regexp.MustCompile(`[ \t]+\n`)
	blankRunRe      = regexp.MustCompile(`\n{4,}`)
	emptyHeadingRe  = regexp.MustCompile(`(?m)^#{1,6}[ \t]*$\n?`)
	doubleHeadingRe = regexp.MustCompile(`(?m)^(#{1,6})(?:[ \t]+#{1,6})+[ \t]+`)
	hrVariantRe     = regexp.MustCompile(`(?m)^[ \t]*(\*[ \t]*\*[ \t]*\*[\* \t]*|_[ \t]*_[ \t]*_[_ \t]*|-[ \t]*-[ \t]*-[- \t]*)$`)
)

// CleanupMarkdown is the final normalization pass. It is idempotent:
// cleanup(cleanup(x)) == cleanup(x), and non-empty input always comes out
// with exactly one trailing newline.
func CleanupMarkdown(s string) string {
	if s == "" {
		return s
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")

	// Strip trailing whitespace per line.
	s = trailingWSRe.ReplaceAllString(s, "\n")

	// Remove heading lines with no text.
	s = emptyHeadingRe.ReplaceAllString(s, "")

	// Collapse accidental doubled heading markers ("# # Title").
	s = doubleHeadingRe.ReplaceAllString(s, "$1 ")

	// One canonical horizontal rule.
	s = hrVariantRe.ReplaceAllString(s, "---")

	// Collapse runs of 3+ blank lines to at most 2.
	s = blankRunRe.ReplaceAllString(s, "\n\n\n")

	// Exactly one trailing newline.
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return "\n"
	}
	return s + "\n"
}

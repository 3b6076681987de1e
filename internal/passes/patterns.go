// Package passes implements the four-pass intelligent pipeline's analysis
// stages: layout analysis, structure analysis and content extraction.
// Organization lives in the assemble package.
package passes

import (
	"regexp"
	"strings"
)

var (
	digitRunRe = regexp.MustCompile(`\d+`)
	wsRunRe    = regexp.MustCompile(`\s+`)
)

// NormalizePattern canonicalizes a repeated-text candidate: digit runs become
// a placeholder so "Page 12" and "Page 13" compare equal, whitespace is
// collapsed.
func NormalizePattern(s string) string {
	s = strings.TrimSpace(s)
	s = digitRunRe.ReplaceAllString(s, "#")
	s = wsRunRe.ReplaceAllString(s, " ")
	return s
}

// MatchesPattern reports whether a line matches a repeated-element pattern:
// exact match after normalization, or character-overlap ratio above 0.8 for
// strings longer than 5 characters.
func MatchesPattern(line, pattern string) bool {
	l := NormalizePattern(line)
	p := NormalizePattern(pattern)
	if l == "" || p == "" {
		return false
	}
	if l == p {
		return true
	}
	if len(l) <= 5 || len(p) <= 5 {
		return false
	}
	return overlapRatio(l, p) > 0.8
}

// overlapRatio is the shared-character multiset overlap relative to the longer
// string. Cheap and order-insensitive, which is enough for running headers
// that differ only in a chapter number or date.
func overlapRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		return 0
	}
	counts := make(map[rune]int)
	for _, r := range ra {
		counts[r]++
	}
	shared := 0
	for _, r := range rb {
		if counts[r] > 0 {
			counts[r]--
			shared++
		}
	}
	return float64(shared) / float64(len(ra))
}

// IsPageNumberLine reports whether a line is just a page number, optionally
// with light decoration ("- 12 -", "Page 12", "12/80").
var pageNumberRe = regexp.MustCompile(`^[-–—\s]*((page|p\.?)\s*)?\d+(\s*/\s*\d+)?[-–—\s]*$`)

func IsPageNumberLine(line string) bool {
	return pageNumberRe.MatchString(strings.ToLower(strings.TrimSpace(line)))
}

// FilterRepeatedLines drops lines that match any of the patterns or the page
// number regexp (given as a compiled expression source; invalid sources are
// ignored).
func FilterRepeatedLines(text string, patterns []string, pageNumberPattern string) string {
	var numRe *regexp.Regexp
	if pageNumberPattern != "" {
		numRe, _ = regexp.Compile(pageNumberPattern)
	}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			kept = append(kept, line)
			continue
		}
		drop := false
		for _, p := range patterns {
			if MatchesPattern(trimmed, p) {
				drop = true
				break
			}
		}
		if !drop && numRe != nil && numRe.MatchString(trimmed) {
			drop = true
		}
		if !drop && numRe == nil && IsPageNumberLine(trimmed) {
			drop = true
		}
		if !drop {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// Tail returns the last n characters of s, cut at a rune boundary.
func Tail(s string, n int) string {
	if n <= 0 || s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

// EndsIncomplete reports whether text ends mid-sentence: the trailing
// non-space character is not sentence-final punctuation.
func EndsIncomplete(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	runes := []rune(t)
	switch runes[len(runes)-1] {
	case '.', '!', '?', ':', ';', '"', '”', '’', ')', ']':
		return false
	}
	return true
}

// PercentOffsets maps percentage positions to deduplicated page numbers.
func PercentOffsets(pageCount int, percents []int) []int {
	seen := make(map[int]bool)
	var pages []int
	for _, pct := range percents {
		p := pageCount * pct / 100
		if p < 1 {
			p = 1
		}
		if p > pageCount {
			p = pageCount
		}
		if !seen[p] {
			seen[p] = true
			pages = append(pages, p)
		}
	}
	return pages
}

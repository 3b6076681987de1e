package assemble

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pagemill/pagemill/internal/types"
)

// Placement says where footnote definitions are emitted.
type Placement string

const (
	PlaceDocumentEnd Placement = "document_end"
	PlaceSectionEnd  Placement = "section_end"
	PlaceInline      Placement = "inline"
)

// PlacementFor maps the document type to a footnote placement. Exhaustive over
// the closed taxonomy.
func PlacementFor(dt types.DocumentType) Placement {
	switch dt {
	case types.DocAcademic:
		return PlaceDocumentEnd
	case types.DocBook, types.DocReport, types.DocManual:
		return PlaceSectionEnd
	default: // marketing, legal, other
		return PlaceInline
	}
}

// footnoteMarkerRe matches all marker styles in one alternation so a
// multi-digit marker can never be wrapped twice:
//   [^N]  already canonical  (group 1)
//   [N](  a Markdown link    (group 2)
//   [N]   bracketed marker   (group 3)
var footnoteMarkerRe = regexp.MustCompile(`\[\^(\d+)\]|\[(\d+)\]\(|\[(\d+)\]`)

// NormalizeFootnoteMarkers rewrites inline footnote markers to the canonical
// bracket-caret form in a single pass. Markdown links are left untouched.
func NormalizeFootnoteMarkers(s string) string {
	return footnoteMarkerRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := footnoteMarkerRe.FindStringSubmatch(m)
		if sub[3] != "" {
			return "[^" + sub[3] + "]"
		}
		// Already canonical or part of a link.
		return m
	})
}

// renderFootnotes emits definitions for the given ids in numeric-then-lexical
// order, skipping ids with no definition.
func renderFootnotes(ids []string, defs map[string]*types.Footnote) string {
	var present []string
	for _, id := range ids {
		if _, ok := defs[id]; ok {
			present = append(present, id)
		}
	}
	if len(present) == 0 {
		return ""
	}
	sortFootnoteIDs(present)

	var sb strings.Builder
	for _, id := range present {
		fn := defs[id]
		sb.WriteString(fmt.Sprintf("[^%s]: %s\n", fn.ID, strings.TrimSpace(fn.Content)))
	}
	return sb.String()
}

// sortFootnoteIDs orders numeric ids numerically and everything else after,
// lexically.
func sortFootnoteIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		ni, iOK := atoi(ids[i])
		nj, jOK := atoi(ids[j])
		switch {
		case iOK && jOK:
			return ni < nj
		case iOK:
			return true
		case jOK:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
}

func atoi(s string) (int, bool) {
	n := 0
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

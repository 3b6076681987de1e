package assemble

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pagemill/pagemill/internal/types"
)

var anchorStripRe = regexp.MustCompile(`[^a-z0-9\- ]`)

// anchorFor derives a GitHub-style anchor from a heading title.
func anchorFor(title string) string {
	a := strings.ToLower(strings.TrimSpace(title))
	a = anchorStripRe.ReplaceAllString(a, "")
	a = strings.ReplaceAll(a, " ", "-")
	return a
}

// RenderTOC renders an anchor-linked table of contents from the structure
// profile, capped at maxLevel. Returns "" when there is nothing to render.
func RenderTOC(profile *types.StructureProfile, maxLevel int) string {
	if profile == nil || len(profile.Toc.Entries) == 0 {
		return ""
	}
	if maxLevel <= 0 {
		maxLevel = 3
	}

	var sb strings.Builder
	sb.WriteString("## Contents\n\n")
	renderTocEntries(&sb, profile.Toc.Entries, 1, maxLevel)
	return sb.String()
}

func renderTocEntries(sb *strings.Builder, entries []types.TocEntry, depth, maxLevel int) {
	if depth > maxLevel {
		return
	}
	for _, e := range entries {
		title := strings.TrimSpace(e.Title)
		if title == "" {
			continue
		}
		indent := strings.Repeat("  ", depth-1)
		fmt.Fprintf(sb, "%s- [%s](#%s)\n", indent, title, anchorFor(title))
		renderTocEntries(sb, e.Children, depth+1, maxLevel)
	}
}

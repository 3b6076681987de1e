// Package assemble turns raw extracted content into the final Markdown
// document: continuation merging, heading-hierarchy repair, footnote
// placement, TOC rendering and cleanup.
package assemble

import (
	"github.com/pagemill/pagemill/internal/types"
)

// MergeContinuations follows ContinuesFrom chains to their root and folds each
// chain into its root section, preserving document order of the roots.
// Merging an already-merged list is a no-op.
func MergeContinuations(sections []*types.Section) []*types.Section {
	if len(sections) == 0 {
		return sections
	}

	// Materialize the implicit linked structure as an index before traversal.
	byID := make(map[string]*types.Section, len(sections))
	for _, s := range sections {
		byID[s.ID] = s
	}

	// rootOf follows the chain upward, tolerating dangling or cyclic links.
	rootOf := func(s *types.Section) *types.Section {
		seen := map[string]bool{s.ID: true}
		cur := s
		for cur.ContinuesFrom != "" {
			prev, ok := byID[cur.ContinuesFrom]
			if !ok || seen[prev.ID] {
				break
			}
			seen[prev.ID] = true
			cur = prev
		}
		return cur
	}

	merged := make([]*types.Section, 0, len(sections))
	out := make(map[string]*types.Section)

	for _, s := range sections {
		root := rootOf(s)

		target, ok := out[root.ID]
		if !ok {
			// Copy the root so merging never mutates the input.
			cp := *root
			cp.FootnoteRefs = append([]string(nil), root.FootnoteRefs...)
			cp.ImageRefs = append([]string(nil), root.ImageRefs...)
			target = &cp
			out[root.ID] = target
			merged = append(merged, target)
		}

		if s.ID == root.ID {
			continue
		}

		// Fold the continuation into the root.
		if s.Content != "" {
			if target.Content != "" {
				target.Content += " " + s.Content
			} else {
				target.Content = s.Content
			}
		}
		target.FootnoteRefs = appendUnique(target.FootnoteRefs, s.FootnoteRefs)
		target.ImageRefs = appendUnique(target.ImageRefs, s.ImageRefs)
	}

	return merged
}

func appendUnique(dst []string, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, v := range dst {
		seen[v] = true
	}
	for _, v := range src {
		if !seen[v] {
			seen[v] = true
			dst = append(dst, v)
		}
	}
	return dst
}

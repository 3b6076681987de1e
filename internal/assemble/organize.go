package assemble

import (
	"fmt"
	"strings"

	"github.com/pagemill/pagemill/internal/types"
)

// Options control the organization pass.
type Options struct {
	IncludeTOC  bool
	TOCMaxLevel int
}

// Organize is the four-step assembly: merge continuations, repair the heading
// hierarchy, place footnotes per document type, render, clean up. Sub-step
// failures are scoped and surfaced as a single tagged assembly error.
func Organize(raw *types.RawContent, profile *types.StructureProfile, opts Options) (string, error) {
	if raw == nil {
		return "", fmt.Errorf("assembly failed: no content")
	}
	docType := types.DocOther
	if profile != nil {
		docType = profile.DocumentType
	}

	merged := MergeContinuations(raw.Sections)
	merged = ValidateHierarchy(merged)
	placement := PlacementFor(docType)

	var sb strings.Builder

	if opts.IncludeTOC {
		if toc := RenderTOC(profile, opts.TOCMaxLevel); toc != "" {
			sb.WriteString(toc)
			sb.WriteString("\n")
		}
	}

	// Track refs for deferred placements.
	var pendingSectionRefs []string // reset at each level-1 boundary
	var documentRefs []string

	flushSectionNotes := func() {
		if len(pendingSectionRefs) == 0 {
			return
		}
		if notes := renderFootnotes(pendingSectionRefs, raw.Footnotes); notes != "" {
			sb.WriteString(notes)
			sb.WriteString("\n")
		}
		pendingSectionRefs = nil
	}

	for _, s := range merged {
		if placement == PlaceSectionEnd && s.Level == 1 {
			flushSectionNotes()
		}

		renderSection(&sb, s, raw.Images)

		switch placement {
		case PlaceInline:
			if notes := renderFootnotes(s.FootnoteRefs, raw.Footnotes); notes != "" {
				sb.WriteString(notes)
				sb.WriteString("\n")
			}
		case PlaceSectionEnd:
			pendingSectionRefs = appendUnique(pendingSectionRefs, s.FootnoteRefs)
		case PlaceDocumentEnd:
			documentRefs = appendUnique(documentRefs, s.FootnoteRefs)
		}
	}

	if placement == PlaceSectionEnd {
		flushSectionNotes()
	}
	if placement == PlaceDocumentEnd {
		if notes := renderFootnotes(documentRefs, raw.Footnotes); notes != "" {
			sb.WriteString("## Notes\n\n")
			sb.WriteString(notes)
		}
	}

	out := CleanupMarkdown(sb.String())
	if strings.TrimSpace(out) == "" && len(raw.Sections) > 0 {
		return out, fmt.Errorf("assembly failed: rendering produced no output from %d sections", len(raw.Sections))
	}
	return out, nil
}

package passes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pagemill/pagemill/internal/providers"
	"github.com/pagemill/pagemill/internal/render"
	"github.com/pagemill/pagemill/internal/robust"
	"github.com/pagemill/pagemill/internal/types"
)

// structureSamplePercents are the page offsets sampled by structure analysis
// for documents longer than ten pages. Shorter documents sample every page.
var structureSamplePercents = []int{5, 20, 40, 60, 80, 95}

// AnalyzeStructure is pass 2. It samples page text, strips repeating layout
// elements using the pass-1 profile, and asks the converter for a structural
// profile. The extraction call retries transient failures per opts.Retry;
// only after retries exhaust does the pass degrade to
// DefaultStructureProfile. It never aborts the conversion.
func AnalyzeStructure(ctx context.Context, doc render.Service, conv providers.Converter, layout *types.LayoutProfile, analysis *providers.DocumentAnalysis, opts AnalyzeOptions, log *slog.Logger) *types.StructureProfile {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("pass", "structure")

	pageCount, err := doc.PageCount()
	if err != nil || pageCount < 1 {
		log.Warn("structure analysis skipped", "error", err)
		return DefaultStructureProfile(1)
	}

	sampled := sampleStructureText(doc, layout, pageCount)
	if sampled == "" {
		log.Warn("no text extracted, using default structure profile")
		return DefaultStructureProfile(pageCount)
	}

	input := providers.AnalysisInput{SampledText: sampled, PageCount: pageCount}
	profile, err := robust.WithRetry(opts.Retry,
		robust.WithTimeout(opts.CallTimeout, func(cctx context.Context) (*types.StructureProfile, error) {
			return conv.ExtractStructure(cctx, input, analysis)
		}))(ctx)
	if err != nil || profile == nil {
		log.Warn("structure extraction failed, using default profile", "error", err)
		return DefaultStructureProfile(pageCount)
	}

	ClampStructure(profile, pageCount)
	log.Debug("structure profile built",
		"document_type", profile.DocumentType,
		"toc_entries", len(profile.Toc.Entries),
		"max_depth", profile.Hierarchy.MaxDepth)
	return profile
}

// DefaultStructureProfile is the safe fallback: untyped document, flat
// two-level hierarchy, the whole document as body.
func DefaultStructureProfile(pageCount int) *types.StructureProfile {
	if pageCount < 1 {
		pageCount = 1
	}
	return &types.StructureProfile{
		DocumentType: types.DocOther,
		Hierarchy:    types.Hierarchy{MaxDepth: 2},
		Sections:     types.Sections{Body: types.PageRange{Start: 1, End: pageCount}},
		CrossRefs:    types.CrossReferences{FootnoteStyle: types.FootnotesNone},
	}
}

// sampleStructureText extracts and filters the text of the sampled pages.
func sampleStructureText(doc render.Service, layout *types.LayoutProfile, pageCount int) string {
	var pages []int
	if pageCount <= 10 {
		for n := 1; n <= pageCount; n++ {
			pages = append(pages, n)
		}
	} else {
		pages = PercentOffsets(pageCount, structureSamplePercents)
	}

	var headerPatterns, footerPatterns []string
	pageNumberPattern := ""
	if layout != nil {
		headerPatterns = layout.HeaderPatterns
		footerPatterns = layout.FooterPatterns
		pageNumberPattern = layout.PageNumberPattern
	}
	patterns := append(append([]string{}, headerPatterns...), footerPatterns...)

	var sb strings.Builder
	for _, n := range pages {
		text, err := doc.PageText(n)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		text = FilterRepeatedLines(text, patterns, pageNumberPattern)
		if strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&sb, "--- page %d ---\n%s\n\n", n, strings.TrimSpace(text))
	}
	return sb.String()
}

// ClampStructure forces a model-produced profile back inside its invariants:
// heading levels in 1..6, page references in [1, pageCount], a non-empty body
// range that front and back matter do not overlap.
func ClampStructure(profile *types.StructureProfile, pageCount int) {
	if pageCount < 1 {
		pageCount = 1
	}
	profile.DocumentType = types.ParseDocumentType(string(profile.DocumentType))

	if profile.Hierarchy.MaxDepth < 1 {
		profile.Hierarchy.MaxDepth = 1
	}
	if profile.Hierarchy.MaxDepth > 6 {
		profile.Hierarchy.MaxDepth = 6
	}
	styles := profile.Hierarchy.HeadingStyles[:0]
	for _, hs := range profile.Hierarchy.HeadingStyles {
		if hs.Level >= 1 && hs.Level <= 6 {
			styles = append(styles, hs)
		}
	}
	profile.Hierarchy.HeadingStyles = styles

	profile.Toc.Entries = clampTocEntries(profile.Toc.Entries, pageCount)

	clampRange(&profile.Sections.Body, pageCount)
	if profile.Sections.Body.Start < 1 || profile.Sections.Body.End < profile.Sections.Body.Start {
		profile.Sections.Body = types.PageRange{Start: 1, End: pageCount}
	}
	if fm := profile.Sections.FrontMatter; fm != nil {
		clampRange(fm, pageCount)
		if fm.Start < 1 || fm.End < fm.Start || fm.End >= profile.Sections.Body.Start {
			profile.Sections.FrontMatter = nil
		}
	}
	if bm := profile.Sections.BackMatter; bm != nil {
		clampRange(bm, pageCount)
		if bm.Start < 1 || bm.End < bm.Start || bm.Start <= profile.Sections.Body.End {
			profile.Sections.BackMatter = nil
		}
	}

	switch profile.CrossRefs.FootnoteStyle {
	case types.FootnotesNumbered, types.FootnotesSymbolic, types.FootnotesNone:
	default:
		profile.CrossRefs.FootnoteStyle = types.FootnotesNone
	}
}

func clampTocEntries(entries []types.TocEntry, pageCount int) []types.TocEntry {
	out := entries[:0]
	for _, e := range entries {
		if strings.TrimSpace(e.Title) == "" {
			continue
		}
		if e.Level < 1 {
			e.Level = 1
		}
		if e.Level > 6 {
			e.Level = 6
		}
		if e.Page < 1 {
			e.Page = 1
		}
		if e.Page > pageCount {
			e.Page = pageCount
		}
		e.Children = clampTocEntries(e.Children, pageCount)
		out = append(out, e)
	}
	return out
}

func clampRange(r *types.PageRange, pageCount int) {
	if r.Start > pageCount {
		r.Start = pageCount
	}
	if r.End > pageCount {
		r.End = pageCount
	}
}

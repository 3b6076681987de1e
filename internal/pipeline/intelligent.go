package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/pagemill/pagemill/internal/assemble"
	"github.com/pagemill/pagemill/internal/passes"
	"github.com/pagemill/pagemill/internal/types"
	"github.com/pagemill/pagemill/internal/vector"
)

// runIntelligent is the four-pass strategy: layout analysis, structure
// analysis, content extraction, organization.
func (r *runner) runIntelligent(ctx context.Context) (*Result, error) {
	pageCount, err := r.doc.PageCount()
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}

	result := &Result{}

	aopts := passes.AnalyzeOptions{
		DPI:         r.opts.DPI,
		Retry:       r.opts.Retry,
		CallTimeout: r.opts.CallTimeout,
	}

	r.progress(StatusAnalyzing, 0, 2)
	layout := passes.AnalyzeLayout(ctx, r.doc, r.conv, aopts, r.log)
	r.supplementDecorativeZones(layout, pageCount)
	r.progress(StatusAnalyzing, 1, 2)

	analysis, aerr := r.analyzeDocument(ctx, r.analysisInput(pageCount))
	if aerr != nil {
		r.log.Warn("document analysis failed, continuing without", "error", aerr)
	}
	result.Analysis = analysis

	structure := passes.AnalyzeStructure(ctx, r.doc, r.conv, layout, analysis, aopts, r.log)
	result.Structure = structure
	r.progress(StatusAnalyzing, 2, 2)

	extracted, err := passes.ExtractContent(ctx, r.doc, r.conv, layout, structure, passes.ExtractOptions{
		DPI:             r.opts.DPI,
		Concurrency:     r.opts.Concurrency,
		MinCallInterval: r.opts.MinCallInterval,
		CallTimeout:     r.opts.CallTimeout,
		Retry:           r.opts.Retry,
		OnPage: func(page, total int) {
			r.progress(StatusConverting, page, total)
		},
	}, r.log)
	if err != nil {
		return nil, err
	}
	result.Usage.Add(extracted.Usage)
	result.Errors = append(result.Errors, extracted.Errors...)
	if !r.opts.ContinueOnError && len(extracted.Errors) > 0 {
		rec := extracted.Errors[0]
		return nil, fmt.Errorf("conversion failed at %s: %w", rec.Context, rec.Err)
	}

	r.progress(StatusAssembling, 0, 1)
	markdown, err := assemble.Organize(extracted.Raw, structure, assemble.Options{
		IncludeTOC:  r.opts.IncludeTOC,
		TOCMaxLevel: r.opts.TOCMaxLevel,
	})
	if err != nil {
		return nil, err
	}
	r.progress(StatusAssembling, 1, 1)

	result.Markdown = markdown
	result.Contents = pageContents(extracted.Raw, pageCount)
	return result, nil
}

// supplementDecorativeZones runs the geometric vector detector over the
// layout sample pages and folds recurring logo/decoration regions into the
// profile, so extraction can discard them without an AI call.
func (r *runner) supplementDecorativeZones(layout *types.LayoutProfile, pageCount int) {
	samples := passes.PercentOffsets(pageCount, []int{10, 50, 90})
	for _, n := range samples {
		ops, pageHeight, err := r.doc.DrawOps(n)
		if err != nil || pageHeight <= 0 {
			continue
		}
		// DrawOps carries only the page height; assume the common letter width
		// for the horizontal scale.
		const pageWidth = 612.0
		for _, region := range vector.Detect(ops, pageHeight, vector.DefaultOptions()) {
			if region.Kind != vector.RegionLogo && region.Kind != vector.RegionDecoration {
				continue
			}
			zone := types.ImageZone{
				XPct:      region.Bounds.X / pageWidth * 100,
				YPct:      region.Bounds.Y / pageHeight * 100,
				WidthPct:  region.Bounds.W / pageWidth * 100,
				HeightPct: region.Bounds.H / pageHeight * 100,
				Pattern:   string(region.Kind),
			}
			if !containsZone(layout.DecorativeZones, zone) {
				layout.DecorativeZones = append(layout.DecorativeZones, zone)
			}
		}
	}
}

func containsZone(zones []types.ImageZone, z types.ImageZone) bool {
	for _, existing := range zones {
		if overlap1D(existing.XPct, existing.XPct+existing.WidthPct, z.XPct, z.XPct+z.WidthPct) &&
			overlap1D(existing.YPct, existing.YPct+existing.HeightPct, z.YPct, z.YPct+z.HeightPct) {
			return true
		}
	}
	return false
}

func overlap1D(aLo, aHi, bLo, bHi float64) bool {
	return aLo < bHi && bLo < aHi
}

// pageContents groups extracted sections back into per-page markdown for the
// Contents field.
func pageContents(raw *types.RawContent, pageCount int) []PageContent {
	byPage := make(map[int][]string)
	for _, s := range raw.Sections {
		var sb strings.Builder
		if s.Level > 0 && s.Title != "" {
			fmt.Fprintf(&sb, "%s %s\n\n", strings.Repeat("#", s.Level), s.Title)
		}
		sb.WriteString(s.Content)
		if t := strings.TrimSpace(sb.String()); t != "" {
			byPage[s.Page] = append(byPage[s.Page], t)
		}
	}

	contents := make([]PageContent, 0, pageCount)
	for n := 1; n <= pageCount; n++ {
		contents = append(contents, PageContent{
			Page:     n,
			Markdown: strings.Join(byPage[n], "\n\n"),
		})
	}
	return contents
}

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/pagemill/pagemill/internal/classify"
	"github.com/pagemill/pagemill/internal/passes"
	"github.com/pagemill/pagemill/internal/providers"
	"github.com/pagemill/pagemill/internal/render"
	"github.com/pagemill/pagemill/internal/types"
)

// runLight adds a cheap document analysis over the opening pages and a
// heuristic header/footer detector, then converts page by page with structure
// hints in the context.
func (r *runner) runLight(ctx context.Context) (*Result, error) {
	pageCount, err := r.doc.PageCount()
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}

	result := &Result{}

	r.progress(StatusAnalyzing, 0, 2)
	analysis, structure := r.lightAnalysis(ctx, pageCount, result)
	r.progress(StatusAnalyzing, 1, 2)
	headers, footers, pageNumPattern := DetectRepeatingLines(r.doc, pageCount)
	r.progress(StatusAnalyzing, 2, 2)

	result.Analysis = analysis
	result.Structure = structure
	language := ""
	if analysis != nil {
		language = analysis.Language
	}

	prevContent := ""
	prevSummary := ""
	openSection := ""

	for n := 1; n <= pageCount; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.progress(StatusConverting, n-1, pageCount)

		imageB64, err := r.doc.RenderPage(ctx, n, render.RenderOptions{DPI: r.opts.DPI})
		if err != nil {
			if ferr := r.unitFailure(result, fmt.Sprintf("page %d", n), err); ferr != nil {
				return nil, ferr
			}
			result.Contents = append(result.Contents, PageContent{Page: n})
			continue
		}
		pageText, _ := r.doc.PageText(n)

		pr, err := r.callPage(ctx, nil, imageB64, providers.PageContext{
			PageNumber:        n,
			TotalPages:        pageCount,
			PageText:          passes.FilterRepeatedLines(pageText, append(headers, footers...), pageNumPattern),
			PreviousContent:   prevContent,
			PreviousSummary:   prevSummary,
			ExpectedHeadings:  headingsOnPage(structure, n),
			CurrentSection:    openSection,
			HeaderPatterns:    headers,
			FooterPatterns:    footers,
			PageNumberPattern: pageNumPattern,
			Language:          language,
		})
		if err != nil {
			if ferr := r.unitFailure(result, fmt.Sprintf("page %d", n), err); ferr != nil {
				return nil, ferr
			}
			result.Contents = append(result.Contents, PageContent{Page: n})
			continue
		}

		result.Usage.Add(pr.Usage)
		result.Contents = append(result.Contents, PageContent{Page: n, Markdown: pr.Content})
		prevContent = passes.Tail(pr.Content, directTailChars)
		if pr.Summary != "" {
			prevSummary = pr.Summary
		}
		if language == "" && pr.Language != "" {
			language = pr.Language
		}
		if open := lastHeading(pr.Content); open != "" {
			openSection = open
		}
		r.progress(StatusConverting, n, pageCount)
	}

	result.Markdown = joinContents(result.Contents)
	return result, nil
}

// lightAnalysis runs the analysis and structure calls over the first pages.
// Failures degrade to nil; the conversion proceeds without hints.
func (r *runner) lightAnalysis(ctx context.Context, pageCount int, result *Result) (*providers.DocumentAnalysis, *types.StructureProfile) {
	samplePages := pageCount
	if samplePages > 5 {
		samplePages = 5
	}
	var sb strings.Builder
	for n := 1; n <= samplePages; n++ {
		if text, err := r.doc.PageText(n); err == nil && strings.TrimSpace(text) != "" {
			fmt.Fprintf(&sb, "--- page %d ---\n%s\n\n", n, strings.TrimSpace(text))
		}
	}
	input := providers.AnalysisInput{SampledText: sb.String(), PageCount: pageCount}

	analysis, err := r.analyzeDocument(ctx, input)
	if err != nil {
		r.log.Warn("document analysis failed, continuing without", "error", err)
		return nil, nil
	}
	structure, err := r.extractStructure(ctx, input, analysis)
	if err != nil {
		r.log.Warn("structure extraction failed, continuing without", "error", err)
		return analysis, nil
	}
	passes.ClampStructure(structure, pageCount)
	return analysis, structure
}

func headingsOnPage(structure *types.StructureProfile, n int) []string {
	if structure == nil {
		return nil
	}
	var out []string
	var walk func(entries []types.TocEntry)
	walk = func(entries []types.TocEntry) {
		for _, e := range entries {
			if e.Page == n {
				out = append(out, e.Title)
			}
			walk(e.Children)
		}
	}
	walk(structure.Toc.Entries)
	return out
}

// lastHeading returns the final Markdown heading in content, if any.
func lastHeading(content string) string {
	lines := strings.Split(content, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		t := strings.TrimSpace(lines[i])
		if strings.HasPrefix(t, "#") {
			return strings.TrimSpace(strings.TrimLeft(t, "# "))
		}
	}
	return ""
}

// DetectRepeatingLines samples ~5 evenly spaced pages and inspects the first
// and last non-empty line of each. A line recurring verbatim in at least half
// the samples is a header/footer pattern; a recurring all-digit line yields a
// generic page-number pattern instead.
func DetectRepeatingLines(doc render.Service, pageCount int) (headers, footers []string, pageNumPattern string) {
	samples := classify.SamplePages(pageCount, 5)
	if len(samples) < 2 {
		return nil, nil, ""
	}

	firstCounts := make(map[string]int)
	lastCounts := make(map[string]int)
	digitRecurs := false
	seen := 0

	for _, n := range samples {
		text, err := doc.PageText(n)
		if err != nil {
			continue
		}
		first, last := edgeLines(text)
		if first == "" && last == "" {
			continue
		}
		seen++
		if first != "" {
			firstCounts[first]++
		}
		if last != "" {
			if isAllDigits(last) {
				digitRecurs = true
			} else {
				lastCounts[last]++
			}
		}
	}
	if seen < 2 {
		return nil, nil, ""
	}

	min := (seen + 1) / 2
	for line, c := range firstCounts {
		if c >= min {
			headers = append(headers, line)
		}
	}
	for line, c := range lastCounts {
		if c >= min {
			footers = append(footers, line)
		}
	}
	if digitRecurs {
		pageNumPattern = `^\s*\d+\s*$`
	}
	return headers, footers, pageNumPattern
}

func edgeLines(text string) (first, last string) {
	for _, line := range strings.Split(text, "\n") {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if first == "" {
			first = t
		}
		last = t
	}
	return first, last
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

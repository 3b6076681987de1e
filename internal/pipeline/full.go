package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pagemill/pagemill/internal/passes"
	"github.com/pagemill/pagemill/internal/providers"
	"github.com/pagemill/pagemill/internal/robust"
	"github.com/pagemill/pagemill/internal/types"
)

// runFull converts large documents in contiguous page windows shipped as raw
// PDF slices. Windows run sequentially with propagated continuity context, or
// in parallel batches with empty context when Parallel is set.
func (r *runner) runFull(ctx context.Context) (*Result, error) {
	pageCount, err := r.doc.PageCount()
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}

	result := &Result{}

	r.progress(StatusAnalyzing, 0, 2)
	analysis := r.fullAnalysis(ctx, pageCount)
	r.progress(StatusAnalyzing, 1, 2)

	var structure *types.StructureProfile
	if structure, err = r.extractStructure(ctx, r.analysisInput(pageCount), analysis); err != nil {
		r.log.Warn("structure extraction failed, windows will not align to sections", "error", err)
		structure = nil
	} else {
		passes.ClampStructure(structure, pageCount)
	}
	r.progress(StatusAnalyzing, 2, 2)

	result.Analysis = analysis
	result.Structure = structure

	windows := ComputeWindows(pageCount, r.opts.WindowSize, structure)
	headers, footers, pageNumPattern := DetectRepeatingLines(r.doc, pageCount)

	language := ""
	if analysis != nil {
		language = analysis.Language
	}

	var outputs []*providers.WindowResult
	if r.opts.Parallel && r.opts.Concurrency > 1 {
		outputs, err = r.convertWindowsParallel(ctx, windows, headers, footers, language, result)
	} else {
		outputs, err = r.convertWindowsSequential(ctx, windows, headers, footers, language, result)
	}
	if err != nil {
		return nil, err
	}

	r.progress(StatusAssembling, 0, 1)
	result.Contents, result.Markdown = mergeWindows(windows, outputs, append(headers, footers...), pageNumPattern)
	r.progress(StatusAssembling, 1, 1)
	return result, nil
}

// fullAnalysis prefers the converter's native whole-document capability when
// the document fits its ceiling, falling back to sampled text.
func (r *runner) fullAnalysis(ctx context.Context, pageCount int) *providers.DocumentAnalysis {
	analysis, err := r.analyzeDocument(ctx, r.analysisInput(pageCount))
	if err != nil {
		r.log.Warn("document analysis failed, continuing without", "error", err)
		return nil
	}
	return analysis
}

func (r *runner) analysisInput(pageCount int) providers.AnalysisInput {
	caps := r.conv.Capabilities()
	if caps.SupportsNativePDF && pageCount <= caps.MaxPDFPages {
		if data, err := r.doc.ExtractPageRange(1, pageCount); err == nil {
			return providers.AnalysisInput{PDFData: data, PageCount: pageCount}
		}
	}

	samples := passes.PercentOffsets(pageCount, []int{5, 25, 50, 75, 95})
	var sb strings.Builder
	for _, n := range samples {
		if text, err := r.doc.PageText(n); err == nil && strings.TrimSpace(text) != "" {
			fmt.Fprintf(&sb, "--- page %d ---\n%s\n\n", n, strings.TrimSpace(text))
		}
	}
	return providers.AnalysisInput{SampledText: sb.String(), PageCount: pageCount}
}

func (r *runner) convertWindowsSequential(ctx context.Context, windows []types.WindowSpec, headers, footers []string, language string, result *Result) ([]*providers.WindowResult, error) {
	outputs := make([]*providers.WindowResult, len(windows))
	prevContent := ""
	prevSummary := ""

	for i, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.progress(StatusConverting, i, len(windows))

		wr, err := r.convertWindow(ctx, nil, w, providers.WindowContext{
			Window:           w,
			PreviousContent:  prevContent,
			PreviousSummary:  prevSummary,
			HeaderPatterns:   headers,
			FooterPatterns:   footers,
			ExpectedHeadings: w.ExpectedHeadings,
			Language:         language,
		})
		if err != nil {
			if ferr := r.unitFailure(result, fmt.Sprintf("window %d (pages %d-%d)", w.WindowNumber, w.StartPage, w.EndPage), err); ferr != nil {
				return nil, ferr
			}
			outputs[i] = &providers.WindowResult{}
			continue
		}

		outputs[i] = wr
		result.Usage.Add(wr.Usage)
		prevContent = passes.Tail(wr.Content, 800)
		if wr.Summary != "" {
			prevSummary = wr.Summary
		}
		r.progress(StatusConverting, i+1, len(windows))
	}
	return outputs, nil
}

// convertWindowsParallel processes windows in a bounded pool. Cross-window
// continuity context is deliberately empty; the merge pass repairs paragraph
// joins afterwards.
func (r *runner) convertWindowsParallel(ctx context.Context, windows []types.WindowSpec, headers, footers []string, language string, result *Result) ([]*providers.WindowResult, error) {
	outputs := make([]*providers.WindowResult, len(windows))
	failures := make([]error, len(windows))
	limiter := robust.NewLimiter(r.opts.Concurrency, r.opts.MinCallInterval)

	var wg sync.WaitGroup
	var done int
	var mu sync.Mutex

	for i, w := range windows {
		wg.Add(1)
		go func(i int, w types.WindowSpec) {
			defer wg.Done()
			wr, err := r.convertWindow(ctx, limiter, w, providers.WindowContext{
				Window:           w,
				HeaderPatterns:   headers,
				FooterPatterns:   footers,
				ExpectedHeadings: w.ExpectedHeadings,
				Language:         language,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[i] = err
				outputs[i] = &providers.WindowResult{}
			} else {
				outputs[i] = wr
				result.Usage.Add(wr.Usage)
			}
			done++
			r.progress(StatusConverting, done, len(windows))
		}(i, w)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, err := range failures {
		if err == nil {
			continue
		}
		w := windows[i]
		if ferr := r.unitFailure(result, fmt.Sprintf("window %d (pages %d-%d)", w.WindowNumber, w.StartPage, w.EndPage), err); ferr != nil {
			return nil, ferr
		}
	}
	return outputs, nil
}

func (r *runner) convertWindow(ctx context.Context, limiter *robust.Limiter, w types.WindowSpec, wc providers.WindowContext) (*providers.WindowResult, error) {
	pdfData, err := r.doc.ExtractPageRange(w.StartPage, w.EndPage)
	if err != nil {
		return nil, fmt.Errorf("failed to extract pages %d-%d: %w", w.StartPage, w.EndPage, err)
	}
	call := robust.WithRetry(r.opts.Retry,
		robust.WithTimeout(r.opts.CallTimeout,
			robust.WithRateLimit(limiter, func(cctx context.Context) (*providers.WindowResult, error) {
				return r.conv.ConvertWindow(cctx, pdfData, wc)
			})))
	return call(ctx)
}

// mergeWindows strips residual header/footer lines per window and re-joins
// windows whose trailing paragraph looks grammatically incomplete with the
// following window's leading text.
func mergeWindows(windows []types.WindowSpec, outputs []*providers.WindowResult, patterns []string, pageNumPattern string) ([]PageContent, string) {
	contents := make([]PageContent, 0, len(windows))
	cleaned := make([]string, len(outputs))
	for i, out := range outputs {
		text := ""
		if out != nil {
			text = passes.FilterRepeatedLines(out.Content, patterns, pageNumPattern)
		}
		cleaned[i] = strings.TrimSpace(text)
		contents = append(contents, PageContent{
			Page:     windows[i].StartPage,
			EndPage:  windows[i].EndPage,
			Markdown: cleaned[i],
		})
	}

	var sb strings.Builder
	for i, text := range cleaned {
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			if i > 0 && passes.EndsIncomplete(cleaned[i-1]) {
				// Continue the broken paragraph instead of starting a new one.
				sb.WriteString(" ")
			} else {
				sb.WriteString("\n\n")
			}
		}
		sb.WriteString(text)
	}
	sb.WriteString("\n")
	return contents, sb.String()
}

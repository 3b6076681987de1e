// Package pipeline is the conversion facade: it classifies a document,
// selects a strategy and runs it, returning the assembled Markdown together
// with per-unit contents and metadata.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pagemill/pagemill/internal/classify"
	"github.com/pagemill/pagemill/internal/providers"
	"github.com/pagemill/pagemill/internal/render"
	"github.com/pagemill/pagemill/internal/robust"
	"github.com/pagemill/pagemill/internal/types"
)

// Progress statuses reported through Options.OnProgress.
const (
	StatusClassifying = "classifying"
	StatusAnalyzing   = "analyzing"
	StatusConverting  = "converting"
	StatusAssembling  = "assembling"
)

// Options configure a conversion run.
type Options struct {
	// OnProgress receives (status, current, total) updates. May be nil.
	OnProgress func(status string, current, total int)

	// DPI for page rasterization (default 150).
	DPI int

	// ForcePipeline overrides the classifier's recommendation when non-empty.
	ForcePipeline types.PipelineType

	// Parallel enables bounded-concurrency processing where the strategy
	// supports it (full-pipeline windows, robust extraction).
	Parallel    bool
	Concurrency int

	// MinCallInterval spaces successive AI calls in concurrent modes.
	MinCallInterval time.Duration

	// CallTimeout bounds each AI call independently; 0 disables.
	CallTimeout time.Duration

	// Retry is the backoff policy for AI calls.
	Retry robust.RetryPolicy

	// ContinueOnError substitutes empty fragments for failed units instead of
	// aborting the conversion.
	ContinueOnError bool

	// IncludeTOC renders an anchor-linked contents section (intelligent only).
	IncludeTOC  bool
	TOCMaxLevel int

	// WindowSize caps full-pipeline window length in pages (default 20).
	WindowSize int

	// Classify tunes the complexity classifier.
	Classify classify.Options

	Logger *slog.Logger
}

func (o Options) normalized() Options {
	if o.DPI <= 0 {
		o.DPI = 150
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if !o.Parallel {
		o.Concurrency = 1
	}
	if o.WindowSize <= 0 {
		o.WindowSize = 20
	}
	if o.Retry.MaxAttempts == 0 {
		o.Retry = robust.DefaultRetryPolicy()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// PageContent is the converted Markdown of one page or window.
type PageContent struct {
	Page     int    `json:"page"`
	EndPage  int    `json:"end_page,omitempty"` // set for windows spanning pages
	Markdown string `json:"markdown"`
}

// Result is the conversion output. Errors is non-empty when units failed and
// were substituted; FullSuccess is false in that case.
type Result struct {
	Markdown    string                       `json:"markdown"`
	Contents    []PageContent                `json:"contents"`
	Metadata    render.Metadata              `json:"metadata"`
	Structure   *types.StructureProfile      `json:"structure,omitempty"`
	Analysis    *providers.DocumentAnalysis  `json:"analysis,omitempty"`
	Complexity  *types.ComplexityAssessment  `json:"complexity"`
	Pipeline    types.PipelineType           `json:"pipeline"`
	Usage       providers.Usage              `json:"usage"`
	Errors      []robust.ErrorRecord         `json:"errors,omitempty"`
	FullSuccess bool                         `json:"full_success"`
	Elapsed     time.Duration                `json:"elapsed"`
}

// Convert runs the full adaptive conversion: classify, select a strategy,
// execute it and return the result.
func Convert(ctx context.Context, doc render.Service, conv providers.Converter, opts Options) (*Result, error) {
	o := opts.normalized()
	log := o.Logger.With("component", "pipeline")
	start := time.Now()

	r := &runner{doc: doc, conv: conv, opts: o, log: log}

	r.progress(StatusClassifying, 0, 1)
	assessment, err := classify.Classify(doc, o.Classify)
	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}
	r.progress(StatusClassifying, 1, 1)

	selected := assessment.RecommendedPipeline
	if o.ForcePipeline != "" {
		selected = o.ForcePipeline
		log.Info("pipeline forced", "pipeline", selected, "recommended", assessment.RecommendedPipeline)
	} else {
		log.Info("pipeline selected",
			"pipeline", selected,
			"level", assessment.Level,
			"score", assessment.Score,
			"estimated_seconds", assessment.EstimatedSeconds)
	}

	var result *Result
	switch selected {
	case types.PipelineDirect:
		result, err = r.runDirect(ctx)
	case types.PipelineLight:
		result, err = r.runLight(ctx)
	case types.PipelineFull:
		result, err = r.runFull(ctx)
	case types.PipelineIntelligent:
		result, err = r.runIntelligent(ctx)
	default:
		return nil, fmt.Errorf("unknown pipeline type %q", selected)
	}
	if err != nil {
		return nil, err
	}

	result.Complexity = assessment
	result.Pipeline = selected
	result.FullSuccess = len(result.Errors) == 0
	result.Elapsed = time.Since(start)
	if md, merr := doc.Metadata(); merr == nil {
		result.Metadata = md
	}

	log.Info("conversion complete",
		"pipeline", selected,
		"pages", result.Metadata.PageCount,
		"markdown_bytes", len(result.Markdown),
		"errors", len(result.Errors),
		"elapsed", result.Elapsed.Round(time.Millisecond))
	return result, nil
}

// runner carries the per-conversion state shared by the strategies.
type runner struct {
	doc  render.Service
	conv providers.Converter
	opts Options
	log  *slog.Logger
}

func (r *runner) progress(status string, current, total int) {
	if r.opts.OnProgress != nil {
		r.opts.OnProgress(status, current, total)
	}
}

// callPage is the decorated single-page conversion every strategy shares.
func (r *runner) callPage(ctx context.Context, limiter *robust.Limiter, imageB64 string, pc providers.PageContext) (*providers.PageResult, error) {
	call := robust.WithRetry(r.opts.Retry,
		robust.WithTimeout(r.opts.CallTimeout,
			robust.WithRateLimit(limiter, func(cctx context.Context) (*providers.PageResult, error) {
				return r.conv.ConvertPage(cctx, imageB64, pc)
			})))
	return call(ctx)
}

// analyzeDocument issues the document analysis call with the same retry and
// timeout decoration page conversions get. Callers degrade to running without
// hints only after retries exhaust.
func (r *runner) analyzeDocument(ctx context.Context, input providers.AnalysisInput) (*providers.DocumentAnalysis, error) {
	call := robust.WithRetry(r.opts.Retry,
		robust.WithTimeout(r.opts.CallTimeout, func(cctx context.Context) (*providers.DocumentAnalysis, error) {
			return r.conv.AnalyzeDocument(cctx, input)
		}))
	return call(ctx)
}

// extractStructure is the decorated structure extraction call.
func (r *runner) extractStructure(ctx context.Context, input providers.AnalysisInput, analysis *providers.DocumentAnalysis) (*types.StructureProfile, error) {
	call := robust.WithRetry(r.opts.Retry,
		robust.WithTimeout(r.opts.CallTimeout, func(cctx context.Context) (*types.StructureProfile, error) {
			return r.conv.ExtractStructure(cctx, input, analysis)
		}))
	return call(ctx)
}

// unitFailure applies the continue-on-error policy to a failed unit: either
// the error aborts the run, or it is recorded and an empty fragment stands in.
func (r *runner) unitFailure(result *Result, stage string, err error) error {
	if !r.opts.ContinueOnError {
		return robust.Classify(err)
	}
	r.log.Warn("unit failed, continuing with empty fragment", "stage", stage, "error", err)
	result.Errors = append(result.Errors, robust.NewErrorRecord(stage, err, true))
	return nil
}

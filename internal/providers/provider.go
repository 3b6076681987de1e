// Package providers defines the AI conversion service contract and its
// OpenRouter-backed implementation. The pipeline only ever talks to the
// Converter interface so tests can substitute MockConverter.
package providers

import (
	"context"

	"github.com/pagemill/pagemill/internal/types"
)

// Capabilities advertises what a converter can handle natively.
type Capabilities struct {
	SupportsNativePDF bool `json:"supports_native_pdf"`
	MaxPDFPages       int  `json:"max_pdf_pages"`
	MaxContextTokens  int  `json:"max_context_tokens"`
}

// AnalysisInput feeds a document-level analysis call. Exactly one of PDFData
// or SampledText is usually set; PageCount is always set.
type AnalysisInput struct {
	PDFData     []byte
	SampledText string
	PageCount   int
}

// DocumentAnalysis is the cheap whole-document assessment.
type DocumentAnalysis struct {
	Language            string `json:"language"`
	HasTOC              bool   `json:"has_toc"`
	EstimatedImages     int    `json:"estimated_images"`
	EstimatedTables     int    `json:"estimated_tables"`
	EstimatedCodeBlocks int    `json:"estimated_code_blocks"`
	PageCount           int    `json:"page_count"`
}

// PageContext carries the continuity state threaded into a page conversion.
type PageContext struct {
	PageNumber        int
	TotalPages        int
	PageText          string
	PreviousContent   string // trailing ~500-800 chars of prior output
	PreviousSummary   string
	ExpectedHeadings  []string
	CurrentSection    string
	HeaderPatterns    []string
	FooterPatterns    []string
	PageNumberPattern string
	Language          string
}

// ImagePlacement locates one detected image in a converted page.
// BBox is [ymin, xmin, ymax, xmax] on a 0-1000 scale.
type ImagePlacement struct {
	BBox        [4]int `json:"bbox"`
	Description string `json:"description"`
}

// Usage is per-call token/cost accounting.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// Add accumulates another call's usage.
func (u *Usage) Add(o Usage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
	u.TotalTokens += o.TotalTokens
	u.CostUSD += o.CostUSD
}

// PageResult is the converted content of one page.
type PageResult struct {
	Content       string                    `json:"content"`
	Images        map[string]ImagePlacement `json:"images,omitempty"`
	Summary       string                    `json:"summary,omitempty"`
	LastParagraph string                    `json:"last_paragraph,omitempty"`
	Language      string                    `json:"language,omitempty"`
	Usage         Usage                     `json:"usage"`
}

// WindowContext carries continuity state into a window conversion.
type WindowContext struct {
	Window           types.WindowSpec
	PreviousContent  string
	PreviousSummary  string
	HeaderPatterns   []string
	FooterPatterns   []string
	ExpectedHeadings []string
	Language         string
}

// WindowResult is the converted content of one processing window.
type WindowResult struct {
	Content       string `json:"content"`
	Summary       string `json:"summary,omitempty"`
	LastParagraph string `json:"last_paragraph,omitempty"`
	Usage         Usage  `json:"usage"`
}

// Converter is the AI conversion service contract.
type Converter interface {
	// Name returns the provider identifier (e.g. "openrouter").
	Name() string

	// Capabilities reports native-PDF support and size ceilings.
	Capabilities() Capabilities

	// AnalyzeDocument assesses language, TOC presence and content estimates.
	AnalyzeDocument(ctx context.Context, input AnalysisInput) (*DocumentAnalysis, error)

	// ExtractStructure derives the document's structural profile.
	ExtractStructure(ctx context.Context, input AnalysisInput, analysis *DocumentAnalysis) (*types.StructureProfile, error)

	// ConvertPage converts one rendered page (base64 PNG) to Markdown.
	ConvertPage(ctx context.Context, imageB64 string, pc PageContext) (*PageResult, error)

	// ConvertWindow converts a contiguous page range shipped as raw PDF bytes.
	ConvertWindow(ctx context.Context, pdfData []byte, wc WindowContext) (*WindowResult, error)

	// Summarize condenses text to at most maxLen characters.
	Summarize(ctx context.Context, text string, maxLen int) (string, error)

	// Chat is a free-form escape hatch used as an analysis fallback.
	Chat(ctx context.Context, prompt string) (string, error)
}

// VisionChatter is an optional converter capability: a free-form prompt with
// an attached page image. Callers type-assert and fall back to Chat when the
// provider cannot see images.
type VisionChatter interface {
	ChatVision(ctx context.Context, prompt, imageB64 string) (string, error)
}

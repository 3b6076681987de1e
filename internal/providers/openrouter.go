package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pagemill/pagemill/internal/types"
)

const OpenRouterName = "openrouter"

const defaultBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterConverter implements Converter against the OpenRouter chat API.
type OpenRouterConverter struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	limiter *RateLimiter
	caps    Capabilities
}

// OpenRouterConfig configures a new converter.
type OpenRouterConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	RequestsPerMinute int
	RequestTimeout    time.Duration
	MaxPDFPages       int
	MaxContextTokens  int
}

// NewOpenRouterConverter creates a converter. The API key is required.
func NewOpenRouterConverter(cfg OpenRouterConfig) (*OpenRouterConverter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "google/gemini-2.5-flash"
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	maxPages := cfg.MaxPDFPages
	if maxPages <= 0 {
		maxPages = 48
	}
	maxTokens := cfg.MaxContextTokens
	if maxTokens <= 0 {
		maxTokens = 128000
	}

	return &OpenRouterConverter{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		limiter: NewRateLimiter(cfg.RequestsPerMinute),
		caps: Capabilities{
			SupportsNativePDF: true,
			MaxPDFPages:       maxPages,
			MaxContextTokens:  maxTokens,
		},
	}, nil
}

// Name returns the provider identifier.
func (c *OpenRouterConverter) Name() string { return OpenRouterName }

// Capabilities reports native-PDF support and size ceilings.
func (c *OpenRouterConverter) Capabilities() Capabilities { return c.caps }

// LimiterStatus exposes rate-limiter state for progress reporting.
func (c *OpenRouterConverter) LimiterStatus() RateLimiterStatus { return c.limiter.Status() }

// AnalyzeDocument assesses language, TOC presence and content estimates.
func (c *OpenRouterConverter) AnalyzeDocument(ctx context.Context, input AnalysisInput) (*DocumentAnalysis, error) {
	parts := []openRouterPart{{
		Type: "text",
		Text: "Analyze this document and respond with JSON: language (ISO 639-1), " +
			"has_toc, estimated_images, estimated_tables, estimated_code_blocks, page_count.",
	}}
	parts = c.attachInput(parts, input)

	resp, err := c.doRequest(ctx, &openRouterRequest{
		Model: c.model,
		Messages: []openRouterMessage{
			{Role: "system", Content: "You are a document analyst. Always answer with a single JSON object."},
			{Role: "user", Content: parts},
		},
		ResponseFormat: &openRouterRespFormat{Type: "json_schema", JSONSchema: json.RawMessage(analysisSchema)},
		Usage:          &openRouterUsageRequest{Include: true},
	})
	if err != nil {
		return nil, err
	}

	raw := extractJSONBlock(resp.Choices[0].Message.Content)
	if raw == nil {
		return nil, fmt.Errorf("analysis response contained no JSON object")
	}
	if err := validateAgainst(analysisSchema, raw); err != nil {
		return nil, err
	}

	var analysis DocumentAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse analysis: %w", err)
	}
	if analysis.PageCount == 0 {
		analysis.PageCount = input.PageCount
	}
	return &analysis, nil
}

// ExtractStructure derives the document's structural profile.
func (c *OpenRouterConverter) ExtractStructure(ctx context.Context, input AnalysisInput, analysis *DocumentAnalysis) (*types.StructureProfile, error) {
	prompt := "Extract the document structure as JSON: document_type " +
		"(academic|book|report|marketing|manual|legal|other), toc {explicit, entries " +
		"[{level, title, page, children}]}, hierarchy {max_depth, heading_styles [{level, indicator}]}, " +
		"sections {front_matter {start, end}, body {start, end}, back_matter {start, end}}, " +
		"cross_references {footnote_style (numbered|symbolic|none), citation_style}."
	if analysis != nil && analysis.Language != "" {
		prompt += " The document language is " + analysis.Language + "."
	}

	parts := []openRouterPart{{Type: "text", Text: prompt}}
	parts = c.attachInput(parts, input)

	resp, err := c.doRequest(ctx, &openRouterRequest{
		Model: c.model,
		Messages: []openRouterMessage{
			{Role: "system", Content: "You are a document structure analyst. Always answer with a single JSON object."},
			{Role: "user", Content: parts},
		},
		ResponseFormat: &openRouterRespFormat{Type: "json_schema", JSONSchema: json.RawMessage(structureSchema)},
		Usage:          &openRouterUsageRequest{Include: true},
	})
	if err != nil {
		return nil, err
	}

	raw := extractJSONBlock(resp.Choices[0].Message.Content)
	if raw == nil {
		return nil, fmt.Errorf("structure response contained no JSON object")
	}
	if err := validateAgainst(structureSchema, raw); err != nil {
		return nil, err
	}

	var profile types.StructureProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse structure: %w", err)
	}
	profile.DocumentType = types.ParseDocumentType(string(profile.DocumentType))
	return &profile, nil
}

// ConvertPage converts one rendered page (base64 PNG) to Markdown.
func (c *OpenRouterConverter) ConvertPage(ctx context.Context, imageB64 string, pc PageContext) (*PageResult, error) {
	parts := []openRouterPart{
		{Type: "text", Text: buildPagePrompt(pc)},
		{Type: "image_url", ImageURL: &openRouterImageURL{URL: "data:image/png;base64," + imageB64}},
	}

	resp, err := c.doRequest(ctx, &openRouterRequest{
		Model: c.model,
		Messages: []openRouterMessage{
			{Role: "system", Content: pageSystemPrompt},
			{Role: "user", Content: parts},
		},
		ResponseFormat: &openRouterRespFormat{Type: "json_schema", JSONSchema: json.RawMessage(pageSchema)},
		Usage:          &openRouterUsageRequest{Include: true},
	})
	if err != nil {
		return nil, err
	}

	content := resp.Choices[0].Message.Content
	raw := extractJSONBlock(content)
	if raw == nil || validateAgainst(pageSchema, raw) != nil {
		// Model fell back to plain markdown; accept it rather than fail the page.
		return &PageResult{Content: content, Usage: usageFrom(resp)}, nil
	}

	var result PageResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return &PageResult{Content: content, Usage: usageFrom(resp)}, nil
	}
	result.Usage = usageFrom(resp)
	return &result, nil
}

// ConvertWindow converts a contiguous page range shipped as raw PDF bytes.
func (c *OpenRouterConverter) ConvertWindow(ctx context.Context, pdfData []byte, wc WindowContext) (*WindowResult, error) {
	parts := []openRouterPart{
		{Type: "text", Text: buildWindowPrompt(wc)},
		{Type: "file", File: &openRouterFile{
			Filename: fmt.Sprintf("window-%d.pdf", wc.Window.WindowNumber),
			FileData: "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdfData),
		}},
	}

	resp, err := c.doRequest(ctx, &openRouterRequest{
		Model: c.model,
		Messages: []openRouterMessage{
			{Role: "system", Content: windowSystemPrompt},
			{Role: "user", Content: parts},
		},
		ResponseFormat: &openRouterRespFormat{Type: "json_schema", JSONSchema: json.RawMessage(windowSchema)},
		Usage:          &openRouterUsageRequest{Include: true},
	})
	if err != nil {
		return nil, err
	}

	content := resp.Choices[0].Message.Content
	raw := extractJSONBlock(content)
	if raw == nil || validateAgainst(windowSchema, raw) != nil {
		return &WindowResult{Content: content, Usage: usageFrom(resp)}, nil
	}

	var result WindowResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return &WindowResult{Content: content, Usage: usageFrom(resp)}, nil
	}
	result.Usage = usageFrom(resp)
	return &result, nil
}

// Summarize condenses text to at most maxLen characters.
func (c *OpenRouterConverter) Summarize(ctx context.Context, text string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = 300
	}
	resp, err := c.doRequest(ctx, &openRouterRequest{
		Model: c.model,
		Messages: []openRouterMessage{
			{Role: "system", Content: "Summarize the user's text. Plain prose, no preamble."},
			{Role: "user", Content: fmt.Sprintf("Summarize in at most %d characters:\n\n%s", maxLen, text)},
		},
	})
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if len(summary) > maxLen {
		summary = summary[:maxLen]
	}
	return summary, nil
}

// Chat is a free-form escape hatch used as an analysis fallback.
func (c *OpenRouterConverter) Chat(ctx context.Context, prompt string) (string, error) {
	resp, err := c.doRequest(ctx, &openRouterRequest{
		Model: c.model,
		Messages: []openRouterMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatVision is Chat with an attached page image.
func (c *OpenRouterConverter) ChatVision(ctx context.Context, prompt, imageB64 string) (string, error) {
	parts := []openRouterPart{
		{Type: "text", Text: prompt},
		{Type: "image_url", ImageURL: &openRouterImageURL{URL: "data:image/png;base64," + imageB64}},
	}
	resp, err := c.doRequest(ctx, &openRouterRequest{
		Model: c.model,
		Messages: []openRouterMessage{
			{Role: "user", Content: parts},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

// attachInput adds either the native PDF or the sampled text to a message.
func (c *OpenRouterConverter) attachInput(parts []openRouterPart, input AnalysisInput) []openRouterPart {
	if len(input.PDFData) > 0 {
		return append(parts, openRouterPart{
			Type: "file",
			File: &openRouterFile{
				Filename: "document.pdf",
				FileData: "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(input.PDFData),
			},
		})
	}
	if input.SampledText != "" {
		return append(parts, openRouterPart{
			Type: "text",
			Text: "Sampled document text:\n\n" + input.SampledText,
		})
	}
	return parts
}

const pageSystemPrompt = `You convert document page images to clean Markdown.
Respond with a JSON object: content (the page as Markdown), images (map of
placeholder id to {bbox: [ymin, xmin, ymax, xmax] on a 0-1000 scale,
description}), summary (2-3 sentences), last_paragraph (the final paragraph
verbatim), language. Put placeholder ids like ![img-1](img-1) in the content
where images belong. Do not transcribe running headers, footers or page numbers.`

const windowSystemPrompt = `You convert a span of PDF pages to clean Markdown.
Respond with a JSON object: content, summary, last_paragraph. Preserve heading
structure. Do not transcribe running headers, footers or page numbers.`

func buildPagePrompt(pc PageContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Convert page %d of %d to Markdown.\n", pc.PageNumber, pc.TotalPages)
	if pc.Language != "" {
		fmt.Fprintf(&sb, "Document language: %s.\n", pc.Language)
	}
	if pc.CurrentSection != "" {
		fmt.Fprintf(&sb, "The currently open section is %q.\n", pc.CurrentSection)
	}
	if len(pc.ExpectedHeadings) > 0 {
		fmt.Fprintf(&sb, "Headings expected on this page: %s.\n", strings.Join(pc.ExpectedHeadings, "; "))
	}
	if len(pc.HeaderPatterns) > 0 || len(pc.FooterPatterns) > 0 {
		fmt.Fprintf(&sb, "Skip repeating header/footer text matching: %s.\n",
			strings.Join(append(append([]string{}, pc.HeaderPatterns...), pc.FooterPatterns...), " | "))
	}
	if pc.PageNumberPattern != "" {
		fmt.Fprintf(&sb, "Skip page numbers matching: %s.\n", pc.PageNumberPattern)
	}
	if pc.PreviousSummary != "" {
		fmt.Fprintf(&sb, "\nSummary of the document so far:\n%s\n", pc.PreviousSummary)
	}
	if pc.PreviousContent != "" {
		fmt.Fprintf(&sb, "\nThe previous page ended with:\n%s\n", pc.PreviousContent)
	}
	if pc.PageText != "" {
		fmt.Fprintf(&sb, "\nExtracted page text for reference:\n%s\n", pc.PageText)
	}
	return sb.String()
}

func buildWindowPrompt(wc WindowContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Convert pages %d-%d (window %d) to Markdown.\n",
		wc.Window.StartPage, wc.Window.EndPage, wc.Window.WindowNumber)
	if wc.Language != "" {
		fmt.Fprintf(&sb, "Document language: %s.\n", wc.Language)
	}
	if len(wc.ExpectedHeadings) > 0 {
		fmt.Fprintf(&sb, "Headings expected in this window: %s.\n", strings.Join(wc.ExpectedHeadings, "; "))
	}
	if len(wc.HeaderPatterns) > 0 || len(wc.FooterPatterns) > 0 {
		fmt.Fprintf(&sb, "Skip repeating header/footer text matching: %s.\n",
			strings.Join(append(append([]string{}, wc.HeaderPatterns...), wc.FooterPatterns...), " | "))
	}
	if wc.PreviousSummary != "" {
		fmt.Fprintf(&sb, "\nSummary of the document so far:\n%s\n", wc.PreviousSummary)
	}
	if wc.PreviousContent != "" {
		fmt.Fprintf(&sb, "\nThe previous window ended with:\n%s\n", wc.PreviousContent)
	}
	return sb.String()
}

var (
	_ Converter     = (*OpenRouterConverter)(nil)
	_ VisionChatter = (*OpenRouterConverter)(nil)
)

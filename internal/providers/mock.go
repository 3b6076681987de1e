package providers

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pagemill/pagemill/internal/robust"
	"github.com/pagemill/pagemill/internal/types"
)

const MockName = "mock"

// MockConverter is a Converter for testing.
type MockConverter struct {
	// Configurable behavior
	Latency    time.Duration
	FailTimes  int   // first N calls fail
	FailErr    error // error returned while failing (default: retryable API error)
	FailAlways bool

	Analysis  *DocumentAnalysis
	Structure *types.StructureProfile
	Caps      Capabilities

	// PageContent produces per-page content; defaults to a small markdown body.
	PageContent func(pc PageContext) string
	// ChatReply produces free-form replies; defaults to "{}".
	ChatReply func(prompt string) string

	calls atomic.Int64
}

// NewMockConverter creates a mock with sensible defaults.
func NewMockConverter() *MockConverter {
	return &MockConverter{
		Caps: Capabilities{SupportsNativePDF: true, MaxPDFPages: 48, MaxContextTokens: 128000},
	}
}

// Calls returns the total number of calls made.
func (m *MockConverter) Calls() int64 { return m.calls.Load() }

func (m *MockConverter) Name() string { return MockName }

func (m *MockConverter) Capabilities() Capabilities { return m.Caps }

func (m *MockConverter) begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.Latency):
		}
	}
	n := m.calls.Add(1)
	if m.FailAlways || n <= int64(m.FailTimes) {
		if m.FailErr != nil {
			return m.FailErr
		}
		return robust.APIError(503, fmt.Errorf("mock transient failure %d", n))
	}
	return nil
}

func (m *MockConverter) AnalyzeDocument(ctx context.Context, input AnalysisInput) (*DocumentAnalysis, error) {
	if err := m.begin(ctx); err != nil {
		return nil, err
	}
	if m.Analysis != nil {
		return m.Analysis, nil
	}
	return &DocumentAnalysis{Language: "en", PageCount: input.PageCount}, nil
}

func (m *MockConverter) ExtractStructure(ctx context.Context, input AnalysisInput, analysis *DocumentAnalysis) (*types.StructureProfile, error) {
	if err := m.begin(ctx); err != nil {
		return nil, err
	}
	if m.Structure != nil {
		return m.Structure, nil
	}
	return &types.StructureProfile{
		DocumentType: types.DocOther,
		Hierarchy:    types.Hierarchy{MaxDepth: 2},
		Sections:     types.Sections{Body: types.PageRange{Start: 1, End: input.PageCount}},
		CrossRefs:    types.CrossReferences{FootnoteStyle: types.FootnotesNumbered},
	}, nil
}

func (m *MockConverter) ConvertPage(ctx context.Context, imageB64 string, pc PageContext) (*PageResult, error) {
	if err := m.begin(ctx); err != nil {
		return nil, err
	}
	content := fmt.Sprintf("Content of page %d.", pc.PageNumber)
	if m.PageContent != nil {
		content = m.PageContent(pc)
	}
	return &PageResult{
		Content:       content,
		Summary:       fmt.Sprintf("Summary through page %d.", pc.PageNumber),
		LastParagraph: lastLine(content),
		Language:      "en",
		Usage:         Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
	}, nil
}

func (m *MockConverter) ConvertWindow(ctx context.Context, pdfData []byte, wc WindowContext) (*WindowResult, error) {
	if err := m.begin(ctx); err != nil {
		return nil, err
	}
	content := fmt.Sprintf("Content of pages %d-%d.", wc.Window.StartPage, wc.Window.EndPage)
	return &WindowResult{
		Content:       content,
		Summary:       fmt.Sprintf("Summary through page %d.", wc.Window.EndPage),
		LastParagraph: content,
		Usage:         Usage{PromptTokens: 200, CompletionTokens: 100, TotalTokens: 300},
	}, nil
}

func (m *MockConverter) Summarize(ctx context.Context, text string, maxLen int) (string, error) {
	if err := m.begin(ctx); err != nil {
		return "", err
	}
	if maxLen > 0 && len(text) > maxLen {
		return text[:maxLen], nil
	}
	return text, nil
}

func (m *MockConverter) Chat(ctx context.Context, prompt string) (string, error) {
	if err := m.begin(ctx); err != nil {
		return "", err
	}
	if m.ChatReply != nil {
		return m.ChatReply(prompt), nil
	}
	return "{}", nil
}

func (m *MockConverter) ChatVision(ctx context.Context, prompt, imageB64 string) (string, error) {
	return m.Chat(ctx, prompt)
}

func lastLine(s string) string {
	lines := []byte(s)
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i] == '\n' {
			return string(lines[i+1:])
		}
	}
	return s
}

var (
	_ Converter     = (*MockConverter)(nil)
	_ VisionChatter = (*MockConverter)(nil)
)

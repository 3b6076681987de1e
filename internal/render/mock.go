package render

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/pagemill/pagemill/internal/render/contentstream"
)

// MockService is a Service for testing. Pages are configured up front; every
// accessor is cheap and deterministic.
type MockService struct {
	Pages      []MockPage
	Title      string
	Author     string
	Toc        []TocItem
	FailRender bool

	renderCalls atomic.Int64
	closed      atomic.Bool
}

// MockPage holds the canned data for one page.
type MockPage struct {
	Text     string
	ImageB64 string // returned by RenderPage; defaults to a placeholder
	Images   []EmbeddedImage
	Ops      []contentstream.Op
	Height   float64
}

// NewMockService creates a mock with n pages of generic text.
func NewMockService(n int) *MockService {
	m := &MockService{}
	for i := 1; i <= n; i++ {
		m.Pages = append(m.Pages, MockPage{
			Text: fmt.Sprintf("Page %d body text. This is sample content for testing.", i),
		})
	}
	return m
}

// RenderCalls returns how many times RenderPage was invoked.
func (m *MockService) RenderCalls() int64 { return m.renderCalls.Load() }

func (m *MockService) PageCount() (int, error) {
	if m.closed.Load() {
		return 0, fmt.Errorf("document closed")
	}
	return len(m.Pages), nil
}

func (m *MockService) Metadata() (Metadata, error) {
	return Metadata{PageCount: len(m.Pages), Title: m.Title, Author: m.Author}, nil
}

func (m *MockService) Outline() ([]TocItem, error) {
	return m.Toc, nil
}

func (m *MockService) RenderPage(ctx context.Context, n int, opts RenderOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.renderCalls.Add(1)
	if m.FailRender {
		return "", fmt.Errorf("render failed")
	}
	p, err := m.page(n)
	if err != nil {
		return "", err
	}
	if p.ImageB64 != "" {
		return p.ImageB64, nil
	}
	return "bW9ja3BuZw==", nil // "mockpng"
}

func (m *MockService) PageText(n int) (string, error) {
	p, err := m.page(n)
	if err != nil {
		return "", err
	}
	return p.Text, nil
}

func (m *MockService) CropImage(imageB64 string, bbox BBox) (string, error) {
	return "data:image/png;base64," + imageB64, nil
}

func (m *MockService) ExtractPageRange(start, end int) ([]byte, error) {
	if start < 1 || end > len(m.Pages) || end < start {
		return nil, fmt.Errorf("invalid page range %d-%d", start, end)
	}
	return []byte(fmt.Sprintf("%%PDF mock pages %d-%d", start, end)), nil
}

func (m *MockService) PageImages(n int) ([]EmbeddedImage, error) {
	p, err := m.page(n)
	if err != nil {
		return nil, err
	}
	return p.Images, nil
}

func (m *MockService) DrawOps(n int) ([]contentstream.Op, float64, error) {
	p, err := m.page(n)
	if err != nil {
		return nil, 0, err
	}
	h := p.Height
	if h == 0 {
		h = 792
	}
	return p.Ops, h, nil
}

func (m *MockService) Close() error {
	m.closed.Store(true)
	return nil
}

func (m *MockService) page(n int) (*MockPage, error) {
	if n < 1 || n > len(m.Pages) {
		return nil, fmt.Errorf("page %d out of range 1-%d", n, len(m.Pages))
	}
	return &m.Pages[n-1], nil
}

var _ Service = (*MockService)(nil)

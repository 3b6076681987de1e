// Package render defines the document render/text service contract and its
// pdfcpu-backed implementation. The pipeline only ever talks to the Service
// interface so tests can substitute MockService.
package render

import (
	"context"

	"github.com/pagemill/pagemill/internal/render/contentstream"
)

// Metadata describes the document as a whole.
type Metadata struct {
	PageCount int    `json:"page_count"`
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
}

// TocItem is one node of the embedded document outline.
type TocItem struct {
	Title      string    `json:"title"`
	PageNumber int       `json:"page_number,omitempty"`
	Children   []TocItem `json:"children,omitempty"`
}

// EmbeddedImage describes one raster image embedded in a page.
type EmbeddedImage struct {
	ObjectNumber int    `json:"object_number"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	DataURL      string `json:"data_url,omitempty"`
}

// RenderOptions control page rasterization.
type RenderOptions struct {
	DPI int // defaults to 150
}

// BBox is a normalized bounding box [ymin, xmin, ymax, xmax] on a 0-1000 scale.
type BBox [4]int

// Service is the render/text service contract. Implementations must be
// explicitly released with Close after use.
type Service interface {
	// PageCount returns the number of pages.
	PageCount() (int, error)

	// Metadata returns document-level metadata.
	Metadata() (Metadata, error)

	// Outline returns the embedded outline, or nil if the document has none.
	Outline() ([]TocItem, error)

	// RenderPage rasterizes page n (1-indexed) and returns base64-encoded PNG.
	RenderPage(ctx context.Context, n int, opts RenderOptions) (string, error)

	// PageText returns the extracted text of page n.
	PageText(n int) (string, error)

	// CropImage cuts a region out of a base64 PNG and returns it as a data URL.
	CropImage(imageB64 string, bbox BBox) (string, error)

	// ExtractPageRange returns pages [start, end] as a standalone PDF.
	ExtractPageRange(start, end int) ([]byte, error)

	// PageImages lists the raster images embedded in page n.
	PageImages(n int) ([]EmbeddedImage, error)

	// DrawOps returns the drawing-operator stream of page n together with the
	// page height in PDF points, for vector-region detection.
	DrawOps(n int) ([]contentstream.Op, float64, error)

	// Close releases the underlying document resources.
	Close() error
}

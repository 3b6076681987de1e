package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/pagemill/pagemill/internal/render/contentstream"
)

// PDF is the pdfcpu-backed render service. Page rasterization shells out to
// pdftoppm (poppler-utils); everything else is pure pdfcpu.
type PDF struct {
	path string
	ctx  *model.Context
	dims []pageDim
}

type pageDim struct {
	width  float64
	height float64
}

// Open reads and validates a PDF file.
func Open(path string) (*PDF, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	p := &PDF{path: path, ctx: pctx}
	if dims, err := pctx.PageDims(); err == nil {
		for _, d := range dims {
			p.dims = append(p.dims, pageDim{width: d.Width, height: d.Height})
		}
	}
	return p, nil
}

// PageCount returns the number of pages.
func (p *PDF) PageCount() (int, error) {
	if p.ctx == nil {
		return 0, fmt.Errorf("document closed")
	}
	return p.ctx.PageCount, nil
}

// Metadata returns document-level metadata.
func (p *PDF) Metadata() (Metadata, error) {
	if p.ctx == nil {
		return Metadata{}, fmt.Errorf("document closed")
	}
	return Metadata{
		PageCount: p.ctx.PageCount,
		Title:     p.ctx.Title,
		Author:    p.ctx.Author,
	}, nil
}

// Outline returns the embedded outline, or nil if the document has none.
func (p *PDF) Outline() ([]TocItem, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	bms, err := api.Bookmarks(f, nil)
	if err != nil {
		// Documents without bookmarks are common; treat as no outline.
		return nil, nil
	}
	return convertBookmarks(bms), nil
}

func convertBookmarks(bms []pdfcpu.Bookmark) []TocItem {
	var items []TocItem
	for _, bm := range bms {
		items = append(items, TocItem{
			Title:      bm.Title,
			PageNumber: bm.PageFrom,
			Children:   convertBookmarks(bm.Kids),
		})
	}
	return items
}

// RenderPage rasterizes a page with pdftoppm and returns base64-encoded PNG.
func (p *PDF) RenderPage(ctx context.Context, n int, opts RenderOptions) (string, error) {
	dpi := opts.DPI
	if dpi <= 0 {
		dpi = 150
	}

	tmpDir, err := os.MkdirTemp("", "pagemill-page-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")
	pageStr := fmt.Sprintf("%d", n)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", fmt.Sprintf("%d", dpi),
		"-singlefile",
		p.path,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	data, err := os.ReadFile(outputPrefix + ".png")
	if err != nil {
		return "", fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// PageText extracts text from a page's content stream.
func (p *PDF) PageText(n int) (string, error) {
	ops, _, err := p.DrawOps(n)
	if err != nil {
		return "", err
	}
	return contentstream.ExtractText(ops), nil
}

// CropImage cuts a region out of a base64 PNG and returns it as a data URL.
// The bbox is [ymin, xmin, ymax, xmax] on a 0-1000 scale.
func (p *PDF) CropImage(imageB64 string, bbox BBox) (string, error) {
	return CropBase64PNG(imageB64, bbox)
}

// CropBase64PNG is CropImage without a document; also used by MockService.
func CropBase64PNG(imageB64 string, bbox BBox) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(imageB64)
	if err != nil {
		return "", fmt.Errorf("invalid base64 image: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to decode PNG: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	y0 := b.Min.Y + bbox[0]*h/1000
	x0 := b.Min.X + bbox[1]*w/1000
	y1 := b.Min.Y + bbox[2]*h/1000
	x1 := b.Min.X + bbox[3]*w/1000
	if x1 <= x0 || y1 <= y0 {
		return "", fmt.Errorf("empty crop region %v", bbox)
	}

	sub := image.NewRGBA(image.Rect(0, 0, x1-x0, y1-y0))
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			sub.Set(x-x0, y-y0, img.At(x, y))
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, sub); err != nil {
		return "", fmt.Errorf("failed to encode cropped PNG: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ExtractPageRange returns pages [start, end] as a standalone PDF.
func (p *PDF) ExtractPageRange(start, end int) ([]byte, error) {
	if start < 1 || end < start {
		return nil, fmt.Errorf("invalid page range %d-%d", start, end)
	}
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	sel := []string{fmt.Sprintf("%d-%d", start, end)}
	if err := api.Trim(f, &buf, sel, nil); err != nil {
		return nil, fmt.Errorf("failed to extract pages %d-%d: %w", start, end, err)
	}
	return buf.Bytes(), nil
}

// PageImages lists the raster images embedded in a page.
func (p *PDF) PageImages(n int) ([]EmbeddedImage, error) {
	if p.ctx == nil {
		return nil, fmt.Errorf("document closed")
	}
	var images []EmbeddedImage
	for _, objNr := range pdfcpu.ImageObjNrs(p.ctx, n) {
		images = append(images, EmbeddedImage{ObjectNumber: objNr})
	}
	return images, nil
}

// DrawOps returns the drawing-operator stream of a page plus the page height.
func (p *PDF) DrawOps(n int) ([]contentstream.Op, float64, error) {
	if p.ctx == nil {
		return nil, 0, fmt.Errorf("document closed")
	}
	if n < 1 || n > p.ctx.PageCount {
		return nil, 0, fmt.Errorf("page %d out of range 1-%d", n, p.ctx.PageCount)
	}

	r, err := pdfcpu.ExtractPageContent(p.ctx, n)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to extract page %d content: %w", n, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read page %d content: %w", n, err)
	}

	ops, err := contentstream.Parse(data)
	if err != nil && len(ops) == 0 {
		return nil, 0, fmt.Errorf("failed to parse page %d content stream: %w", n, err)
	}

	height := 792.0 // US Letter default
	if n-1 < len(p.dims) && p.dims[n-1].height > 0 {
		height = p.dims[n-1].height
	}
	return ops, height, nil
}

// Close releases the underlying document resources.
func (p *PDF) Close() error {
	p.ctx = nil
	return nil
}

var _ Service = (*PDF)(nil)

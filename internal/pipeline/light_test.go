package pipeline

import (
	"fmt"
	"testing"

	"github.com/pagemill/pagemill/internal/render"
	"github.com/pagemill/pagemill/internal/types"
)

func TestDetectRepeatingLines(t *testing.T) {
	t.Run("recurring header and footer detected", func(t *testing.T) {
		doc := &render.MockService{}
		for i := 1; i <= 5; i++ {
			last := "Confidential"
			if i > 3 {
				last = fmt.Sprintf("%d", i)
			}
			doc.Pages = append(doc.Pages, render.MockPage{
				Text: fmt.Sprintf("ACME Corp\nParagraph of page %d content.\n%s", i, last),
			})
		}

		headers, footers, pageNum := DetectRepeatingLines(doc, 5)
		if len(headers) != 1 || headers[0] != "ACME Corp" {
			t.Errorf("headers = %v", headers)
		}
		if len(footers) != 1 || footers[0] != "Confidential" {
			t.Errorf("footers = %v", footers)
		}
		if pageNum == "" {
			t.Error("digit lines should yield a page number pattern")
		}
	})

	t.Run("varying lines not flagged", func(t *testing.T) {
		doc := &render.MockService{}
		for i := 1; i <= 5; i++ {
			doc.Pages = append(doc.Pages, render.MockPage{
				Text: fmt.Sprintf("Unique opener %d\nBody.\nUnique closer %d", i, i),
			})
		}

		headers, footers, pageNum := DetectRepeatingLines(doc, 5)
		if len(headers) != 0 || len(footers) != 0 || pageNum != "" {
			t.Errorf("unexpected detection: %v %v %q", headers, footers, pageNum)
		}
	})

	t.Run("single page yields nothing", func(t *testing.T) {
		doc := render.NewMockService(1)
		headers, footers, pageNum := DetectRepeatingLines(doc, 1)
		if headers != nil || footers != nil || pageNum != "" {
			t.Errorf("unexpected detection on single page: %v %v %q", headers, footers, pageNum)
		}
	})
}

func TestHeadingsOnPage(t *testing.T) {
	structure := &types.StructureProfile{
		Toc: types.TOC{Entries: []types.TocEntry{
			{Title: "Part One", Level: 1, Page: 1, Children: []types.TocEntry{
				{Title: "Chapter One", Level: 2, Page: 1},
				{Title: "Chapter Two", Level: 2, Page: 7},
			}},
		}},
	}

	got := headingsOnPage(structure, 1)
	if len(got) != 2 || got[0] != "Part One" || got[1] != "Chapter One" {
		t.Errorf("page 1 headings = %v", got)
	}
	if got := headingsOnPage(structure, 3); len(got) != 0 {
		t.Errorf("page 3 headings = %v", got)
	}
	if got := headingsOnPage(nil, 1); got != nil {
		t.Errorf("nil structure headings = %v", got)
	}
}

func TestLastHeading(t *testing.T) {
	tests := []struct{ in, want string }{
		{"# Title\n\nbody\n\n## Section\n\nmore", "Section"},
		{"plain text only", ""},
		{"## Trailing Heading", "Trailing Heading"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := lastHeading(tc.in); got != tc.want {
			t.Errorf("lastHeading(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

package passes

import (
	"context"
	"testing"

	"github.com/pagemill/pagemill/internal/providers"
	"github.com/pagemill/pagemill/internal/render"
	"github.com/pagemill/pagemill/internal/types"
)

func TestAnalyzeStructure(t *testing.T) {
	ctx := context.Background()

	t.Run("uses converter profile", func(t *testing.T) {
		doc := render.NewMockService(8)
		conv := providers.NewMockConverter()
		conv.Structure = &types.StructureProfile{
			DocumentType: types.DocAcademic,
			Hierarchy:    types.Hierarchy{MaxDepth: 3},
			Sections:     types.Sections{Body: types.PageRange{Start: 1, End: 8}},
			CrossRefs:    types.CrossReferences{FootnoteStyle: types.FootnotesNumbered},
		}

		profile := AnalyzeStructure(ctx, doc, conv, nil, nil, AnalyzeOptions{}, nil)
		if profile.DocumentType != types.DocAcademic {
			t.Errorf("document type = %s", profile.DocumentType)
		}
		if profile.Hierarchy.MaxDepth != 3 {
			t.Errorf("max depth = %d", profile.Hierarchy.MaxDepth)
		}
	})

	t.Run("transient failure retried before default", func(t *testing.T) {
		doc := render.NewMockService(8)
		conv := providers.NewMockConverter()
		conv.FailTimes = 1
		conv.Structure = &types.StructureProfile{
			DocumentType: types.DocAcademic,
			Hierarchy:    types.Hierarchy{MaxDepth: 3},
			Sections:     types.Sections{Body: types.PageRange{Start: 1, End: 8}},
		}

		profile := AnalyzeStructure(ctx, doc, conv, nil, nil, AnalyzeOptions{
			Retry: fastRetryPolicy(),
		}, nil)
		if profile.DocumentType != types.DocAcademic {
			t.Errorf("document type = %s, retryable failure degraded to default", profile.DocumentType)
		}
	})

	t.Run("extraction failure yields default profile", func(t *testing.T) {
		doc := render.NewMockService(12)
		conv := providers.NewMockConverter()
		conv.FailAlways = true

		profile := AnalyzeStructure(ctx, doc, conv, nil, nil, AnalyzeOptions{}, nil)
		if profile.DocumentType != types.DocOther {
			t.Errorf("document type = %s, want other", profile.DocumentType)
		}
		if profile.Sections.Body.Start != 1 || profile.Sections.Body.End != 12 {
			t.Errorf("body range = %+v", profile.Sections.Body)
		}
	})
}

func TestClampStructure(t *testing.T) {
	t.Run("repairs out-of-range values", func(t *testing.T) {
		profile := &types.StructureProfile{
			DocumentType: "novel",
			Hierarchy: types.Hierarchy{
				MaxDepth: 9,
				HeadingStyles: []types.HeadingStyle{
					{Level: 0, Indicator: "bold"},
					{Level: 2, Indicator: "numbered"},
					{Level: 7, Indicator: "bold"},
				},
			},
			Toc: types.TOC{Entries: []types.TocEntry{
				{Title: "Valid", Level: 1, Page: 3},
				{Title: "", Level: 1, Page: 4},
				{Title: "Clamped", Level: 8, Page: 200},
			}},
			Sections: types.Sections{Body: types.PageRange{Start: 5, End: 2}},
			CrossRefs: types.CrossReferences{FootnoteStyle: "endnotes"},
		}

		ClampStructure(profile, 50)

		if profile.DocumentType != types.DocOther {
			t.Errorf("unknown type should fall back: %s", profile.DocumentType)
		}
		if profile.Hierarchy.MaxDepth != 6 {
			t.Errorf("max depth = %d, want 6", profile.Hierarchy.MaxDepth)
		}
		if len(profile.Hierarchy.HeadingStyles) != 1 || profile.Hierarchy.HeadingStyles[0].Level != 2 {
			t.Errorf("heading styles not filtered: %+v", profile.Hierarchy.HeadingStyles)
		}
		if len(profile.Toc.Entries) != 2 {
			t.Fatalf("toc entries = %d, want 2", len(profile.Toc.Entries))
		}
		if e := profile.Toc.Entries[1]; e.Level != 6 || e.Page != 50 {
			t.Errorf("entry not clamped: %+v", e)
		}
		if profile.Sections.Body.Start != 1 || profile.Sections.Body.End != 50 {
			t.Errorf("inverted body not reset: %+v", profile.Sections.Body)
		}
		if profile.CrossRefs.FootnoteStyle != types.FootnotesNone {
			t.Errorf("footnote style = %s", profile.CrossRefs.FootnoteStyle)
		}
	})

	t.Run("drops overlapping front and back matter", func(t *testing.T) {
		profile := &types.StructureProfile{
			DocumentType: types.DocBook,
			Hierarchy:    types.Hierarchy{MaxDepth: 2},
			Sections: types.Sections{
				FrontMatter: &types.PageRange{Start: 1, End: 12},
				Body:        types.PageRange{Start: 10, End: 80},
				BackMatter:  &types.PageRange{Start: 75, End: 100},
			},
		}

		ClampStructure(profile, 100)

		if profile.Sections.FrontMatter != nil {
			t.Errorf("front matter overlapping body kept: %+v", profile.Sections.FrontMatter)
		}
		if profile.Sections.BackMatter != nil {
			t.Errorf("back matter overlapping body kept: %+v", profile.Sections.BackMatter)
		}
	})

	t.Run("valid profile untouched", func(t *testing.T) {
		profile := &types.StructureProfile{
			DocumentType: types.DocAcademic,
			Hierarchy:    types.Hierarchy{MaxDepth: 3},
			Sections: types.Sections{
				FrontMatter: &types.PageRange{Start: 1, End: 2},
				Body:        types.PageRange{Start: 3, End: 18},
				BackMatter:  &types.PageRange{Start: 19, End: 20},
			},
			CrossRefs: types.CrossReferences{FootnoteStyle: types.FootnotesNumbered},
		}

		ClampStructure(profile, 20)

		if profile.Sections.FrontMatter == nil || profile.Sections.BackMatter == nil {
			t.Error("valid matter ranges dropped")
		}
		if profile.CrossRefs.FootnoteStyle != types.FootnotesNumbered {
			t.Errorf("footnote style changed: %s", profile.CrossRefs.FootnoteStyle)
		}
	})

	t.Run("nested toc entries clamped", func(t *testing.T) {
		profile := DefaultStructureProfile(10)
		profile.Toc.Entries = []types.TocEntry{{
			Title: "Part One", Level: 1, Page: 1,
			Children: []types.TocEntry{
				{Title: "Chapter", Level: 2, Page: 99},
				{Title: "", Level: 2, Page: 3},
			},
		}}

		ClampStructure(profile, 10)

		children := profile.Toc.Entries[0].Children
		if len(children) != 1 || children[0].Page != 10 {
			t.Errorf("children not clamped: %+v", children)
		}
	})
}

package assemble

import (
	"strings"
	"testing"

	"github.com/pagemill/pagemill/internal/types"
)

func academicRaw() *types.RawContent {
	raw := types.NewRawContent()
	raw.Sections = []*types.Section{
		{ID: "p1-s0", Level: 1, Title: "Introduction", Content: "Prior work [^1] disagrees.", Page: 1, FootnoteRefs: []string{"1"}},
		{ID: "p2-s0", Level: 0, Content: "and the debate continues.", Page: 2, ContinuesFrom: "p1-s0"},
		{ID: "p2-s1", Level: 1, Title: "Method", Content: "We sample pages [^2].", Page: 2, FootnoteRefs: []string{"2"}},
	}
	raw.Footnotes["1"] = &types.Footnote{ID: "1", Content: "Smith 2019.", Page: 1}
	raw.Footnotes["2"] = &types.Footnote{ID: "2", Content: "Three per document.", Page: 2}
	return raw
}

func TestOrganize(t *testing.T) {
	t.Run("academic places notes at document end", func(t *testing.T) {
		profile := &types.StructureProfile{DocumentType: types.DocAcademic}
		md, err := Organize(academicRaw(), profile, Options{})
		if err != nil {
			t.Fatalf("Organize failed: %v", err)
		}
		notesAt := strings.Index(md, "## Notes")
		if notesAt < 0 {
			t.Fatalf("missing document-end notes section:\n%s", md)
		}
		if methodAt := strings.Index(md, "# Method"); methodAt > notesAt {
			t.Errorf("notes section appears before last section")
		}
		if !strings.Contains(md, "[^1]: Smith 2019.") {
			t.Errorf("missing footnote definition:\n%s", md)
		}
	})

	t.Run("book places notes per chapter", func(t *testing.T) {
		profile := &types.StructureProfile{DocumentType: types.DocBook}
		md, err := Organize(academicRaw(), profile, Options{})
		if err != nil {
			t.Fatalf("Organize failed: %v", err)
		}
		if strings.Contains(md, "## Notes") {
			t.Errorf("book document should not have a document-end notes section")
		}
		// Chapter 1's note must be flushed before the Method heading.
		def1 := strings.Index(md, "[^1]: Smith 2019.")
		method := strings.Index(md, "# Method")
		if def1 < 0 || method < 0 || def1 > method {
			t.Errorf("chapter note not flushed at chapter boundary:\n%s", md)
		}
	})

	t.Run("merges continuations before rendering", func(t *testing.T) {
		profile := &types.StructureProfile{DocumentType: types.DocOther}
		md, err := Organize(academicRaw(), profile, Options{})
		if err != nil {
			t.Fatalf("Organize failed: %v", err)
		}
		if !strings.Contains(md, "disagrees. and the debate continues.") {
			t.Errorf("continuation not merged:\n%s", md)
		}
	})

	t.Run("optional toc", func(t *testing.T) {
		profile := &types.StructureProfile{
			DocumentType: types.DocOther,
			Toc: types.TOC{Entries: []types.TocEntry{
				{Level: 1, Title: "Introduction", Page: 1},
				{Level: 1, Title: "Method", Page: 2},
			}},
		}
		md, err := Organize(academicRaw(), profile, Options{IncludeTOC: true})
		if err != nil {
			t.Fatalf("Organize failed: %v", err)
		}
		if !strings.Contains(md, "## Contents") || !strings.Contains(md, "[Introduction](#introduction)") {
			t.Errorf("missing contents section:\n%s", md)
		}
	})

	t.Run("nil content rejected", func(t *testing.T) {
		if _, err := Organize(nil, nil, Options{}); err == nil {
			t.Error("expected error for nil content")
		}
	})

	t.Run("ends with single newline", func(t *testing.T) {
		md, err := Organize(academicRaw(), nil, Options{})
		if err != nil {
			t.Fatalf("Organize failed: %v", err)
		}
		if !strings.HasSuffix(md, "\n") || strings.HasSuffix(md, "\n\n") {
			t.Errorf("output must end with exactly one newline: %q", md[len(md)-4:])
		}
	})
}

func TestRenderTOC(t *testing.T) {
	profile := &types.StructureProfile{
		Toc: types.TOC{Entries: []types.TocEntry{
			{Level: 1, Title: "First Chapter", Page: 1, Children: []types.TocEntry{
				{Level: 2, Title: "Sub Topic", Page: 2, Children: []types.TocEntry{
					{Level: 3, Title: "Detail", Page: 3, Children: []types.TocEntry{
						{Level: 4, Title: "Too Deep", Page: 4},
					}},
				}},
			}},
		}},
	}

	t.Run("caps depth", func(t *testing.T) {
		toc := RenderTOC(profile, 2)
		if !strings.Contains(toc, "- [First Chapter](#first-chapter)") {
			t.Errorf("missing top-level entry:\n%s", toc)
		}
		if !strings.Contains(toc, "  - [Sub Topic](#sub-topic)") {
			t.Errorf("missing nested entry:\n%s", toc)
		}
		if strings.Contains(toc, "Detail") {
			t.Errorf("entry beyond max level rendered:\n%s", toc)
		}
	})

	t.Run("empty profile", func(t *testing.T) {
		if got := RenderTOC(nil, 3); got != "" {
			t.Errorf("expected empty toc, got %q", got)
		}
	})
}

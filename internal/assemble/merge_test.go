package assemble

import (
	"reflect"
	"testing"

	"github.com/pagemill/pagemill/internal/types"
)

func TestMergeContinuations(t *testing.T) {
	t.Run("folds chain into root", func(t *testing.T) {
		sections := []*types.Section{
			{ID: "p1-s0", Level: 1, Title: "Intro", Content: "The method was", FootnoteRefs: []string{"1"}},
			{ID: "p2-s0", Level: 0, Content: "applied to the corpus.", ContinuesFrom: "p1-s0", FootnoteRefs: []string{"1", "2"}},
			{ID: "p2-s1", Level: 2, Title: "Results", Content: "We observed gains."},
		}

		merged := MergeContinuations(sections)
		if len(merged) != 2 {
			t.Fatalf("expected 2 sections, got %d", len(merged))
		}
		if merged[0].Content != "The method was applied to the corpus." {
			t.Errorf("unexpected merged content: %q", merged[0].Content)
		}
		if !reflect.DeepEqual(merged[0].FootnoteRefs, []string{"1", "2"}) {
			t.Errorf("unexpected footnote refs: %v", merged[0].FootnoteRefs)
		}
		if merged[1].ID != "p2-s1" {
			t.Errorf("expected second root to be p2-s1, got %s", merged[1].ID)
		}
	})

	t.Run("does not mutate input", func(t *testing.T) {
		sections := []*types.Section{
			{ID: "a", Content: "first"},
			{ID: "b", Content: "second", ContinuesFrom: "a"},
		}
		MergeContinuations(sections)
		if sections[0].Content != "first" {
			t.Errorf("input section mutated: %q", sections[0].Content)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		sections := []*types.Section{
			{ID: "a", Level: 1, Title: "A", Content: "one"},
			{ID: "b", Content: "two", ContinuesFrom: "a"},
			{ID: "c", Level: 1, Title: "C", Content: "three"},
			{ID: "d", Content: "four", ContinuesFrom: "c"},
		}
		once := MergeContinuations(sections)
		twice := MergeContinuations(once)

		if len(once) != len(twice) {
			t.Fatalf("second merge changed length: %d vs %d", len(once), len(twice))
		}
		for i := range once {
			if once[i].Content != twice[i].Content || once[i].ID != twice[i].ID {
				t.Errorf("section %d changed on re-merge: %+v vs %+v", i, once[i], twice[i])
			}
		}
	})

	t.Run("tolerates dangling link", func(t *testing.T) {
		sections := []*types.Section{
			{ID: "b", Content: "orphan", ContinuesFrom: "missing"},
		}
		merged := MergeContinuations(sections)
		if len(merged) != 1 || merged[0].Content != "orphan" {
			t.Fatalf("dangling link mishandled: %+v", merged)
		}
	})

	t.Run("tolerates cycle", func(t *testing.T) {
		sections := []*types.Section{
			{ID: "a", Content: "one", ContinuesFrom: "b"},
			{ID: "b", Content: "two", ContinuesFrom: "a"},
		}
		merged := MergeContinuations(sections)
		if len(merged) == 0 {
			t.Fatal("cycle dropped all sections")
		}
	})
}

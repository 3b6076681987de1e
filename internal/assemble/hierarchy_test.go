package assemble

import (
	"testing"

	"github.com/pagemill/pagemill/internal/types"
)

func sectionsWithLevels(levels ...int) []*types.Section {
	out := make([]*types.Section, len(levels))
	for i, l := range levels {
		out[i] = &types.Section{Level: l, Title: "t"}
	}
	return out
}

func TestValidateHierarchy(t *testing.T) {
	tests := []struct {
		name  string
		in    []int
		want  []int
		fixed []bool
	}{
		{"already valid", []int{1, 2, 3}, []int{1, 2, 3}, []bool{false, false, false}},
		{"deep first heading forced to 1", []int{4, 5}, []int{1, 2}, []bool{true, true}},
		{"first level 2 allowed", []int{2, 3}, []int{2, 3}, []bool{false, false}},
		{"forward jump corrected", []int{1, 3}, []int{1, 2}, []bool{false, true}},
		{"backward jump allowed", []int{1, 2, 3, 1}, []int{1, 2, 3, 1}, []bool{false, false, false, false}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ValidateHierarchy(sectionsWithLevels(tc.in...))
			for i, s := range got {
				if s.Level != tc.want[i] {
					t.Errorf("section %d: level %d, want %d", i, s.Level, tc.want[i])
				}
				if s.LevelFixed != tc.fixed[i] {
					t.Errorf("section %d: fixed %v, want %v", i, s.LevelFixed, tc.fixed[i])
				}
				if s.LevelFixed && s.OriginalLevel != tc.in[i] {
					t.Errorf("section %d: original %d, want %d", i, s.OriginalLevel, tc.in[i])
				}
			}
		})
	}

	t.Run("no forward jump greater than one", func(t *testing.T) {
		inputs := [][]int{
			{6, 1, 5, 2, 6, 6, 3},
			{3, 3, 3},
			{2, 6, 1, 4},
		}
		for _, in := range inputs {
			got := ValidateHierarchy(sectionsWithLevels(in...))
			last := 0
			first := true
			for i, s := range got {
				if first {
					if s.Level > 2 {
						t.Errorf("input %v: first corrected level %d > 2", in, s.Level)
					}
					first = false
				} else if s.Level > last+1 {
					t.Errorf("input %v: section %d jumps from %d to %d", in, i, last, s.Level)
				}
				last = s.Level
			}
		}
	})

	t.Run("level zero passes through", func(t *testing.T) {
		got := ValidateHierarchy(sectionsWithLevels(1, 0, 3))
		if got[1].Level != 0 {
			t.Errorf("level-0 section changed: %d", got[1].Level)
		}
		// The body text does not reset the heading walk.
		if got[2].Level != 2 {
			t.Errorf("expected heading after body to correct 3 -> 2, got %d", got[2].Level)
		}
	})
}

package assemble

import "github.com/pagemill/pagemill/internal/types"

// ValidateHierarchy repairs heading levels in document order. The first
// heading may be level 1 or 2 (anything deeper becomes 1); later headings may
// not jump more than one level below the last corrected level. Level-0
// sections (untitled body text) pass through unchanged. Corrections are
// recorded on the section for downstream rendering.
func ValidateHierarchy(sections []*types.Section) []*types.Section {
	first := true
	last := 0

	for _, s := range sections {
		if s.Level == 0 {
			continue
		}

		original := s.Level
		corrected := original

		if first {
			if corrected > 2 {
				corrected = 1
			}
			first = false
		} else if corrected > last+1 {
			corrected = last + 1
		}

		if corrected != original {
			s.OriginalLevel = original
			s.Level = corrected
			s.LevelFixed = true
		}
		last = corrected
	}
	return sections
}

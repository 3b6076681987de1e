package pipeline

import (
	"sort"

	"github.com/pagemill/pagemill/internal/types"
)

// windowLookback is how far a window boundary may move backward to align with
// a section start.
const windowLookback = 10

// ComputeWindows splits the document into contiguous windows of at most
// maxPages, pulling each boundary back (within the lookback) to the nearest
// section start so a logical section is not needlessly split. Windows are
// computed once per document and immutable thereafter.
func ComputeWindows(pageCount, maxPages int, structure *types.StructureProfile) []types.WindowSpec {
	if pageCount < 1 {
		return nil
	}
	if maxPages < 1 {
		maxPages = 20
	}

	starts := sectionStarts(structure, pageCount)
	var windows []types.WindowSpec

	start := 1
	for start <= pageCount {
		end := start + maxPages - 1
		if end >= pageCount {
			end = pageCount
		} else {
			// A section starting at page s wants the boundary at s-1.
			for _, s := range starts {
				cut := s - 1
				if cut >= end-windowLookback+1 && cut < end && cut >= start {
					end = cut
					break
				}
			}
		}

		w := types.WindowSpec{
			WindowNumber: len(windows) + 1,
			StartPage:    start,
			EndPage:      end,
		}
		fillWindowHints(&w, structure)
		windows = append(windows, w)
		start = end + 1
	}
	return windows
}

// sectionStarts collects section start pages in descending order so the
// alignment loop finds the latest in-range cut first.
func sectionStarts(structure *types.StructureProfile, pageCount int) []int {
	if structure == nil {
		return nil
	}
	seen := make(map[int]bool)
	var starts []int
	var walk func(entries []types.TocEntry)
	walk = func(entries []types.TocEntry) {
		for _, e := range entries {
			if e.Page >= 2 && e.Page <= pageCount && !seen[e.Page] {
				seen[e.Page] = true
				starts = append(starts, e.Page)
			}
			walk(e.Children)
		}
	}
	walk(structure.Toc.Entries)
	sort.Sort(sort.Reverse(sort.IntSlice(starts)))
	return starts
}

// fillWindowHints records which TOC sections fall inside the window.
func fillWindowHints(w *types.WindowSpec, structure *types.StructureProfile) {
	if structure == nil {
		return
	}
	pr := types.PageRange{Start: w.StartPage, End: w.EndPage}
	var walk func(entries []types.TocEntry)
	walk = func(entries []types.TocEntry) {
		for _, e := range entries {
			if pr.Contains(e.Page) {
				w.SectionsInWindow = append(w.SectionsInWindow, e.Title)
				w.ExpectedHeadings = append(w.ExpectedHeadings, e.Title)
			}
			walk(e.Children)
		}
	}
	walk(structure.Toc.Entries)
}

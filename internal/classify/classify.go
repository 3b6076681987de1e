// Package classify scores document complexity and recommends a conversion
// pipeline. It samples a bounded number of pages and extrapolates, so the
// classifier stays cheap even for very large documents.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pagemill/pagemill/internal/render"
	"github.com/pagemill/pagemill/internal/types"
)

// Options tune classification.
type Options struct {
	// SamplePages is how many pages to inspect (default 3, evenly distributed).
	SamplePages int
	// ModerateThreshold and ComplexThreshold split the 0-100 score into levels.
	ModerateThreshold int
	ComplexThreshold  int
	// IntelligentThreshold promotes complex documents to the four-pass pipeline.
	IntelligentThreshold int
}

// DefaultOptions are the standard thresholds.
func DefaultOptions() Options {
	return Options{
		SamplePages:          3,
		ModerateThreshold:    30,
		ComplexThreshold:     60,
		IntelligentThreshold: 85,
	}
}

func (o Options) normalized() Options {
	if o.SamplePages <= 0 {
		o.SamplePages = 3
	}
	if o.ModerateThreshold <= 0 {
		o.ModerateThreshold = 30
	}
	if o.ComplexThreshold <= o.ModerateThreshold {
		o.ComplexThreshold = o.ModerateThreshold + 30
	}
	if o.IntelligentThreshold <= o.ComplexThreshold {
		o.IntelligentThreshold = o.ComplexThreshold + 25
	}
	return o
}

// Classify samples the document and produces an immutable assessment.
func Classify(doc render.Service, opts Options) (*types.ComplexityAssessment, error) {
	o := opts.normalized()

	pageCount, err := doc.PageCount()
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}
	if pageCount < 1 {
		return nil, fmt.Errorf("document has no pages")
	}

	outline, _ := doc.Outline()
	hasTOC := len(outline) > 0

	samples := SamplePages(pageCount, o.SamplePages)
	var (
		totalChars   int
		sampleImages int
		sampleTables int
		hasCode      bool
		hasMath      bool
	)
	for _, n := range samples {
		text, err := doc.PageText(n)
		if err == nil {
			totalChars += len([]rune(text))
			sampleTables += countTableLines(text)
			hasCode = hasCode || looksLikeCode(text)
			hasMath = hasMath || looksLikeMath(text)
		}
		if imgs, err := doc.PageImages(n); err == nil {
			sampleImages += len(imgs)
		}
	}

	// Extrapolate sample density to the whole document.
	scale := float64(pageCount) / float64(len(samples))
	estImages := int(float64(sampleImages) * scale)
	estTables := int(float64(sampleTables) * scale)

	density := densityFor(totalChars / len(samples))
	depth := outlineDepth(outline)

	factors := types.ComplexityFactors{
		PageCount:       pageCount,
		HasTOC:          hasTOC,
		EstimatedImages: estImages,
		EstimatedTables: estTables,
		TextDensity:     density,
		StructuralDepth: depth,
		HasCode:         hasCode,
		HasMath:         hasMath,
	}

	score, reasoning := scoreFactors(factors)
	level, pipeline, why := selectPipeline(factors, score, o)
	reasoning = append(reasoning, why...)

	return &types.ComplexityAssessment{
		Level:               level,
		Score:               score,
		Factors:             factors,
		RecommendedPipeline: pipeline,
		EstimatedSeconds:    estimateSeconds(pipeline, factors),
		Reasoning:           reasoning,
	}, nil
}

// SamplePages picks n evenly distributed pages: first, last, and evenly
// spaced interior pages, deduplicated and in order.
func SamplePages(pageCount, n int) []int {
	if n < 1 {
		n = 1
	}
	if n >= pageCount {
		pages := make([]int, pageCount)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages
	}

	seen := make(map[int]bool)
	var pages []int
	add := func(p int) {
		if p < 1 {
			p = 1
		}
		if p > pageCount {
			p = pageCount
		}
		if !seen[p] {
			seen[p] = true
			pages = append(pages, p)
		}
	}

	add(1)
	for i := 1; i < n-1; i++ {
		add(1 + i*(pageCount-1)/(n-1))
	}
	add(pageCount)
	return pages
}

// scoreFactors computes the weighted complexity sum, clamped to [0, 100].
func scoreFactors(f types.ComplexityFactors) (int, []string) {
	score := 0
	var reasons []string

	// Page-count bracket, 0-40 points.
	var pagePts int
	switch {
	case f.PageCount <= 5:
		pagePts = 5
	case f.PageCount <= 20:
		pagePts = 15
	case f.PageCount <= 50:
		pagePts = 25
	case f.PageCount <= 100:
		pagePts = 32
	default:
		pagePts = 40
	}
	score += pagePts
	reasons = append(reasons, fmt.Sprintf("%d pages (+%d)", f.PageCount, pagePts))

	// Structural signals.
	if f.HasTOC {
		score += 10
		reasons = append(reasons, "explicit table of contents (+10)")
	}
	if f.StructuralDepth > 4 {
		score += 10
		reasons = append(reasons, fmt.Sprintf("deep heading structure (depth %d, +10)", f.StructuralDepth))
	} else if f.StructuralDepth > 2 {
		score += 5
		reasons = append(reasons, fmt.Sprintf("nested heading structure (depth %d, +5)", f.StructuralDepth))
	}

	// Content richness, banded and capped.
	imgPts := bandPoints(f.EstimatedImages, 5, 20, 50)
	if imgPts > 0 {
		score += imgPts
		reasons = append(reasons, fmt.Sprintf("~%d images (+%d)", f.EstimatedImages, imgPts))
	}
	tblPts := bandPoints(f.EstimatedTables, 2, 10, 25)
	if tblPts > 0 {
		score += tblPts
		reasons = append(reasons, fmt.Sprintf("~%d tables (+%d)", f.EstimatedTables, tblPts))
	}

	if f.HasCode {
		score += 4
		reasons = append(reasons, "code blocks present (+4)")
	}
	if f.HasMath {
		score += 4
		reasons = append(reasons, "mathematical notation present (+4)")
	}

	switch f.TextDensity {
	case types.DensityDense:
		score += 10
		reasons = append(reasons, "dense text (+10)")
	case types.DensityNormal:
		score += 5
		reasons = append(reasons, "normal text density (+5)")
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score, reasons
}

// bandPoints awards 4/8/12 points as count crosses the low/mid/high bands.
func bandPoints(count, low, mid, high int) int {
	switch {
	case count >= high:
		return 12
	case count >= mid:
		return 8
	case count >= low:
		return 4
	default:
		return 0
	}
}

// selectPipeline applies the special-case overrides before the threshold
// check: TOC presence is a stronger signal than the numeric score.
func selectPipeline(f types.ComplexityFactors, score int, o Options) (types.ComplexityLevel, types.PipelineType, []string) {
	// Very small, TOC-less, image-sparse documents are always direct.
	if f.PageCount <= 5 && !f.HasTOC && f.EstimatedImages <= 5 {
		return types.ComplexitySimple, types.PipelineDirect,
			[]string{"small unstructured document, forced direct pipeline"}
	}
	// An explicit TOC below the moderate threshold forces at least light.
	if f.HasTOC && score < o.ModerateThreshold {
		return types.ComplexityModerate, types.PipelineLight,
			[]string{"table of contents present, promoted to light pipeline"}
	}

	switch {
	case score < o.ModerateThreshold:
		return types.ComplexitySimple, types.PipelineDirect, nil
	case score < o.ComplexThreshold:
		return types.ComplexityModerate, types.PipelineLight, nil
	case score < o.IntelligentThreshold:
		return types.ComplexityComplex, types.PipelineFull, nil
	default:
		return types.ComplexityComplex, types.PipelineIntelligent,
			[]string{"very high complexity, selected four-pass pipeline"}
	}
}

// estimateSeconds is a per-page base cost keyed by pipeline plus linear terms
// for images/tables and window overhead for the full pipeline.
func estimateSeconds(p types.PipelineType, f types.ComplexityFactors) int {
	perPage := map[types.PipelineType]float64{
		types.PipelineDirect:      3,
		types.PipelineLight:       4,
		types.PipelineFull:        2,
		types.PipelineIntelligent: 8,
	}[p]

	est := perPage*float64(f.PageCount) +
		0.5*float64(f.EstimatedImages) +
		1.0*float64(f.EstimatedTables)

	if p == types.PipelineFull {
		windows := (f.PageCount + 19) / 20
		est += 5 * float64(windows)
	}
	return int(est)
}

func densityFor(charsPerPage int) types.TextDensity {
	switch {
	case charsPerPage < 400:
		return types.DensitySparse
	case charsPerPage < 2500:
		return types.DensityNormal
	default:
		return types.DensityDense
	}
}

func outlineDepth(items []render.TocItem) int {
	depth := 0
	for _, it := range items {
		d := 1 + outlineDepth(it.Children)
		if d > depth {
			depth = d
		}
	}
	return depth
}

var codeMarkers = []string{"func ", "def ", "class ", "#include", "import ", "return ", "};", "=> {", "()"}

func looksLikeCode(text string) bool {
	hits := 0
	for _, m := range codeMarkers {
		if strings.Contains(text, m) {
			hits++
		}
	}
	return hits >= 2
}

var mathRe = regexp.MustCompile(`[∑∫√≈≤≥±×÷λσΔπθ]|\\frac|\\sum|\\int|\^[0-9]`)

func looksLikeMath(text string) bool {
	return mathRe.MatchString(text)
}

var columnGapRe = regexp.MustCompile(`\s{3,}`)

// countTableLines counts lines that look like table rows: pipe-delimited or
// column-aligned with repeated multi-space runs.
func countTableLines(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.Count(trimmed, "|") >= 2 {
			count++
			continue
		}
		if len(columnGapRe.FindAllString(trimmed, -1)) >= 2 {
			count++
		}
	}
	// A lone matching line is usually a false positive.
	if count < 2 {
		return 0
	}
	return count / 2 // rows per table, roughly
}

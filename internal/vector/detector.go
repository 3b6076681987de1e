// Package vector detects vector-graphics regions on a page by clustering
// painted paths from the drawing-operator stream. Pure geometry, no AI calls.
package vector

import (
	"math"

	"github.com/pagemill/pagemill/internal/render/contentstream"
)

// RegionKind is a best-effort classification hint, not authoritative.
type RegionKind string

const (
	RegionLogo       RegionKind = "logo"
	RegionDecoration RegionKind = "decoration"
	RegionDiagram    RegionKind = "diagram"
	RegionChart      RegionKind = "chart"
	RegionUnknown    RegionKind = "unknown"
)

// Region is one detected vector-graphics area.
type Region struct {
	Bounds    contentstream.Rect `json:"bounds"`
	PathCount int                `json:"path_count"`
	OpCount   int                `json:"op_count"`
	Kind      RegionKind         `json:"kind"`
}

// Options tune the detector.
type Options struct {
	// MinDimension discards paths whose bounding box is smaller than this in
	// both dimensions (noise: stray ticks, hairline artifacts).
	MinDimension float64
	// ProximityThreshold is the maximum horizontal and vertical gap between a
	// path and a cluster member for the path to join the cluster.
	ProximityThreshold float64
	// MinLonePathOps keeps single-path clusters only when the path has at
	// least this many construction operations (filters decorative strokes).
	MinLonePathOps int
}

// DefaultOptions match typical 612x792pt pages.
func DefaultOptions() Options {
	return Options{
		MinDimension:       3.0,
		ProximityThreshold: 20.0,
		MinLonePathOps:     5,
	}
}

// Detect extracts painted paths from the operator stream and clusters them
// into regions. pageHeight is in PDF points.
func Detect(ops []contentstream.Op, pageHeight float64, opts Options) []Region {
	paths := contentstream.ExtractPaths(ops, pageHeight)
	return Cluster(paths, opts)
}

// Cluster groups paths into regions by iterative proximity expansion.
func Cluster(paths []contentstream.Path, opts Options) []Region {
	if opts.ProximityThreshold <= 0 {
		opts = DefaultOptions()
	}

	// Drop text-block paths (underlines) and sub-threshold noise.
	var usable []contentstream.Path
	for _, p := range paths {
		if p.InText {
			continue
		}
		if p.Bounds.W < opts.MinDimension && p.Bounds.H < opts.MinDimension {
			continue
		}
		usable = append(usable, p)
	}

	assigned := make([]bool, len(usable))
	var regions []Region

	for i := range usable {
		if assigned[i] {
			continue
		}
		// Seed a cluster and absorb neighbours until stable.
		cluster := []int{i}
		assigned[i] = true
		for {
			grew := false
			for j := range usable {
				if assigned[j] {
					continue
				}
				for _, k := range cluster {
					if near(usable[j].Bounds, usable[k].Bounds, opts.ProximityThreshold) {
						cluster = append(cluster, j)
						assigned[j] = true
						grew = true
						break
					}
				}
			}
			if !grew {
				break
			}
		}

		if len(cluster) < 2 && usable[cluster[0]].OpCount < opts.MinLonePathOps {
			continue
		}

		regions = append(regions, buildRegion(usable, cluster))
	}
	return regions
}

// near reports whether both the horizontal and vertical gaps between two
// boxes are within the threshold. Overlap counts as a zero gap.
func near(a, b contentstream.Rect, threshold float64) bool {
	return gap(a.X, a.Right(), b.X, b.Right()) <= threshold &&
		gap(a.Y, a.Bottom(), b.Y, b.Bottom()) <= threshold
}

func gap(aLo, aHi, bLo, bHi float64) float64 {
	if aHi < bLo {
		return bLo - aHi
	}
	if bHi < aLo {
		return aLo - bHi
	}
	return 0
}

func buildRegion(paths []contentstream.Path, cluster []int) Region {
	bounds := paths[cluster[0]].Bounds
	opCount := 0
	strokes, fills := 0, 0
	for _, idx := range cluster {
		p := paths[idx]
		bounds = bounds.Union(p.Bounds)
		opCount += p.OpCount
		switch p.Paint {
		case contentstream.PaintStroke:
			strokes++
		case contentstream.PaintFill:
			fills++
		case contentstream.PaintBoth:
			strokes++
			fills++
		}
	}

	r := Region{
		Bounds:    bounds,
		PathCount: len(cluster),
		OpCount:   opCount,
	}
	r.Kind = classify(r, strokes, fills)
	return r
}

// classify applies simple geometric/operation-count heuristics.
func classify(r Region, strokes, fills int) RegionKind {
	w, h := r.Bounds.W, r.Bounds.H
	if w <= 0 || h <= 0 {
		return RegionUnknown
	}
	aspect := w / h

	// Small, squarish, fill-heavy marks read as logos.
	if w < 120 && h < 120 && aspect > 0.5 && aspect < 2.0 && fills > 0 {
		return RegionLogo
	}
	// Extremely elongated shapes are rules/borders.
	if aspect > 8 || aspect < 0.125 {
		return RegionDecoration
	}
	// Many strokes with axis-aligned spread suggests a chart grid.
	if strokes >= 4 && r.PathCount >= 4 && fills <= strokes/2 {
		return RegionChart
	}
	// Operation-rich mixed regions are diagrams.
	if r.OpCount >= 10 {
		return RegionDiagram
	}
	if math.Max(w, h) < 30 {
		return RegionDecoration
	}
	return RegionUnknown
}

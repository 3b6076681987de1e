package contentstream

import "math"

// Rect is an axis-aligned bounding box in top-down page coordinates
// (origin top-left, y grows downward).
type Rect struct {
	X, Y, W, H float64
}

// Right returns the right edge.
func (r Rect) Right() float64 { return r.X + r.W }

// Bottom returns the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Union returns the smallest rect covering both.
func (r Rect) Union(o Rect) Rect {
	x0 := math.Min(r.X, o.X)
	y0 := math.Min(r.Y, o.Y)
	x1 := math.Max(r.Right(), o.Right())
	y1 := math.Max(r.Bottom(), o.Bottom())
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// PaintKind distinguishes how a path was painted.
type PaintKind string

const (
	PaintStroke PaintKind = "stroke"
	PaintFill   PaintKind = "fill"
	PaintBoth   PaintKind = "both"
	PaintNone   PaintKind = "none"
)

// Path is one painted path with its bounding box under the page transform.
type Path struct {
	Bounds   Rect
	OpCount  int  // number of path-construction operations
	Paint    PaintKind
	InText   bool // constructed inside a BT/ET block (text underlines etc.)
}

// matrix is a PDF transformation matrix [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m * n (n applied first).
func (m matrix) mul(n matrix) matrix {
	return matrix{
		n[0]*m[0] + n[1]*m[2],
		n[0]*m[1] + n[1]*m[3],
		n[2]*m[0] + n[3]*m[2],
		n[2]*m[1] + n[3]*m[3],
		n[4]*m[0] + n[5]*m[2] + m[4],
		n[4]*m[1] + n[5]*m[3] + m[5],
	}
}

// apply transforms a point.
func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// ExtractPaths walks the operator stream and returns every painted path with
// its bounding box flipped into top-down page coordinates. pageHeight is in
// the same units as the stream coordinates (PDF points).
func ExtractPaths(ops []Op, pageHeight float64) []Path {
	var paths []Path

	ctm := identity
	var ctmStack []matrix

	inText := false
	var cur *pathBuilder

	for _, op := range ops {
		switch op.Operator {
		case "q":
			ctmStack = append(ctmStack, ctm)
		case "Q":
			if n := len(ctmStack); n > 0 {
				ctm = ctmStack[n-1]
				ctmStack = ctmStack[:n-1]
			}
		case "cm":
			if nums := op.Nums(); len(nums) == 6 {
				ctm = ctm.mul(matrix{nums[0], nums[1], nums[2], nums[3], nums[4], nums[5]})
			}
		case "BT":
			inText = true
		case "ET":
			inText = false

		case "m":
			if cur == nil {
				cur = &pathBuilder{inText: inText}
			}
			cur.point(ctm, op.Nums(), 2)
			cur.ops++
		case "l":
			if cur != nil {
				cur.point(ctm, op.Nums(), 2)
				cur.ops++
			}
		case "c":
			if cur != nil {
				cur.curve(ctm, op.Nums(), 6)
				cur.ops++
			}
		case "v", "y":
			if cur != nil {
				cur.curve(ctm, op.Nums(), 4)
				cur.ops++
			}
		case "re":
			if cur == nil {
				cur = &pathBuilder{inText: inText}
			}
			if nums := op.Nums(); len(nums) == 4 {
				x0, y0 := ctm.apply(nums[0], nums[1])
				x1, y1 := ctm.apply(nums[0]+nums[2], nums[1]+nums[3])
				cur.add(x0, y0)
				cur.add(x1, y1)
			}
			cur.ops++
		case "h":
			if cur != nil {
				cur.ops++
			}

		case "S", "s":
			cur = flush(cur, PaintStroke, pageHeight, &paths)
		case "f", "F", "f*":
			cur = flush(cur, PaintFill, pageHeight, &paths)
		case "B", "B*", "b", "b*":
			cur = flush(cur, PaintBoth, pageHeight, &paths)
		case "n":
			// Path consumed without painting (clipping setup).
			cur = nil
		}
	}
	return paths
}

// flush closes the current path under the given paint kind.
func flush(b *pathBuilder, paint PaintKind, pageHeight float64, out *[]Path) *pathBuilder {
	if b == nil || !b.valid {
		return nil
	}
	// Flip Y so the box is in top-down page coordinates.
	top := pageHeight - b.maxY
	*out = append(*out, Path{
		Bounds:  Rect{X: b.minX, Y: top, W: b.maxX - b.minX, H: b.maxY - b.minY},
		OpCount: b.ops,
		Paint:   paint,
		InText:  b.inText,
	})
	return nil
}

type pathBuilder struct {
	minX, minY, maxX, maxY float64
	valid                  bool
	ops                    int
	inText                 bool
}

func (b *pathBuilder) add(x, y float64) {
	if !b.valid {
		b.minX, b.maxX = x, x
		b.minY, b.maxY = y, y
		b.valid = true
		return
	}
	b.minX = math.Min(b.minX, x)
	b.maxX = math.Max(b.maxX, x)
	b.minY = math.Min(b.minY, y)
	b.maxY = math.Max(b.maxY, y)
}

// point adds the trailing coordinate pair of an operand list.
func (b *pathBuilder) point(ctm matrix, nums []float64, want int) {
	if len(nums) < want {
		return
	}
	x, y := ctm.apply(nums[len(nums)-2], nums[len(nums)-1])
	b.add(x, y)
}

// curve adds every control point so curve extremes stay inside the box.
func (b *pathBuilder) curve(ctm matrix, nums []float64, want int) {
	if len(nums) < want {
		return
	}
	for i := 0; i+1 < len(nums); i += 2 {
		x, y := ctm.apply(nums[i], nums[i+1])
		b.add(x, y)
	}
}

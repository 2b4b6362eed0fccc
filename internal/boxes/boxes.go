// Package boxes implements geometry on normalized bounding boxes.
//
// Boxes are stored as a [N, 4] tensor of rows [ymin, xmin, ymax, xmax] in
// image-relative coordinates, where (0, 0) is the top-left corner and (1, 1)
// the bottom-right. Every function returns a new tensor; NaN coordinates pass
// through arithmetic unchanged.
package boxes

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/ironsheep/image-augment/internal/tensor"
)

// Window is a [ymin, xmin, ymax, xmax] region in normalized coordinates.
type Window [4]float64

// Unit is the whole image.
var Unit = Window{0, 0, 1, 1}

// Height of the window.
func (w Window) Height() float64 { return w[2] - w[0] }

// Width of the window.
func (w Window) Width() float64 { return w[3] - w[1] }

// Validate checks that b is a [N, 4] tensor.
func Validate(b *tensor.Dense) error {
	if b.Rank() != 2 || b.Dim(1) != 4 {
		return errors.Errorf("boxes: want shape [N 4], got %v", b.Shape())
	}
	return nil
}

// Count is the number of boxes in b.
func Count(b *tensor.Dense) int { return b.Dim(0) }

func mapRows(b *tensor.Dense, fn func(src, dst []float64)) *tensor.Dense {
	out := tensor.New(b.Shape()...)
	for i := 0; i < b.Dim(0); i++ {
		fn(b.Row(i), out.Row(i))
	}
	return out
}

// FlipLeftRight mirrors boxes around the vertical center line.
func FlipLeftRight(b *tensor.Dense) *tensor.Dense {
	return mapRows(b, func(s, d []float64) {
		d[0], d[1], d[2], d[3] = s[0], 1-s[3], s[2], 1-s[1]
	})
}

// FlipUpDown mirrors boxes around the horizontal center line.
func FlipUpDown(b *tensor.Dense) *tensor.Dense {
	return mapRows(b, func(s, d []float64) {
		d[0], d[1], d[2], d[3] = 1-s[2], s[1], 1-s[0], s[3]
	})
}

// Rot90 rotates boxes 90 degrees counter-clockwise with the image.
func Rot90(b *tensor.Dense) *tensor.Dense {
	return mapRows(b, func(s, d []float64) {
		d[0], d[1], d[2], d[3] = 1-s[3], s[0], 1-s[1], s[2]
	})
}

// ChangeCoordinateFrame expresses boxes relative to w, so that w becomes the
// unit square.
func ChangeCoordinateFrame(b *tensor.Dense, w Window) *tensor.Dense {
	h, wd := w.Height(), w.Width()
	return mapRows(b, func(s, d []float64) {
		d[0] = (s[0] - w[0]) / h
		d[1] = (s[1] - w[1]) / wd
		d[2] = (s[2] - w[0]) / h
		d[3] = (s[3] - w[1]) / wd
	})
}

// ClipToWindow clamps every coordinate into w.
func ClipToWindow(b *tensor.Dense, w Window) *tensor.Dense {
	return mapRows(b, func(s, d []float64) {
		d[0] = tensor.Clamp(s[0], w[0], w[2])
		d[1] = tensor.Clamp(s[1], w[1], w[3])
		d[2] = tensor.Clamp(s[2], w[0], w[2])
		d[3] = tensor.Clamp(s[3], w[1], w[3])
	})
}

// Scale multiplies y coordinates by ys and x coordinates by xs.
func Scale(b *tensor.Dense, ys, xs float64) *tensor.Dense {
	return mapRows(b, func(s, d []float64) {
		copy(d, s)
		floats.Mul(d, []float64{ys, xs, ys, xs})
	})
}

// Area of a single box row. Degenerate boxes have zero area.
func Area(row []float64) float64 {
	return math.Max(row[2]-row[0], 0) * math.Max(row[3]-row[1], 0)
}

// Intersection is the area shared by a box row and w.
func Intersection(row []float64, w Window) float64 {
	h := math.Min(row[2], w[2]) - math.Max(row[0], w[0])
	wd := math.Min(row[3], w[3]) - math.Max(row[1], w[1])
	if h <= 0 || wd <= 0 {
		return 0
	}
	return h * wd
}

// IOA is the intersection with w divided by the area of the box.
func IOA(row []float64, w Window) float64 {
	a := Area(row)
	if a == 0 {
		return 0
	}
	return Intersection(row, w) / a
}

// PruneCompletelyOutside returns the indices of boxes that are not entirely
// outside w.
func PruneCompletelyOutside(b *tensor.Dense, w Window) []int {
	keep := make([]int, 0, b.Dim(0))
	for i := 0; i < b.Dim(0); i++ {
		r := b.Row(i)
		if r[0] >= w[2] || r[1] >= w[3] || r[2] <= w[0] || r[3] <= w[1] {
			continue
		}
		keep = append(keep, i)
	}
	return keep
}

// PruneNonOverlapping returns the indices of boxes whose IOA with w is at least
// minOverlap.
func PruneNonOverlapping(b *tensor.Dense, w Window, minOverlap float64) []int {
	keep := make([]int, 0, b.Dim(0))
	for i := 0; i < b.Dim(0); i++ {
		if IOA(b.Row(i), w) >= minOverlap {
			keep = append(keep, i)
		}
	}
	return keep
}

// InsideWindow composes PruneCompletelyOutside and PruneNonOverlapping, returning
// indices into b.
func InsideWindow(b *tensor.Dense, w Window, minOverlap float64) []int {
	inside := PruneCompletelyOutside(b, w)
	kept := PruneNonOverlapping(b.Gather(inside), w, minOverlap)
	out := make([]int, len(kept))
	for i, k := range kept {
		out[i] = inside[k]
	}
	return out
}

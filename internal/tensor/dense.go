package tensor

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// Dense is a row-major float64 array.
type Dense struct {
	shape []int
	data  []float64
}

// New returns a zero-filled Dense with the given shape.
func New(shape ...int) *Dense {
	return &Dense{shape: cloneInts(shape), data: make([]float64, volume(shape))}
}

// Full returns a Dense with every element set to v.
func Full(v float64, shape ...int) *Dense {
	d := New(shape...)
	for i := range d.data {
		d.data[i] = v
	}
	return d
}

// FromSlice wraps data with the given shape. The slice is not copied.
func FromSlice(data []float64, shape ...int) (*Dense, error) {
	if len(data) != volume(shape) {
		return nil, errors.Errorf("tensor: %d values cannot fill shape %v", len(data), shape)
	}
	return &Dense{shape: cloneInts(shape), data: data}, nil
}

// MustFromSlice is FromSlice for literals known to be well formed.
func MustFromSlice(data []float64, shape ...int) *Dense {
	d, err := FromSlice(data, shape...)
	if err != nil {
		panic(err)
	}
	return d
}

// FromRows builds a [len(rows), width] tensor. Every row must have the same width.
func FromRows(rows [][]float64, width int) (*Dense, error) {
	d := New(len(rows), width)
	for i, r := range rows {
		if len(r) != width {
			return nil, errors.Errorf("tensor: row %d has %d values, want %d", i, len(r), width)
		}
		copy(d.data[i*width:], r)
	}
	return d, nil
}

// FromInts builds a rank-1 tensor of integer-valued elements.
func FromInts(vals []int) *Dense {
	d := New(len(vals))
	for i, v := range vals {
		d.data[i] = float64(v)
	}
	return d
}

// Shape returns a copy of the dimensions.
func (d *Dense) Shape() []int { return cloneInts(d.shape) }

// Rank is the number of dimensions.
func (d *Dense) Rank() int { return len(d.shape) }

// Dim returns the size of axis i.
func (d *Dense) Dim(i int) int { return d.shape[i] }

// Size is the total number of elements.
func (d *Dense) Size() int { return len(d.data) }

// Data returns the backing slice.
func (d *Dense) Data() []float64 { return d.data }

// Clone returns a deep copy.
func (d *Dense) Clone() *Dense {
	if d == nil {
		return nil
	}
	out := &Dense{shape: cloneInts(d.shape), data: make([]float64, len(d.data))}
	copy(out.data, d.data)
	return out
}

// Reshape returns a view of the same data with a new shape.
func (d *Dense) Reshape(shape ...int) (*Dense, error) {
	if volume(shape) != len(d.data) {
		return nil, errors.Errorf("tensor: cannot reshape %v to %v", d.shape, shape)
	}
	return &Dense{shape: cloneInts(shape), data: d.data}, nil
}

// Squeeze drops axis, which must have size 1.
func (d *Dense) Squeeze(axis int) (*Dense, error) {
	if axis < 0 || axis >= len(d.shape) || d.shape[axis] != 1 {
		return nil, errors.Errorf("tensor: cannot squeeze axis %d of %v", axis, d.shape)
	}
	shape := append(cloneInts(d.shape[:axis]), d.shape[axis+1:]...)
	return &Dense{shape: shape, data: d.data}, nil
}

// ExpandDims inserts a size-1 axis at position axis.
func (d *Dense) ExpandDims(axis int) *Dense {
	shape := make([]int, 0, len(d.shape)+1)
	shape = append(shape, d.shape[:axis]...)
	shape = append(shape, 1)
	shape = append(shape, d.shape[axis:]...)
	return &Dense{shape: shape, data: d.data}
}

// At returns the element at idx.
func (d *Dense) At(idx ...int) float64 { return d.data[d.offset(idx)] }

// Set writes v at idx.
func (d *Dense) Set(v float64, idx ...int) { d.data[d.offset(idx)] = v }

// Row returns the contiguous slice for index i along axis 0. It shares storage.
func (d *Dense) Row(i int) []float64 {
	n := d.stride0()
	return d.data[i*n : (i+1)*n]
}

// Gather selects entries along axis 0 in the given order.
func (d *Dense) Gather(indices []int) *Dense {
	shape := cloneInts(d.shape)
	shape[0] = len(indices)
	out := New(shape...)
	n := d.stride0()
	for dst, src := range indices {
		copy(out.data[dst*n:(dst+1)*n], d.data[src*n:(src+1)*n])
	}
	return out
}

// Apply returns a new Dense with fn applied to every element.
func (d *Dense) Apply(fn func(float64) float64) *Dense {
	out := d.Clone()
	for i, v := range out.data {
		out.data[i] = fn(v)
	}
	return out
}

// Scaled returns d multiplied by c.
func (d *Dense) Scaled(c float64) *Dense {
	out := d.Clone()
	floats.Scale(c, out.data)
	return out
}

// Clipped returns d with every element clamped to [lo, hi]. NaN stays NaN.
func (d *Dense) Clipped(lo, hi float64) *Dense {
	return d.Apply(func(v float64) float64 { return Clamp(v, lo, hi) })
}

// Ints returns the elements truncated to int.
func (d *Dense) Ints() []int {
	out := make([]int, len(d.data))
	for i, v := range d.data {
		out[i] = int(v)
	}
	return out
}

// SameShape reports whether d and o have identical dimensions.
func (d *Dense) SameShape(o *Dense) bool {
	if len(d.shape) != len(o.shape) {
		return false
	}
	for i := range d.shape {
		if d.shape[i] != o.shape[i] {
			return false
		}
	}
	return true
}

// Equal reports element-wise equality, treating NaN as equal to NaN.
func (d *Dense) Equal(o *Dense) bool {
	if d == nil || o == nil {
		return d == o
	}
	return d.SameShape(o) && floats.Same(d.data, o.data)
}

// EqualApprox is Equal within an absolute tolerance.
func (d *Dense) EqualApprox(o *Dense, tol float64) bool {
	if d == nil || o == nil {
		return d == o
	}
	if !d.SameShape(o) {
		return false
	}
	for i, v := range d.data {
		w := o.data[i]
		if math.IsNaN(v) || math.IsNaN(w) {
			if math.IsNaN(v) != math.IsNaN(w) {
				return false
			}
			continue
		}
		if !scalar.EqualWithinAbs(v, w, tol) {
			return false
		}
	}
	return true
}

// String formats the shape and, for small tensors, the values.
func (d *Dense) String() string {
	if len(d.data) > 32 {
		return fmt.Sprintf("Dense%v", d.shape)
	}
	return fmt.Sprintf("Dense%v%v", d.shape, d.data)
}

// Clamp limits v to [lo, hi]. NaN passes through.
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (d *Dense) offset(idx []int) int {
	if len(idx) != len(d.shape) {
		panic(fmt.Sprintf("tensor: %d indices for shape %v", len(idx), d.shape))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= d.shape[i] {
			panic(fmt.Sprintf("tensor: index %v out of range for shape %v", idx, d.shape))
		}
		off = off*d.shape[i] + v
	}
	return off
}

func (d *Dense) stride0() int {
	if len(d.shape) == 0 {
		return 1
	}
	return volume(d.shape[1:])
}

func volume(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

func cloneInts(s []int) []int {
	out := make([]int, len(s))
	copy(out, s)
	return out
}

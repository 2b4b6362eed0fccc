package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/ironsheep/image-augment/internal/tensor"
)

// layout views a rank-3 tensor as n planes of h×w pixels with c values each.
// An image [H, W, C] is one plane of C channels; instance masks [N, H, W] are
// N planes of one channel.
type layout struct {
	n, h, w, c int
	masks      bool
}

func imageLayout(img *tensor.Dense) (layout, error) {
	if img == nil || img.Rank() != 3 {
		return layout{}, errors.Errorf("imaging: want image of shape [H W C], got %v", shapeOf(img))
	}
	return layout{n: 1, h: img.Dim(0), w: img.Dim(1), c: img.Dim(2)}, nil
}

func maskLayout(m *tensor.Dense) (layout, error) {
	if m == nil || m.Rank() != 3 {
		return layout{}, errors.Errorf("imaging: want masks of shape [N H W], got %v", shapeOf(m))
	}
	return layout{n: m.Dim(0), h: m.Dim(1), w: m.Dim(2), c: 1, masks: true}, nil
}

func shapeOf(t *tensor.Dense) []int {
	if t == nil {
		return nil
	}
	return t.Shape()
}

func (l layout) shape(h, w int) []int {
	if l.masks {
		return []int{l.n, h, w}
	}
	return []int{h, w, l.c}
}

// resample builds an oh×ow output where each pixel copies the source pixel
// named by src, or fill when src reports false. A nil fill means zeros.
func (l layout) resample(t *tensor.Dense, oh, ow int, fill []float64, src func(y, x int) (int, int, bool)) *tensor.Dense {
	data := t.Data()
	out := tensor.New(l.shape(oh, ow)...)
	od := out.Data()
	for n := 0; n < l.n; n++ {
		for y := 0; y < oh; y++ {
			for x := 0; x < ow; x++ {
				dst := ((n*oh+y)*ow + x) * l.c
				sy, sx, ok := src(y, x)
				if !ok {
					copy(od[dst:dst+l.c], fill)
					continue
				}
				s := ((n*l.h+sy)*l.w + sx) * l.c
				copy(od[dst:dst+l.c], data[s:s+l.c])
			}
		}
	}
	return out
}

func (l layout) flipLeftRight(t *tensor.Dense) *tensor.Dense {
	return l.resample(t, l.h, l.w, nil, func(y, x int) (int, int, bool) { return y, l.w - 1 - x, true })
}

func (l layout) flipUpDown(t *tensor.Dense) *tensor.Dense {
	return l.resample(t, l.h, l.w, nil, func(y, x int) (int, int, bool) { return l.h - 1 - y, x, true })
}

// rot90 rotates counter-clockwise: out[i][j] = in[j][W-1-i].
func (l layout) rot90(t *tensor.Dense) *tensor.Dense {
	return l.resample(t, l.w, l.h, nil, func(y, x int) (int, int, bool) { return x, l.w - 1 - y, true })
}

func (l layout) checkCrop(top, left, h, w int) error {
	if top < 0 || left < 0 || h <= 0 || w <= 0 || top+h > l.h || left+w > l.w {
		return errors.Errorf("imaging: crop %dx%d at (%d,%d) outside %dx%d", h, w, top, left, l.h, l.w)
	}
	return nil
}

func (l layout) crop(t *tensor.Dense, top, left, h, w int) (*tensor.Dense, error) {
	if err := l.checkCrop(top, left, h, w); err != nil {
		return nil, err
	}
	return l.resample(t, h, w, nil, func(y, x int) (int, int, bool) { return y + top, x + left, true }), nil
}

func (l layout) checkPad(top, left, h, w int, fill []float64) error {
	if top < 0 || left < 0 || top+l.h > h || left+l.w > w {
		return errors.Errorf("imaging: cannot place %dx%d at (%d,%d) in %dx%d", l.h, l.w, top, left, h, w)
	}
	if fill != nil && len(fill) != l.c {
		return errors.Errorf("imaging: pad color has %d values for %d channels", len(fill), l.c)
	}
	return nil
}

func (l layout) pad(t *tensor.Dense, top, left, h, w int, fill []float64) (*tensor.Dense, error) {
	if err := l.checkPad(top, left, h, w, fill); err != nil {
		return nil, err
	}
	return l.resample(t, h, w, fill, func(y, x int) (int, int, bool) {
		sy, sx := y-top, x-left
		return sy, sx, sy >= 0 && sy < l.h && sx >= 0 && sx < l.w
	}), nil
}

// is8Bit reports whether every value is an integer in [0, 255].
func is8Bit(vals []float64) bool {
	for _, v := range vals {
		if v < 0 || v > 255 || v != math.Trunc(v) {
			return false
		}
	}
	return true
}

// asNRGBA converts an RGB image holding only 8-bit values. Such images take
// the disintegration/imaging path, which is lossless for them. Anything else
// (normalized or mean-subtracted values, other channel counts) stays on the
// float path.
func asNRGBA(img *tensor.Dense, l layout) (*image.NRGBA, bool) {
	if l.c != 3 || !is8Bit(img.Data()) {
		return nil, false
	}
	out, err := ToImage(img)
	return out, err == nil
}

// FlipLeftRight mirrors an [H, W, C] image horizontally.
func FlipLeftRight(img *tensor.Dense) (*tensor.Dense, error) {
	l, err := imageLayout(img)
	if err != nil {
		return nil, err
	}
	if src, ok := asNRGBA(img, l); ok {
		return FromImage(imaging.FlipH(src)), nil
	}
	return l.flipLeftRight(img), nil
}

// FlipUpDown mirrors an [H, W, C] image vertically.
func FlipUpDown(img *tensor.Dense) (*tensor.Dense, error) {
	l, err := imageLayout(img)
	if err != nil {
		return nil, err
	}
	if src, ok := asNRGBA(img, l); ok {
		return FromImage(imaging.FlipV(src)), nil
	}
	return l.flipUpDown(img), nil
}

// Rot90 rotates an [H, W, C] image 90 degrees counter-clockwise into [W, H, C].
func Rot90(img *tensor.Dense) (*tensor.Dense, error) {
	l, err := imageLayout(img)
	if err != nil {
		return nil, err
	}
	if src, ok := asNRGBA(img, l); ok {
		return FromImage(imaging.Rotate90(src)), nil
	}
	return l.rot90(img), nil
}

// Crop returns the h×w region of img whose top-left pixel is (top, left).
func Crop(img *tensor.Dense, top, left, h, w int) (*tensor.Dense, error) {
	l, err := imageLayout(img)
	if err != nil {
		return nil, err
	}
	if err := l.checkCrop(top, left, h, w); err != nil {
		return nil, err
	}
	if src, ok := asNRGBA(img, l); ok {
		return FromImage(imaging.Crop(src, image.Rect(left, top, left+w, top+h))), nil
	}
	return l.crop(img, top, left, h, w)
}

// Pad places img at (top, left) on an h×w canvas filled with fill, one value
// per channel. A nil fill pads with zeros.
func Pad(img *tensor.Dense, top, left, h, w int, fill []float64) (*tensor.Dense, error) {
	l, err := imageLayout(img)
	if err != nil {
		return nil, err
	}
	if err := l.checkPad(top, left, h, w, fill); err != nil {
		return nil, err
	}
	if src, ok := asNRGBA(img, l); ok && is8Bit(fill) {
		bg := color.NRGBA{A: 0xff}
		if fill != nil {
			bg.R, bg.G, bg.B = uint8(fill[0]), uint8(fill[1]), uint8(fill[2])
		}
		canvas := imaging.New(w, h, bg)
		return FromImage(imaging.Paste(canvas, src, image.Pt(left, top))), nil
	}
	return l.pad(img, top, left, h, w, fill)
}

// FlipMasksLeftRight mirrors [N, H, W] masks horizontally.
func FlipMasksLeftRight(m *tensor.Dense) (*tensor.Dense, error) {
	l, err := maskLayout(m)
	if err != nil {
		return nil, err
	}
	return l.flipLeftRight(m), nil
}

// FlipMasksUpDown mirrors [N, H, W] masks vertically.
func FlipMasksUpDown(m *tensor.Dense) (*tensor.Dense, error) {
	l, err := maskLayout(m)
	if err != nil {
		return nil, err
	}
	return l.flipUpDown(m), nil
}

// RotMasks90 rotates [N, H, W] masks the same way Rot90 rotates images.
func RotMasks90(m *tensor.Dense) (*tensor.Dense, error) {
	l, err := maskLayout(m)
	if err != nil {
		return nil, err
	}
	return l.rot90(m), nil
}

// CropMasks crops every mask to the same region.
func CropMasks(m *tensor.Dense, top, left, h, w int) (*tensor.Dense, error) {
	l, err := maskLayout(m)
	if err != nil {
		return nil, err
	}
	return l.crop(m, top, left, h, w)
}

// PadMasks pads every mask with zeros.
func PadMasks(m *tensor.Dense, top, left, h, w int) (*tensor.Dense, error) {
	l, err := maskLayout(m)
	if err != nil {
		return nil, err
	}
	return l.pad(m, top, left, h, w, nil)
}

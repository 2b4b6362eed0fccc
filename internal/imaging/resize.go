package imaging

import (
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"github.com/ironsheep/image-augment/internal/tensor"
)

// Method selects the interpolation used by Resize. The numeric values are the
// ones random_resize_method draws.
type Method int

const (
	Bilinear Method = iota
	NearestNeighbor
	Bicubic
	Area

	NumMethods = 4
)

var methodNames = map[Method]string{
	Bilinear:        "bilinear",
	NearestNeighbor: "nearest_neighbor",
	Bicubic:         "bicubic",
	Area:            "area",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return "unknown"
}

// MarshalText renders the method by name.
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts the names ParseMethod does.
func (m *Method) UnmarshalText(b []byte) error {
	v, err := ParseMethod(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMethod maps a method name to a Method.
func ParseMethod(s string) (Method, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "nearest" {
		return NearestNeighbor, nil
	}
	for m, name := range methodNames {
		if name == s {
			return m, nil
		}
	}
	return 0, errors.Errorf("unknown resize method %q", s)
}

// boxKernel averages every source pixel under the destination footprint.
var boxKernel = &draw.Kernel{Support: 0.5, At: func(t float64) float64 {
	if math.Abs(t) <= 0.5 {
		return 1
	}
	return 0
}}

func (m Method) interpolator() draw.Interpolator {
	switch m {
	case Bicubic:
		return draw.CatmullRom
	case Area:
		return boxKernel
	default:
		return draw.BiLinear
	}
}

// Resize resamples an [H, W, C] image to h×w.
func Resize(img *tensor.Dense, h, w int, m Method) (*tensor.Dense, error) {
	l, err := imageLayout(img)
	if err != nil {
		return nil, err
	}
	if h <= 0 || w <= 0 {
		return nil, errors.Errorf("imaging: invalid resize target %dx%d", h, w)
	}
	if m == NearestNeighbor {
		return l.nearest(img, h, w), nil
	}
	if _, ok := methodNames[m]; !ok {
		return nil, errors.Errorf("imaging: unknown resize method %d", int(m))
	}
	return kernelResize(img, l, h, w, m.interpolator()), nil
}

// ResizeMasks resamples [N, H, W] masks to h×w with nearest neighbour so that
// mask values stay binary.
func ResizeMasks(masks *tensor.Dense, h, w int) (*tensor.Dense, error) {
	l, err := maskLayout(masks)
	if err != nil {
		return nil, err
	}
	if h <= 0 || w <= 0 {
		return nil, errors.Errorf("imaging: invalid resize target %dx%d", h, w)
	}
	return l.nearest(masks, h, w), nil
}

func (l layout) nearest(t *tensor.Dense, h, w int) *tensor.Dense {
	ys := float64(l.h) / float64(h)
	xs := float64(l.w) / float64(w)
	return l.resample(t, h, w, nil, func(y, x int) (int, int, bool) {
		sy := min(int(math.Floor(float64(y)*ys)), l.h-1)
		sx := min(int(math.Floor(float64(x)*xs)), l.w-1)
		return sy, sx, true
	})
}

// kernelResize runs an x/image/draw kernel over the float image. Channels are
// packed three at a time into 16-bit RGBA images, each normalized by its own
// range so that no precision beyond 16 bits is lost for [0, 255] pixels.
func kernelResize(img *tensor.Dense, l layout, h, w int, interp draw.Interpolator) *tensor.Dense {
	out := tensor.New(h, w, l.c)
	src, dst := img.Data(), out.Data()

	for c0 := 0; c0 < l.c; c0 += 3 {
		n := min(3, l.c-c0)
		lo := make([]float64, n)
		span := make([]float64, n)
		for k := 0; k < n; k++ {
			lo[k], span[k] = channelRange(src, l.c, c0+k)
		}

		packed := image.NewRGBA64(image.Rect(0, 0, l.w, l.h))
		for y := 0; y < l.h; y++ {
			for x := 0; x < l.w; x++ {
				var v [3]uint16
				base := (y*l.w + x) * l.c
				for k := 0; k < n; k++ {
					v[k] = toUint16((src[base+c0+k] - lo[k]) / span[k])
				}
				packed.SetRGBA64(x, y, color.RGBA64{R: v[0], G: v[1], B: v[2], A: 0xffff})
			}
		}

		scaled := image.NewRGBA64(image.Rect(0, 0, w, h))
		interp.Scale(scaled, scaled.Bounds(), packed, packed.Bounds(), draw.Src, nil)

		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				p := scaled.RGBA64At(x, y)
				v := [3]uint16{p.R, p.G, p.B}
				base := (y*w + x) * l.c
				for k := 0; k < n; k++ {
					dst[base+c0+k] = float64(v[k])/0xffff*span[k] + lo[k]
				}
			}
		}
	}
	return out
}

func channelRange(data []float64, stride, c int) (lo, span float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := c; i < len(data); i += stride {
		v := data[i]
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	if hi == lo {
		return lo, 1
	}
	return lo, hi - lo
}

func toUint16(f float64) uint16 {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= 1 {
		return 0xffff
	}
	return uint16(math.Round(f * 0xffff))
}

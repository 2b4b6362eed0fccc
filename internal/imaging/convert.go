package imaging

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/ironsheep/image-augment/internal/tensor"
)

// FromImage converts any image.Image to an [H, W, 3] tensor of [0, 255]
// values. Alpha is discarded after un-premultiplying.
func FromImage(img image.Image) *tensor.Dense {
	n := imaging.Clone(img)
	b := n.Bounds()
	out := tensor.New(b.Dy(), b.Dx(), 3)
	dst := out.Data()
	for y := 0; y < b.Dy(); y++ {
		row := n.Pix[y*n.Stride : y*n.Stride+b.Dx()*4]
		for x := 0; x < b.Dx(); x++ {
			i := (y*b.Dx() + x) * 3
			dst[i] = float64(row[x*4])
			dst[i+1] = float64(row[x*4+1])
			dst[i+2] = float64(row[x*4+2])
		}
	}
	return out
}

// ToImage converts an [H, W, 1] or [H, W, 3] tensor of [0, 255] values to an
// opaque image. Values are rounded and clamped; NaN becomes 0.
func ToImage(t *tensor.Dense) (*image.NRGBA, error) {
	l, err := imageLayout(t)
	if err != nil {
		return nil, err
	}
	if l.c != 1 && l.c != 3 {
		return nil, errors.Errorf("imaging: cannot encode %d channels", l.c)
	}
	out := image.NewNRGBA(image.Rect(0, 0, l.w, l.h))
	src := t.Data()
	for p := 0; p < l.h*l.w; p++ {
		px := out.Pix[p*4 : p*4+4]
		for k := 0; k < 3; k++ {
			px[k] = toUint8(src[p*l.c+min(k, l.c-1)])
		}
		px[3] = 0xff
	}
	return out, nil
}

func toUint8(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

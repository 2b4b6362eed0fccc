package imaging

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/image-augment/internal/tensor"
)

// Luma weights used for RGB to grayscale conversion.
var lumaWeights = [3]float64{0.2989, 0.5870, 0.1140}

// ChannelMean returns the mean value of every channel of an [H, W, C] image.
func ChannelMean(img *tensor.Dense) ([]float64, error) {
	l, err := imageLayout(img)
	if err != nil {
		return nil, err
	}
	means := make([]float64, l.c)
	plane := make([]float64, l.h*l.w)
	data := img.Data()
	for c := 0; c < l.c; c++ {
		for i := range plane {
			plane[i] = data[i*l.c+c]
		}
		means[c] = stat.Mean(plane, nil)
	}
	return means, nil
}

func requireRGB(img *tensor.Dense) error {
	l, err := imageLayout(img)
	if err != nil {
		return err
	}
	if l.c != 3 {
		return errors.Errorf("imaging: want 3 channels, got %d", l.c)
	}
	return nil
}

// RGBToGray converts [H, W, 3] to [H, W, 1] with the standard luma weights.
func RGBToGray(img *tensor.Dense) (*tensor.Dense, error) {
	if err := requireRGB(img); err != nil {
		return nil, err
	}
	h, w := img.Dim(0), img.Dim(1)
	out := tensor.New(h, w, 1)
	src, dst := img.Data(), out.Data()
	for i := range dst {
		p := src[i*3 : i*3+3]
		dst[i] = p[0]*lumaWeights[0] + p[1]*lumaWeights[1] + p[2]*lumaWeights[2]
	}
	return out, nil
}

// GrayToRGB replicates the single channel of [H, W, 1] into [H, W, 3].
func GrayToRGB(img *tensor.Dense) (*tensor.Dense, error) {
	l, err := imageLayout(img)
	if err != nil {
		return nil, err
	}
	if l.c != 1 {
		return nil, errors.Errorf("imaging: want 1 channel, got %d", l.c)
	}
	out := tensor.New(l.h, l.w, 3)
	src, dst := img.Data(), out.Data()
	for i, v := range src {
		dst[i*3], dst[i*3+1], dst[i*3+2] = v, v, v
	}
	return out, nil
}

// AdjustBrightness adds delta to every value.
func AdjustBrightness(img *tensor.Dense, delta float64) *tensor.Dense {
	return img.Apply(func(v float64) float64 { return v + delta })
}

// AdjustContrast moves every value away from its channel mean by factor.
func AdjustContrast(img *tensor.Dense, factor float64) (*tensor.Dense, error) {
	means, err := ChannelMean(img)
	if err != nil {
		return nil, err
	}
	out := img.Clone()
	data := out.Data()
	c := len(means)
	for i, v := range data {
		m := means[i%c]
		data[i] = (v-m)*factor + m
	}
	return out, nil
}

// mapHSV converts each pixel of a [0, 1] RGB image to HSV, applies fn and
// converts back.
func mapHSV(img *tensor.Dense, fn func(h, s, v float64) (float64, float64, float64)) (*tensor.Dense, error) {
	if err := requireRGB(img); err != nil {
		return nil, err
	}
	out := img.Clone()
	data := out.Data()
	for i := 0; i < len(data); i += 3 {
		h, s, v := colorful.Color{R: data[i], G: data[i+1], B: data[i+2]}.Hsv()
		c := colorful.Hsv(fn(h, s, v))
		data[i], data[i+1], data[i+2] = c.R, c.G, c.B
	}
	return out, nil
}

// AdjustHue rotates hue by delta, a fraction of a full turn, on a [0, 1] RGB
// image.
func AdjustHue(img *tensor.Dense, delta float64) (*tensor.Dense, error) {
	return mapHSV(img, func(h, s, v float64) (float64, float64, float64) {
		h = math.Mod(h+delta*360, 360)
		if h < 0 {
			h += 360
		}
		return h, s, v
	})
}

// AdjustSaturation scales saturation by factor on a [0, 1] RGB image.
func AdjustSaturation(img *tensor.Dense, factor float64) (*tensor.Dense, error) {
	return mapHSV(img, func(h, s, v float64) (float64, float64, float64) {
		return h, tensor.Clamp(s*factor, 0, 1), v
	})
}

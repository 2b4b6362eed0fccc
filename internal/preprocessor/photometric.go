package preprocessor

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/ironsheep/image-augment/internal/cache"
	"github.com/ironsheep/image-augment/internal/imaging"
	"github.com/ironsheep/image-augment/internal/tensor"
)

// Photometric operations take images in [0, 255] and clip their output back
// into that range.
const pixelMax = 255.0

// NormalizeParams maps [OriginalMinval, OriginalMaxval] linearly onto
// [TargetMinval, TargetMaxval].
type NormalizeParams struct {
	OriginalMinval float64 `mapstructure:"original_minval" json:"original_minval"`
	OriginalMaxval float64 `mapstructure:"original_maxval" json:"original_maxval"`
	TargetMinval   float64 `mapstructure:"target_minval" json:"target_minval"`
	TargetMaxval   float64 `mapstructure:"target_maxval" json:"target_maxval"`
}

func (p NormalizeParams) validate() error {
	if p.OriginalMaxval == p.OriginalMinval {
		return configError("original_minval and original_maxval must differ")
	}
	return nil
}

func normalizeImage(_ Env, f Fields, p NormalizeParams) (Fields, error) {
	scale := (p.TargetMaxval - p.TargetMinval) / (p.OriginalMaxval - p.OriginalMinval)
	f.Image = f.Image.Apply(func(v float64) float64 {
		return (v-p.OriginalMinval)*scale + p.TargetMinval
	})
	return f, nil
}

// PixelValueScaleParams bounds the per-pixel multiplicative noise.
type PixelValueScaleParams struct {
	Minval float64 `mapstructure:"minval" json:"minval"`
	Maxval float64 `mapstructure:"maxval" json:"maxval"`
}

// DefaultPixelValueScaleParams scales each pixel by a factor in [0.9, 1.1].
func DefaultPixelValueScaleParams() PixelValueScaleParams {
	return PixelValueScaleParams{Minval: 0.9, Maxval: 1.1}
}

func randomPixelValueScale(env Env, f Fields, p PixelValueScaleParams) (Fields, error) {
	coef := cache.GetOrCreate(env.Cache, cache.PixelValueScale, "", func() *tensor.Dense {
		t := tensor.New(f.Image.Shape()...)
		data := t.Data()
		for i := range data {
			data[i] = env.uniform(p.Minval, p.Maxval)
		}
		return t
	})
	if !coef.SameShape(f.Image) {
		return f, errors.Errorf("cached pixel scale has shape %v, image has %v", coef.Shape(), f.Image.Shape())
	}
	out := f.Image.Clone()
	data, c := out.Data(), coef.Data()
	for i := range data {
		data[i] = tensor.Clamp(data[i]*c[i], 0, pixelMax)
	}
	f.Image = out
	return f, nil
}

// RGBToGrayParams sets how often random_rgb_to_gray fires.
type RGBToGrayParams struct {
	Probability float64 `mapstructure:"probability" json:"probability"`
}

// DefaultRGBToGrayParams converts one image in ten.
func DefaultRGBToGrayParams() RGBToGrayParams { return RGBToGrayParams{Probability: 0.1} }

// randomRGBToGray converts to gray but keeps three channels so later
// operations see the same layout.
func randomRGBToGray(env Env, f Fields, p RGBToGrayParams) (Fields, error) {
	if env.cachedUniform(cache.RGBToGray, "", 0, 1) > p.Probability {
		return f, nil
	}
	gray, err := imaging.RGBToGray(f.Image)
	if err != nil {
		return f, err
	}
	if f.Image, err = imaging.GrayToRGB(gray); err != nil {
		return f, err
	}
	return f, nil
}

func rgbToGray(_ Env, f Fields, _ NoParams) (Fields, error) {
	gray, err := imaging.RGBToGray(f.Image)
	if err != nil {
		return f, err
	}
	f.Image = gray
	return f, nil
}

// BrightnessParams bounds the brightness shift, as a fraction of full scale.
type BrightnessParams struct {
	MaxDelta float64 `mapstructure:"max_delta" json:"max_delta"`
}

// DefaultBrightnessParams shifts brightness by up to 0.2.
func DefaultBrightnessParams() BrightnessParams { return BrightnessParams{MaxDelta: 0.2} }

func randomAdjustBrightness(env Env, f Fields, p BrightnessParams) (Fields, error) {
	delta := env.cachedUniform(cache.AdjustBrightness, "", -p.MaxDelta, p.MaxDelta)
	f.Image = imaging.AdjustBrightness(f.Image, delta*pixelMax).Clipped(0, pixelMax)
	return f, nil
}

// ContrastParams bounds the contrast factor.
type ContrastParams struct {
	MinDelta float64 `mapstructure:"min_delta" json:"min_delta"`
	MaxDelta float64 `mapstructure:"max_delta" json:"max_delta"`
}

// DefaultContrastParams scales contrast by a factor in [0.8, 1.25].
func DefaultContrastParams() ContrastParams { return ContrastParams{MinDelta: 0.8, MaxDelta: 1.25} }

func randomAdjustContrast(env Env, f Fields, p ContrastParams) (Fields, error) {
	factor := env.cachedUniform(cache.AdjustContrast, "", p.MinDelta, p.MaxDelta)
	img, err := imaging.AdjustContrast(f.Image, factor)
	if err != nil {
		return f, err
	}
	f.Image = img.Clipped(0, pixelMax)
	return f, nil
}

// HueParams bounds the hue rotation, as a fraction of a full turn.
type HueParams struct {
	MaxDelta float64 `mapstructure:"max_delta" json:"max_delta"`
}

// DefaultHueParams rotates hue by up to 0.02 of a turn.
func DefaultHueParams() HueParams { return HueParams{MaxDelta: 0.02} }

func randomAdjustHue(env Env, f Fields, p HueParams) (Fields, error) {
	delta := env.cachedUniform(cache.AdjustHue, "", -p.MaxDelta, p.MaxDelta)
	return inUnitRange(f, func(img *tensor.Dense) (*tensor.Dense, error) {
		return imaging.AdjustHue(img, delta)
	})
}

// SaturationParams bounds the saturation factor.
type SaturationParams struct {
	MinDelta float64 `mapstructure:"min_delta" json:"min_delta"`
	MaxDelta float64 `mapstructure:"max_delta" json:"max_delta"`
}

// DefaultSaturationParams scales saturation by a factor in [0.8, 1.25].
func DefaultSaturationParams() SaturationParams {
	return SaturationParams{MinDelta: 0.8, MaxDelta: 1.25}
}

func randomAdjustSaturation(env Env, f Fields, p SaturationParams) (Fields, error) {
	factor := env.cachedUniform(cache.AdjustSaturation, "", p.MinDelta, p.MaxDelta)
	return inUnitRange(f, func(img *tensor.Dense) (*tensor.Dense, error) {
		return imaging.AdjustSaturation(img, factor)
	})
}

// inUnitRange runs fn on the image rescaled to [0, 1] and clips the result
// back to [0, 255].
func inUnitRange(f Fields, fn func(*tensor.Dense) (*tensor.Dense, error)) (Fields, error) {
	img, err := fn(f.Image.Scaled(1 / pixelMax))
	if err != nil {
		return f, err
	}
	f.Image = img.Scaled(pixelMax).Clipped(0, pixelMax)
	return f, nil
}

// DistortColorParams picks one of the two fixed orderings of the color
// adjustments.
type DistortColorParams struct {
	ColorOrdering int `mapstructure:"color_ordering" json:"color_ordering"`
}

func (p DistortColorParams) validate() error {
	if p.ColorOrdering != 0 && p.ColorOrdering != 1 {
		return configError("color_ordering must be 0 or 1, got %d", p.ColorOrdering)
	}
	return nil
}

func randomDistortColor(env Env, f Fields, p DistortColorParams) (Fields, error) {
	brightness := func(e Env, f Fields) (Fields, error) {
		return randomAdjustBrightness(e, f, BrightnessParams{MaxDelta: 32. / 255.})
	}
	saturation := func(e Env, f Fields) (Fields, error) {
		return randomAdjustSaturation(e, f, SaturationParams{MinDelta: 0.5, MaxDelta: 1.5})
	}
	hue := func(e Env, f Fields) (Fields, error) {
		return randomAdjustHue(e, f, HueParams{MaxDelta: 0.2})
	}
	contrast := func(e Env, f Fields) (Fields, error) {
		return randomAdjustContrast(e, f, ContrastParams{MinDelta: 0.5, MaxDelta: 1.5})
	}

	var order []func(Env, Fields) (Fields, error)
	switch p.ColorOrdering {
	case 0:
		order = append(order, brightness, saturation, hue, contrast)
	case 1:
		order = append(order, brightness, contrast, saturation, hue)
	default:
		return f, configError("color_ordering must be 0 or 1, got %d", p.ColorOrdering)
	}

	var err error
	for _, step := range order {
		if f, err = step(env, f); err != nil {
			return f, err
		}
	}
	return f, nil
}

// BlackPatchesParams configures random_black_patches.
type BlackPatchesParams struct {
	MaxBlackPatches  int     `mapstructure:"max_black_patches" json:"max_black_patches"`
	Probability      float64 `mapstructure:"probability" json:"probability"`
	SizeToImageRatio float64 `mapstructure:"size_to_image_ratio" json:"size_to_image_ratio"`
}

// DefaultBlackPatchesParams tries ten patches, each kept with probability
// 0.5 and a tenth of the short side wide.
func DefaultBlackPatchesParams() BlackPatchesParams {
	return BlackPatchesParams{MaxBlackPatches: 10, Probability: 0.5, SizeToImageRatio: 0.1}
}

func (p BlackPatchesParams) validate() error {
	if p.MaxBlackPatches < 0 {
		return configError("max_black_patches must not be negative")
	}
	if p.SizeToImageRatio <= 0 || p.SizeToImageRatio >= 1 {
		return configError("size_to_image_ratio must be in (0, 1), got %g", p.SizeToImageRatio)
	}
	return nil
}

// randomBlackPatches zeroes up to MaxBlackPatches square patches. Each trial
// fires independently, so patches may overlap.
func randomBlackPatches(env Env, f Fields, p BlackPatchesParams) (Fields, error) {
	img := f.Image.Clone()
	h, w, c := img.Dim(0), img.Dim(1), img.Dim(2)
	size := int(float64(min(h, w)) * p.SizeToImageRatio)
	data := img.Data()

	for idx := 0; idx < p.MaxBlackPatches; idx++ {
		key := strconv.Itoa(idx)
		if env.cachedUniform(cache.BlackPatches, key, 0, 1) > p.Probability {
			continue
		}
		ny := env.cachedUniform(cache.AddBlackPatch, key+"y", 0, 1-p.SizeToImageRatio)
		nx := env.cachedUniform(cache.AddBlackPatch, key+"x", 0, 1-p.SizeToImageRatio)
		y0, x0 := int(ny*float64(h)), int(nx*float64(w))
		for y := y0; y < min(y0+size, h); y++ {
			for x := x0; x < min(x0+size, w); x++ {
				clear(data[(y*w+x)*c : (y*w+x+1)*c])
			}
		}
	}
	f.Image = img
	return f, nil
}

func imageToFloat(_ Env, f Fields, _ NoParams) (Fields, error) {
	return f, nil
}

// SubtractChannelMeanParams holds one mean per image channel.
type SubtractChannelMeanParams struct {
	Means []float64 `mapstructure:"means" json:"means"`
}

func subtractChannelMean(_ Env, f Fields, p SubtractChannelMeanParams) (Fields, error) {
	c := f.Image.Dim(2)
	if len(p.Means) != c {
		return f, configError("means has %d values for %d channels", len(p.Means), c)
	}
	out := f.Image.Clone()
	data := out.Data()
	for i := range data {
		data[i] -= p.Means[i%c]
	}
	f.Image = out
	return f, nil
}

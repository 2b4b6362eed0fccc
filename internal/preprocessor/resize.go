package preprocessor

import (
	"math"

	"github.com/ironsheep/image-augment/internal/boxes"
	"github.com/ironsheep/image-augment/internal/cache"
	"github.com/ironsheep/image-augment/internal/imaging"
	"github.com/ironsheep/image-augment/internal/keypoints"
)

// resizeFields resamples the image with m and the masks with nearest
// neighbour to h×w.
func resizeFields(f Fields, h, w int, m imaging.Method) (Fields, error) {
	h, w = max(h, 1), max(w, 1)
	img, err := imaging.Resize(f.Image, h, w, m)
	if err != nil {
		return f, err
	}
	f.Image = img
	if f.Masks != nil {
		if f.Masks, err = imaging.ResizeMasks(f.Masks, h, w); err != nil {
			return f, err
		}
	}
	return f, nil
}

// ImageScaleParams bounds the random scale factor.
type ImageScaleParams struct {
	MinScaleRatio float64 `mapstructure:"min_scale_ratio" json:"min_scale_ratio"`
	MaxScaleRatio float64 `mapstructure:"max_scale_ratio" json:"max_scale_ratio"`
}

// DefaultImageScaleParams scales by a factor in [0.5, 2].
func DefaultImageScaleParams() ImageScaleParams {
	return ImageScaleParams{MinScaleRatio: 0.5, MaxScaleRatio: 2.0}
}

func (p ImageScaleParams) validate() error {
	if p.MinScaleRatio <= 0 || p.MinScaleRatio > p.MaxScaleRatio {
		return configError("scale ratios [%g, %g] must be positive and ordered", p.MinScaleRatio, p.MaxScaleRatio)
	}
	return nil
}

func randomImageScale(env Env, f Fields, p ImageScaleParams) (Fields, error) {
	coef := env.cachedUniform(cache.ImageScale, "", p.MinScaleRatio, p.MaxScaleRatio)
	h := int(float64(f.Image.Dim(0)) * coef)
	w := int(float64(f.Image.Dim(1)) * coef)
	return resizeFields(f, h, w, imaging.Bilinear)
}

// RandomResizeMethodParams sets the output size of random_resize_method.
type RandomResizeMethodParams struct {
	TargetSize [2]int `mapstructure:"target_size" json:"target_size"`
}

func (p RandomResizeMethodParams) validate() error {
	if p.TargetSize[0] <= 0 || p.TargetSize[1] <= 0 {
		return configError("target_size %v must be positive", p.TargetSize)
	}
	return nil
}

func randomResizeMethod(env Env, f Fields, p RandomResizeMethodParams) (Fields, error) {
	m := imaging.Method(env.cachedIntN(cache.Selector, cache.ResizeMethodKey, imaging.NumMethods))
	img, err := imaging.Resize(f.Image, p.TargetSize[0], p.TargetSize[1], m)
	if err != nil {
		return f, err
	}
	f.Image = img
	return f, nil
}

// ResizeToRangeParams configures resize_to_range. A zero MaxDimension leaves
// the long side unbounded.
type ResizeToRangeParams struct {
	MinDimension       int            `mapstructure:"min_dimension" json:"min_dimension"`
	MaxDimension       int            `mapstructure:"max_dimension" json:"max_dimension"`
	Method             imaging.Method `mapstructure:"method" json:"method"`
	AlignCorners       bool           `mapstructure:"align_corners" json:"align_corners"`
	PadToMaxDimension  bool           `mapstructure:"pad_to_max_dimension" json:"pad_to_max_dimension"`
	PerChannelPadValue []float64      `mapstructure:"per_channel_pad_value" json:"per_channel_pad_value"`
}

// DefaultResizeToRangeParams resizes bilinearly and pads with zeros.
// MinDimension has no default and must be set.
func DefaultResizeToRangeParams() ResizeToRangeParams {
	return ResizeToRangeParams{Method: imaging.Bilinear, PerChannelPadValue: []float64{0, 0, 0}}
}

func (p ResizeToRangeParams) validate() error {
	if p.MinDimension <= 0 {
		return configError("min_dimension must be positive, got %d", p.MinDimension)
	}
	if p.MaxDimension != 0 && p.MaxDimension < p.MinDimension {
		return configError("max_dimension %d is below min_dimension %d", p.MaxDimension, p.MinDimension)
	}
	if p.PadToMaxDimension && p.MaxDimension == 0 {
		return configError("pad_to_max_dimension needs max_dimension")
	}
	return nil
}

// rangeSize scales the short side to minDim unless that pushes the long side
// past maxDim, in which case the long side becomes maxDim.
func rangeSize(h, w, minDim, maxDim int) (int, int) {
	fh, fw := float64(h), float64(w)
	large := float64(minDim) / math.Min(fh, fw)
	nh, nw := int(math.RoundToEven(fh*large)), int(math.RoundToEven(fw*large))
	if maxDim > 0 && max(nh, nw) > maxDim {
		small := float64(maxDim) / math.Max(fh, fw)
		nh, nw = int(math.RoundToEven(fh*small)), int(math.RoundToEven(fw*small))
	}
	return nh, nw
}

func resizeToRange(_ Env, f Fields, p ResizeToRangeParams) (Fields, error) {
	c := f.Image.Dim(2)
	if p.PadToMaxDimension && len(p.PerChannelPadValue) != c {
		return f, configError("per_channel_pad_value has %d values for %d channels", len(p.PerChannelPadValue), c)
	}
	h, w := rangeSize(f.Image.Dim(0), f.Image.Dim(1), p.MinDimension, p.MaxDimension)
	f, err := resizeFields(f, h, w, p.Method)
	if err != nil || !p.PadToMaxDimension {
		return f, err
	}

	if f.Image, err = imaging.Pad(f.Image, 0, 0, p.MaxDimension, p.MaxDimension, p.PerChannelPadValue); err != nil {
		return f, err
	}
	if f.Masks != nil {
		if f.Masks, err = imaging.PadMasks(f.Masks, 0, 0, p.MaxDimension, p.MaxDimension); err != nil {
			return f, err
		}
	}
	return f, nil
}

// ResizeToMinDimensionParams configures resize_to_min_dimension.
type ResizeToMinDimensionParams struct {
	MinDimension int `mapstructure:"min_dimension" json:"min_dimension"`
}

// DefaultResizeToMinDimensionParams upscales images shorter than 600 pixels.
func DefaultResizeToMinDimensionParams() ResizeToMinDimensionParams {
	return ResizeToMinDimensionParams{MinDimension: 600}
}

// resizeToMinDimension upscales so the short side reaches MinDimension.
// Images already large enough keep their size.
func resizeToMinDimension(_ Env, f Fields, p ResizeToMinDimensionParams) (Fields, error) {
	h, w := f.Image.Dim(0), f.Image.Dim(1)
	short := min(h, w)
	ratio := float64(max(short, p.MinDimension)) / float64(short)
	return resizeFields(f, int(float64(h)*ratio), int(float64(w)*ratio), imaging.Bilinear)
}

// ResizeImageParams configures resize_image.
type ResizeImageParams struct {
	NewHeight    int            `mapstructure:"new_height" json:"new_height"`
	NewWidth     int            `mapstructure:"new_width" json:"new_width"`
	Method       imaging.Method `mapstructure:"method" json:"method"`
	AlignCorners bool           `mapstructure:"align_corners" json:"align_corners"`
}

// DefaultResizeImageParams resizes to 600×1024 bilinearly.
func DefaultResizeImageParams() ResizeImageParams {
	return ResizeImageParams{NewHeight: 600, NewWidth: 1024, Method: imaging.Bilinear}
}

func (p ResizeImageParams) validate() error {
	if p.NewHeight <= 0 || p.NewWidth <= 0 {
		return configError("new size %dx%d must be positive", p.NewHeight, p.NewWidth)
	}
	return nil
}

func resizeImage(_ Env, f Fields, p ResizeImageParams) (Fields, error) {
	return resizeFields(f, p.NewHeight, p.NewWidth, p.Method)
}

// scaleBoxesToPixelCoordinates converts normalized boxes and keypoints to
// pixels of the current image.
func scaleBoxesToPixelCoordinates(_ Env, f Fields, _ NoParams) (Fields, error) {
	h, w := float64(f.Image.Dim(0)), float64(f.Image.Dim(1))
	if f.Boxes != nil {
		f.Boxes = boxes.Scale(f.Boxes, h, w)
	}
	if f.Keypoints != nil {
		f.Keypoints = keypoints.Scale(f.Keypoints, h, w)
	}
	return f, nil
}

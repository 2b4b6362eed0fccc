package preprocessor

import (
	"math"

	"github.com/ironsheep/image-augment/internal/boxes"
	"github.com/ironsheep/image-augment/internal/cache"
	"github.com/ironsheep/image-augment/internal/imaging"
	"github.com/ironsheep/image-augment/internal/keypoints"
)

// PadParams configures random_pad_image. Zero sizes and a nil color take the
// defaults: at least the image size, at most twice the image size, and the
// per-channel image mean.
type PadParams struct {
	MinImageSize []int     `mapstructure:"min_image_size" json:"min_image_size,omitempty"`
	MaxImageSize []int     `mapstructure:"max_image_size" json:"max_image_size,omitempty"`
	PadColor     []float64 `mapstructure:"pad_color" json:"pad_color,omitempty"`
}

func (p PadParams) validate() error {
	for name, s := range map[string][]int{"min_image_size": p.MinImageSize, "max_image_size": p.MaxImageSize} {
		if s != nil && len(s) != 2 {
			return configError("%s must be [height, width], got %v", name, s)
		}
	}
	return nil
}

// padPlacement is the cached outcome of random_pad_image.
type padPlacement struct {
	Height, Width int
	Top, Left     int
}

func randomPadImage(env Env, f Fields, p PadParams) (Fields, error) {
	h, w, c := f.Image.Dim(0), f.Image.Dim(1), f.Image.Dim(2)

	color := p.PadColor
	if color == nil {
		mean, err := imaging.ChannelMean(f.Image)
		if err != nil {
			return f, err
		}
		color = mean
	}
	if len(color) != c {
		return f, configError("pad_color has %d values for %d channels", len(color), c)
	}

	maxSize := [2]int{2 * h, 2 * w}
	if p.MaxImageSize != nil {
		maxSize = [2]int{p.MaxImageSize[0], p.MaxImageSize[1]}
	}
	minSize := [2]int{h, w}
	if p.MinImageSize != nil {
		minSize = [2]int{p.MinImageSize[0], p.MinImageSize[1]}
	}
	maxSize = [2]int{max(maxSize[0], h), max(maxSize[1], w)}
	minSize = [2]int{max(minSize[0], h), max(minSize[1], w)}

	pl := cache.GetOrCreate(env.Cache, cache.PadImage, "", func() padPlacement {
		th, tw := maxSize[0], maxSize[1]
		if maxSize[0] > minSize[0] {
			th = env.randInt(minSize[0], maxSize[0])
		}
		if maxSize[1] > minSize[1] {
			tw = env.randInt(minSize[1], maxSize[1])
		}
		return padPlacement{
			Height: th, Width: tw,
			Top:  env.randInt(0, th-h),
			Left: env.randInt(0, tw-w),
		}
	})

	img, err := imaging.Pad(f.Image, pl.Top, pl.Left, pl.Height, pl.Width, color)
	if err != nil {
		return f, err
	}
	f.Image = img
	if f.Boxes != nil {
		fh, fw := float64(h), float64(w)
		win := boxes.Window{
			-float64(pl.Top) / fh, -float64(pl.Left) / fw,
			float64(pl.Height-pl.Top) / fh, float64(pl.Width-pl.Left) / fw,
		}
		f.Boxes = boxes.ChangeCoordinateFrame(f.Boxes, win)
	}
	return f, nil
}

// CropPadParams configures random_crop_pad_image. The padded size range is a
// multiple of the image size before cropping.
type CropPadParams struct {
	CropParams         `mapstructure:",squash"`
	MinPaddedSizeRatio [2]float64 `mapstructure:"min_padded_size_ratio" json:"min_padded_size_ratio"`
	MaxPaddedSizeRatio [2]float64 `mapstructure:"max_padded_size_ratio" json:"max_padded_size_ratio"`
	PadColor           []float64  `mapstructure:"pad_color" json:"pad_color,omitempty"`
}

// DefaultCropPadParams pads the crop to between one and two times the
// original image size.
func DefaultCropPadParams() CropPadParams {
	return CropPadParams{
		CropParams:         DefaultCropParams(),
		MinPaddedSizeRatio: [2]float64{1, 1},
		MaxPaddedSizeRatio: [2]float64{2, 2},
	}
}

func randomCropPadImage(env Env, f Fields, p CropPadParams) (Fields, error) {
	h, w := float64(f.Image.Dim(0)), float64(f.Image.Dim(1))

	f, err := randomCropImage(env, f, p.CropParams)
	if err != nil {
		return f, err
	}
	return randomPadImage(env, f, PadParams{
		MinImageSize: []int{int(h * p.MinPaddedSizeRatio[0]), int(w * p.MinPaddedSizeRatio[1])},
		MaxImageSize: []int{int(h * p.MaxPaddedSizeRatio[0]), int(w * p.MaxPaddedSizeRatio[1])},
		PadColor:     p.PadColor,
	})
}

// PadToAspectRatioParams configures random_pad_to_aspect_ratio.
type PadToAspectRatioParams struct {
	AspectRatio        float64    `mapstructure:"aspect_ratio" json:"aspect_ratio"`
	MinPaddedSizeRatio [2]float64 `mapstructure:"min_padded_size_ratio" json:"min_padded_size_ratio"`
	MaxPaddedSizeRatio [2]float64 `mapstructure:"max_padded_size_ratio" json:"max_padded_size_ratio"`
}

// DefaultPadToAspectRatioParams pads to a square.
func DefaultPadToAspectRatioParams() PadToAspectRatioParams {
	return PadToAspectRatioParams{
		AspectRatio:        1.0,
		MinPaddedSizeRatio: [2]float64{1, 1},
		MaxPaddedSizeRatio: [2]float64{2, 2},
	}
}

func (p PadToAspectRatioParams) validate() error {
	if p.AspectRatio <= 0 {
		return configError("aspect_ratio must be positive, got %g", p.AspectRatio)
	}
	return nil
}

// randomPadToAspectRatio grows the canvas to the requested aspect ratio,
// scaled randomly within the padded size range, and anchors the image at the
// top left corner. Nothing is cropped.
func randomPadToAspectRatio(env Env, f Fields, p PadToAspectRatioParams) (Fields, error) {
	h, w := float64(f.Image.Dim(0)), float64(f.Image.Dim(1))

	th, tw := h, w
	if w/h < p.AspectRatio {
		tw = h * p.AspectRatio
	}
	if w/h > p.AspectRatio {
		th = w / p.AspectRatio
	}

	minH := math.Max(p.MinPaddedSizeRatio[0]*h, th)
	minW := math.Max(p.MinPaddedSizeRatio[1]*w, tw)
	maxH := math.Max(p.MaxPaddedSizeRatio[0]*h, th)
	maxW := math.Max(p.MaxPaddedSizeRatio[1]*w, tw)
	maxScale := math.Min(maxH/th, maxW/tw)
	minScale := math.Min(maxScale, math.Max(minH/th, minW/tw))

	scale := env.cachedUniform(cache.PadToAspectRatio, "", minScale, maxScale)
	th, tw = math.RoundToEven(scale*th), math.RoundToEven(scale*tw)
	ph, pw := int(th), int(tw)

	img, err := imaging.Pad(f.Image, 0, 0, ph, pw, nil)
	if err != nil {
		return f, err
	}
	f.Image = img

	win := boxes.Window{0, 0, th / h, tw / w}
	if f.Boxes != nil {
		f.Boxes = boxes.ChangeCoordinateFrame(f.Boxes, win)
	}
	if f.Masks != nil {
		if f.Masks, err = imaging.PadMasks(f.Masks, 0, 0, ph, pw); err != nil {
			return f, err
		}
	}
	if f.Keypoints != nil {
		f.Keypoints = keypoints.ChangeCoordinateFrame(f.Keypoints, win)
	}
	return f, nil
}

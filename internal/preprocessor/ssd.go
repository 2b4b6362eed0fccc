package preprocessor

import (
	"github.com/ironsheep/image-augment/internal/cache"
)

// SSDCropParams lists the crop presets of ssd_random_crop. Entry i of every
// slice belongs to preset i; one preset is drawn per call.
type SSDCropParams struct {
	MinObjectCovered []float64    `mapstructure:"min_object_covered" json:"min_object_covered"`
	AspectRatioRange [][2]float64 `mapstructure:"aspect_ratio_range" json:"aspect_ratio_range"`
	AreaRange        [][2]float64 `mapstructure:"area_range" json:"area_range"`
	OverlapThresh    []float64    `mapstructure:"overlap_thresh" json:"overlap_thresh"`
	ClipBoxes        []bool       `mapstructure:"clip_boxes" json:"clip_boxes"`
	RandomCoef       []float64    `mapstructure:"random_coef" json:"random_coef"`
}

func repeat[T any](v T, n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// DefaultSSDCropParams returns the seven standard SSD crop presets.
func DefaultSSDCropParams() SSDCropParams {
	return SSDCropParams{
		MinObjectCovered: []float64{0.0, 0.1, 0.3, 0.5, 0.7, 0.9, 1.0},
		AspectRatioRange: repeat([2]float64{0.5, 2.0}, 7),
		AreaRange:        repeat([2]float64{0.1, 1.0}, 7),
		OverlapThresh:    []float64{0.0, 0.1, 0.3, 0.5, 0.7, 0.9, 1.0},
		ClipBoxes:        repeat(true, 7),
		RandomCoef:       repeat(0.15, 7),
	}
}

// Len is the number of presets.
func (p SSDCropParams) Len() int { return len(p.MinObjectCovered) }

// Preset returns the crop parameters of preset i.
func (p SSDCropParams) Preset(i int) CropParams {
	return CropParams{
		MinObjectCovered: p.MinObjectCovered[i],
		AspectRatioRange: p.AspectRatioRange[i],
		AreaRange:        p.AreaRange[i],
		OverlapThresh:    p.OverlapThresh[i],
		ClipBoxes:        p.ClipBoxes[i],
		RandomCoef:       p.RandomCoef[i],
	}
}

func (p SSDCropParams) validate() error {
	n := p.Len()
	if n == 0 {
		return configError("at least one crop preset is required")
	}
	for name, l := range map[string]int{
		"aspect_ratio_range": len(p.AspectRatioRange),
		"area_range":         len(p.AreaRange),
		"overlap_thresh":     len(p.OverlapThresh),
		"clip_boxes":         len(p.ClipBoxes),
		"random_coef":        len(p.RandomCoef),
	} {
		if l != n {
			return configError("%s has %d presets, min_object_covered has %d", name, l, n)
		}
	}
	for i := 0; i < n; i++ {
		if err := p.Preset(i).validate(); err != nil {
			return err
		}
	}
	return nil
}

// selectPreset draws the preset index once per (key) and replays it.
func selectPreset(env Env, key string, n int) int {
	return env.cachedIntN(cache.SelectorTuples, key, n)
}

// ssdCrop runs the selected preset and returns it for the follow-up step of
// the fixed aspect ratio variants.
func ssdCrop(env Env, f Fields, p SSDCropParams) (Fields, CropParams, error) {
	preset := p.Preset(selectPreset(env, cache.SSDCropSelectorKey, p.Len()))
	f, err := randomCropImage(env, f, preset)
	return f, preset, err
}

func ssdRandomCrop(env Env, f Fields, p SSDCropParams) (Fields, error) {
	f, _, err := ssdCrop(env, f, p)
	return f, err
}

// SSDCropPadParams adds per-preset padding to SSDCropParams.
type SSDCropPadParams struct {
	SSDCropParams      `mapstructure:",squash"`
	MinPaddedSizeRatio [][2]float64 `mapstructure:"min_padded_size_ratio" json:"min_padded_size_ratio"`
	MaxPaddedSizeRatio [][2]float64 `mapstructure:"max_padded_size_ratio" json:"max_padded_size_ratio"`
	// PadColor is per preset; a nil entry pads with the image mean.
	PadColor [][]float64 `mapstructure:"pad_color" json:"pad_color,omitempty"`
}

// DefaultSSDCropPadParams returns the six SSD crop-and-pad presets.
func DefaultSSDCropPadParams() SSDCropPadParams {
	return SSDCropPadParams{
		SSDCropParams: SSDCropParams{
			MinObjectCovered: []float64{0.1, 0.3, 0.5, 0.7, 0.9, 1.0},
			AspectRatioRange: repeat([2]float64{0.5, 2.0}, 6),
			AreaRange:        repeat([2]float64{0.1, 1.0}, 6),
			OverlapThresh:    []float64{0.1, 0.3, 0.5, 0.7, 0.9, 1.0},
			ClipBoxes:        repeat(true, 6),
			RandomCoef:       repeat(0.15, 6),
		},
		MinPaddedSizeRatio: repeat([2]float64{1, 1}, 6),
		MaxPaddedSizeRatio: repeat([2]float64{2, 2}, 6),
	}
}

func (p SSDCropPadParams) validate() error {
	if err := p.SSDCropParams.validate(); err != nil {
		return err
	}
	n := p.Len()
	if len(p.MinPaddedSizeRatio) != n || len(p.MaxPaddedSizeRatio) != n {
		return configError("padded size ratios need %d presets", n)
	}
	if p.PadColor != nil && len(p.PadColor) != n {
		return configError("pad_color has %d presets, want %d", len(p.PadColor), n)
	}
	return nil
}

// Preset returns the crop and pad parameters of preset i.
func (p SSDCropPadParams) Preset(i int) CropPadParams {
	out := CropPadParams{
		CropParams:         p.SSDCropParams.Preset(i),
		MinPaddedSizeRatio: p.MinPaddedSizeRatio[i],
		MaxPaddedSizeRatio: p.MaxPaddedSizeRatio[i],
	}
	if p.PadColor != nil {
		out.PadColor = p.PadColor[i]
	}
	return out
}

func ssdRandomCropPad(env Env, f Fields, p SSDCropPadParams) (Fields, error) {
	i := selectPreset(env, cache.SSDCropPadSelectorKey, p.Len())
	return randomCropPadImage(env, f, p.Preset(i))
}

// SSDFixedAspectRatioParams configures ssd_random_crop_fixed_aspect_ratio.
// Every preset samples crops at exactly AspectRatio.
type SSDFixedAspectRatioParams struct {
	MinObjectCovered []float64    `mapstructure:"min_object_covered" json:"min_object_covered"`
	AspectRatio      float64      `mapstructure:"aspect_ratio" json:"aspect_ratio"`
	AreaRange        [][2]float64 `mapstructure:"area_range" json:"area_range"`
	OverlapThresh    []float64    `mapstructure:"overlap_thresh" json:"overlap_thresh"`
	ClipBoxes        []bool       `mapstructure:"clip_boxes" json:"clip_boxes"`
	RandomCoef       []float64    `mapstructure:"random_coef" json:"random_coef"`
}

// DefaultSSDFixedAspectRatioParams takes the SSD crop presets with a square
// output.
func DefaultSSDFixedAspectRatioParams() SSDFixedAspectRatioParams {
	d := DefaultSSDCropParams()
	return SSDFixedAspectRatioParams{
		MinObjectCovered: d.MinObjectCovered,
		AspectRatio:      1.0,
		AreaRange:        d.AreaRange,
		OverlapThresh:    d.OverlapThresh,
		ClipBoxes:        d.ClipBoxes,
		RandomCoef:       d.RandomCoef,
	}
}

func (p SSDFixedAspectRatioParams) crop() SSDCropParams {
	return SSDCropParams{
		MinObjectCovered: p.MinObjectCovered,
		AspectRatioRange: repeat([2]float64{p.AspectRatio, p.AspectRatio}, len(p.MinObjectCovered)),
		AreaRange:        p.AreaRange,
		OverlapThresh:    p.OverlapThresh,
		ClipBoxes:        p.ClipBoxes,
		RandomCoef:       p.RandomCoef,
	}
}

func (p SSDFixedAspectRatioParams) validate() error {
	if p.AspectRatio <= 0 {
		return configError("aspect_ratio must be positive, got %g", p.AspectRatio)
	}
	return p.crop().validate()
}

// ssdRandomCropFixedAspectRatio crops with the drawn preset and then trims the
// result to the exact aspect ratio.
func ssdRandomCropFixedAspectRatio(env Env, f Fields, p SSDFixedAspectRatioParams) (Fields, error) {
	f, preset, err := ssdCrop(env, f, p.crop())
	if err != nil {
		return f, err
	}
	return randomCropToAspectRatio(env, f, CropToAspectRatioParams{
		AspectRatio:   p.AspectRatio,
		OverlapThresh: DefaultCropToAspectRatioParams().OverlapThresh,
		ClipBoxes:     preset.ClipBoxes,
	})
}

// SSDPadFixedAspectRatioParams configures
// ssd_random_crop_pad_fixed_aspect_ratio.
type SSDPadFixedAspectRatioParams struct {
	SSDCropParams      `mapstructure:",squash"`
	AspectRatio        float64    `mapstructure:"aspect_ratio" json:"aspect_ratio"`
	MinPaddedSizeRatio [2]float64 `mapstructure:"min_padded_size_ratio" json:"min_padded_size_ratio"`
	MaxPaddedSizeRatio [2]float64 `mapstructure:"max_padded_size_ratio" json:"max_padded_size_ratio"`
}

// DefaultSSDPadFixedAspectRatioParams takes the SSD crop presets and pads the
// result to a square.
func DefaultSSDPadFixedAspectRatioParams() SSDPadFixedAspectRatioParams {
	return SSDPadFixedAspectRatioParams{
		SSDCropParams:      DefaultSSDCropParams(),
		AspectRatio:        1.0,
		MinPaddedSizeRatio: [2]float64{1, 1},
		MaxPaddedSizeRatio: [2]float64{2, 2},
	}
}

func (p SSDPadFixedAspectRatioParams) validate() error {
	if p.AspectRatio <= 0 {
		return configError("aspect_ratio must be positive, got %g", p.AspectRatio)
	}
	return p.SSDCropParams.validate()
}

// ssdRandomCropPadFixedAspectRatio crops with the drawn preset and then pads
// to the aspect ratio. Labels and scores pass through the pad unchanged.
func ssdRandomCropPadFixedAspectRatio(env Env, f Fields, p SSDPadFixedAspectRatioParams) (Fields, error) {
	f, _, err := ssdCrop(env, f, p.SSDCropParams)
	if err != nil {
		return f, err
	}
	return randomPadToAspectRatio(env, f, PadToAspectRatioParams{
		AspectRatio:        p.AspectRatio,
		MinPaddedSizeRatio: p.MinPaddedSizeRatio,
		MaxPaddedSizeRatio: p.MaxPaddedSizeRatio,
	})
}

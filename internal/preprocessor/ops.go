package preprocessor

import (
	"sort"

	"github.com/mitchellh/mapstructure"
)

// Op names a preprocessing operation.
type Op string

// The closed set of operations.
const (
	OpNormalizeImage                   Op = "normalize_image"
	OpRandomHorizontalFlip             Op = "random_horizontal_flip"
	OpRandomVerticalFlip               Op = "random_vertical_flip"
	OpRandomRotation90                 Op = "random_rotation90"
	OpRandomPixelValueScale            Op = "random_pixel_value_scale"
	OpRandomImageScale                 Op = "random_image_scale"
	OpRandomRGBToGray                  Op = "random_rgb_to_gray"
	OpRandomAdjustBrightness           Op = "random_adjust_brightness"
	OpRandomAdjustContrast             Op = "random_adjust_contrast"
	OpRandomAdjustHue                  Op = "random_adjust_hue"
	OpRandomAdjustSaturation           Op = "random_adjust_saturation"
	OpRandomDistortColor               Op = "random_distort_color"
	OpRandomJitterBoxes                Op = "random_jitter_boxes"
	OpRandomCropImage                  Op = "random_crop_image"
	OpRandomPadImage                   Op = "random_pad_image"
	OpRandomCropPadImage               Op = "random_crop_pad_image"
	OpRandomCropToAspectRatio          Op = "random_crop_to_aspect_ratio"
	OpRandomPadToAspectRatio           Op = "random_pad_to_aspect_ratio"
	OpRandomBlackPatches               Op = "random_black_patches"
	OpRetainBoxesAboveThreshold        Op = "retain_boxes_above_threshold"
	OpImageToFloat                     Op = "image_to_float"
	OpRandomResizeMethod               Op = "random_resize_method"
	OpResizeToRange                    Op = "resize_to_range"
	OpResizeToMinDimension             Op = "resize_to_min_dimension"
	OpScaleBoxesToPixelCoordinates     Op = "scale_boxes_to_pixel_coordinates"
	OpResizeImage                      Op = "resize_image"
	OpSubtractChannelMean              Op = "subtract_channel_mean"
	OpOneHotEncoding                   Op = "one_hot_encoding"
	OpRGBToGray                        Op = "rgb_to_gray"
	OpSSDRandomCrop                    Op = "ssd_random_crop"
	OpSSDRandomCropPad                 Op = "ssd_random_crop_pad"
	OpSSDRandomCropFixedAspectRatio    Op = "ssd_random_crop_fixed_aspect_ratio"
	OpSSDRandomCropPadFixedAspectRatio Op = "ssd_random_crop_pad_fixed_aspect_ratio"
	OpConvertClassLogitsToSoftmax      Op = "convert_class_logits_to_softmax"
)

// Step is one entry of a pipeline: an operation and its parameters.
//
// Params may be nil (defaults), the operation's parameter struct, a pointer to
// it, or a map[string]any keyed by the snake_case parameter names.
type Step struct {
	Op     Op  `json:"op" yaml:"op" mapstructure:"op"`
	Params any `json:"params,omitempty" yaml:"params,omitempty" mapstructure:"params"`
}

// operation binds an Op to the roles it reads, in field map order, and to its
// implementation.
type operation struct {
	roles      []Role
	replayable bool
	defaults   func() any
	resolve    func(raw any) (any, error)
	apply      func(env Env, f Fields, params any) (Fields, error)
}

type validator interface {
	validate() error
}

func define[P any](roles []Role, replayable bool, defaults func() P, fn func(Env, Fields, P) (Fields, error)) operation {
	return operation{
		roles:      roles,
		replayable: replayable,
		defaults:   func() any { return defaults() },
		resolve: func(raw any) (any, error) {
			return resolveParams(raw, defaults)
		},
		apply: func(env Env, f Fields, p any) (Fields, error) {
			return fn(env, f, p.(P))
		},
	}
}

func resolveParams[P any](raw any, defaults func() P) (P, error) {
	var p P
	switch v := raw.(type) {
	case nil:
		p = defaults()
	case P:
		p = v
	case *P:
		if v == nil {
			p = defaults()
		} else {
			p = *v
		}
	case map[string]any:
		p = defaults()
		if err := decodeParams(v, &p); err != nil {
			return p, err
		}
	default:
		return p, configError("unsupported parameter type %T", raw)
	}
	if val, ok := any(p).(validator); ok {
		if err := val.validate(); err != nil {
			return p, err
		}
	}
	return p, nil
}

// decodeParams fills out from configuration. Resize methods may be given by
// name.
func decodeParams(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		ZeroFields:       true,
		Result:           out,
	})
	if err != nil {
		return configError("%v", err)
	}
	if err := dec.Decode(in); err != nil {
		return configError("%v", err)
	}
	return nil
}

var (
	imageOnly    = []Role{RoleImage}
	imageMasks   = []Role{RoleImage, RoleMasks}
	geometric    = []Role{RoleImage, RoleBoxes, RoleMasks, RoleKeypoints}
	perInstance  = []Role{RoleBoxes, RoleLabels, RoleLabelWeights, RoleLabelConfidences, RoleMulticlassScores, RoleMasks, RoleKeypoints}
	cropRoles    = append([]Role{RoleImage}, perInstance...)
	cropPadRoles = []Role{RoleImage, RoleBoxes, RoleLabels, RoleLabelWeights, RoleLabelConfidences, RoleMulticlassScores}
)

var registry = map[Op]operation{
	OpNormalizeImage:                   define(imageOnly, false, func() NormalizeParams { return NormalizeParams{} }, normalizeImage),
	OpRandomHorizontalFlip:             define(geometric, true, func() FlipParams { return FlipParams{} }, randomHorizontalFlip),
	OpRandomVerticalFlip:               define(geometric, true, func() FlipParams { return FlipParams{} }, randomVerticalFlip),
	OpRandomRotation90:                 define(geometric, true, func() NoParams { return NoParams{} }, randomRotation90),
	OpRandomPixelValueScale:            define(imageOnly, true, DefaultPixelValueScaleParams, randomPixelValueScale),
	OpRandomImageScale:                 define(imageMasks, true, DefaultImageScaleParams, randomImageScale),
	OpRandomRGBToGray:                  define(imageOnly, true, DefaultRGBToGrayParams, randomRGBToGray),
	OpRandomAdjustBrightness:           define(imageOnly, true, DefaultBrightnessParams, randomAdjustBrightness),
	OpRandomAdjustContrast:             define(imageOnly, true, DefaultContrastParams, randomAdjustContrast),
	OpRandomAdjustHue:                  define(imageOnly, true, DefaultHueParams, randomAdjustHue),
	OpRandomAdjustSaturation:           define(imageOnly, true, DefaultSaturationParams, randomAdjustSaturation),
	OpRandomDistortColor:               define(imageOnly, true, func() DistortColorParams { return DistortColorParams{} }, randomDistortColor),
	OpRandomJitterBoxes:                define([]Role{RoleBoxes}, false, DefaultJitterParams, randomJitterBoxes),
	OpRandomCropImage:                  define(cropRoles, true, DefaultCropParams, randomCropImage),
	OpRandomPadImage:                   define([]Role{RoleImage, RoleBoxes}, true, func() PadParams { return PadParams{} }, randomPadImage),
	OpRandomCropPadImage:               define(cropPadRoles, true, DefaultCropPadParams, randomCropPadImage),
	OpRandomCropToAspectRatio:          define(cropRoles, true, DefaultCropToAspectRatioParams, randomCropToAspectRatio),
	OpRandomPadToAspectRatio:           define(geometric, true, DefaultPadToAspectRatioParams, randomPadToAspectRatio),
	OpRandomBlackPatches:               define(imageOnly, true, DefaultBlackPatchesParams, randomBlackPatches),
	OpRetainBoxesAboveThreshold:        define(perInstance, false, func() RetainParams { return RetainParams{} }, retainBoxesAboveThreshold),
	OpImageToFloat:                     define(imageOnly, false, func() NoParams { return NoParams{} }, imageToFloat),
	OpRandomResizeMethod:               define(imageOnly, true, func() RandomResizeMethodParams { return RandomResizeMethodParams{} }, randomResizeMethod),
	OpResizeToRange:                    define(imageMasks, false, DefaultResizeToRangeParams, resizeToRange),
	OpResizeToMinDimension:             define(imageMasks, false, DefaultResizeToMinDimensionParams, resizeToMinDimension),
	OpScaleBoxesToPixelCoordinates:     define([]Role{RoleImage, RoleBoxes, RoleKeypoints}, false, func() NoParams { return NoParams{} }, scaleBoxesToPixelCoordinates),
	OpResizeImage:                      define(imageMasks, false, DefaultResizeImageParams, resizeImage),
	OpSubtractChannelMean:              define(imageOnly, false, func() SubtractChannelMeanParams { return SubtractChannelMeanParams{} }, subtractChannelMean),
	OpOneHotEncoding:                   define([]Role{RoleImageClasses}, false, func() OneHotParams { return OneHotParams{} }, oneHotEncoding),
	OpRGBToGray:                        define(imageOnly, false, func() NoParams { return NoParams{} }, rgbToGray),
	OpSSDRandomCrop:                    define(cropRoles, true, DefaultSSDCropParams, ssdRandomCrop),
	OpSSDRandomCropPad:                 define(cropPadRoles, true, DefaultSSDCropPadParams, ssdRandomCropPad),
	OpSSDRandomCropFixedAspectRatio:    define(cropRoles, true, DefaultSSDFixedAspectRatioParams, ssdRandomCropFixedAspectRatio),
	OpSSDRandomCropPadFixedAspectRatio: define(cropRoles, true, DefaultSSDPadFixedAspectRatioParams, ssdRandomCropPadFixedAspectRatio),
	OpConvertClassLogitsToSoftmax:      define([]Role{RoleMulticlassScores}, false, DefaultSoftmaxParams, convertClassLogitsToSoftmax),
}

// NoParams is the parameter type of operations that take none.
type NoParams struct{}

// OpInfo describes a registered operation.
type OpInfo struct {
	Name Op
	// Roles are the fields the operation reads and writes, in field map order.
	Roles []Role
	// Replayable operations record their draws in the cache.
	Replayable bool
	// Defaults is the parameter struct used when a step gives no params.
	Defaults any
}

// Operations lists every operation sorted by name.
func Operations() []OpInfo {
	out := make([]OpInfo, 0, len(registry))
	for name, op := range registry {
		out = append(out, OpInfo{
			Name:       name,
			Roles:      append([]Role(nil), op.roles...),
			Replayable: op.replayable,
			Defaults:   op.defaults(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Known reports whether op is a registered operation.
func Known(op Op) bool {
	_, ok := registry[op]
	return ok
}

// ResolveParams decodes and validates the parameters of a step without
// running it.
func ResolveParams(s Step) (any, error) {
	op, ok := registry[s.Op]
	if !ok {
		return nil, configError("unknown operation %q", s.Op)
	}
	p, err := op.resolve(s.Params)
	if err != nil {
		return nil, wrapOp(err, s.Op)
	}
	return p, nil
}

package cache

// OpID identifies the operation that owns a cached draw.
type OpID int

const (
	HorizontalFlip OpID = iota
	VerticalFlip
	Rotation90
	PixelValueScale
	ImageScale
	RGBToGray
	AdjustBrightness
	AdjustContrast
	AdjustHue
	AdjustSaturation
	StrictCropImage
	CropImage
	PadImage
	CropToAspectRatio
	PadToAspectRatio
	BlackPatches
	AddBlackPatch
	Selector
	SelectorTuples

	numOpIDs
)

var opNames = [...]string{
	HorizontalFlip:    "horizontal_flip",
	VerticalFlip:      "vertical_flip",
	Rotation90:        "rotation90",
	PixelValueScale:   "pixel_value_scale",
	ImageScale:        "image_scale",
	RGBToGray:         "rgb_to_gray",
	AdjustBrightness:  "adjust_brightness",
	AdjustContrast:    "adjust_contrast",
	AdjustHue:         "adjust_hue",
	AdjustSaturation:  "adjust_saturation",
	StrictCropImage:   "strict_crop_image",
	CropImage:         "crop_image",
	PadImage:          "pad_image",
	CropToAspectRatio: "crop_to_aspect_ratio",
	PadToAspectRatio:  "pad_to_aspect_ratio",
	BlackPatches:      "black_patches",
	AddBlackPatch:     "add_black_patch",
	Selector:          "selector",
	SelectorTuples:    "selector_tuples",
}

// Valid reports whether id is one of the declared constants.
func (id OpID) Valid() bool { return id >= 0 && id < numOpIDs }

func (id OpID) String() string {
	if !id.Valid() {
		return "unknown"
	}
	return opNames[id]
}

// Sub-keys used with Selector and SelectorTuples.
const (
	ResizeMethodKey       = "resize_method"
	SSDCropSelectorKey    = "ssd_crop_selector_id"
	SSDCropPadSelectorKey = "ssd_crop_pad_selector_id"
)

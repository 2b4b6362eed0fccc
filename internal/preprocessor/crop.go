package preprocessor

import (
	"math"
	"strconv"

	"github.com/ironsheep/image-augment/internal/boxes"
	"github.com/ironsheep/image-augment/internal/cache"
	"github.com/ironsheep/image-augment/internal/imaging"
	"github.com/ironsheep/image-augment/internal/keypoints"
	"github.com/ironsheep/image-augment/internal/tensor"
)

// maxCropAttempts bounds the rejection sampling of crop windows.
const maxCropAttempts = 100

// tinyCoef is the random_coef below which cropping skips its draw.
const tinyCoef = 1e-6

// CropParams configures random_crop_image.
type CropParams struct {
	// MinObjectCovered is the fraction of at least one ground truth box the
	// crop must cover.
	MinObjectCovered float64 `mapstructure:"min_object_covered" json:"min_object_covered"`
	// AspectRatioRange bounds width/height of the crop.
	AspectRatioRange [2]float64 `mapstructure:"aspect_ratio_range" json:"aspect_ratio_range"`
	// AreaRange bounds the crop area as a fraction of the image.
	AreaRange [2]float64 `mapstructure:"area_range" json:"area_range"`
	// OverlapThresh is the minimum fraction of a box that must lie inside the
	// crop for the box to be kept.
	OverlapThresh float64 `mapstructure:"overlap_thresh" json:"overlap_thresh"`
	ClipBoxes     bool    `mapstructure:"clip_boxes" json:"clip_boxes"`
	// RandomCoef is the probability of returning the input uncropped.
	RandomCoef float64 `mapstructure:"random_coef" json:"random_coef"`
}

// DefaultCropParams requires full coverage of one box and clips boxes to
// the window.
func DefaultCropParams() CropParams {
	return CropParams{
		MinObjectCovered: 1.0,
		AspectRatioRange: [2]float64{0.75, 1.33},
		AreaRange:        [2]float64{0.1, 1.0},
		OverlapThresh:    0.3,
		ClipBoxes:        true,
	}
}

func (p CropParams) validate() error {
	if p.AspectRatioRange[0] <= 0 || p.AspectRatioRange[0] > p.AspectRatioRange[1] {
		return configError("aspect_ratio_range %v must be positive and ordered", p.AspectRatioRange)
	}
	if p.AreaRange[0] <= 0 || p.AreaRange[0] > p.AreaRange[1] || p.AreaRange[1] > 1 {
		return configError("area_range %v must be ordered within (0, 1]", p.AreaRange)
	}
	return nil
}

// cropWindow is a sampled crop in pixels together with its normalized box.
// Fallback marks a search that ran out of attempts.
type cropWindow struct {
	Top, Left     int
	Height, Width int
	Box           boxes.Window
	Fallback      bool
}

type rect struct{ y0, x0, y1, x1 float64 }

func (r rect) area() float64 { return math.Max(r.y1-r.y0, 0) * math.Max(r.x1-r.x0, 0) }

func (r rect) intersect(o rect) rect {
	return rect{math.Max(r.y0, o.y0), math.Max(r.x0, o.x0), math.Min(r.y1, o.y1), math.Min(r.x1, o.x1)}
}

// sampleCropWindow searches for a crop of the given aspect ratio and area
// range that covers at least minCovered of one of the boxes. Without boxes the
// whole image is the box to cover.
func sampleCropWindow(env Env, h, w int, gt *tensor.Dense, p CropParams) cropWindow {
	fh, fw := float64(h), float64(w)
	var targets []rect
	if gt != nil {
		for i := 0; i < gt.Dim(0); i++ {
			r := gt.Row(i)
			targets = append(targets, rect{r[0] * fh, r[1] * fw, r[2] * fh, r[3] * fw})
		}
	}
	if len(targets) == 0 {
		targets = []rect{{0, 0, fh, fw}}
	}

	minArea, maxArea := p.AreaRange[0]*fh*fw, p.AreaRange[1]*fh*fw
	for attempt := 0; attempt < maxCropAttempts; attempt++ {
		ar := env.uniform(p.AspectRatioRange[0], p.AspectRatioRange[1])
		ch, cw, ok := cropSize(env, h, w, ar, minArea, maxArea)
		if !ok {
			continue
		}
		top := env.randInt(0, h-ch)
		left := env.randInt(0, w-cw)
		crop := rect{float64(top), float64(left), float64(top + ch), float64(left + cw)}
		if !covers(crop, targets, p.MinObjectCovered) {
			continue
		}
		return cropWindow{
			Top: top, Left: left, Height: ch, Width: cw,
			Box: boxes.Window{crop.y0 / fh, crop.x0 / fw, crop.y1 / fh, crop.x1 / fw},
		}
	}
	return cropWindow{Height: h, Width: w, Box: boxes.Unit, Fallback: true}
}

// cropSize draws an integer crop height for aspect ratio ar and derives the
// width, rejecting sizes outside the area range or the image.
func cropSize(env Env, h, w int, ar, minArea, maxArea float64) (int, int, bool) {
	minH := int(math.RoundToEven(math.Sqrt(minArea / ar)))
	maxH := int(math.RoundToEven(math.Sqrt(maxArea / ar)))
	if int(math.RoundToEven(float64(maxH)*ar)) > w {
		maxH = int((float64(w) + 0.5 - 1e-7) / ar)
		if int(math.RoundToEven(float64(maxH)*ar)) > w {
			maxH--
		}
	}
	maxH = min(maxH, h)
	minH = min(minH, maxH)

	ch := env.randInt(minH, maxH+1)
	cw := int(math.RoundToEven(float64(ch) * ar))
	area := float64(ch * cw)
	if area < minArea {
		ch++
		cw = int(math.RoundToEven(float64(ch) * ar))
		area = float64(ch * cw)
	}
	if area > maxArea {
		ch--
		cw = int(math.RoundToEven(float64(ch) * ar))
		area = float64(ch * cw)
	}
	if area < minArea || area > maxArea || cw > w || ch > h || cw <= 0 || ch <= 0 {
		return 0, 0, false
	}
	return ch, cw, true
}

// covers reports whether crop holds at least minCovered of some target.
// Targets smaller than a pixel are ignored.
func covers(crop rect, targets []rect, minCovered float64) bool {
	if crop.area() < 1 {
		return false
	}
	for _, t := range targets {
		a := t.area()
		if a < 1 {
			continue
		}
		if crop.intersect(t).area()/a >= minCovered {
			return true
		}
	}
	return false
}

func minCoveredKey(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// strictRandomCrop always crops. When sampling runs out of attempts the
// fields come back untouched.
func strictRandomCrop(env Env, f Fields, p CropParams) (Fields, error) {
	h, w := f.Image.Dim(0), f.Image.Dim(1)
	var gt *tensor.Dense
	if f.Boxes != nil {
		gt = f.Boxes.Clipped(0, 1)
	}
	win := cache.GetOrCreate(env.Cache, cache.StrictCropImage, minCoveredKey(p.MinObjectCovered), func() cropWindow {
		return sampleCropWindow(env, h, w, gt, p)
	})
	if win.Fallback {
		return f, nil
	}

	img, err := imaging.Crop(f.Image, win.Top, win.Left, win.Height, win.Width)
	if err != nil {
		return f, err
	}
	if f.Boxes != nil {
		keep := boxes.InsideWindow(f.Boxes, win.Box, p.OverlapThresh)
		f = f.gather(keep)
		f.Boxes = boxes.ChangeCoordinateFrame(f.Boxes, win.Box)
		if p.ClipBoxes {
			f.Boxes = boxes.ClipToWindow(f.Boxes, boxes.Unit)
		}
	}
	f.Image = img
	return cropInstances(f, win, p.ClipBoxes)
}

// cropInstances moves the already gathered masks and keypoints into the crop.
func cropInstances(f Fields, win cropWindow, clip bool) (Fields, error) {
	var err error
	if f.Masks != nil {
		if f.Masks, err = imaging.CropMasks(f.Masks, win.Top, win.Left, win.Height, win.Width); err != nil {
			return f, err
		}
	}
	if f.Keypoints != nil {
		f.Keypoints = keypoints.ChangeCoordinateFrame(f.Keypoints, win.Box)
		if clip {
			f.Keypoints = keypoints.PruneOutsideWindow(f.Keypoints, boxes.Unit)
		}
	}
	return f, nil
}

// randomCropImage crops unless a draw at or below RandomCoef keeps the input.
func randomCropImage(env Env, f Fields, p CropParams) (Fields, error) {
	if p.RandomCoef < tinyCoef {
		return strictRandomCrop(env, f, p)
	}
	if env.cachedUniform(cache.CropImage, "", 0, 1) <= p.RandomCoef {
		return f, nil
	}
	return strictRandomCrop(env, f, p)
}

// CropToAspectRatioParams configures random_crop_to_aspect_ratio.
type CropToAspectRatioParams struct {
	AspectRatio   float64 `mapstructure:"aspect_ratio" json:"aspect_ratio"`
	OverlapThresh float64 `mapstructure:"overlap_thresh" json:"overlap_thresh"`
	ClipBoxes     bool    `mapstructure:"clip_boxes" json:"clip_boxes"`
}

// DefaultCropToAspectRatioParams crops to a square.
func DefaultCropToAspectRatioParams() CropToAspectRatioParams {
	return CropToAspectRatioParams{AspectRatio: 1.0, OverlapThresh: 0.3, ClipBoxes: true}
}

func (p CropToAspectRatioParams) validate() error {
	if p.AspectRatio <= 0 {
		return configError("aspect_ratio must be positive, got %g", p.AspectRatio)
	}
	return nil
}

// randomCropToAspectRatio cuts the largest window of the requested aspect
// ratio at a random offset. Pixels are not rescaled.
func randomCropToAspectRatio(env Env, f Fields, p CropToAspectRatioParams) (Fields, error) {
	h, w := f.Image.Dim(0), f.Image.Dim(1)
	fh, fw := float64(h), float64(w)
	orig := fw / fh

	th, tw := h, w
	if orig < p.AspectRatio {
		th = int(math.RoundToEven(fw / p.AspectRatio))
	}
	if orig > p.AspectRatio {
		tw = int(math.RoundToEven(fh * p.AspectRatio))
	}
	th, tw = max(min(th, h), 1), max(min(tw, w), 1)

	offset := cache.GetOrCreate(env.Cache, cache.CropToAspectRatio, "", func() [2]int {
		return [2]int{env.randInt(0, h-th+1), env.randInt(0, w-tw+1)}
	})
	win := cropWindow{
		Top: offset[0], Left: offset[1], Height: th, Width: tw,
		Box: boxes.Window{
			float64(offset[0]) / fh, float64(offset[1]) / fw,
			float64(offset[0]+th) / fh, float64(offset[1]+tw) / fw,
		},
	}

	img, err := imaging.Crop(f.Image, win.Top, win.Left, win.Height, win.Width)
	if err != nil {
		return f, err
	}
	if f.Boxes != nil {
		f = f.gather(boxes.PruneNonOverlapping(f.Boxes, win.Box, p.OverlapThresh))
		f.Boxes = boxes.ChangeCoordinateFrame(f.Boxes, win.Box)
		if p.ClipBoxes {
			f.Boxes = boxes.ClipToWindow(f.Boxes, boxes.Unit)
		}
	}
	f.Image = img
	return cropInstances(f, win, p.ClipBoxes)
}

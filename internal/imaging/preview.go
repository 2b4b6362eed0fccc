package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/ironsheep/image-augment/internal/tensor"
)

// PreviewOptions controls how annotations are drawn by Preview.
type PreviewOptions struct {
	BoxColor      string // hex, "#RRGGBB" or "#RRGGBBAA"
	KeypointColor string
	ShowLabels    bool
}

// DefaultPreviewOptions draws red boxes, cyan keypoints and class ids.
func DefaultPreviewOptions() PreviewOptions {
	return PreviewOptions{BoxColor: "#FF0000", KeypointColor: "#00FFFF", ShowLabels: true}
}

// Preview renders img with its normalized boxes outlined and keypoints marked.
// Any of boxes, labels and keypoints may be nil.
func Preview(img, boxes, labels, keypoints *tensor.Dense, opts PreviewOptions) (*image.RGBA, error) {
	src, err := ToImage(img)
	if err != nil {
		return nil, err
	}
	bounds := src.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, src, bounds.Min, draw.Src)

	width, height := float64(bounds.Dx()), float64(bounds.Dy())

	boxColor, err := parseHexColor(opts.BoxColor)
	if err != nil {
		boxColor = color.RGBA{255, 0, 0, 255}
	}
	if boxes != nil {
		if labels != nil && labels.Size() != boxes.Dim(0) {
			return nil, errors.Errorf("imaging: %d labels for %d boxes", labels.Size(), boxes.Dim(0))
		}
		for i := 0; i < boxes.Dim(0); i++ {
			b := boxes.Row(i)
			y1, x1 := int(b[0]*height), int(b[1]*width)
			y2, x2 := int(b[2]*height)-1, int(b[3]*width)-1
			drawRect(result, x1, y1, x2, y2, boxColor)
			if opts.ShowLabels && labels != nil {
				drawLabel(result, x1+2, y1+2, strconv.Itoa(int(labels.Data()[i])),
					color.RGBA{255, 255, 255, 255}, color.RGBA{0, 0, 0, 180})
			}
		}
	}

	kpColor, err := parseHexColor(opts.KeypointColor)
	if err != nil {
		kpColor = color.RGBA{0, 255, 255, 255}
	}
	if keypoints != nil {
		pts := keypoints.Data()
		for i := 0; i+1 < len(pts); i += 2 {
			if math.IsNaN(pts[i]) || math.IsNaN(pts[i+1]) {
				continue
			}
			drawCross(result, int(pts[i+1]*width), int(pts[i]*height), kpColor)
		}
	}

	return result, nil
}

func setClipped(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.Set(x, y, c)
	}
}

func drawRect(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	for x := x1; x <= x2; x++ {
		setClipped(img, x, y1, c)
		setClipped(img, x, y2, c)
	}
	for y := y1; y <= y2; y++ {
		setClipped(img, x1, y, c)
		setClipped(img, x2, y, c)
	}
}

func drawCross(img *image.RGBA, x, y int, c color.RGBA) {
	for d := -2; d <= 2; d++ {
		setClipped(img, x+d, y, c)
		setClipped(img, x, y+d, c)
	}
}

// parseHexColor parses a hex color string like "#FF0000" or "#FF000080"
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, errors.New("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	val, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, errors.Wrapf(err, "invalid hex color %q", hex)
	}

	switch len(hex) {
	case 6:
		return color.RGBA{R: uint8(val >> 16), G: uint8(val >> 8), B: uint8(val), A: 255}, nil
	case 8:
		return color.RGBA{R: uint8(val >> 24), G: uint8(val >> 16), B: uint8(val >> 8), A: uint8(val)}, nil
	default:
		return color.RGBA{}, errors.New("invalid hex color length")
	}
}

// 3x5 pixel digits for class ids
var glyphs = map[rune][]string{
	'0': {"111", "101", "101", "101", "111"},
	'1': {"010", "110", "010", "010", "111"},
	'2': {"111", "001", "111", "100", "111"},
	'3': {"111", "001", "111", "001", "111"},
	'4': {"101", "101", "111", "001", "001"},
	'5': {"111", "100", "111", "001", "111"},
	'6': {"111", "100", "111", "101", "111"},
	'7': {"111", "001", "001", "001", "001"},
	'8': {"111", "101", "111", "101", "111"},
	'9': {"111", "101", "111", "001", "111"},
	'-': {"000", "000", "111", "000", "000"},
}

// drawLabel draws text on a filled background with its top-left at (x, y).
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	const charWidth, labelHeight = 4, 7
	labelWidth := len(text) * charWidth

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			setClipped(img, x+dx, y+dy, bg)
		}
	}

	cx := x
	for _, ch := range text {
		for row, line := range glyphs[ch] {
			for col, pixel := range line {
				if pixel == '1' {
					setClipped(img, cx+col, y+row, fg)
				}
			}
		}
		cx += charWidth
	}
}

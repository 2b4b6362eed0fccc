package annotation

import (
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/ironsheep/image-augment/internal/preprocessor"
	"github.com/ironsheep/image-augment/internal/tensor"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Annotations is the on-disk form of a frame without its pixels.
type Annotations struct {
	// Image is the path of the image file, relative to the annotation file.
	Image string `json:"image,omitempty"`
	// Height and Width are written with the augmented image and ignored on
	// read.
	Height int `json:"height,omitempty"`
	Width  int `json:"width,omitempty"`

	Boxes            [][4]Number   `json:"boxes"`
	Classes          []int         `json:"classes"`
	Weights          []Number      `json:"weights,omitempty"`
	Confidences      []Number      `json:"confidences,omitempty"`
	MulticlassScores [][]Number    `json:"multiclass_scores,omitempty"`
	Keypoints        [][][2]Number `json:"keypoints,omitempty"`
	Masks            [][][]int     `json:"masks,omitempty"`
	ImageClasses     []Number      `json:"image_classes,omitempty"`
}

// Read decodes one annotation document. Unknown fields are rejected.
func Read(r io.Reader) (*Annotations, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var a Annotations
	if err := dec.Decode(&a); err != nil {
		return nil, errors.Wrap(err, "failed to decode annotations")
	}
	return &a, nil
}

// Load reads the annotation file at path.
func Load(path string) (*Annotations, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open annotations %s", path)
	}
	defer f.Close()
	a, err := Read(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return a, nil
}

// Write encodes a as indented JSON.
func Write(w io.Writer, a *Annotations) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(a), "failed to encode annotations")
}

// Save writes a to path, replacing any existing file.
func Save(path string, a *Annotations) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if err := Write(f, a); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "failed to close %s", path)
}

// ToFrame pairs the annotations with an [H, W, C] image. Boxes, classes and
// weights are always present, possibly empty; missing weights default to one
// per box. Every other field is present only when set.
func (a *Annotations) ToFrame(img *tensor.Dense) (preprocessor.Frame, error) {
	if img == nil {
		return nil, errors.New("annotation: image is required")
	}
	n := len(a.Boxes)
	rows := make([][]float64, n)
	for i, b := range a.Boxes {
		rows[i] = toFloats(b[:])
	}
	boxes, err := tensor.FromRows(rows, 4)
	if err != nil {
		return nil, err
	}

	frame := preprocessor.Frame{
		preprocessor.KeyImage:   img,
		preprocessor.KeyBoxes:   boxes,
		preprocessor.KeyClasses: tensor.FromInts(a.Classes),
	}
	if a.Weights != nil {
		frame[preprocessor.KeyWeights] = tensor.MustFromSlice(toFloats(a.Weights), len(a.Weights))
	} else {
		frame[preprocessor.KeyWeights] = tensor.Full(1, n)
	}
	if a.Confidences != nil {
		frame[preprocessor.KeyConfidences] = tensor.MustFromSlice(toFloats(a.Confidences), len(a.Confidences))
	}
	if a.MulticlassScores != nil {
		width := 0
		if len(a.MulticlassScores) > 0 {
			width = len(a.MulticlassScores[0])
		}
		rows := make([][]float64, len(a.MulticlassScores))
		for i, r := range a.MulticlassScores {
			rows[i] = toFloats(r)
		}
		scores, err := tensor.FromRows(rows, width)
		if err != nil {
			return nil, errors.Wrap(err, "multiclass_scores")
		}
		frame[preprocessor.KeyMulticlassScores] = scores
	}
	if a.Keypoints != nil {
		kp, err := keypointTensor(a.Keypoints)
		if err != nil {
			return nil, err
		}
		frame[preprocessor.KeyKeypoints] = kp
	}
	if a.Masks != nil {
		masks, err := maskTensor(a.Masks)
		if err != nil {
			return nil, err
		}
		frame[preprocessor.KeyInstanceMasks] = masks
	}
	if a.ImageClasses != nil {
		frame[preprocessor.KeyImageClasses] = tensor.MustFromSlice(toFloats(a.ImageClasses), len(a.ImageClasses))
	}
	return frame, nil
}

func keypointTensor(kps [][][2]Number) (*tensor.Dense, error) {
	k := 0
	if len(kps) > 0 {
		k = len(kps[0])
	}
	data := make([]float64, 0, len(kps)*k*2)
	for i, inst := range kps {
		if len(inst) != k {
			return nil, errors.Errorf("annotation: instance %d has %d keypoints, want %d", i, len(inst), k)
		}
		for _, p := range inst {
			data = append(data, float64(p[0]), float64(p[1]))
		}
	}
	return tensor.FromSlice(data, len(kps), k, 2)
}

func maskTensor(masks [][][]int) (*tensor.Dense, error) {
	h, w := 0, 0
	if len(masks) > 0 && len(masks[0]) > 0 {
		h, w = len(masks[0]), len(masks[0][0])
	}
	data := make([]float64, 0, len(masks)*h*w)
	for i, m := range masks {
		if len(m) != h {
			return nil, errors.Errorf("annotation: mask %d has %d rows, want %d", i, len(m), h)
		}
		for y, row := range m {
			if len(row) != w {
				return nil, errors.Errorf("annotation: mask %d row %d has %d values, want %d", i, y, len(row), w)
			}
			for _, v := range row {
				data = append(data, float64(v))
			}
		}
	}
	return tensor.FromSlice(data, len(masks), h, w)
}

// FromFrame extracts the annotations of a frame. The image entry is only used
// for its size.
func FromFrame(f preprocessor.Frame, image string) (*Annotations, error) {
	a := &Annotations{Image: image, Boxes: [][4]Number{}, Classes: []int{}}
	if img := f[preprocessor.KeyImage]; img != nil {
		// batched frames carry a leading 1
		d := img.Shape()
		if len(d) >= 3 {
			a.Height, a.Width = d[len(d)-3], d[len(d)-2]
		}
	}
	if b := f[preprocessor.KeyBoxes]; b != nil {
		if b.Rank() != 2 || b.Dim(1) != 4 {
			return nil, errors.Errorf("annotation: boxes have shape %v", b.Shape())
		}
		for i := 0; i < b.Dim(0); i++ {
			r := b.Row(i)
			a.Boxes = append(a.Boxes, [4]Number{Number(r[0]), Number(r[1]), Number(r[2]), Number(r[3])})
		}
	}
	if c := f[preprocessor.KeyClasses]; c != nil {
		a.Classes = c.Ints()
	}
	if w := f[preprocessor.KeyWeights]; w != nil {
		a.Weights = toNumbers(w.Data())
	}
	if c := f[preprocessor.KeyConfidences]; c != nil {
		a.Confidences = toNumbers(c.Data())
	}
	if s := f[preprocessor.KeyMulticlassScores]; s != nil {
		if s.Rank() != 2 {
			return nil, errors.Errorf("annotation: multiclass scores have shape %v", s.Shape())
		}
		a.MulticlassScores = make([][]Number, s.Dim(0))
		for i := range a.MulticlassScores {
			a.MulticlassScores[i] = toNumbers(s.Row(i))
		}
	}
	if kp := f[preprocessor.KeyKeypoints]; kp != nil {
		if kp.Rank() != 3 || kp.Dim(2) != 2 {
			return nil, errors.Errorf("annotation: keypoints have shape %v", kp.Shape())
		}
		a.Keypoints = make([][][2]Number, kp.Dim(0))
		for i := range a.Keypoints {
			row := kp.Row(i)
			a.Keypoints[i] = make([][2]Number, kp.Dim(1))
			for j := range a.Keypoints[i] {
				a.Keypoints[i][j] = [2]Number{Number(row[2*j]), Number(row[2*j+1])}
			}
		}
	}
	if m := f[preprocessor.KeyInstanceMasks]; m != nil {
		if m.Rank() != 3 {
			return nil, errors.Errorf("annotation: masks have shape %v", m.Shape())
		}
		h, w := m.Dim(1), m.Dim(2)
		a.Masks = make([][][]int, m.Dim(0))
		for i := range a.Masks {
			data := m.Row(i)
			a.Masks[i] = make([][]int, h)
			for y := range a.Masks[i] {
				row := make([]int, w)
				for x := range row {
					row[x] = int(data[y*w+x])
				}
				a.Masks[i][y] = row
			}
		}
	}
	if ic := f[preprocessor.KeyImageClasses]; ic != nil {
		a.ImageClasses = toNumbers(ic.Data())
	}
	return a, nil
}

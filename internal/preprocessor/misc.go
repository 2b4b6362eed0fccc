package preprocessor

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ironsheep/image-augment/internal/tensor"
)

// RetainParams configures retain_boxes_above_threshold.
type RetainParams struct {
	Threshold float64 `mapstructure:"threshold" json:"threshold"`
}

// retainBoxesAboveThreshold keeps instances whose weight exceeds Threshold.
// A NaN weight always survives.
func retainBoxesAboveThreshold(_ Env, f Fields, p RetainParams) (Fields, error) {
	if f.LabelWeights == nil {
		return f, configError("label weights are required")
	}
	weights := f.LabelWeights.Data()
	keep := make([]int, 0, len(weights))
	for i, w := range weights {
		if w > p.Threshold || math.IsNaN(w) {
			keep = append(keep, i)
		}
	}
	return f.gather(keep), nil
}

// JitterParams bounds the jitter relative to each box's size.
type JitterParams struct {
	Ratio float64 `mapstructure:"ratio" json:"ratio"`
}

// DefaultJitterParams moves box corners by up to 5% of the box size.
func DefaultJitterParams() JitterParams { return JitterParams{Ratio: 0.05} }

// randomJitterBoxes moves every box corner by up to Ratio of the box size.
// The draws never go through the cache.
func randomJitterBoxes(env Env, f Fields, p JitterParams) (Fields, error) {
	out := tensor.New(f.Boxes.Shape()...)
	for i := 0; i < f.Boxes.Dim(0); i++ {
		src, dst := f.Boxes.Row(i), out.Row(i)
		bh, bw := src[2]-src[0], src[3]-src[1]
		size := [4]float64{bh, bw, bh, bw}
		for k := range dst {
			dst[k] = tensor.Clamp(src[k]+size[k]*env.uniform(-p.Ratio, p.Ratio), 0, 1)
		}
	}
	f.Boxes = out
	return f, nil
}

// OneHotParams configures one_hot_encoding.
type OneHotParams struct {
	NumClasses int `mapstructure:"num_classes" json:"num_classes"`
}

func (p OneHotParams) validate() error {
	if p.NumClasses <= 0 {
		return configError("num_classes must be specified")
	}
	return nil
}

// oneHotEncoding turns a list of image-level class ids into a multi-hot
// vector. Ids outside [0, NumClasses) are ignored.
func oneHotEncoding(_ Env, f Fields, p OneHotParams) (Fields, error) {
	out := tensor.New(p.NumClasses)
	data := out.Data()
	for _, id := range f.ImageClasses.Ints() {
		if id >= 0 && id < p.NumClasses {
			data[id] = 1
		}
	}
	f.ImageClasses = out
	return f, nil
}

// SoftmaxParams configures convert_class_logits_to_softmax.
type SoftmaxParams struct {
	Temperature float64 `mapstructure:"temperature" json:"temperature"`
}

// DefaultSoftmaxParams uses temperature 1.
func DefaultSoftmaxParams() SoftmaxParams { return SoftmaxParams{Temperature: 1.0} }

func (p SoftmaxParams) validate() error {
	if p.Temperature == 0 {
		return configError("temperature must not be zero")
	}
	return nil
}

func convertClassLogitsToSoftmax(_ Env, f Fields, p SoftmaxParams) (Fields, error) {
	out := f.MulticlassScores.Scaled(1 / p.Temperature)
	if out.Rank() == 0 || out.Size() == 0 {
		f.MulticlassScores = out
		return f, nil
	}
	for i := 0; i < out.Dim(0); i++ {
		row := out.Row(i)
		if len(row) == 0 {
			continue
		}
		lse := floats.LogSumExp(row)
		for k, v := range row {
			row[k] = math.Exp(v - lse)
		}
	}
	f.MulticlassScores = out
	return f, nil
}

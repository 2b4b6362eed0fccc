package preprocessor

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-augment/internal/cache"
	"github.com/ironsheep/image-augment/internal/tensor"
)

func TestHorizontalFlipOfSymmetricFrame(t *testing.T) {
	frame := Frame{
		KeyImage:   tensor.Full(100, 4, 4, 3),
		KeyBoxes:   rows(t, 4, []float64{0.25, 0.25, 0.75, 0.75}),
		KeyClasses: tensor.FromInts([]int{1}),
		KeyWeights: tensor.MustFromSlice([]float64{1}, 1),
	}
	c := forced(t, map[cache.OpID]any{cache.HorizontalFlip: 0.9})

	out, err := Preprocess(frame, []Step{{Op: OpRandomHorizontalFlip}}, WithCache(c))
	require.NoError(t, err)

	assert.Equal(t, []float64{0.25, 0.25, 0.75, 0.75}, out[KeyBoxes].Data())
	assert.True(t, out[KeyImage].Equal(frame[KeyImage]))
	assert.True(t, out[KeyClasses].Equal(frame[KeyClasses]))
}

func TestFlipRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		op   Op
		id   cache.OpID
	}{
		{"horizontal", OpRandomHorizontalFlip, cache.HorizontalFlip},
		{"vertical", OpRandomVerticalFlip, cache.VerticalFlip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := sampleFrame(t)
			c := forced(t, map[cache.OpID]any{tt.id: 0.75})
			step := Step{Op: tt.op, Params: FlipParams{KeypointFlipPermutation: []int{1, 0}}}

			once, err := Preprocess(frame, []Step{step}, WithCache(c), WithFieldMap(allFields()))
			require.NoError(t, err)
			assert.False(t, once[KeyImage].Equal(frame[KeyImage]))

			twice, err := Preprocess(frame, []Step{step, step}, WithCache(c), WithFieldMap(allFields()))
			require.NoError(t, err)
			for _, k := range []Key{KeyImage, KeyInstanceMasks} {
				assert.True(t, twice[k].Equal(frame[k]), k)
			}
			assert.True(t, twice[KeyBoxes].EqualApprox(frame[KeyBoxes], 1e-12))
			assert.True(t, twice[KeyKeypoints].EqualApprox(frame[KeyKeypoints], 1e-12))
		})
	}
}

func TestNoFlipBelowThreshold(t *testing.T) {
	frame := sampleFrame(t)
	c := forced(t, map[cache.OpID]any{cache.HorizontalFlip: 0.5})

	out, err := Preprocess(frame, []Step{{Op: OpRandomHorizontalFlip}}, WithCache(c))
	require.NoError(t, err)
	assert.True(t, out[KeyImage].Equal(frame[KeyImage]))
	assert.True(t, out[KeyBoxes].Equal(frame[KeyBoxes]))
}

func TestNaNKeypointsSurviveGeometry(t *testing.T) {
	tests := []struct {
		op Op
		id cache.OpID
	}{
		{OpRandomHorizontalFlip, cache.HorizontalFlip},
		{OpRandomVerticalFlip, cache.VerticalFlip},
		{OpRandomRotation90, cache.Rotation90},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			c := forced(t, map[cache.OpID]any{tt.id: 1.0})
			var params any
			if tt.op != OpRandomRotation90 {
				params = FlipParams{KeypointFlipPermutation: []int{0, 1}}
			}
			out, err := Preprocess(sampleFrame(t), []Step{{Op: tt.op, Params: params}},
				WithCache(c), WithFieldMap(allFields()))
			require.NoError(t, err)

			kp := out[KeyKeypoints]
			assert.True(t, math.IsNaN(kp.At(0, 1, 0)))
			assert.True(t, math.IsNaN(kp.At(0, 1, 1)))
			assert.False(t, math.IsNaN(kp.At(0, 0, 0)))
		})
	}
}

func replayableSteps() []Step {
	return []Step{
		{Op: OpRandomHorizontalFlip, Params: FlipParams{KeypointFlipPermutation: []int{1, 0}}},
		{Op: OpRandomVerticalFlip, Params: FlipParams{KeypointFlipPermutation: []int{1, 0}}},
		{Op: OpRandomRotation90},
		{Op: OpRandomPixelValueScale},
		{Op: OpRandomAdjustBrightness},
		{Op: OpRandomAdjustContrast},
		{Op: OpRandomAdjustHue},
		{Op: OpRandomAdjustSaturation},
		{Op: OpRandomDistortColor, Params: map[string]any{"color_ordering": 1}},
		{Op: OpRandomRGBToGray, Params: map[string]any{"probability": 0.5}},
		{Op: OpRandomCropImage, Params: map[string]any{"min_object_covered": 0.5, "random_coef": 0.3}},
		{Op: OpRandomBlackPatches, Params: map[string]any{"size_to_image_ratio": 0.25}},
		{Op: OpRandomPadToAspectRatio, Params: map[string]any{"aspect_ratio": 1.5}},
		{Op: OpRandomImageScale},
	}
}

func TestSharedCacheReplaysExactly(t *testing.T) {
	c := cache.New()
	opts := func(seed uint64) []Option {
		return []Option{WithCache(c), WithSeed(seed), WithFieldMap(allFields())}
	}

	first, err := Preprocess(sampleFrame(t), replayableSteps(), opts(1)...)
	require.NoError(t, err)
	second, err := Preprocess(sampleFrame(t), replayableSteps(), opts(99)...)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for k, v := range first {
		assert.True(t, v.Equal(second[k]), "field %s differs", k)
	}
	assert.Positive(t, c.Len())
}

func TestIndependentDrawsDiffer(t *testing.T) {
	steps := []Step{{Op: OpRandomAdjustBrightness}, {Op: OpRandomPixelValueScale}}

	a, err := Preprocess(sampleFrame(t), steps, WithSeed(1))
	require.NoError(t, err)
	b, err := Preprocess(sampleFrame(t), steps, WithSeed(2))
	require.NoError(t, err)

	assert.False(t, a[KeyImage].Equal(b[KeyImage]))
}

func TestSeedIsReproducibleWithoutCache(t *testing.T) {
	a, err := Preprocess(sampleFrame(t), replayableSteps(), WithSeed(7), WithFieldMap(allFields()))
	require.NoError(t, err)
	b, err := Preprocess(sampleFrame(t), replayableSteps(), WithSeed(7), WithFieldMap(allFields()))
	require.NoError(t, err)
	assert.True(t, a[KeyImage].Equal(b[KeyImage]))
}

func TestBatchedImageKeepsRank(t *testing.T) {
	frame := sampleFrame(t)
	frame[KeyImage] = frame[KeyImage].ExpandDims(0)
	c := forced(t, map[cache.OpID]any{cache.Rotation90: 1.0})

	out, err := Preprocess(frame, []Step{{Op: OpRandomRotation90}}, WithCache(c))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 8, 8, 3}, out[KeyImage].Shape())
}

func TestPreprocessLeavesInputAlone(t *testing.T) {
	frame := sampleFrame(t)
	image, boxes := frame[KeyImage].Clone(), frame[KeyBoxes].Clone()

	_, err := Preprocess(frame, replayableSteps(), WithSeed(3), WithFieldMap(allFields()))
	require.NoError(t, err)
	assert.True(t, frame[KeyImage].Equal(image))
	assert.True(t, frame[KeyBoxes].Equal(boxes))
}

func TestConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		frame  func(Frame)
		steps  []Step
		fm     *FieldMap
		substr string
	}{
		{
			name:   "unknown operation",
			steps:  []Step{{Op: "random_sharpen"}},
			substr: "random_sharpen",
		},
		{
			name:   "missing field",
			frame:  func(f Frame) { delete(f, KeyBoxes) },
			steps:  []Step{{Op: OpRandomHorizontalFlip}},
			substr: string(KeyBoxes),
		},
		{
			name:   "keypoints without permutation",
			steps:  []Step{{Op: OpRandomHorizontalFlip}},
			fm:     allFields(),
			substr: "keypoint_flip_permutation",
		},
		{
			name:   "bad color ordering",
			steps:  []Step{{Op: OpRandomDistortColor, Params: map[string]any{"color_ordering": 2}}},
			substr: "color_ordering",
		},
		{
			name:   "two dimensional image",
			frame:  func(f Frame) { f[KeyImage] = tensor.New(8, 8) },
			steps:  []Step{{Op: OpRandomCropImage}},
			substr: "image",
		},
		{
			name: "pad value length",
			steps: []Step{{Op: OpResizeToRange, Params: map[string]any{
				"min_dimension": 4, "max_dimension": 6,
				"pad_to_max_dimension": true, "per_channel_pad_value": []any{0, 0},
			}}},
			substr: "per_channel_pad_value",
		},
		{
			name:   "unknown parameter",
			steps:  []Step{{Op: OpRandomAdjustHue, Params: map[string]any{"max_detla": 0.1}}},
			substr: "max_detla",
		},
		{
			name:   "misaligned instances",
			frame:  func(f Frame) { f[KeyClasses] = tensor.FromInts([]int{1, 2}) },
			steps:  []Step{{Op: OpRandomCropImage}},
			substr: "labels",
		},
		{
			name:   "missing image",
			frame:  func(f Frame) { delete(f, KeyImage) },
			steps:  []Step{{Op: OpRandomAdjustHue}},
			substr: string(KeyImage),
		},
		{
			name:   "operation missing from field map",
			steps:  []Step{{Op: OpRandomAdjustHue}},
			fm:     NewFieldMap(),
			substr: "field map",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := sampleFrame(t)
			if tt.frame != nil {
				tt.frame(frame)
			}
			var opts []Option
			if tt.fm != nil {
				opts = append(opts, WithFieldMap(tt.fm))
			}
			c := cache.New()
			opts = append(opts, WithCache(c))

			_, err := Preprocess(frame, tt.steps, opts...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfig), "%v", err)
			assert.Contains(t, err.Error(), tt.substr)
			assert.Zero(t, c.Len(), "nothing may be drawn before a configuration error")
		})
	}
}

func TestValidateSteps(t *testing.T) {
	assert.NoError(t, ValidateSteps(replayableSteps(), allFields()))

	err := ValidateSteps([]Step{{Op: OpRandomAdjustHue}, {Op: OpOneHotEncoding}}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
	assert.Contains(t, err.Error(), "step 1")
}

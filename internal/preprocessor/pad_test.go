package preprocessor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-augment/internal/cache"
	"github.com/ironsheep/image-augment/internal/imaging"
	"github.com/ironsheep/image-augment/internal/tensor"
)

func TestRandomPadImagePlacement(t *testing.T) {
	c := forced(t, map[cache.OpID]any{cache.PadImage: padPlacement{Height: 8, Width: 8, Top: 2, Left: 4}})
	f := Fields{
		Image: rampImage(4, 4),
		Boxes: rows(t, 4, []float64{0, 0, 1, 1}),
	}

	out, err := randomPadImage(Env{Cache: c}, f, PadParams{})
	require.NoError(t, err)

	assert.Equal(t, []int{8, 8, 3}, out.Image.Shape())
	assert.True(t, out.Boxes.EqualApprox(rows(t, 4, []float64{0.25, 0.5, 0.75, 1}), 1e-12))
	assert.Equal(t, f.Image.At(1, 2, 0), out.Image.At(3, 6, 0))

	mean, err := imaging.ChannelMean(f.Image)
	require.NoError(t, err)
	for ch := 0; ch < 3; ch++ {
		assert.InDelta(t, mean[ch], out.Image.At(0, 0, ch), 1e-12)
	}
}

func TestRandomPadImageSizeRange(t *testing.T) {
	f := Fields{Image: rampImage(5, 7), Boxes: rows(t, 4, []float64{0.1, 0.1, 0.9, 0.9})}
	for seed := uint64(0); seed < 30; seed++ {
		out, err := randomPadImage(seeded(seed), f, PadParams{PadColor: []float64{0, 0, 0}})
		require.NoError(t, err)

		h, w := out.Image.Dim(0), out.Image.Dim(1)
		assert.True(t, h >= 5 && h < 10, "height %d", h)
		assert.True(t, w >= 7 && w < 14, "width %d", w)
		for _, v := range out.Boxes.Data() {
			assert.True(t, v >= 0 && v <= 1)
		}
	}
}

func TestRandomPadImageFixedSize(t *testing.T) {
	f := Fields{Image: rampImage(4, 4), Boxes: tensor.New(0, 4)}
	p := PadParams{MinImageSize: []int{6, 6}, MaxImageSize: []int{6, 6}}

	out, err := randomPadImage(seeded(1), f, p)
	require.NoError(t, err)
	assert.Equal(t, []int{6, 6, 3}, out.Image.Shape())
}

func TestRandomPadImageRejectsColorLength(t *testing.T) {
	f := Fields{Image: rampImage(4, 4), Boxes: tensor.New(0, 4)}
	_, err := randomPadImage(seeded(1), f, PadParams{PadColor: []float64{1, 2}})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestCropPadAnchorsToOriginalSize(t *testing.T) {
	// the padded size follows the 10×10 input, not the 2×2 crop
	c := cache.New()
	require.NoError(t, c.Update(cache.StrictCropImage, "1", cropWindow{Height: 2, Width: 2, Box: [4]float64{0, 0, 0.2, 0.2}}))
	f := Fields{
		Image:  rampImage(10, 10),
		Boxes:  rows(t, 4, []float64{0, 0, 0.2, 0.2}),
		Labels: tensor.FromInts([]int{1}),
	}
	p := DefaultCropPadParams()
	p.MinPaddedSizeRatio = [2]float64{1.5, 1.5}
	p.MaxPaddedSizeRatio = [2]float64{1.5, 1.5}

	out, err := randomCropPadImage(Env{Cache: c}, f, p)
	require.NoError(t, err)
	assert.Equal(t, []int{15, 15, 3}, out.Image.Shape())
	assert.Equal(t, []float64{1}, out.Labels.Data())
}

func TestRandomPadToAspectRatio(t *testing.T) {
	masks := tensor.Full(1, 1, 4, 8)
	f := Fields{
		Image:     rampImage(4, 8),
		Boxes:     rows(t, 4, []float64{0, 0, 1, 1}),
		Masks:     masks,
		Keypoints: tensor.MustFromSlice([]float64{0.5, 0.5}, 1, 1, 2),
	}

	out, err := randomPadToAspectRatio(seeded(1), f, DefaultPadToAspectRatioParams())
	require.NoError(t, err)

	assert.Equal(t, []int{8, 8, 3}, out.Image.Shape())
	assert.Equal(t, []int{1, 8, 8}, out.Masks.Shape())
	assert.Equal(t, 0.0, out.Masks.At(0, 7, 0))
	assert.Equal(t, 0.0, out.Image.At(7, 0, 1))
	assert.True(t, out.Boxes.EqualApprox(rows(t, 4, []float64{0, 0, 0.5, 1}), 1e-12))
	assert.InDelta(t, 0.25, out.Keypoints.At(0, 0, 0), 1e-12)
	assert.InDelta(t, 0.5, out.Keypoints.At(0, 0, 1), 1e-12)
}

func TestRandomPadToAspectRatioScale(t *testing.T) {
	tests := []struct {
		scale float64
		want  int
	}{
		{1.5, 6},
		{1.125, 4},
		{1.375, 6},
	}
	for _, tt := range tests {
		c := forced(t, map[cache.OpID]any{cache.PadToAspectRatio: tt.scale})
		f := Fields{Image: rampImage(4, 4), Boxes: tensor.New(0, 4)}

		out, err := randomPadToAspectRatio(Env{Cache: c}, f, DefaultPadToAspectRatioParams())
		require.NoError(t, err)
		assert.Equal(t, []int{tt.want, tt.want, 3}, out.Image.Shape(), "scale %v", tt.scale)
	}
}

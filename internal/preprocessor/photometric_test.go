package preprocessor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-augment/internal/cache"
	"github.com/ironsheep/image-augment/internal/tensor"
)

func TestNormalizeImage(t *testing.T) {
	img := tensor.MustFromSlice([]float64{0, 127.5, 255}, 1, 1, 3)
	out, err := normalizeImage(Env{}, Fields{Image: img}, NormalizeParams{
		OriginalMinval: 0, OriginalMaxval: 255, TargetMinval: -1, TargetMaxval: 1,
	})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-1, 0, 1}, out.Image.Data(), 1e-12)
}

func TestRandomAdjustBrightnessClips(t *testing.T) {
	tests := []struct {
		name  string
		delta float64
		want  float64
	}{
		{"brighter saturates", 0.5, 255},
		{"darker saturates", -1, 0},
		{"small shift", 0.1, 225.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := forced(t, map[cache.OpID]any{cache.AdjustBrightness: tt.delta})
			out, err := randomAdjustBrightness(Env{Cache: c}, Fields{Image: tensor.Full(200, 2, 2, 3)}, DefaultBrightnessParams())
			require.NoError(t, err)
			for _, v := range out.Image.Data() {
				assert.InDelta(t, tt.want, v, 1e-9)
			}
		})
	}
}

func TestRandomAdjustContrast(t *testing.T) {
	img := tensor.MustFromSlice([]float64{
		0, 10, 20,
		100, 30, 40,
	}, 1, 2, 3)
	c := forced(t, map[cache.OpID]any{cache.AdjustContrast: 2.0})

	out, err := randomAdjustContrast(Env{Cache: c}, Fields{Image: img}, DefaultContrastParams())
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0, 10, 150, 40, 50}, out.Image.Data(), 1e-9)
}

func TestRandomAdjustHueZeroDelta(t *testing.T) {
	c := forced(t, map[cache.OpID]any{cache.AdjustHue: 0.0})
	img := rampImage(4, 4)

	out, err := randomAdjustHue(Env{Cache: c}, Fields{Image: img}, DefaultHueParams())
	require.NoError(t, err)
	assert.True(t, out.Image.EqualApprox(img, 1e-6))
}

func TestRandomAdjustSaturationRemovesColor(t *testing.T) {
	c := forced(t, map[cache.OpID]any{cache.AdjustSaturation: 0.0})
	img := tensor.MustFromSlice([]float64{200, 100, 50}, 1, 1, 3)

	out, err := randomAdjustSaturation(Env{Cache: c}, Fields{Image: img}, DefaultSaturationParams())
	require.NoError(t, err)
	// value is kept, so the gray level is the brightest channel
	assert.InDeltaSlice(t, []float64{200, 200, 200}, out.Image.Data(), 1e-6)
}

func TestRandomRGBToGray(t *testing.T) {
	img := rampImage(3, 3)
	tests := []struct {
		name string
		draw float64
		gray bool
	}{
		{"fires below probability", 0.05, true},
		{"skips above probability", 0.5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := forced(t, map[cache.OpID]any{cache.RGBToGray: tt.draw})
			out, err := randomRGBToGray(Env{Cache: c}, Fields{Image: img}, DefaultRGBToGrayParams())
			require.NoError(t, err)
			assert.Equal(t, []int{3, 3, 3}, out.Image.Shape())
			if !tt.gray {
				assert.True(t, out.Image.Equal(img))
				return
			}
			for y := 0; y < 3; y++ {
				for x := 0; x < 3; x++ {
					assert.Equal(t, out.Image.At(y, x, 0), out.Image.At(y, x, 1))
					assert.Equal(t, out.Image.At(y, x, 0), out.Image.At(y, x, 2))
				}
			}
		})
	}
}

func TestRGBToGrayDropsChannels(t *testing.T) {
	img := tensor.MustFromSlice([]float64{100, 100, 100}, 1, 1, 3)
	out, err := rgbToGray(Env{}, Fields{Image: img}, NoParams{})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 1}, out.Image.Shape())
	assert.InDelta(t, 99.99, out.Image.At(0, 0, 0), 1e-9)
}

func TestRandomDistortColorReplays(t *testing.T) {
	for _, ordering := range []int{0, 1} {
		c := cache.New()
		p := DistortColorParams{ColorOrdering: ordering}
		first, err := randomDistortColor(Env{Rand: seeded(uint64(ordering)).Rand, Cache: c}, Fields{Image: rampImage(6, 6)}, p)
		require.NoError(t, err)
		again, err := randomDistortColor(Env{Rand: seeded(99).Rand, Cache: c}, Fields{Image: rampImage(6, 6)}, p)
		require.NoError(t, err)

		assert.True(t, first.Image.Equal(again.Image), "ordering %d", ordering)
		assert.Equal(t, 4, c.Len())
		for _, v := range first.Image.Data() {
			assert.True(t, v >= 0 && v <= 255)
		}
	}
}

func TestRandomBlackPatches(t *testing.T) {
	c := cache.New()
	require.NoError(t, c.Update(cache.BlackPatches, "0", 0.0))
	require.NoError(t, c.Update(cache.AddBlackPatch, "0y", 0.0))
	require.NoError(t, c.Update(cache.AddBlackPatch, "0x", 0.25))
	require.NoError(t, c.Update(cache.BlackPatches, "1", 0.9))

	p := BlackPatchesParams{MaxBlackPatches: 2, Probability: 0.5, SizeToImageRatio: 0.5}
	out, err := randomBlackPatches(Env{Cache: c}, Fields{Image: tensor.Full(100, 4, 4, 3)}, p)
	require.NoError(t, err)

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := 100.0
			if y < 2 && x >= 1 && x < 3 {
				want = 0
			}
			assert.Equal(t, want, out.Image.At(y, x, 1), "pixel (%d,%d)", y, x)
		}
	}
}

func TestRandomPixelValueScale(t *testing.T) {
	t.Run("clips to pixel range", func(t *testing.T) {
		c := forced(t, map[cache.OpID]any{cache.PixelValueScale: tensor.Full(2, 1, 2, 3)})
		img := tensor.MustFromSlice([]float64{10, 20, 30, 100, 150, 200}, 1, 2, 3)
		out, err := randomPixelValueScale(Env{Cache: c}, Fields{Image: img}, DefaultPixelValueScaleParams())
		require.NoError(t, err)
		assert.Equal(t, []float64{20, 40, 60, 200, 255, 255}, out.Image.Data())
	})

	t.Run("fresh draws stay in range", func(t *testing.T) {
		img := tensor.Full(100, 3, 3, 3)
		out, err := randomPixelValueScale(seeded(5), Fields{Image: img}, DefaultPixelValueScaleParams())
		require.NoError(t, err)
		for _, v := range out.Image.Data() {
			assert.True(t, v >= 90 && v <= 110, "value %g", v)
		}
	})

	t.Run("replayed shape must match", func(t *testing.T) {
		c := forced(t, map[cache.OpID]any{cache.PixelValueScale: tensor.Full(1, 2, 2, 3)})
		_, err := randomPixelValueScale(Env{Cache: c}, Fields{Image: tensor.Full(1, 3, 3, 3)}, DefaultPixelValueScaleParams())
		assert.Error(t, err)
	})
}

func TestSubtractChannelMean(t *testing.T) {
	img := tensor.MustFromSlice([]float64{10, 20, 30, 40, 50, 60}, 1, 2, 3)

	out, err := subtractChannelMean(Env{}, Fields{Image: img}, SubtractChannelMeanParams{Means: []float64{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 18, 27, 39, 48, 57}, out.Image.Data())

	_, err = subtractChannelMean(Env{}, Fields{Image: img}, SubtractChannelMeanParams{Means: []float64{1}})
	assert.ErrorIs(t, err, ErrConfig)
}

package preprocessor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-augment/internal/cache"
)

func TestSSDRandomCropUsesSelectedPreset(t *testing.T) {
	for seed := uint64(0); seed < 10; seed++ {
		c := cache.New()
		require.NoError(t, c.Update(cache.SelectorTuples, cache.SSDCropSelectorKey, 0))
		f := fieldsOf(sampleFrame(t))

		got, err := ssdRandomCrop(Env{Rand: seeded(seed).Rand, Cache: c}, f, DefaultSSDCropParams())
		require.NoError(t, err)
		want, err := randomCropImage(seeded(seed), f, DefaultSSDCropParams().Preset(0))
		require.NoError(t, err)

		assert.True(t, got.Image.Equal(want.Image), "seed %d", seed)
		assert.True(t, got.Boxes.Equal(want.Boxes), "seed %d", seed)
	}
}

func TestSSDCropPresetReplay(t *testing.T) {
	c := cache.New()
	p := DefaultSSDCropPadParams()
	f := fieldsOf(sampleFrame(t))

	first, err := ssdRandomCropPad(Env{Rand: seeded(8).Rand, Cache: c}, f, p)
	require.NoError(t, err)
	again, err := ssdRandomCropPad(Env{Rand: seeded(9).Rand, Cache: c}, f, p)
	require.NoError(t, err)

	assert.True(t, first.Image.Equal(again.Image))
	assert.True(t, first.Boxes.Equal(again.Boxes))
	_, ok := c.Get(cache.SelectorTuples, cache.SSDCropPadSelectorKey)
	assert.True(t, ok)
}

func TestSSDCropParamsValidate(t *testing.T) {
	short := DefaultSSDCropParams()
	short.OverlapThresh = short.OverlapThresh[:3]

	badRange := DefaultSSDCropParams()
	badRange.AreaRange[2] = [2]float64{0.5, 0.1}

	pad := DefaultSSDCropPadParams()
	pad.MaxPaddedSizeRatio = pad.MaxPaddedSizeRatio[:1]

	fixed := DefaultSSDFixedAspectRatioParams()
	fixed.AspectRatio = 0

	tests := []struct {
		name string
		p    interface{ validate() error }
		ok   bool
	}{
		{"defaults", DefaultSSDCropParams(), true},
		{"pad defaults", DefaultSSDCropPadParams(), true},
		{"fixed defaults", DefaultSSDFixedAspectRatioParams(), true},
		{"pad fixed defaults", DefaultSSDPadFixedAspectRatioParams(), true},
		{"preset length mismatch", short, false},
		{"bad area range", badRange, false},
		{"padding presets", pad, false},
		{"zero aspect ratio", fixed, false},
		{"empty", SSDCropParams{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestSSDFixedAspectRatioOutputs(t *testing.T) {
	for seed := uint64(0); seed < 20; seed++ {
		f := fieldsOf(sampleFrame(t))

		crop, err := ssdRandomCropFixedAspectRatio(seeded(seed), f, DefaultSSDFixedAspectRatioParams())
		require.NoError(t, err)
		assert.Equal(t, crop.Image.Dim(0), crop.Image.Dim(1), "seed %d", seed)
		assert.Equal(t, crop.Boxes.Dim(0), crop.Labels.Size())

		pad, err := ssdRandomCropPadFixedAspectRatio(seeded(seed), f, DefaultSSDPadFixedAspectRatioParams())
		require.NoError(t, err)
		assert.Equal(t, pad.Image.Dim(0), pad.Image.Dim(1), "seed %d", seed)
		assert.Equal(t, pad.Boxes.Dim(0), pad.Labels.Size())
	}
}

package preprocessor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-augment/internal/cache"
	"github.com/ironsheep/image-augment/internal/tensor"
)

// rampImage returns an h×w×3 image whose channels hold distinct gradients in
// [0, 255].
func rampImage(h, w int) *tensor.Dense {
	img := tensor.New(h, w, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(float64(y*255/h), y, x, 0)
			img.Set(float64(x*255/w), y, x, 1)
			img.Set(float64((x+y)*127/(h+w)), y, x, 2)
		}
	}
	return img
}

func rows(t *testing.T, width int, r ...[]float64) *tensor.Dense {
	t.Helper()
	d, err := tensor.FromRows(r, width)
	require.NoError(t, err)
	return d
}

// sampleFrame is an 8×8 image with three instances and every per-instance
// field filled in. Mask i is filled with i+1.
func sampleFrame(t *testing.T) Frame {
	t.Helper()
	masks := tensor.New(3, 8, 8)
	for i := 0; i < 3; i++ {
		row := masks.Row(i)
		for k := range row {
			row[k] = float64(i + 1)
		}
	}
	return Frame{
		KeyImage: rampImage(8, 8),
		KeyBoxes: rows(t, 4,
			[]float64{0.0, 0.0, 0.4, 0.4},
			[]float64{0.6, 0.6, 0.9, 0.9},
			[]float64{0.1, 0.25, 0.45, 0.6},
		),
		KeyClasses:     tensor.FromInts([]int{1, 2, 3}),
		KeyWeights:     tensor.MustFromSlice([]float64{1, 0.5, 0.25}, 3),
		KeyConfidences: tensor.MustFromSlice([]float64{0.9, 0.8, 0.7}, 3),
		KeyMulticlassScores: rows(t, 2,
			[]float64{0.1, 0.9},
			[]float64{0.2, 0.8},
			[]float64{0.3, 0.7},
		),
		KeyInstanceMasks: masks,
		KeyKeypoints: tensor.MustFromSlice([]float64{
			0.2, 0.2, math.NaN(), math.NaN(),
			0.7, 0.7, 0.8, 0.8,
			0.3, 0.5, 0.4, 0.55,
		}, 3, 2, 2),
	}
}

func allFields() *FieldMap {
	return DefaultFieldMap(FieldMapOptions{
		IncludeLabelWeights:     true,
		IncludeLabelConfidences: true,
		IncludeMulticlassScores: true,
		IncludeInstanceMasks:    true,
		IncludeKeypoints:        true,
	})
}

// forced returns a cache preloaded with the given draws.
func forced(t *testing.T, draws map[cache.OpID]any) *cache.Cache {
	t.Helper()
	c := cache.New()
	for op, v := range draws {
		require.NoError(t, c.Update(op, "", v))
	}
	return c
}

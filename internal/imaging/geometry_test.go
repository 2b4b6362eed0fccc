package imaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-augment/internal/tensor"
)

// ramp returns an h×w single-channel image whose pixel value is y*10+x.
func ramp(h, w int) *tensor.Dense {
	d := tensor.New(h, w, 1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d.Set(float64(y*10+x), y, x, 0)
		}
	}
	return d
}

func TestFlips(t *testing.T) {
	img := ramp(2, 3)

	lr, err := FlipLeftRight(img)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1, 0, 12, 11, 10}, lr.Data())

	ud, err := FlipUpDown(img)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11, 12, 0, 1, 2}, ud.Data())

	twice, err := FlipLeftRight(lr)
	require.NoError(t, err)
	assert.True(t, twice.Equal(img))
}

func TestRot90CounterClockwise(t *testing.T) {
	img := ramp(2, 3)
	r, err := Rot90(img)
	require.NoError(t, err)

	assert.Equal(t, []int{3, 2, 1}, r.Shape())
	// the right column becomes the top row
	assert.Equal(t, []float64{2, 12, 1, 11, 0, 10}, r.Data())

	for i := 0; i < 3; i++ {
		r, err = Rot90(r)
		require.NoError(t, err)
	}
	assert.True(t, r.Equal(img))
}

func TestCropAndPad(t *testing.T) {
	img := ramp(4, 4)

	c, err := Crop(img, 1, 2, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{12, 13, 22, 23}, c.Data())

	_, err = Crop(img, 3, 3, 2, 2)
	assert.Error(t, err)

	p, err := Pad(c, 1, 0, 3, 3, []float64{-1})
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -1, -1, 12, 13, -1, 22, 23, -1}, p.Data())

	_, err = Pad(c, 0, 0, 3, 3, []float64{1, 2})
	assert.Error(t, err, "fill length must match channels")
	_, err = Pad(c, 2, 0, 3, 3, nil)
	assert.Error(t, err)
}

func TestMaskGeometry(t *testing.T) {
	m := tensor.MustFromSlice([]float64{
		1, 0, 0,
		0, 0, 0,

		0, 0, 0,
		0, 0, 1,
	}, 2, 2, 3)

	lr, err := FlipMasksLeftRight(m)
	require.NoError(t, err)
	assert.Equal(t, 1.0, lr.At(0, 0, 2))
	assert.Equal(t, 1.0, lr.At(1, 1, 0))

	ud, err := FlipMasksUpDown(m)
	require.NoError(t, err)
	assert.Equal(t, 1.0, ud.At(0, 1, 0))

	r, err := RotMasks90(m)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 2}, r.Shape())
	assert.Equal(t, 1.0, r.At(0, 2, 0))

	c, err := CropMasks(m, 1, 1, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 1}, c.Data())

	p, err := PadMasks(m, 0, 0, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 3}, p.Shape())
	assert.Equal(t, 1.0, p.At(1, 1, 2))
	assert.Equal(t, 0.0, p.At(1, 2, 2))
}

func TestEmptyMasks(t *testing.T) {
	m := tensor.New(0, 4, 5)
	lr, err := FlipMasksLeftRight(m)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 4, 5}, lr.Shape())

	r, err := RotMasks90(m)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 5, 4}, r.Shape())
}

func TestRejectsWrongRank(t *testing.T) {
	_, err := FlipLeftRight(tensor.New(4, 4))
	assert.Error(t, err)
	_, err = FlipMasksLeftRight(nil)
	assert.Error(t, err)
}

// rgbRamp returns an h×w RGB image; scale and offset move it off the 8-bit
// grid when needed.
func rgbRamp(h, w int, scale, offset float64) *tensor.Dense {
	d := tensor.New(h, w, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				d.Set(float64(y*40+x*10+c)*scale+offset, y, x, c)
			}
		}
	}
	return d
}

func TestGeometryPathsAgree(t *testing.T) {
	tests := []struct {
		name string
		img  *tensor.Dense
	}{
		{"8-bit", rgbRamp(3, 4, 1, 0)},
		{"normalized", rgbRamp(3, 4, 1.0/255, -0.5)},
		{"above 255", rgbRamp(3, 4, 3, 0.25)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := imageLayout(tt.img)
			require.NoError(t, err)

			lr, err := FlipLeftRight(tt.img)
			require.NoError(t, err)
			assert.True(t, lr.Equal(l.flipLeftRight(tt.img)))

			ud, err := FlipUpDown(tt.img)
			require.NoError(t, err)
			assert.True(t, ud.Equal(l.flipUpDown(tt.img)))

			r, err := Rot90(tt.img)
			require.NoError(t, err)
			assert.True(t, r.Equal(l.rot90(tt.img)))

			c, err := Crop(tt.img, 1, 1, 2, 3)
			require.NoError(t, err)
			want, err := l.crop(tt.img, 1, 1, 2, 3)
			require.NoError(t, err)
			assert.True(t, c.Equal(want))

			for _, fill := range [][]float64{nil, {7, 8, 9}, {127.5, 0, 0}} {
				p, err := Pad(tt.img, 1, 2, 5, 7, fill)
				require.NoError(t, err)
				want, err := l.pad(tt.img, 1, 2, 5, 7, fill)
				require.NoError(t, err)
				assert.True(t, p.Equal(want), "fill %v", fill)
			}
		})
	}
}

func TestGeometryKeepsFloatValues(t *testing.T) {
	img := tensor.MustFromSlice([]float64{-1.5, 300, 0.25, 10, 20, 30}, 1, 2, 3)

	lr, err := FlipLeftRight(img)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30, -1.5, 300, 0.25}, lr.Data())
}

package imaging

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestImage writes a solid PNG into t.TempDir and returns its path.
func createTestImage(t *testing.T, width, height int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "solid.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestLoader_Load(t *testing.T) {
	path := createTestImage(t, 20, 10, color.RGBA{10, 20, 30, 255})
	l := NewLoader()

	img, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, 10, img.Bounds().Dy())

	again, err := l.Load(path)
	require.NoError(t, err)
	assert.Same(t, img, again)
	assert.Equal(t, 1, l.Len())
}

func TestLoader_LoadTensor(t *testing.T) {
	path := createTestImage(t, 4, 3, color.RGBA{10, 20, 30, 255})
	l := NewLoader()

	d, err := l.LoadTensor(path)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 3}, d.Shape())
	assert.Equal(t, []float64{10, 20, 30}, d.Data()[:3])
}

func TestLoader_Errors(t *testing.T) {
	l := NewLoader()
	_, err := l.Load("/nonexistent/image.png")
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	_, err = l.Load(bad)
	assert.Error(t, err)
	assert.Equal(t, 0, l.Len())
}

func TestLoader_EvictAndClear(t *testing.T) {
	p1 := createTestImage(t, 2, 2, color.White)
	p2 := createTestImage(t, 3, 3, color.Black)
	l := NewLoader()
	_, err := l.Load(p1)
	require.NoError(t, err)
	_, err = l.Load(p2)
	require.NoError(t, err)

	l.Evict(p1)
	l.Evict("never-loaded")
	assert.Equal(t, 1, l.Len())

	l.Clear()
	assert.Equal(t, 0, l.Len())
}

func TestLoader_ConcurrentAccess(t *testing.T) {
	path := createTestImage(t, 8, 8, color.White)
	l := NewLoader()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Load(path)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, l.Len())
}

func TestSaveRoundTrip(t *testing.T) {
	img := createPatternImage(6, 4)
	d := FromImage(img)

	path := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, Save(path, d))

	back, err := NewLoader().LoadTensor(path)
	require.NoError(t, err)
	assert.True(t, d.Equal(back))
}

func TestEncodeBase64PNG(t *testing.T) {
	s, err := EncodeBase64PNG(createPatternImage(4, 4))
	require.NoError(t, err)
	assert.NotEmpty(t, s)
}

package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"path/filepath"
	"strings"
	"sync"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/ironsheep/image-augment/internal/tensor"
)

// Loader provides thread-safe caching of decoded source images.
//
// Images are decoded once per path with EXIF orientation applied, so that the
// pixel grid the augmentation pipeline sees matches what a viewer shows. The
// cached image.Image is never modified; LoadTensor returns a fresh tensor on
// every call.
//
// # Memory Management
//
// Cached images remain in memory until explicitly removed via Evict() or
// Clear(). Batch runs over large directories should evict each path once its
// frame has been built.
type Loader struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

// NewLoader creates an empty loader.
func NewLoader() *Loader {
	return &Loader{
		images: make(map[string]image.Image),
	}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// The image is cached using the exact path string provided. Different paths to
// the same file (e.g., relative vs absolute) result in separate cache entries.
func (l *Loader) Load(path string) (image.Image, error) {
	l.mu.RLock()
	if img, ok := l.images[path]; ok {
		l.mu.RUnlock()
		return img, nil
	}
	l.mu.RUnlock()

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load image %s", path)
	}

	l.mu.Lock()
	l.images[path] = img
	l.mu.Unlock()

	return img, nil
}

// LoadTensor loads path and converts it to an [H, W, 3] tensor of [0, 255]
// values.
func (l *Loader) LoadTensor(path string) (*tensor.Dense, error) {
	img, err := l.Load(path)
	if err != nil {
		return nil, err
	}
	return FromImage(img), nil
}

// Clear removes all images from the cache.
func (l *Loader) Clear() {
	l.mu.Lock()
	l.images = make(map[string]image.Image)
	l.mu.Unlock()
}

// Evict removes a single path from the cache. Unknown paths are ignored.
func (l *Loader) Evict(path string) {
	l.mu.Lock()
	delete(l.images, path)
	l.mu.Unlock()
}

// Len is the number of cached images.
func (l *Loader) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.images)
}

// encoderFor picks an encoder from the file extension. PNG is the default.
func encoderFor(path string) imgio.Encoder {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return imgio.JPEGEncoder(95)
	default:
		return imgio.PNGEncoder()
	}
}

// Save writes an [H, W, C] tensor to path, encoding by file extension.
func Save(path string, img *tensor.Dense) error {
	out, err := ToImage(img)
	if err != nil {
		return err
	}
	return SaveImage(path, out)
}

// SaveImage writes an image.Image to path, encoding by file extension.
func SaveImage(path string, img image.Image) error {
	if err := imgio.Save(path, img, encoderFor(path)); err != nil {
		return errors.Wrapf(err, "failed to save image %s", path)
	}
	return nil
}

// EncodeBase64PNG encodes img as PNG and returns it base64 encoded.
func EncodeBase64PNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imgio.PNGEncoder()(&buf, img); err != nil {
		return "", errors.Wrap(err, "failed to encode image")
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

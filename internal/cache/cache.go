// Package cache records the random draws of augmentation operations so that a
// later call can replay them exactly.
//
// A Cache maps (operation id, sub-key) pairs to previously drawn values. The
// first call to GetOrCreate for a pair runs the generator and stores its
// result; every later call returns the stored value unchanged. A nil *Cache is
// valid and means "draw fresh every time".
//
// # Replay Across Frames
//
//	c := cache.New()
//	img1, _ := preprocessor.Preprocess(frame1, steps, preprocessor.WithCache(c))
//	img2, _ := preprocessor.Preprocess(frame2, steps, preprocessor.WithCache(c))
//	// frame2 received the same flips, crops and colour shifts as frame1
//
// The cache is safe for concurrent access, but replay is only meaningful when a
// single pipeline writes it at a time: two pipelines racing on the first draw
// of the same pair decide which draw the other one sees.
package cache

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

type entry struct {
	op  OpID
	key string
}

// Cache stores random draws keyed by operation id and sub-key.
//
// Values are never evicted. Drop the Cache, or call Clear, to start a new
// replay group.
type Cache struct {
	mu   sync.RWMutex
	vars map[entry]any
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{vars: make(map[entry]any)}
}

// Get returns the value stored under (op, key).
func (c *Cache) Get(op OpID, key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vars[entry{op, key}]
	return v, ok
}

// Update stores v under (op, key), replacing any earlier value.
func (c *Cache) Update(op OpID, key string, v any) error {
	if !op.Valid() {
		return errors.Errorf("cache: unknown operation id %d", int(op))
	}
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vars[entry{op, key}] = v
	return nil
}

// Clear removes every stored value.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vars = make(map[entry]any)
}

// Len is the number of stored values.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vars)
}

// GetOrCreate returns the value cached under (op, key), or calls gen, caches
// its result and returns it. With a nil cache gen is always called.
//
// A stored value of a different type than T is a programming error and panics.
func GetOrCreate[T any](c *Cache, op OpID, key string, gen func() T) T {
	if c == nil {
		return gen()
	}
	if v, ok := c.Get(op, key); ok {
		t, ok := v.(T)
		if !ok {
			panic(fmt.Sprintf("cache: %s/%q holds %T, not %T", op, key, v, t))
		}
		return t
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.vars[entry{op, key}]; ok {
		if t, ok := v.(T); ok {
			return t
		}
		panic(fmt.Sprintf("cache: %s/%q holds %T", op, key, v))
	}
	t := gen()
	c.vars[entry{op, key}] = t
	return t
}

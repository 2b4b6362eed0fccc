package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateReplays(t *testing.T) {
	c := New()
	calls := 0
	gen := func() float64 {
		calls++
		return 0.25 * float64(calls)
	}

	first := GetOrCreate(c, HorizontalFlip, "", gen)
	second := GetOrCreate(c, HorizontalFlip, "", gen)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.Len())
}

func TestGetOrCreateNilCacheAlwaysDraws(t *testing.T) {
	var c *Cache
	calls := 0
	gen := func() int {
		calls++
		return calls
	}

	assert.Equal(t, 1, GetOrCreate(c, Selector, ResizeMethodKey, gen))
	assert.Equal(t, 2, GetOrCreate(c, Selector, ResizeMethodKey, gen))
	assert.Equal(t, 0, c.Len())
}

func TestSubKeysAreIndependent(t *testing.T) {
	c := New()
	a := GetOrCreate(c, AddBlackPatch, "0y", func() float64 { return 0.1 })
	b := GetOrCreate(c, AddBlackPatch, "0x", func() float64 { return 0.2 })
	d := GetOrCreate(c, BlackPatches, "0y", func() float64 { return 0.3 })

	assert.Equal(t, 0.1, a)
	assert.Equal(t, 0.2, b)
	assert.Equal(t, 0.3, d)
	assert.Equal(t, 3, c.Len())
}

func TestUpdateOverridesAndValidates(t *testing.T) {
	c := New()
	require.NoError(t, c.Update(VerticalFlip, "", 0.9))
	v := GetOrCreate(c, VerticalFlip, "", func() float64 { return 0.1 })
	assert.Equal(t, 0.9, v)

	assert.Error(t, c.Update(OpID(999), "", 1.0))
	assert.Error(t, c.Update(OpID(-1), "", 1.0))
}

func TestTypeMismatchPanics(t *testing.T) {
	c := New()
	require.NoError(t, c.Update(ImageScale, "", "not a float"))
	assert.Panics(t, func() {
		GetOrCreate(c, ImageScale, "", func() float64 { return 1 })
	})
}

func TestClear(t *testing.T) {
	c := New()
	GetOrCreate(c, PadImage, "", func() int { return 1 })
	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get(PadImage, "")
	assert.False(t, ok)
}

func TestConcurrentFirstDrawIsStoredOnce(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	results := make([]int, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = GetOrCreate(c, SelectorTuples, SSDCropSelectorKey, func() int { return i })
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
}

func TestOpIDString(t *testing.T) {
	assert.Equal(t, "horizontal_flip", HorizontalFlip.String())
	assert.Equal(t, "selector_tuples", SelectorTuples.String())
	assert.Equal(t, "unknown", OpID(100).String())
}

package preprocessor

import (
	"math/rand/v2"

	"github.com/ironsheep/image-augment/internal/cache"
)

// Env carries the random source and the replay cache into an operation.
type Env struct {
	// Rand is the source of fresh draws. Nil uses the global generator.
	Rand *rand.Rand
	// Cache records draws for replay. Nil draws fresh every call.
	Cache *cache.Cache
}

func (e Env) float64() float64 {
	if e.Rand != nil {
		return e.Rand.Float64()
	}
	return rand.Float64()
}

func (e Env) intN(n int) int {
	if e.Rand != nil {
		return e.Rand.IntN(n)
	}
	return rand.IntN(n)
}

// uniform draws from [lo, hi) without caching.
func (e Env) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*e.float64()
}

// randInt draws from [lo, hi) without caching. An empty range yields lo.
func (e Env) randInt(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + e.intN(hi-lo)
}

// cachedUniform draws from [lo, hi) once per (op, key) and replays it after.
func (e Env) cachedUniform(op cache.OpID, key string, lo, hi float64) float64 {
	return cache.GetOrCreate(e.Cache, op, key, func() float64 { return e.uniform(lo, hi) })
}

// cachedIntN draws from [0, n) once per (op, key).
func (e Env) cachedIntN(op cache.OpID, key string, n int) int {
	return cache.GetOrCreate(e.Cache, op, key, func() int { return e.intN(n) })
}

// Package scangen synthesises sonar intensity grids and detected targets.
package scangen

import (
	"hash/fnv"
	"math/rand/v2"
	"time"
)

// NewRand returns a generator seeded with seed.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

// NewTimeRand returns a generator seeded from the wall clock.
func NewTimeRand() *rand.Rand {
	return NewRand(time.Now().UnixNano())
}

// SeedFor derives a stable seed from a scan identifier.
func SeedFor(scanID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(scanID))
	return int64(h.Sum64() >> 1)
}

// intRange returns a value in [lo, hi). It returns lo when the range is empty.
func intRange(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi < lo {
		lo = hi
	}
	return lo + rng.Float64()*(hi-lo)
}

func pick[T any](rng *rand.Rand, options []T) T {
	return options[rng.IntN(len(options))]
}

package agent

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_SlidingWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("anon_a"))
	assert.True(t, rl.Allow("anon_a"))
	assert.False(t, rl.Allow("anon_a"))
	assert.True(t, rl.Allow("anon_b"), "keys are limited independently")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("anon_a"))
}

func TestRateLimiter_Evict(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.Allow("anon_a")
	now = now.Add(30 * time.Second)
	rl.Allow("anon_b")

	now = now.Add(45 * time.Second)
	rl.evict()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.requests, "anon_a")
	assert.Len(t, rl.requests["anon_b"], 1)
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := NewRateLimiter(50, time.Minute)
	defer rl.Stop()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("anon_a") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}

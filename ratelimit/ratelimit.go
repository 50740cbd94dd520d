// Package ratelimit throttles API callers with a sliding window per key.
package ratelimit

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/mezonai/starnotary/exception"
)

type RateLimiterConfig struct {
	MaxRequests     int
	WindowSize      time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig allows 20 requests per second per key.
func DefaultConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		MaxRequests:     20,
		WindowSize:      time.Second,
		CleanupInterval: 5 * time.Minute,
	}
}

// RateLimiter keeps, for every key, the timestamps of the requests still
// inside the window, oldest first.
type RateLimiter struct {
	config   *RateLimiterConfig
	clock    clock.Clock
	mu       sync.Mutex
	requests map[string][]time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(config *RateLimiterConfig) *RateLimiter {
	return NewRateLimiterWithClock(config, clock.New())
}

func NewRateLimiterWithClock(config *RateLimiterConfig, clk clock.Clock) *RateLimiter {
	if config == nil {
		config = DefaultConfig()
	}
	rl := &RateLimiter{
		config:   config,
		clock:    clk,
		requests: make(map[string][]time.Time),
		stop:     make(chan struct{}),
	}
	exception.SafeGo("ratelimit cleanup", rl.cleanupLoop)
	return rl
}

func live(requests []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(requests) && !requests[i].After(cutoff) {
		i++
	}
	return requests[i:]
}

// Allow records a request for key and reports whether it fits in the window.
// A refused request is not recorded.
func (rl *RateLimiter) Allow(key string) bool {
	ok, _ := rl.Reserve(key)
	return ok
}

// Reserve is Allow that also returns, on refusal, how long until the oldest
// counted request leaves the window.
func (rl *RateLimiter) Reserve(key string) (bool, time.Duration) {
	now := rl.clock.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	window := live(rl.requests[key], now.Add(-rl.config.WindowSize))
	if len(window) >= rl.config.MaxRequests {
		rl.requests[key] = window
		if len(window) == 0 {
			return false, rl.config.WindowSize
		}
		return false, window[0].Add(rl.config.WindowSize).Sub(now)
	}
	rl.requests[key] = append(window, now)
	return true, 0
}

// Count returns how many requests of key are inside the current window.
func (rl *RateLimiter) Count(key string) int {
	cutoff := rl.clock.Now().Add(-rl.config.WindowSize)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(live(rl.requests[key], cutoff))
}

func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.requests, key)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := rl.clock.Ticker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

// cleanup forgets keys with no request left in the window.
func (rl *RateLimiter) cleanup() {
	cutoff := rl.clock.Now().Add(-rl.config.WindowSize)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, requests := range rl.requests {
		if window := live(requests, cutoff); len(window) > 0 {
			rl.requests[key] = window
		} else {
			delete(rl.requests, key)
		}
	}
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.requests)
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

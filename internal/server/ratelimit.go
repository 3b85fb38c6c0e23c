package server

import (
	"context"
	"net"
	"sync"
	"time"
)

// RateLimiter counts REJECTED requests per client address.
//
// A client that sends more than limit invalid requests inside one window
// is refused until the window expires. Accepted requests are not counted
// and reset the client's counter.
//
// Flow:
//  1. Request arrives
//  2. IsBlocked() - if true, answer 429 immediately
//  3. Handle request
//  4. Client error (4xx): RecordFailure()
//  5. Success: Reset()
type RateLimiter struct {
	mu       sync.RWMutex
	failures map[string]*rateLimitEntry
	limit    int
	window   time.Duration
	now      func() time.Time
}

type rateLimitEntry struct {
	count     int
	resetTime time.Time
}

// NewRateLimiter creates a rate limiter. limit <= 0 disables blocking.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		failures: make(map[string]*rateLimitEntry),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// IsBlocked returns true if the client has exceeded the failure limit.
func (rl *RateLimiter) IsBlocked(ip string) bool {
	if rl.limit <= 0 {
		return false
	}

	rl.mu.RLock()
	defer rl.mu.RUnlock()

	entry, ok := rl.failures[ip]
	if !ok || rl.now().After(entry.resetTime) {
		return false
	}
	return entry.count >= rl.limit
}

// RecordFailure records a rejected request.
func (rl *RateLimiter) RecordFailure(ip string) {
	if rl.limit <= 0 {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, ok := rl.failures[ip]
	if !ok || now.After(entry.resetTime) {
		rl.failures[ip] = &rateLimitEntry{count: 1, resetTime: now.Add(rl.window)}
		return
	}
	entry.count++
}

// Reset clears the failure count for a client.
func (rl *RateLimiter) Reset(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.failures, ip)
}

// FailureCount returns the current failure count for a client.
func (rl *RateLimiter) FailureCount(ip string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	entry, ok := rl.failures[ip]
	if !ok || rl.now().After(entry.resetTime) {
		return 0
	}
	return entry.count
}

// cleanupLoop drops expired entries until ctx is done.
func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, entry := range rl.failures {
		if now.After(entry.resetTime) {
			delete(rl.failures, ip)
		}
	}
}

// clientIP extracts the host part of a remote address.
func clientIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}

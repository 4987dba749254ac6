package server

import (
	"sync"
	"time"
)

const (
	defaultVerifyMaxFailures = 5
	defaultVerifyWindow      = 5 * time.Minute
	defaultVerifyBlockFor    = 10 * time.Minute
	verifySweepEvery         = 64
)

// verifyRateLimiter locks a client out after repeated failed token verifications.
type verifyRateLimiter struct {
	mu          sync.Mutex
	clients     map[string]verifyClientState
	maxFailures int
	window      time.Duration
	blockFor    time.Duration
	ops         int
}

type verifyClientState struct {
	failures     int
	windowStart  time.Time
	blockedUntil time.Time
	lastSeen     time.Time
}

func newVerifyRateLimiter(maxFailures int, window, blockFor time.Duration) *verifyRateLimiter {
	if maxFailures <= 0 || window <= 0 || blockFor <= 0 {
		return nil
	}
	return &verifyRateLimiter{
		clients:     make(map[string]verifyClientState),
		maxFailures: maxFailures,
		window:      window,
		blockFor:    blockFor,
	}
}

// Allow reports whether key may attempt another verification.
func (l *verifyRateLimiter) Allow(key string, now time.Time) bool {
	if l == nil || key == "" {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	state := l.clients[key]
	state.lastSeen = now
	l.clients[key] = state
	l.sweepLocked(now)

	return state.blockedUntil.IsZero() || !now.Before(state.blockedUntil)
}

// Fail records one failed verification for key.
func (l *verifyRateLimiter) Fail(key string, now time.Time) {
	if l == nil || key == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	state := l.clients[key]
	if state.windowStart.IsZero() || now.Sub(state.windowStart) > l.window {
		state.failures = 0
		state.windowStart = now
	}
	state.failures++
	if state.failures >= l.maxFailures {
		state.blockedUntil = now.Add(l.blockFor)
		state.failures = 0
		state.windowStart = time.Time{}
	}
	state.lastSeen = now
	l.clients[key] = state
	l.sweepLocked(now)
}

// Reset forgets key after a successful verification.
func (l *verifyRateLimiter) Reset(key string) {
	if l == nil || key == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.clients, key)
}

func (l *verifyRateLimiter) sweepLocked(now time.Time) {
	l.ops++
	if l.ops%verifySweepEvery != 0 {
		return
	}
	staleAfter := 2 * max(l.window, l.blockFor)
	for key, state := range l.clients {
		if now.Sub(state.lastSeen) > staleAfter && !now.Before(state.blockedUntil) {
			delete(l.clients, key)
		}
	}
}

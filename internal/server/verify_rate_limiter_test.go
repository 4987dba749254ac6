package server

import (
	"testing"
	"time"
)

func TestVerifyRateLimiterBlocksAfterFailures(t *testing.T) {
	l := newVerifyRateLimiter(3, time.Minute, 5*time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1", now) {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		l.Fail("10.0.0.1", now)
	}
	if l.Allow("10.0.0.1", now.Add(time.Minute)) {
		t.Fatal("expected client to be blocked")
	}
	if !l.Allow("10.0.0.2", now) {
		t.Fatal("other clients must not be blocked")
	}
	if !l.Allow("10.0.0.1", now.Add(6*time.Minute)) {
		t.Fatal("expected block to expire")
	}
}

func TestVerifyRateLimiterWindowResets(t *testing.T) {
	l := newVerifyRateLimiter(2, time.Minute, time.Hour)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	l.Fail("k", now)
	l.Fail("k", now.Add(2*time.Minute))
	if !l.Allow("k", now.Add(2*time.Minute)) {
		t.Fatal("failures outside the window should not accumulate")
	}
}

func TestVerifyRateLimiterReset(t *testing.T) {
	l := newVerifyRateLimiter(1, time.Minute, time.Hour)
	now := time.Now()

	l.Fail("k", now)
	if l.Allow("k", now) {
		t.Fatal("expected block")
	}
	l.Reset("k")
	if !l.Allow("k", now) {
		t.Fatal("expected reset to clear block")
	}
}

func TestNilVerifyRateLimiterAllows(t *testing.T) {
	var l *verifyRateLimiter
	if !l.Allow("k", time.Now()) {
		t.Fatal("nil limiter should allow")
	}
	l.Fail("k", time.Now())
	if newVerifyRateLimiter(0, time.Minute, time.Minute) != nil {
		t.Fatal("expected nil limiter for zero failures")
	}
}

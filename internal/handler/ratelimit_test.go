package handler

import (
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	defer rl.Stop()

	ip := "192.0.2.1"
	for i := 0; i < 2; i++ {
		rl.RecordFailure(ip)
	}
	if rl.IsBlocked(ip) {
		t.Error("blocked below limit")
	}

	rl.RecordFailure(ip)
	if !rl.IsBlocked(ip) {
		t.Error("not blocked at limit")
	}
	if got := rl.FailureCount(ip); got != 3 {
		t.Errorf("FailureCount() = %d, want 3", got)
	}
	if rl.IsBlocked("192.0.2.2") {
		t.Error("unrelated IP blocked")
	}

	rl.Reset(ip)
	if rl.IsBlocked(ip) || rl.FailureCount(ip) != 0 {
		t.Error("Reset() did not clear failures")
	}
}

func TestRateLimiter_WindowExpires(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond)
	defer rl.Stop()

	rl.RecordFailure("ip")
	if !rl.IsBlocked("ip") {
		t.Fatal("not blocked")
	}

	time.Sleep(20 * time.Millisecond)
	if rl.IsBlocked("ip") {
		t.Error("still blocked after window")
	}

	rl.cleanup()
	rl.mu.RLock()
	n := len(rl.failures)
	rl.mu.RUnlock()
	if n != 0 {
		t.Errorf("cleanup left %d entries", n)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	defer rl.Stop()

	for i := 0; i < 100; i++ {
		rl.RecordFailure("ip")
	}
	if rl.IsBlocked("ip") {
		t.Error("zero limit blocked")
	}
	rl.Stop() // idempotent
}

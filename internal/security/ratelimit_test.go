// Package security provides security tests for rate limiting and account lockout.
package security

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestRateLimiter_Allow tests basic rate limiting functionality.
func TestRateLimiter_Allow(t *testing.T) {
	// 5 requests allowed, refill 1 every 200ms
	limiter := NewRateLimiter(5, 200*time.Millisecond)
	defer limiter.Stop()

	identifier := "192.168.1.100"

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow(identifier), "Request %d should be allowed", i+1)
	}
	assert.False(t, limiter.Allow(identifier), "6th request should be denied")

	time.Sleep(250 * time.Millisecond)

	assert.True(t, limiter.Allow(identifier), "Request after refill should be allowed")
}

// TestRateLimiter_MultipleIdentifiers tests that buckets are kept per identifier.
func TestRateLimiter_MultipleIdentifiers(t *testing.T) {
	limiter := NewRateLimiter(3, time.Second)
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("ip-1"))
	}
	assert.False(t, limiter.Allow("ip-1"), "IP1 4th request should be denied")

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("ip-2"), "IP2 has its own bucket")
	}
}

// TestRateLimiter_TokenRefill tests gradual token refill.
func TestRateLimiter_TokenRefill(t *testing.T) {
	limiter := NewRateLimiter(3, 200*time.Millisecond)
	defer limiter.Stop()

	identifier := "192.168.1.100"
	for i := 0; i < 3; i++ {
		limiter.Allow(identifier)
	}
	assert.False(t, limiter.Allow(identifier), "Should be denied (no tokens)")

	// Two tokens come back
	time.Sleep(420 * time.Millisecond)

	assert.True(t, limiter.Allow(identifier))
	assert.True(t, limiter.Allow(identifier))
	assert.False(t, limiter.Allow(identifier), "Only 2 tokens refilled")
}

// TestPerMinute verifies the burst equals the per-minute allowance.
func TestPerMinute(t *testing.T) {
	limiter := PerMinute(4)
	defer limiter.Stop()

	for i := 0; i < 4; i++ {
		assert.True(t, limiter.Allow("x"))
	}
	assert.False(t, limiter.Allow("x"))
}

// TestRateLimiter_StopTwice verifies Stop is idempotent.
func TestRateLimiter_StopTwice(t *testing.T) {
	limiter := NewRateLimiter(1, time.Second)
	limiter.Stop()
	assert.NotPanics(t, limiter.Stop)
}

// TestAccountLockout_RecordFailedAttempt tests failed attempt tracking.
func TestAccountLockout_RecordFailedAttempt(t *testing.T) {
	lockout := NewAccountLockout(5, 10*time.Minute)
	identifier := "user@example.com"

	for i := 0; i < 4; i++ {
		assert.False(t, lockout.RecordFailedAttempt(identifier), "Attempt %d should not trigger lockout", i+1)
	}
	assert.True(t, lockout.RecordFailedAttempt(identifier), "5th attempt should trigger lockout")
}

// TestAccountLockout_IsLocked tests lockout status checking and expiry.
func TestAccountLockout_IsLocked(t *testing.T) {
	lockout := NewAccountLockout(3, 300*time.Millisecond)
	identifier := "user@example.com"

	assert.False(t, lockout.IsLocked(identifier), "Should not be locked initially")

	for i := 0; i < 3; i++ {
		lockout.RecordFailedAttempt(identifier)
	}
	assert.True(t, lockout.IsLocked(identifier), "Should be locked after threshold")

	time.Sleep(350 * time.Millisecond)

	assert.False(t, lockout.IsLocked(identifier), "Should not be locked after expiration")
}

// TestAccountLockout_IsLockedKeepsCount verifies checking the lock does not clear
// attempts recorded below the threshold.
func TestAccountLockout_IsLockedKeepsCount(t *testing.T) {
	lockout := NewAccountLockout(3, time.Minute)
	identifier := "user@example.com"

	lockout.RecordFailedAttempt(identifier)
	assert.False(t, lockout.IsLocked(identifier))
	lockout.RecordFailedAttempt(identifier)
	assert.False(t, lockout.IsLocked(identifier))

	assert.True(t, lockout.RecordFailedAttempt(identifier), "Third attempt reaches the threshold")
}

// TestAccountLockout_ResetAttempts tests resetting failed attempts after a successful login.
func TestAccountLockout_ResetAttempts(t *testing.T) {
	lockout := NewAccountLockout(5, 10*time.Minute)
	identifier := "user@example.com"

	for i := 0; i < 3; i++ {
		lockout.RecordFailedAttempt(identifier)
	}
	lockout.ResetAttempts(identifier)

	assert.False(t, lockout.IsLocked(identifier))
	assert.False(t, lockout.RecordFailedAttempt(identifier), "Should not trigger lockout after reset")
}

// TestAccountLockout_GetLockoutTimeRemaining tests remaining time calculation.
func TestAccountLockout_GetLockoutTimeRemaining(t *testing.T) {
	duration := 10 * time.Second
	lockout := NewAccountLockout(3, duration)
	identifier := "user@example.com"

	assert.Zero(t, lockout.GetLockoutTimeRemaining(identifier))

	for i := 0; i < 3; i++ {
		lockout.RecordFailedAttempt(identifier)
	}

	remaining := lockout.GetLockoutTimeRemaining(identifier)
	assert.Greater(t, remaining, time.Duration(0))
	assert.LessOrEqual(t, remaining, duration)
}

// TestAccountLockout_ExpiredAttempts tests that stale attempts stop counting.
func TestAccountLockout_ExpiredAttempts(t *testing.T) {
	lockout := NewAccountLockout(3, 100*time.Millisecond)
	identifier := "user@example.com"

	lockout.RecordFailedAttempt(identifier)
	lockout.RecordFailedAttempt(identifier)

	time.Sleep(150 * time.Millisecond)

	assert.False(t, lockout.RecordFailedAttempt(identifier), "Counter restarts after the window")
}

// TestRateLimiter_Concurrent tests thread safety of rate limiter.
func TestRateLimiter_Concurrent(t *testing.T) {
	limiter := NewRateLimiter(100, time.Hour)
	defer limiter.Stop()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if limiter.Allow("192.168.1.100") {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, allowed, "Exactly the burst is admitted")
}

// TestAccountLockout_Concurrent tests thread safety of account lockout.
func TestAccountLockout_Concurrent(t *testing.T) {
	lockout := NewAccountLockout(50, 10*time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				lockout.RecordFailedAttempt("user@example.com")
				lockout.IsLocked("user@example.com")
			}
		}()
	}
	wg.Wait()

	assert.True(t, lockout.IsLocked("user@example.com"))
}

// BenchmarkRateLimiter_Allow benchmarks rate limiter performance.
func BenchmarkRateLimiter_Allow(b *testing.B) {
	limiter := NewRateLimiter(1000000, time.Microsecond)
	defer limiter.Stop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		limiter.Allow("192.168.1.100")
	}
}

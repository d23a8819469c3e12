// Package security provides rate limiting functionality.
// Request throttling uses golang.org/x/time/rate token buckets keyed by
// identifier (client IP or user id); account lockout guards the login form.
package security

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleTTL is how long an identifier's bucket survives without traffic.
const idleTTL = time.Hour

// RateLimiter keeps one token bucket per identifier.
// Safe for concurrent use.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*visitor

	limit rate.Limit
	burst int

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter with specified configuration.
//
// Parameters:
//   - maxTokens: Burst size, the requests allowed back to back
//   - refillRate: How often one token is returned to the bucket
//
// Example:
//
//	// Allow 5 requests per minute
//	limiter := NewRateLimiter(5, 12*time.Second) // 60s / 5 requests = 12s per token
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limiters:    make(map[string]*visitor),
		limit:       rate.Every(refillRate),
		burst:       maxTokens,
		stopCleanup: make(chan struct{}),
	}

	rl.cleanupTicker = time.NewTicker(10 * time.Minute)
	go rl.cleanup()

	return rl
}

// PerMinute creates a limiter allowing n requests per minute with a burst of n.
func PerMinute(n int) *RateLimiter {
	if n <= 0 {
		n = 1
	}
	return NewRateLimiter(n, time.Minute/time.Duration(n))
}

// Allow reports whether a request from identifier may proceed, consuming a token if so.
func (rl *RateLimiter) Allow(identifier string) bool {
	rl.mu.Lock()
	v, ok := rl.limiters[identifier]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[identifier] = v
	}
	v.lastSeen = time.Now()
	rl.mu.Unlock()

	return v.limiter.Allow()
}

// cleanup periodically removes idle identifiers.
func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			rl.mu.Lock()
			now := time.Now()
			for id, v := range rl.limiters {
				if now.Sub(v.lastSeen) > idleTTL {
					delete(rl.limiters, id)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCleanup:
			return
		}
	}
}

// Stop stops the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		rl.cleanupTicker.Stop()
		close(rl.stopCleanup)
	})
}

// AccountLockout tracks failed login attempts and implements account lockout.
// Keyed by normalized email so the count follows the account across IPs.
type AccountLockout struct {
	// Map of account identifier to lockout state
	lockouts map[string]*lockoutState
	mu       sync.RWMutex

	// Configuration
	threshold int           // Failed attempts before lockout
	duration  time.Duration // How long account stays locked
}

// lockoutState tracks failed attempts and lockout status for an account.
type lockoutState struct {
	failedAttempts int
	lockedUntil    time.Time
	lastAttempt    time.Time
	mu             sync.Mutex
}

// NewAccountLockout creates a new account lockout tracker.
//
// Parameters:
//   - threshold: Number of failed attempts before lockout
//   - duration: How long the account stays locked
//
// Example:
//
//	// Lock account for 30 minutes after 10 failed attempts
//	lockout := NewAccountLockout(10, 30*time.Minute)
func NewAccountLockout(threshold int, duration time.Duration) *AccountLockout {
	return &AccountLockout{
		lockouts:  make(map[string]*lockoutState),
		threshold: threshold,
		duration:  duration,
	}
}

// RecordFailedAttempt records a failed login attempt.
// Returns true if account should be locked.
func (al *AccountLockout) RecordFailedAttempt(identifier string) bool {
	al.mu.Lock()
	state, exists := al.lockouts[identifier]
	if !exists {
		state = &lockoutState{
			failedAttempts: 1,
			lastAttempt:    time.Now(),
		}
		al.lockouts[identifier] = state
		al.mu.Unlock()
		return false
	}
	al.mu.Unlock()

	state.mu.Lock()
	defer state.mu.Unlock()

	// Attempts older than the lockout window no longer count.
	if time.Since(state.lastAttempt) > al.duration {
		state.failedAttempts = 1
		state.lastAttempt = time.Now()
		return false
	}

	state.failedAttempts++
	state.lastAttempt = time.Now()

	// Check if we've exceeded threshold
	if state.failedAttempts >= al.threshold {
		state.lockedUntil = time.Now().Add(al.duration)
		return true
	}

	return false
}

// IsLocked checks if an account is currently locked.
// Returns true if locked, false if not locked or lockout expired.
func (al *AccountLockout) IsLocked(identifier string) bool {
	al.mu.RLock()
	state, exists := al.lockouts[identifier]
	al.mu.RUnlock()

	if !exists {
		return false
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.lockedUntil.IsZero() {
		return false
	}

	// Lockout expired, start counting afresh
	if time.Now().After(state.lockedUntil) {
		state.failedAttempts = 0
		state.lockedUntil = time.Time{}
		return false
	}

	return true
}

// ResetAttempts resets failed attempt counter for an identifier.
// Call this on successful login.
func (al *AccountLockout) ResetAttempts(identifier string) {
	al.mu.Lock()
	defer al.mu.Unlock()
	delete(al.lockouts, identifier)
}

// GetLockoutTimeRemaining returns how much time is left on the lockout.
// Returns 0 if not locked.
func (al *AccountLockout) GetLockoutTimeRemaining(identifier string) time.Duration {
	al.mu.RLock()
	state, exists := al.lockouts[identifier]
	al.mu.RUnlock()

	if !exists {
		return 0
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.lockedUntil.IsZero() {
		return 0
	}

	remaining := time.Until(state.lockedUntil)
	if remaining < 0 {
		return 0
	}

	return remaining
}

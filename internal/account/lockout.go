package account

import "time"

// LockoutPolicy decides whether login attempts are permitted and how failure
// counters evolve. It is pure: no storage, no clock of its own, so the
// threshold and window are swappable and testable in isolation.
type LockoutPolicy struct {
	// MaxFailed is the consecutive-failure threshold that triggers a lock.
	MaxFailed int
	// LockWindow is how long a triggered lock lasts.
	LockWindow time.Duration
}

// DefaultLockoutPolicy returns the production policy: five consecutive
// failures lock the account for fifteen minutes.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{MaxFailed: 5, LockWindow: 15 * time.Minute}
}

// Decision is the outcome of CanAttempt.
type Decision struct {
	Allowed   bool
	Remaining time.Duration
}

// CanAttempt reports whether a login attempt is permitted at now given the
// stored lock deadline. A nil or elapsed deadline permits the attempt.
func (p LockoutPolicy) CanAttempt(lockedUntil *time.Time, now time.Time) Decision {
	if lockedUntil != nil && now.Before(*lockedUntil) {
		return Decision{Allowed: false, Remaining: lockedUntil.Sub(now)}
	}
	return Decision{Allowed: true}
}

// OnFailure increments the failure counter and, once the counter reaches the
// threshold, returns the lock deadline to persist. Below the threshold the
// deadline stays nil.
func (p LockoutPolicy) OnFailure(failedAttempts int, now time.Time) (int, *time.Time) {
	failedAttempts++
	if failedAttempts >= p.MaxFailed {
		until := now.Add(p.LockWindow)
		return failedAttempts, &until
	}
	return failedAttempts, nil
}

// OnSuccess resets both the counter and any pending deadline.
func (p LockoutPolicy) OnSuccess() (int, *time.Time) {
	return 0, nil
}

// AttemptsRemaining reports how many more failures are tolerated before a
// lock triggers.
func (p LockoutPolicy) AttemptsRemaining(failedAttempts int) int {
	remaining := p.MaxFailed - failedAttempts
	if remaining < 0 {
		return 0
	}
	return remaining
}

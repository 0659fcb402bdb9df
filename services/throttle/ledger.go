// Package throttle decides whether a user may request another verification
// code and keeps the per-channel attempt ledger.
package throttle

import (
	"time"
)

type Outcome int

const (
	Allow Outcome = iota
	DenyGlobalCooldown
	DenyRateLimited
	DenyTooManyAttempts
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case DenyGlobalCooldown:
		return "global_cooldown"
	case DenyRateLimited:
		return "rate_limited"
	case DenyTooManyAttempts:
		return "too_many_attempts"
	default:
		return "unknown"
	}
}

// State is the per-channel attempt ledger. Count resets to zero whenever a
// cooldown is imposed.
type State struct {
	Count         int        `json:"count"`
	LastAttempt   *time.Time `json:"last_attempt,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
}

// Equal reports whether both ledgers hold the same count and instants.
func (s State) Equal(other State) bool {
	return s.Count == other.Count &&
		sameInstant(s.LastAttempt, other.LastAttempt) &&
		sameInstant(s.CooldownUntil, other.CooldownUntil)
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

type Decision struct {
	Outcome    Outcome
	RetryAfter time.Duration
}

func (d Decision) Allowed() bool {
	return d.Outcome == Allow
}

// RetryAfterMinutes truncates to whole minutes, so 59s reports 0.
func (d Decision) RetryAfterMinutes() int {
	return int(d.RetryAfter.Seconds()) / 60
}

type Policy struct {
	AttemptLimit   int
	Cooldown       time.Duration
	GlobalCooldown time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		AttemptLimit:   3,
		Cooldown:       15 * time.Minute,
		GlobalCooldown: time.Minute,
	}
}

// CheckGlobal applies only the cross-channel spacing rule against the
// user's last successful generation.
func (p Policy) CheckGlobal(lastAttempt *time.Time, now time.Time) Decision {
	if lastAttempt == nil {
		return Decision{Outcome: Allow}
	}
	if elapsed := now.Sub(*lastAttempt); elapsed < p.GlobalCooldown {
		return Decision{Outcome: DenyGlobalCooldown, RetryAfter: p.GlobalCooldown - elapsed}
	}
	return Decision{Outcome: Allow}
}

// Check evaluates the global spacing rule, then the channel ledger, and
// returns the ledger to persist. A global denial leaves state untouched.
func (p Policy) Check(state State, lastAttempt *time.Time, now time.Time) (State, Decision) {
	if d := p.CheckGlobal(lastAttempt, now); !d.Allowed() {
		return state, d
	}

	if state.CooldownUntil != nil {
		if now.Before(*state.CooldownUntil) {
			return state, Decision{Outcome: DenyRateLimited, RetryAfter: state.CooldownUntil.Sub(now)}
		}
		state.CooldownUntil = nil
	}

	if state.Count >= p.AttemptLimit {
		until := now.Add(p.Cooldown)
		state.CooldownUntil = &until
		state.Count = 0
		return state, Decision{Outcome: DenyTooManyAttempts, RetryAfter: p.Cooldown}
	}

	state.Count++
	attempt := now
	state.LastAttempt = &attempt
	return state, Decision{Outcome: Allow}
}

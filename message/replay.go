package message

import (
	"fmt"
	"time"

	"github.com/dropbox/godropbox/time2"
)

const (
	// DefaultMaxAge is how long a challenge stays valid after it was issued.
	DefaultMaxAge = 5 * time.Minute
	// DefaultClockSkew is how far in the future a challenge may be dated.
	DefaultClockSkew = time.Minute
)

// ReplayGuard enforces the freshness window of challenge messages.
type ReplayGuard struct {
	clock     time2.Clock
	maxAge    time.Duration
	clockSkew time.Duration
}

// ReplayOption configures a ReplayGuard.
type ReplayOption func(*ReplayGuard)

// WithClock sets the clock used as "now".
func WithClock(clock time2.Clock) ReplayOption {
	return func(g *ReplayGuard) { g.clock = clock }
}

// WithMaxAge overrides DefaultMaxAge. Non-positive values are ignored.
func WithMaxAge(d time.Duration) ReplayOption {
	return func(g *ReplayGuard) {
		if d > 0 {
			g.maxAge = d
		}
	}
}

// WithClockSkew overrides DefaultClockSkew. Negative values are ignored.
func WithClockSkew(d time.Duration) ReplayOption {
	return func(g *ReplayGuard) {
		if d >= 0 {
			g.clockSkew = d
		}
	}
}

// NewReplayGuard creates a ReplayGuard with the default window.
func NewReplayGuard(options ...ReplayOption) *ReplayGuard {
	g := &ReplayGuard{
		clock:     time2.DefaultClock,
		maxAge:    DefaultMaxAge,
		clockSkew: DefaultClockSkew,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Check fails with KindExpired when issuedAt is more than the maximum age in
// the past, and with KindFuture when it is more than the allowed skew in the
// future. Both bounds are inclusive.
func (g *ReplayGuard) Check(issuedAt time.Time) error {
	now := g.clock.Now()

	if age := now.Sub(issuedAt); age > g.maxAge {
		return &Error{Kind: KindExpired, Reason: fmt.Sprintf("message expired %s ago", (age - g.maxAge).Truncate(time.Second))}
	}
	if ahead := issuedAt.Sub(now); ahead > g.clockSkew {
		return &Error{Kind: KindFuture, Reason: fmt.Sprintf("message is dated %s in the future", ahead.Truncate(time.Second))}
	}
	return nil
}

// Validate parses message and checks its timestamp.
func (g *ReplayGuard) Validate(message string) error {
	fields, err := Parse(message)
	if err != nil {
		return err
	}
	return g.Check(fields.IssuedAt)
}

// Now returns the guard's current time.
func (g *ReplayGuard) Now() time.Time {
	return g.clock.Now()
}

package conn

import (
	"context"
	"time"
)

type constraintKind int

const (
	constraintNone constraintKind = iota
	constraintAt
	constraintWithin
)

// TimeConstraint bounds how long an operation may remain pending. It is
// either unbounded, an absolute deadline, or a relative duration. A relative
// constraint is resolved to an absolute deadline at operation entry.
type TimeConstraint struct {
	kind     constraintKind
	deadline time.Time
	duration time.Duration
}

// None returns an unbounded time constraint.
func None() TimeConstraint {
	return TimeConstraint{kind: constraintNone}
}

// Deadline returns an absolute time constraint.
func Deadline(at time.Time) TimeConstraint {
	return TimeConstraint{kind: constraintAt, deadline: at}
}

// Within returns a relative time constraint.
func Within(d time.Duration) TimeConstraint {
	return TimeConstraint{kind: constraintWithin, duration: d}
}

// IsNone reports whether the constraint is unbounded.
func (t TimeConstraint) IsNone() bool {
	return t.kind == constraintNone
}

// Resolve converts a relative constraint to an absolute one. Absolute and
// unbounded constraints are returned unchanged.
func (t TimeConstraint) Resolve(now time.Time) TimeConstraint {
	if t.kind == constraintWithin {
		return Deadline(now.Add(t.duration))
	}
	return t
}

// Remaining returns the time left until the constraint expires, measured
// from now. It returns a negative duration for an expired constraint and
// does not have a meaningful value for an unbounded one.
func (t TimeConstraint) Remaining(now time.Time) time.Duration {
	switch t.kind {
	case constraintAt:
		return t.deadline.Sub(now)
	case constraintWithin:
		return t.duration
	}
	return 0
}

// Divide splits the remaining time across n tries and returns the
// per-try constraint. Used by failover strategies which degrade the
// constraint between attempts.
func (t TimeConstraint) Divide(now time.Time, n int) TimeConstraint {
	if t.kind == constraintNone {
		return t
	}
	if n <= 0 {
		return Within(0)
	}
	left := t.Remaining(now)
	if left < 0 {
		left = 0
	}
	return Within(left / time.Duration(n))
}

// Min returns the tighter of the constraint and the given duration, as a
// relative constraint. An unbounded constraint yields the duration itself.
func (t TimeConstraint) Min(d time.Duration, now time.Time) TimeConstraint {
	if t.kind == constraintNone {
		return Within(d)
	}
	if left := t.Remaining(now); left < d {
		return Within(left)
	}
	return Within(d)
}

// Apply derives a context bounded by the constraint. The returned cancel
// function must be called on every exit path.
func (t TimeConstraint) Apply(ctx context.Context) (context.Context, context.CancelFunc) {
	switch t.kind {
	case constraintAt:
		return context.WithDeadline(ctx, t.deadline)
	case constraintWithin:
		return context.WithTimeout(ctx, t.duration)
	}
	return context.WithCancel(ctx)
}

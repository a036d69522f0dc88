package fallcache

import (
	"context"
	"time"
)

// Decision is the outcome of a throttle check.
type Decision struct {
	// Allowed is false once the client exceeded the limit for the window.
	Allowed bool
	// Count is the number of attempts in the current window, this one
	// included.
	Count int64
	// Remaining is how many more attempts the window permits. Never
	// negative.
	Remaining int64
}

// Throttle counts attempts per client and action in fixed windows on top of
// Manager.Increment. The window starts at the first attempt and resets when
// the counter entry expires.
//
// Counting rides on the backend's atomic increment, so a limit holds across
// processes sharing the same backend.
type Throttle struct {
	m      Manager
	limit  int64
	window time.Duration
}

// NewThrottle allows up to limit attempts per window for each
// (client, action) pair.
func NewThrottle(m Manager, limit int64, window time.Duration) *Throttle {
	return &Throttle{m: m, limit: limit, window: window}
}

// Allow records one attempt and reports whether it is within the limit. An
// error means the counter could not be advanced atomically; callers decide
// whether to fail open or closed.
func (t *Throttle) Allow(ctx context.Context, client, action string) (Decision, error) {
	key := "throttle:" + client + ":" + action
	n, err := t.m.Increment(ctx, key, 1, t.window)
	if err != nil {
		return Decision{}, err
	}
	d := Decision{
		Allowed: n <= t.limit,
		Count:   n,
	}
	if rem := t.limit - n; rem > 0 {
		d.Remaining = rem
	}
	return d, nil
}

// ResetClient clears the counter for one (client, action) pair, for
// operator-driven unblocking.
func (t *Throttle) ResetClient(ctx context.Context, client, action string) error {
	return t.m.Delete(ctx, "throttle:"+client+":"+action)
}

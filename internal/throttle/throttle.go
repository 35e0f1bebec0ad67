// Package throttle provides a process-wide sliding-window counter of failed
// login attempts used for admission control.
package throttle

import (
	"sync"
	"time"
)

// Defaults for the login throttle window.
const (
	DefaultWindow      = 5 * time.Minute
	DefaultMaxFailures = 5
)

// LoginThrottle counts failed login attempts in a sliding window. It is
// shared by all concurrent requests for the process lifetime, so every
// access goes through the mutex; the timestamps live in a fixed-capacity
// ring buffer that never grows past maxFailures+1 entries (older failures
// beyond the blocking threshold carry no extra information).
type LoginThrottle struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	ring   []time.Time
	head   int
	count  int
	clock  func() time.Time
}

// New returns a LoginThrottle blocking after more than maxFailures failures
// inside window. Non-positive arguments fall back to the defaults.
func New(window time.Duration, maxFailures int) *LoginThrottle {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	return &LoginThrottle{
		window: window,
		max:    maxFailures,
		ring:   make([]time.Time, maxFailures+1),
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the throttle clock. Test hook.
func (t *LoginThrottle) WithClock(clock func() time.Time) *LoginThrottle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clock = clock
	return t
}

// RecordFailure registers a failed login at the current time and evicts
// entries that have left the window.
func (t *LoginThrottle) RecordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	t.evict(now)
	if t.count == len(t.ring) {
		// Ring full: drop the oldest entry; it is redundant for the
		// blocked decision.
		t.head = (t.head + 1) % len(t.ring)
		t.count--
	}
	t.ring[(t.head+t.count)%len(t.ring)] = now
	t.count++
}

// Blocked reports whether more than the allowed number of failures remain in
// the window.
func (t *LoginThrottle) Blocked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evict(t.clock())
	return t.count > t.max
}

// evict drops entries older than the window. Caller holds the mutex.
func (t *LoginThrottle) evict(now time.Time) {
	cut := now.Add(-t.window)
	for t.count > 0 && !t.ring[t.head].After(cut) {
		t.head = (t.head + 1) % len(t.ring)
		t.count--
	}
}

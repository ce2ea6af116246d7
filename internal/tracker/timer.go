package tracker

import (
	"sync"
	"time"
)

// idleTimer is a cancel-and-reschedule timer. Each arm bumps a generation so
// a fire that was already queued when the timer was re-armed or cancelled can
// be recognised as stale.
type idleTimer struct {
	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64
	deadline time.Time
}

// Reset cancels any armed timer and arms a new one that calls fire with its
// generation after d.
func (t *idleTimer) Reset(d time.Duration, fire func(gen uint64)) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.deadline = time.Now().Add(d)
	t.timer = time.AfterFunc(d, func() { fire(gen) })
	return gen
}

// Cancel disarms the timer. Safe to call when nothing is armed or the timer
// already fired.
func (t *idleTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	t.deadline = time.Time{}
}

// Expire consumes the armed timer if gen is still current.
func (t *idleTimer) Expire(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer == nil || t.gen != gen {
		return false
	}
	t.timer = nil
	t.deadline = time.Time{}
	return true
}

// Deadline returns when the armed timer fires.
func (t *idleTimer) Deadline() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer == nil {
		return time.Time{}, false
	}
	return t.deadline, true
}

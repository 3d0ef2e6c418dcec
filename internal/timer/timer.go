// Package timer schedules cancellable one-shot callbacks.
package timer

import (
	"sync"
	"time"
)

// Handle cancels a scheduled callback.
type Handle interface {
	// Cancel stops the callback from running. It reports whether the call
	// stopped the callback; it returns false once the callback has fired or
	// was already cancelled.
	Cancel() bool
}

// Scheduler runs fn once after delay unless cancelled first.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Handle
}

// NewScheduler returns a Scheduler backed by time.AfterFunc.
func NewScheduler() Scheduler {
	return realScheduler{}
}

type realScheduler struct{}

func (realScheduler) Schedule(delay time.Duration, fn func()) Handle {
	return realHandle{t: time.AfterFunc(delay, fn)}
}

type realHandle struct {
	t *time.Timer
}

func (h realHandle) Cancel() bool {
	return h.t.Stop()
}

// Manual is a deterministic Scheduler for tests. Callbacks only run from
// Advance, on the calling goroutine.
type Manual struct {
	mu      sync.Mutex
	epoch   time.Time
	now     time.Duration
	nextSeq uint64
	pending []*manualHandle
}

// NewManual returns a Manual scheduler whose virtual clock starts at epoch.
func NewManual(epoch time.Time) *Manual {
	return &Manual{epoch: epoch}
}

// Now returns the virtual time. It only moves inside Advance, and reads the
// due time of the callback being run while one is running.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch.Add(m.now)
}

type manualHandle struct {
	m     *Manual
	seq   uint64
	due   time.Duration
	fn    func()
	state int // 0 pending, 1 fired, 2 cancelled
}

// Schedule implements Scheduler.
func (m *Manual) Schedule(delay time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSeq++
	h := &manualHandle{m: m, seq: m.nextSeq, due: m.now + delay, fn: fn}
	m.pending = append(m.pending, h)
	return h
}

func (h *manualHandle) Cancel() bool {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	if h.state != 0 {
		return false
	}
	h.state = 2
	return true
}

// Advance moves virtual time forward by d and runs every callback that
// became due, earliest first. Callbacks scheduled by a running callback run
// in the same call if they fall due within d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.popDue(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = next.due
		next.state = 1
		m.mu.Unlock()

		next.fn()
	}
}

// Pending returns the number of callbacks that have neither fired nor been
// cancelled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, h := range m.pending {
		if h.state == 0 {
			n++
		}
	}
	return n
}

// popDue removes and returns the earliest pending handle due at or before
// target. Caller holds m.mu.
func (m *Manual) popDue(target time.Duration) *manualHandle {
	best := -1
	live := m.pending[:0]
	for _, h := range m.pending {
		if h.state == 0 {
			live = append(live, h)
		}
	}
	m.pending = live
	for i, h := range m.pending {
		if h.due > target {
			continue
		}
		if best < 0 || h.due < m.pending[best].due ||
			(h.due == m.pending[best].due && h.seq < m.pending[best].seq) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	h := m.pending[best]
	m.pending = append(m.pending[:best], m.pending[best+1:]...)
	return h
}

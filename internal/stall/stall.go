// Package stall infers when a running agent session has gone quiet,
// likely blocked waiting on human input. The verdict is advisory only;
// it never mutates session state.
package stall

import (
	"sync"
	"time"
)

const (
	// DefaultInterval is how often the monitor samples.
	DefaultInterval = 3 * time.Second
	// DefaultThreshold is the quiet duration that counts as a stall.
	DefaultThreshold = 15 * time.Second
)

// Stalled reports whether a session with its last event at lastEventAt
// looks stalled as of now. A zero lastEventAt means no event has arrived
// yet and is never a stall.
func Stalled(lastEventAt, now time.Time, threshold time.Duration) bool {
	if lastEventAt.IsZero() {
		return false
	}
	return now.Sub(lastEventAt) >= threshold
}

// Monitor periodically samples a session's last-event time and reports
// stall-state changes. Create one while the session is active and being
// watched in non-interactive mode; Stop it as soon as any of those
// preconditions goes false, and create a fresh one when they return.
type Monitor struct {
	interval  time.Duration
	threshold time.Duration
	lastEvent func() time.Time
	notify    func(stalled bool)

	mu      sync.Mutex
	stalled bool
	stop    chan struct{}
	once    sync.Once
}

// NewMonitor builds a Monitor. lastEvent is sampled on every tick;
// notify fires only when the stall verdict changes. Zero durations fall
// back to the defaults.
func NewMonitor(interval, threshold time.Duration, lastEvent func() time.Time, notify func(stalled bool)) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Monitor{
		interval:  interval,
		threshold: threshold,
		lastEvent: lastEvent,
		notify:    notify,
		stop:      make(chan struct{}),
	}
}

// Start launches the sampling loop in a goroutine.
func (m *Monitor) Start() {
	go m.run()
}

// Stop tears the monitor down. Safe to call more than once.
func (m *Monitor) Stop() {
	m.once.Do(func() { close(m.stop) })
}

// Tick evaluates the stall verdict once, firing notify on a change.
// Start's run loop calls this every interval; a caller with its own
// clock (the TUI update loop) can drive it directly instead.
func (m *Monitor) Tick(now time.Time) bool {
	stalled := Stalled(m.lastEvent(), now, m.threshold)

	m.mu.Lock()
	changed := stalled != m.stalled
	m.stalled = stalled
	m.mu.Unlock()

	if changed && m.notify != nil {
		m.notify(stalled)
	}
	return stalled
}

func (m *Monitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.Tick(now)
		}
	}
}

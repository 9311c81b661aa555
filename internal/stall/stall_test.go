package stall

import (
	"testing"
	"time"
)

func TestStalled(t *testing.T) {
	now := time.Now()
	threshold := 15 * time.Second

	if !Stalled(now.Add(-20*time.Second), now, threshold) {
		t.Error("20s quiet with 15s threshold: want stalled")
	}
	if Stalled(now.Add(-5*time.Second), now, threshold) {
		t.Error("5s quiet with 15s threshold: want not stalled")
	}
	if !Stalled(now.Add(-15*time.Second), now, threshold) {
		t.Error("exactly at threshold: want stalled")
	}
	if Stalled(time.Time{}, now, threshold) {
		t.Error("zero lastEventAt: want not stalled")
	}
}

func TestMonitorTickNotifiesOnChange(t *testing.T) {
	last := time.Now().Add(-20 * time.Second)
	var fired []bool
	m := NewMonitor(DefaultInterval, 15*time.Second,
		func() time.Time { return last },
		func(stalled bool) { fired = append(fired, stalled) })

	now := time.Now()
	if !m.Tick(now) {
		t.Fatal("Tick = false, want stalled")
	}
	m.Tick(now.Add(3 * time.Second))
	if len(fired) != 1 || !fired[0] {
		t.Fatalf("notifications = %v, want single true", fired)
	}

	// New activity clears the stall.
	last = now
	m.Tick(now.Add(6 * time.Second))
	if len(fired) != 2 || fired[1] {
		t.Fatalf("notifications = %v, want [true false]", fired)
	}
}

func TestMonitorRunLoopAndStop(t *testing.T) {
	last := time.Now().Add(-time.Minute)
	got := make(chan bool, 1)
	m := NewMonitor(5*time.Millisecond, 10*time.Second,
		func() time.Time { return last },
		func(stalled bool) {
			select {
			case got <- stalled:
			default:
			}
		})
	m.Start()
	defer m.Stop()

	select {
	case stalled := <-got:
		if !stalled {
			t.Error("notified not-stalled, want stalled")
		}
	case <-time.After(time.Second):
		t.Fatal("monitor never ticked")
	}

	m.Stop()
	m.Stop() // idempotent
}

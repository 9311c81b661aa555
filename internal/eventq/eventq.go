// Package eventq provides a coalescing change signal for fan-out from
// the floor store to slow consumers such as WebSocket writers.
package eventq

// Notifier squashes bursts of change notifications into a single
// pending tick. Signal never blocks; a consumer draining Wait sees at
// least one tick for any number of signals since its last read.
type Notifier struct {
	ch chan struct{}
}

// NewNotifier returns a Notifier with one pending slot.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// Signal records that state changed. Safe from any goroutine.
func (n *Notifier) Signal() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// Wait returns the channel a consumer selects on.
func (n *Notifier) Wait() <-chan struct{} {
	return n.ch
}

package eventq

import "testing"

func TestSignalWakesWaiter(t *testing.T) {
	n := NewNotifier()
	n.Signal()
	select {
	case <-n.Wait():
	default:
		t.Fatal("expected a pending tick after Signal")
	}
}

func TestSignalCoalescesBursts(t *testing.T) {
	n := NewNotifier()
	for range 100 {
		n.Signal()
	}
	<-n.Wait()
	select {
	case <-n.Wait():
		t.Fatal("burst should collapse to a single tick")
	default:
	}
}

func TestSignalAfterDrainPendsAgain(t *testing.T) {
	n := NewNotifier()
	n.Signal()
	<-n.Wait()
	n.Signal()
	select {
	case <-n.Wait():
	default:
		t.Fatal("expected a fresh tick after the previous one was drained")
	}
}

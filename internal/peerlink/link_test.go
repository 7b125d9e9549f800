package peerlink

import "testing"

func TestLink_EnqueueWithinBoundKeepsEverything(t *testing.T) {
	l := newLink("Clark", "localhost:1", 3)

	if dropped := l.Enqueue("a"); dropped {
		t.Error("first enqueue should never drop")
	}
	l.Enqueue("b")
	l.Enqueue("c")

	if got := l.QueueLen(); got != 3 {
		t.Fatalf("expected queue length 3, got %d", got)
	}
}

func TestLink_EnqueueBeyondBoundDropsOldest(t *testing.T) {
	l := newLink("Clark", "localhost:1", 2)

	l.Enqueue("a")
	l.Enqueue("b")
	dropped := l.Enqueue("c")

	if !dropped {
		t.Fatal("expected the bound-exceeding enqueue to report a drop")
	}
	if got := l.QueueLen(); got != 2 {
		t.Fatalf("expected queue length capped at 2, got %d", got)
	}

	first, ok := l.PopFront()
	if !ok || first != "b" {
		t.Errorf("expected oldest entry 'a' to have been evicted, front is %q", first)
	}
}

func TestLink_PopFrontFIFOOrder(t *testing.T) {
	l := newLink("Clark", "localhost:1", 10)
	l.Enqueue("a")
	l.Enqueue("b")

	first, _ := l.PopFront()
	second, _ := l.PopFront()
	if first != "a" || second != "b" {
		t.Errorf("expected FIFO order a,b got %q,%q", first, second)
	}

	if _, ok := l.PopFront(); ok {
		t.Error("expected PopFront on an empty queue to report ok=false")
	}
}

func TestLink_StateTransitions(t *testing.T) {
	l := newLink("Clark", "localhost:1", 10)
	if l.State() != Disconnected {
		t.Fatalf("expected initial state Disconnected, got %v", l.State())
	}
	l.setState(Connecting)
	if l.State() != Connecting {
		t.Errorf("expected Connecting, got %v", l.State())
	}
	l.setState(Connected)
	if l.State() != Connected {
		t.Errorf("expected Connected, got %v", l.State())
	}
}

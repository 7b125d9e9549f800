// Package peerlink maintains best-effort outbound connections to each
// configured neighbor and exposes a non-blocking enqueue operation for
// flooded AT lines (spec.md §4.5).
package peerlink

import (
	"sync"
)

// State is one of disconnected, connecting, connected — spec.md §3's
// NeighborLink.state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Link is one NeighborLink: a peer name, its TCP endpoint, its state,
// and its bounded outbound FIFO. Exclusively owned by its dedicated
// sender goroutine (spec.md §3's ownership rule) except for the
// synchronized fields below, which the flood engine's Enqueue also
// touches from other goroutines.
type Link struct {
	PeerName string
	Endpoint string

	bound int

	mu       sync.Mutex
	state    State
	queue    []string
	lastErr  error
	notifyCh chan struct{}
}

func newLink(peerName, endpoint string, bound int) *Link {
	return &Link{
		PeerName: peerName,
		Endpoint: endpoint,
		bound:    bound,
		notifyCh: make(chan struct{}, 1),
	}
}

// Enqueue appends line to the outbound FIFO without blocking. If the
// queue is already at its bound, the oldest entry is evicted to make
// room — spec.md §4.5's "bounded queue, drop-oldest" — and dropped
// reports true so the caller (the flood engine) can record its counter,
// satisfying §4.4's "drop the message ... record a counter" from the
// same event.
func (l *Link) Enqueue(line string) (dropped bool) {
	l.mu.Lock()
	if len(l.queue) >= l.bound {
		l.queue = l.queue[1:]
		dropped = true
	}
	l.queue = append(l.queue, line)
	l.mu.Unlock()

	select {
	case l.notifyCh <- struct{}{}:
	default:
	}
	return dropped
}

// PopFront removes and returns the oldest queued line, if any.
func (l *Link) PopFront() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return "", false
	}
	line := l.queue[0]
	l.queue = l.queue[1:]
	return line, true
}

// QueueLen reports the current backlog. Diagnostic only.
func (l *Link) QueueLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Link) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// State reports the link's current connection state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Link) setLastErr(err error) {
	l.mu.Lock()
	l.lastErr = err
	l.mu.Unlock()
}

// LastError returns the most recent dial or write error observed on this
// link, or nil.
func (l *Link) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

package peerlink

import (
	"bufio"
	"context"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/heitortanoue/serverherd/internal/logging"
	"github.com/heitortanoue/serverherd/internal/metrics"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	dialTimeout    = 5 * time.Second
	idlePoll       = 200 * time.Millisecond
)

// Manager runs one dedicated sender per configured neighbor, each
// implementing the dial/backoff/drain state machine from spec.md §4.5.
type Manager struct {
	links map[string]*Link

	// ownPort, when nonzero, is used as the local port for every
	// outbound dial. It lets the accepting side identify which
	// neighbor an inbound connection belongs to by reverse-looking-up
	// the remote port against the configured peer ports (see
	// herd.identifyPeer) — no application-level handshake needed.
	ownPort int

	log     *logging.Logger
	metrics *metrics.Registry

	wg sync.WaitGroup
}

// NewManager creates a Manager with one Link per (peerName, endpoint)
// pair. It does not start any goroutines until Start is called. ownPort
// is the local member's own listen port; pass 0 to let the OS pick an
// ephemeral source port per dial (fine for tests that never need to
// identify the connection on the accepting side).
func NewManager(peers map[string]string, queueBound, ownPort int, log *logging.Logger, reg *metrics.Registry) *Manager {
	links := make(map[string]*Link, len(peers))
	for name, endpoint := range peers {
		links[name] = newLink(name, endpoint, queueBound)
	}
	return &Manager{links: links, ownPort: ownPort, log: log, metrics: reg}
}

// Links exposes the managed links, keyed by peer name. Used by the
// flood engine to enumerate "every neighbor except source" and by tests.
func (m *Manager) Links() map[string]*Link {
	return m.links
}

// Enqueue appends line onto peerName's outbound FIFO. found is false if
// peerName names no configured neighbor (a caller bug, not a runtime
// condition); dropped is true if an older entry was evicted to make
// room (spec.md §4.4/§4.5).
func (m *Manager) Enqueue(peerName, line string) (dropped, found bool) {
	link, ok := m.links[peerName]
	if !ok {
		return false, false
	}
	return link.Enqueue(line), true
}

// Start launches every neighbor's sender goroutine. Each runs until ctx
// is canceled.
func (m *Manager) Start(ctx context.Context) {
	for _, link := range m.links {
		m.wg.Add(1)
		go m.runLink(ctx, link)
	}
}

// Wait blocks until every sender goroutine has exited — used by the
// lifecycle's bounded shutdown grace window.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// runLink drives one neighbor's state machine: disconnected ->
// connecting -> connected, with exponential backoff (jittered into
// [backoff/2, backoff], reset on successful connect) on dial failure,
// and a transition back to
// disconnected on any write error or peer close (spec.md §4.5's table).
func (m *Manager) runLink(ctx context.Context, link *Link) {
	defer m.wg.Done()

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		link.setState(Connecting)
		dialer := net.Dialer{Timeout: dialTimeout}
		if m.ownPort != 0 {
			dialer.LocalAddr = &net.TCPAddr{Port: m.ownPort}
		}
		conn, err := dialer.DialContext(ctx, "tcp", link.Endpoint)
		if err != nil {
			link.setState(Disconnected)
			link.setLastErr(err)
			m.metrics.Incr(metrics.PeerDialErr)
			if m.log != nil {
				m.log.Infof("peer %s dial failed: %v (retrying in %v)", link.PeerName, err, backoff)
			}
			if !m.sleep(ctx, jitter(backoff)) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		m.metrics.Incr(metrics.PeerDialOK)
		link.setLastErr(nil)
		link.setState(Connected)
		backoff = initialBackoff

		m.drain(ctx, link, conn)
	}
}

// drain writes queued lines to conn until the link disconnects, the
// context is canceled, or a write fails. It blocks on link.notifyCh
// between lines rather than busy-polling, per spec.md §5's suspension
// point for "writing bytes to a connection".
func (m *Manager) drain(ctx context.Context, link *Link, conn net.Conn) {
	defer conn.Close()
	w := bufio.NewWriter(conn)

	for {
		line, ok := link.PopFront()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-link.notifyCh:
				continue
			case <-time.After(idlePoll):
				continue
			}
		}

		_, err := w.WriteString(line + "\n")
		if err == nil {
			err = w.Flush()
		}
		if err != nil {
			link.setState(Disconnected)
			link.setLastErr(err)
			return
		}

		if ctx.Err() != nil {
			return
		}
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		next = maxBackoff
	}
	return next
}

// jitter returns a duration uniformly distributed in [d/2, d], so
// concurrently-reconnecting neighbors don't all redial in lockstep.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half+1)))
}

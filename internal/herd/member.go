// Package herd wires one herd member's components together and owns its
// listener/lifecycle: bind, accept, dispatch, and a bounded shutdown
// drain (spec.md §4.6).
package herd

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/heitortanoue/serverherd/internal/config"
	"github.com/heitortanoue/serverherd/internal/flood"
	"github.com/heitortanoue/serverherd/internal/healthwatch"
	"github.com/heitortanoue/serverherd/internal/logging"
	"github.com/heitortanoue/serverherd/internal/metrics"
	"github.com/heitortanoue/serverherd/internal/peerlink"
	"github.com/heitortanoue/serverherd/internal/places"
	"github.com/heitortanoue/serverherd/internal/protocol"
	"github.com/heitortanoue/serverherd/internal/store"
)

const (
	// shutdownGrace bounds how long Shutdown waits for in-flight
	// handlers and peer senders to drain before giving up, per
	// spec.md §4.6.
	shutdownGrace = 5 * time.Second

	// loopbackHost is the implicit host for every configured peer
	// endpoint: spec.md §2 describes a herd sharing "a host or
	// reachable network", and the configuration (spec.md §6) only
	// ever names ports, never hostnames, matching the benchmark
	// harness's assumption that the whole herd runs on one machine.
	loopbackHost = "127.0.0.1"

	// placesClientSlack is added to whatsat_timeout when building the
	// underlying http.Client's own timeout, so the context deadline
	// (which the places client also honors per request) is always the
	// one that fires first.
	placesClientSlack = 2 * time.Second
)

// Member assembles every per-member component from a config.View — store,
// places client, peer link manager, flood engine, protocol handler — and
// owns the TCP listener that feeds them (spec.md §2's component list,
// leaves first).
type Member struct {
	view *config.View
	log  *logging.Logger
	reg  *metrics.Registry

	store   *store.Store
	peers   *peerlink.Manager
	flood   *flood.Engine
	places  *places.Client
	handler *protocol.Handler

	health *healthwatch.Monitor

	// peerByPort identifies an inbound connection as peer-originated:
	// a neighbor always dials out using its own listen port as the
	// connection's local (source) port (see peerlink.Manager's
	// ownPort), so the accepting side can reverse-look-up the remote
	// port without any application-level handshake.
	peerByPort map[int]string

	listener net.Listener
	wg       sync.WaitGroup

	cancel context.CancelFunc
}

// New assembles a Member for view, logging to w. It does not bind any
// socket or start any goroutine — call Start for that.
func New(view *config.View, w io.Writer) *Member {
	log := logging.New(w, view.OwnName, "HERD")
	reg := metrics.New()
	s := store.New()

	endpoints := make(map[string]string, len(view.NeighborNames))
	peerByPort := make(map[int]string, len(view.NeighborNames))
	for _, name := range view.NeighborNames {
		port := view.PeerPorts[name]
		endpoints[name] = fmt.Sprintf("%s:%d", loopbackHost, port)
		peerByPort[port] = name
	}

	peers := peerlink.NewManager(endpoints, view.PeerQueueBound, view.OwnPort,
		logging.New(w, view.OwnName, "PEERLINK"), reg)

	fe := flood.New(s, peers, reg, logging.New(w, view.OwnName, "FLOOD"))

	httpClient := &http.Client{Timeout: view.WhatsatTimeoutDuration() + placesClientSlack}
	placesClient := places.New(view.PlacesEndpoint, view.APIKey, httpClient, reg)

	h := protocol.New(view, s, fe, placesClient,
		logging.New(w, view.OwnName, "PROTOCOL"), reg, nil)

	return &Member{
		view:       view,
		log:        log,
		reg:        reg,
		store:      s,
		peers:      peers,
		flood:      fe,
		places:     placesClient,
		handler:    h,
		peerByPort: peerByPort,
	}
}

// Store exposes the location store for diagnostics and tests.
func (m *Member) Store() *store.Store { return m.store }

// Metrics exposes the counter registry for diagnostics and tests.
func (m *Member) Metrics() *metrics.Registry { return m.reg }

// Addr reports the listener's bound address. Valid only after Start
// returns successfully; used by tests that bind an ephemeral port.
func (m *Member) Addr() net.Addr {
	if m.listener == nil {
		return nil
	}
	return m.listener.Addr()
}

// Start binds the member's listen port, starts every neighbor's sender
// goroutine, optionally starts the cluster health monitor, and begins
// accepting connections. It derives its own cancelable context from
// parent, so Shutdown can stop every spawned goroutine on its own
// without relying on the caller to cancel anything.
func (m *Member) Start(parent context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", m.view.OwnPort))
	if err != nil {
		return fmt.Errorf("herd: bind port %d: %w", m.view.OwnPort, err)
	}
	m.listener = ln

	ctx, cancel := context.WithCancel(parent)
	m.cancel = cancel

	m.peers.Start(ctx)

	if m.view.Health.Enabled {
		mon, err := healthwatch.Start(healthwatch.Config{
			OwnName:  m.view.OwnName,
			BindPort: m.view.Health.BindPort,
			Seeds:    m.view.Health.Seeds,
		}, logging.New(io.Discard, m.view.OwnName, "HEALTH"), m.reg)
		if err != nil {
			m.log.Warnf("health monitor failed to start: %v", err)
		} else {
			m.health = mon
		}
	}

	m.log.Infof("listening on %s", ln.Addr())

	m.wg.Add(1)
	go m.acceptLoop(ctx)

	return nil
}

// acceptLoop accepts inbound connections — client- and peer-originated
// alike (spec.md §4.5: "peer-originated connections look identical to
// client connections") — and dispatches each to its own handler
// goroutine, identifying the source tag before handing off.
func (m *Member) acceptLoop(ctx context.Context) {
	defer m.wg.Done()

	for {
		conn, err := m.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Warnf("accept error: %v", err)
			continue
		}

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			sourceTag := m.identifyPeer(conn)
			m.handler.HandleConnection(ctx, conn, sourceTag)
		}()
	}
}

// identifyPeer reports the neighbor name an inbound connection belongs
// to, or flood.LocalSource if it doesn't match any known neighbor's
// listen port — in which case it's an ordinary client connection.
func (m *Member) identifyPeer(conn net.Conn) string {
	addr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return flood.LocalSource
	}
	if name, ok := m.peerByPort[addr.Port]; ok {
		return name
	}
	return flood.LocalSource
}

// Shutdown cancels every goroutine Start spawned, closes the listener so
// no new connections are accepted, stops the health monitor, then waits
// up to shutdownGrace for every in-flight handler and peer sender to
// drain before returning — spec.md §4.6.
func (m *Member) Shutdown() error {
	if m.cancel != nil {
		m.cancel()
	}
	if m.listener != nil {
		m.listener.Close()
	}
	if m.health != nil {
		if err := m.health.Shutdown(); err != nil {
			m.log.Warnf("health monitor shutdown: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		m.peers.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownGrace):
		m.log.Warnf("shutdown grace window elapsed before all tasks drained")
	}
	return nil
}

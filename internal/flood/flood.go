// Package flood implements the duplicate-suppressing flood-propagation
// algorithm described in spec.md §4.4: apply to the store, and if novel,
// fan the update out to every neighbor but the one it arrived from.
package flood

import (
	"github.com/heitortanoue/serverherd/internal/logging"
	"github.com/heitortanoue/serverherd/internal/metrics"
	"github.com/heitortanoue/serverherd/internal/model"
	"github.com/heitortanoue/serverherd/internal/peerlink"
	"github.com/heitortanoue/serverherd/internal/store"
)

// LocalSource marks an update as having arrived directly from a client
// (via IAMAT) rather than from a peer link. No configured neighbor is
// ever named "", so it can never collide with a real peer name.
const LocalSource = ""

// Engine decides novelty via the store and fans out via the peer link
// manager. It holds no state of its own beyond references to those two
// collaborators — per spec.md §9, the store's monotone-timestamp
// invariant is the only "seen set" this design needs.
type Engine struct {
	store   *store.Store
	peers   *peerlink.Manager
	metrics *metrics.Registry
	log     *logging.Logger
}

// New creates a flood Engine over the given store and peer link manager.
func New(s *store.Store, peers *peerlink.Manager, reg *metrics.Registry, log *logging.Logger) *Engine {
	return &Engine{store: s, peers: peers, metrics: reg, log: log}
}

// Apply applies rec to the store and, if it was novel, enqueues its
// RawATLine on every neighbor link except source (LocalSource for a
// client-originated IAMAT, or the peer name the AT arrived on). It
// returns the store's decision so the protocol handler can use the same
// call for both IAMAT's store write and the flood.
func (e *Engine) Apply(rec model.Record, source string) store.Decision {
	decision := e.store.Apply(rec)
	if decision == store.Ignored {
		return decision
	}

	for peerName := range e.peers.Links() {
		if peerName == source {
			continue
		}

		dropped, _ := e.peers.Enqueue(peerName, rec.RawATLine)
		e.metrics.Incr(metrics.FloodFanout)
		if dropped {
			e.metrics.Incr(metrics.FloodDropped)
			if e.log != nil {
				e.log.Warnf("peer %s outbound queue full; evicted oldest entry for client %s", peerName, rec.ClientID)
			}
		}
	}

	return decision
}

// Package metrics is the process-wide counter registry shared by the
// flood engine, the places client, the peer link manager, and the
// protocol handler. It wraps github.com/armon/go-metrics — the library
// the cluster health monitor's SWIM stack already depends on — instead
// of hand-rolling an atomic counter map.
package metrics

import (
	"sync"

	gometrics "github.com/armon/go-metrics"
)

// Names of the counters incremented across the herd member. Kept as
// constants so call sites can't typo a label that silently never shows
// up in a snapshot.
const (
	FloodFanout          = "flood.fanout"
	FloodDropped         = "flood.dropped"
	PlacesFailure        = "places.failure"
	PlacesTimeout        = "places.timeout"
	PeerDialOK           = "peer.dial_ok"
	PeerDialErr          = "peer.dial_err"
	ProtocolInvalidInput = "protocol.invalid_command"
)

// Registry is a thin, test-friendly facade over an in-memory go-metrics
// sink. A nil *Registry is valid and discards every increment, so
// components can be constructed without one in unit tests that don't
// care about counters.
type Registry struct {
	mu     sync.Mutex
	sink   *gometrics.InmemSink
	counts map[string]int64
}

// New creates a Registry backed by a fresh in-memory go-metrics sink.
func New() *Registry {
	sink := gometrics.NewInmemSink(gometricsInterval, gometricsRetain)
	return &Registry{
		sink:   sink,
		counts: make(map[string]int64),
	}
}

const (
	gometricsInterval = 1 << 30 // effectively one long-lived interval bucket
	gometricsRetain   = 2
)

// Incr increments the named counter by one. Safe for concurrent use from
// any goroutine — this is the only operation the hot paths (flood
// fan-out, queue-full drop) call, and it must never block.
func (r *Registry) Incr(name string) {
	if r == nil {
		return
	}
	r.sink.IncrCounter([]string{name}, 1)

	r.mu.Lock()
	r.counts[name]++
	r.mu.Unlock()
}

// Snapshot returns a point-in-time copy of every counter seen so far.
// Reachable through herd.Member.Metrics(); used by tests. Nothing in the
// member logs it on its own.
func (r *Registry) Snapshot() map[string]int64 {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int64, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

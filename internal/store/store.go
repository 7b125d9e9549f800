// Package store holds the per-client LocationStore: the single
// shared-read, single-writer-at-a-time structure the flood engine and
// the protocol handler both depend on (spec.md §3, §5).
package store

import (
	"sync"

	"github.com/heitortanoue/serverherd/internal/model"
)

// Decision reports whether LocationStore.Apply accepted or ignored a
// record, so callers (the flood engine) can gate propagation on it —
// this is the store's sole role as the "seen set": spec.md §9 is
// explicit that no separate seen structure should exist.
type Decision int

const (
	// Ignored means the incoming record's timestamp did not strictly
	// improve on what's stored; the flood must stop here.
	Ignored Decision = iota
	// Applied means the record is now the stored value for its client.
	Applied
)

// Store is a mapping from client name to the most recent accepted
// LocationRecord. Exactly one record is held per client_id: the one
// with the largest client_timestamp ever observed, ties broken by
// first arrival (spec.md §3 invariant 1, §4.2's ordering rule).
type Store struct {
	mu      sync.RWMutex
	records map[string]model.Record
}

// New creates an empty Store.
func New() *Store {
	return &Store{records: make(map[string]model.Record)}
}

// Apply accepts rec only if its ClientTimestamp is strictly greater than
// the currently stored record for the same client, or no record exists
// yet. Equal timestamps are ignored — first arrival wins, which is what
// terminates floods on a graph with cycles (spec.md §4.2, §4.4).
func (s *Store) Apply(rec model.Record) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[rec.ClientID]
	if ok && rec.ClientTimestamp <= existing.ClientTimestamp {
		return Ignored
	}

	s.records[rec.ClientID] = rec
	return Applied
}

// Get returns a read-only snapshot of the stored record for clientID, if
// any.
func (s *Store) Get(clientID string) (model.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[clientID]
	return rec, ok
}

// Len reports how many distinct clients currently have a record. A
// diagnostic accessor; not part of the spec's contract.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

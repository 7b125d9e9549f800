package store

import (
	"sync"
	"testing"

	"github.com/heitortanoue/serverherd/internal/model"
)

func rec(clientID string, ts float64, raw string) model.Record {
	return model.Record{ClientID: clientID, ClientTimestamp: ts, RawATLine: raw}
}

func TestStore_ApplyFirstRecordIsAlwaysApplied(t *testing.T) {
	s := New()
	if d := s.Apply(rec("kiwi", 1000, "AT Bailey ... 1000")); d != Applied {
		t.Fatalf("expected Applied, got %v", d)
	}
	got, ok := s.Get("kiwi")
	if !ok || got.ClientTimestamp != 1000 {
		t.Fatalf("unexpected stored record: %+v, ok=%v", got, ok)
	}
}

func TestStore_StrictlyNewerTimestampWins(t *testing.T) {
	s := New()
	s.Apply(rec("kiwi", 1000, "first"))

	if d := s.Apply(rec("kiwi", 2000, "second")); d != Applied {
		t.Fatalf("expected a newer timestamp to be Applied, got %v", d)
	}
	got, _ := s.Get("kiwi")
	if got.RawATLine != "second" {
		t.Errorf("expected the newer record to win, got %q", got.RawATLine)
	}
}

func TestStore_EqualTimestampFirstArrivalWins(t *testing.T) {
	s := New()
	s.Apply(rec("kiwi", 1000, "first"))

	if d := s.Apply(rec("kiwi", 1000, "second")); d != Ignored {
		t.Fatalf("expected an equal timestamp to be Ignored, got %v", d)
	}
	got, _ := s.Get("kiwi")
	if got.RawATLine != "first" {
		t.Errorf("expected first arrival to win, got %q", got.RawATLine)
	}
}

func TestStore_OlderTimestampIsIgnored(t *testing.T) {
	s := New()
	s.Apply(rec("kiwi", 2000, "newer"))

	if d := s.Apply(rec("kiwi", 1000, "older")); d != Ignored {
		t.Fatalf("expected an older timestamp to be Ignored, got %v", d)
	}
}

func TestStore_GetUnknownClient(t *testing.T) {
	s := New()
	if _, ok := s.Get("nobody"); ok {
		t.Error("expected ok=false for an unknown client")
	}
}

func TestStore_ConcurrentApplyIsSerialized(t *testing.T) {
	s := New()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		ts := float64(i)
		go func() {
			defer wg.Done()
			s.Apply(rec("kiwi", ts, "concurrent"))
		}()
	}
	wg.Wait()

	got, ok := s.Get("kiwi")
	if !ok || got.ClientTimestamp != 99 {
		t.Fatalf("expected the max timestamp (99) to win, got %+v", got)
	}
}

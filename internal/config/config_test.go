package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoad_ValidSymmetricConfig(t *testing.T) {
	path := writeTempConfig(t, `
servers:
  Bailey: 10097
  Clark: 10098
  Jaquez: 10099
neighbors:
  Bailey: [Clark]
  Clark: [Bailey, Jaquez]
  Jaquez: [Clark]
api_key: test-key
whatsat_timeout: 2.5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned unexpected error: %v", err)
	}

	if len(cfg.Servers) != 3 {
		t.Errorf("expected 3 servers, got %d", len(cfg.Servers))
	}
	if cfg.WhatsatTimeout != 2.5 {
		t.Errorf("expected whatsat_timeout 2.5, got %v", cfg.WhatsatTimeout)
	}
	if cfg.PeerQueueBound != defaultPeerQueueBound {
		t.Errorf("expected default peer_queue_bound %d, got %d", defaultPeerQueueBound, cfg.PeerQueueBound)
	}
	if cfg.PlacesEndpoint != defaultPlacesEndpoint {
		t.Errorf("expected default places_endpoint, got %q", cfg.PlacesEndpoint)
	}
}

func TestLoad_AsymmetricNeighborsIsFatal(t *testing.T) {
	path := writeTempConfig(t, `
servers:
  Bailey: 10097
  Clark: 10098
neighbors:
  Bailey: [Clark]
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an error for asymmetric neighbor edges, got nil")
	}
}

func TestLoad_DuplicatePortIsFatal(t *testing.T) {
	path := writeTempConfig(t, `
servers:
  Bailey: 10097
  Clark: 10097
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an error for duplicate ports, got nil")
	}
}

func TestLoad_UnknownNeighborIsFatal(t *testing.T) {
	path := writeTempConfig(t, `
servers:
  Bailey: 10097
neighbors:
  Bailey: [Ghost]
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an error for an unknown neighbor reference, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml")); err == nil {
		t.Fatal("expected an error for a missing config file, got nil")
	}
}

func TestNewView_UnknownServerName(t *testing.T) {
	path := writeTempConfig(t, `
servers:
  Bailey: 10097
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned unexpected error: %v", err)
	}

	if _, err := NewView(cfg, "NotAServer"); err == nil {
		t.Fatal("expected an error for an unknown server name, got nil")
	}
}

func TestNewView_BuildsImmutableSnapshot(t *testing.T) {
	path := writeTempConfig(t, `
servers:
  Bailey: 10097
  Clark: 10098
  Jaquez: 10099
neighbors:
  Bailey: [Clark]
  Clark: [Bailey, Jaquez]
  Jaquez: [Clark]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned unexpected error: %v", err)
	}

	view, err := NewView(cfg, "Clark")
	if err != nil {
		t.Fatalf("NewView returned unexpected error: %v", err)
	}

	if view.OwnName != "Clark" || view.OwnPort != 10098 {
		t.Errorf("unexpected own identity: %+v", view)
	}
	if len(view.NeighborNames) != 2 {
		t.Errorf("expected 2 neighbors for Clark, got %d", len(view.NeighborNames))
	}
	if len(view.PeerPorts) != 3 {
		t.Errorf("expected 3 peer ports, got %d", len(view.PeerPorts))
	}

	// Mutating the returned neighbor slice must not corrupt the config.
	view.NeighborNames[0] = "Tampered"
	view2, _ := NewView(cfg, "Clark")
	for _, n := range view2.NeighborNames {
		if n == "Tampered" {
			t.Fatal("View.NeighborNames shares backing storage with Config")
		}
	}
}

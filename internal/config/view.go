package config

import (
	"fmt"
	"time"
)

// View is the immutable, per-member snapshot every other component
// depends on: own name, own listen endpoint, peer endpoints, the
// neighbor set, and the places-service credentials. Built once at
// startup from Config plus the invoked server name and never mutated.
type View struct {
	OwnName        string
	OwnPort        int
	PeerPorts      map[string]int
	NeighborNames  []string
	APIKey         string
	PlacesEndpoint string
	WhatsatTimeout float64
	PeerQueueBound int
	Logging        LoggingConfig
	Health         HealthConfig
}

// NewView validates that name is a configured server and builds its View.
// An unknown name is the fatal startup error spec.md §6 calls for.
func NewView(cfg *Config, name string) (*View, error) {
	port, ok := cfg.Servers[name]
	if !ok {
		return nil, fmt.Errorf("unknown server name %q; valid names: %s", name, validNames(cfg))
	}

	peers := make(map[string]int, len(cfg.Servers))
	for n, p := range cfg.Servers {
		peers[n] = p
	}

	return &View{
		OwnName:        name,
		OwnPort:        port,
		PeerPorts:      peers,
		NeighborNames:  append([]string{}, cfg.Neighbors[name]...),
		APIKey:         cfg.APIKey,
		PlacesEndpoint: cfg.PlacesEndpoint,
		WhatsatTimeout: cfg.WhatsatTimeout,
		PeerQueueBound: cfg.PeerQueueBound,
		Logging:        cfg.Logging,
		Health:         cfg.Health,
	}, nil
}

// WhatsatTimeoutDuration converts the view's decimal-seconds timeout into
// a time.Duration for use with context deadlines.
func (v *View) WhatsatTimeoutDuration() time.Duration {
	return time.Duration(v.WhatsatTimeout * float64(time.Second))
}

func validNames(cfg *Config) string {
	names := make([]string, 0, len(cfg.Servers))
	for n := range cfg.Servers {
		names = append(names, n)
	}
	return fmt.Sprint(names)
}

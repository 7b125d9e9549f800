// Package config loads and validates the herd's YAML configuration and
// derives the immutable per-member view each component depends on.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LoggingConfig controls the log sink. Consumed by internal/logging.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Filename string `yaml:"filename"`
	Format   string `yaml:"format"`
}

// HealthConfig controls the optional SWIM-based cluster health monitor.
// Purely advisory — see SPEC_FULL.md §4.8. Disabled unless Enabled is set.
type HealthConfig struct {
	Enabled  bool     `yaml:"enabled"`
	BindPort int      `yaml:"bind_port"`
	Seeds    []string `yaml:"seeds"`
}

// Config is the raw YAML document, decoded and validated once at startup.
type Config struct {
	Servers        map[string]int      `yaml:"servers"`
	Neighbors      map[string][]string `yaml:"neighbors"`
	APIKey         string              `yaml:"api_key"`
	PlacesEndpoint string              `yaml:"places_endpoint"`
	WhatsatTimeout float64             `yaml:"whatsat_timeout"`
	PeerQueueBound int                 `yaml:"peer_queue_bound"`
	Logging        LoggingConfig       `yaml:"logging"`
	Health         HealthConfig        `yaml:"health"`
	Benchmark      map[string]any      `yaml:"benchmark"` // consumed only by the benchmark tool
}

const (
	defaultWhatsatTimeout = 5 * time.Second
	defaultPeerQueueBound = 1024
	defaultPlacesEndpoint = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"
)

// Load reads and validates the configuration at path. It does not check
// that a server name is a configured member — callers should use View
// for that, since the process-exit behavior on an unknown name
// (spec.md §6) belongs to the caller (cmd/server), not to config loading.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.WhatsatTimeout <= 0 {
		c.WhatsatTimeout = defaultWhatsatTimeout.Seconds()
	}
	if c.PeerQueueBound <= 0 {
		c.PeerQueueBound = defaultPeerQueueBound
	}
	if c.PlacesEndpoint == "" {
		c.PlacesEndpoint = defaultPlacesEndpoint
	}
}

func (c *Config) validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("servers must not be empty")
	}

	seenPorts := make(map[int]string, len(c.Servers))
	for name, port := range c.Servers {
		if port <= 0 {
			return fmt.Errorf("server %q: port must be positive, got %d", name, port)
		}
		if other, exists := seenPorts[port]; exists {
			return fmt.Errorf("servers %q and %q both claim port %d", other, name, port)
		}
		seenPorts[port] = name
	}

	for name, neighbors := range c.Neighbors {
		if _, ok := c.Servers[name]; !ok {
			return fmt.Errorf("neighbors entry %q is not a configured server", name)
		}
		for _, n := range neighbors {
			if _, ok := c.Servers[n]; !ok {
				return fmt.Errorf("server %q lists unknown neighbor %q", name, n)
			}
		}
	}

	return c.validateSymmetricNeighbors()
}

// validateSymmetricNeighbors enforces the fatal config error spec.md §6
// requires: the neighbor graph is undirected, so if A lists B, B must
// list A. original_source/server.py never checked this (see
// SPEC_FULL.md's REDESIGN FLAGS).
func (c *Config) validateSymmetricNeighbors() error {
	for name, neighbors := range c.Neighbors {
		for _, n := range neighbors {
			if !contains(c.Neighbors[n], name) {
				return fmt.Errorf("asymmetric neighbor edge: %q lists %q but not vice versa", name, n)
			}
		}
	}
	return nil
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

// WhatsatTimeoutDuration converts the configured decimal-seconds timeout
// into a time.Duration for use with context deadlines.
func (c *Config) WhatsatTimeoutDuration() time.Duration {
	return time.Duration(c.WhatsatTimeout * float64(time.Second))
}

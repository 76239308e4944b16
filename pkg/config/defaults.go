package config

import (
	"time"

	"github.com/modoterra/cmdhub/pkg/ingest"
)

// Default endpoints of the hub.
const (
	DefaultControl = "tcp://127.0.0.1:5559"
	DefaultIngest  = "tcp://127.0.0.1:5556"
)

// DefaultInstance is watched when nothing else is configured.
const DefaultInstance = "7171"

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() Config {
	return Config{
		Version:   1,
		Control:   DefaultControl,
		Ingest:    DefaultIngest,
		IngestOpt: IngestOptions{Normalizer: ingest.NormalizerLegacy},
		Watcher:   WatcherConfig{HealthInterval: Duration(5 * time.Second)},
		Log:       LogConfig{Level: "info"},
	}
}

// WatchedInstances returns the configured instances, or the default
// instance when none are configured.
func (c *Config) WatchedInstances() []Instance {
	if len(c.Instances) > 0 {
		return c.Instances
	}
	return []Instance{{ID: DefaultInstance, Source: SourceRedis}}
}

// Lookup returns the instance with the given id.
func (c *Config) Lookup(id string) (Instance, bool) {
	for _, inst := range c.WatchedInstances() {
		if inst.ID == id {
			return inst, true
		}
	}
	return Instance{}, false
}

// AddInstances appends instances whose id is not configured yet and
// returns how many were added.
func (c *Config) AddInstances(extra []Instance) int {
	seen := make(map[string]bool, len(c.Instances))
	for _, inst := range c.Instances {
		seen[inst.ID] = true
	}
	n := 0
	for _, inst := range extra {
		if seen[inst.ID] {
			continue
		}
		seen[inst.ID] = true
		c.Instances = append(c.Instances, inst)
		n++
	}
	return n
}

package config

import (
	"fmt"
	"log/slog"

	"github.com/modoterra/cmdhub/pkg/core"
	"github.com/modoterra/cmdhub/pkg/ingest"
	"github.com/modoterra/cmdhub/pkg/transport/wire"
)

// Validate checks the config for structural correctness.
func Validate(c *Config) []error {
	var errs []error

	if c.Version != 1 {
		errs = append(errs, fmt.Errorf("version must be 1, got %d", c.Version))
	}

	control, err := wire.ParseEndpoint(c.Control)
	if err != nil {
		errs = append(errs, fmt.Errorf("control: %w", err))
	}
	in, err := wire.ParseEndpoint(c.Ingest)
	if err != nil {
		errs = append(errs, fmt.Errorf("ingest: %w", err))
	}
	if !control.IsZero() && control == in {
		errs = append(errs, fmt.Errorf("control and ingest must differ, both are %s", control))
	}

	seen := make(map[string]bool)
	for i, inst := range c.Instances {
		if err := core.ValidateInstanceID(core.InstanceID(inst.ID)); err != nil {
			errs = append(errs, fmt.Errorf("instances[%d]: %w", i, err))
			continue
		}
		if seen[inst.ID] {
			errs = append(errs, fmt.Errorf("instance %q is listed twice", inst.ID))
		}
		seen[inst.ID] = true

		switch inst.Source {
		case "", SourceRedis:
			if inst.File != "" {
				errs = append(errs, fmt.Errorf("instance %q (redis): file is only valid for source file", inst.ID))
			}
		case SourceFile:
			if inst.File == "" {
				errs = append(errs, fmt.Errorf("instance %q (file): file is required", inst.ID))
			}
		default:
			errs = append(errs, fmt.Errorf("instance %q: unknown source %q", inst.ID, inst.Source))
		}
		if inst.DB < 0 {
			errs = append(errs, fmt.Errorf("instance %q: db must not be negative", inst.ID))
		}
	}

	if c.Compose != nil && c.Compose.File == "" {
		errs = append(errs, fmt.Errorf("compose: file is required"))
	}

	if _, err := ingest.ByName(c.IngestOpt.Normalizer); err != nil {
		errs = append(errs, fmt.Errorf("ingest_options: %w", err))
	}

	if c.Watcher.HealthInterval < 0 {
		errs = append(errs, fmt.Errorf("watcher: health_interval must not be negative"))
	}

	if k := c.Forward.Kafka; k != nil {
		if len(k.Brokers) == 0 {
			errs = append(errs, fmt.Errorf("forward.kafka: brokers is required"))
		}
		if k.Topic == "" {
			errs = append(errs, fmt.Errorf("forward.kafka: topic is required"))
		}
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errs
}

// ParseLevel maps a log level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}

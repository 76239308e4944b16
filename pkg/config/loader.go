package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileNames are looked up in the working directory, in order.
var FileNames = []string{"cmdhub.yaml", "cmdhub.yml", "cmdhub.toml"}

// Load reads path, or discovers a config file when path is empty, merges
// it onto the defaults, applies CMDHUB_* environment overrides and
// validates the result. The returned string is the file used, if any.
func Load(path string) (*Config, string, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("getting working directory: %w", err)
		}
		path = Discover(cwd)
	}
	cfg, err := LoadFile(path)
	return cfg, path, err
}

// LoadFile is Load for an explicit path. An empty path yields defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		override, err := parseFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		merge(&cfg, override)
	}

	applyEnvOverrides(&cfg)

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, fmt.Errorf("config validation: %w", errors.Join(errs...))
	}
	return &cfg, nil
}

// Discover returns the first config file found in dir or in
// ~/.config/cmdhub, or "" when there is none.
func Discover(dir string) string {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	user := filepath.Join(home, ".config", "cmdhub", "config.yaml")
	if _, err := os.Stat(user); err == nil {
		return user
	}
	return ""
}

// Parse decodes data as YAML, or TOML when format is "toml".
func Parse(data []byte, format string) (*Config, error) {
	var cfg Config
	switch format {
	case "toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing TOML: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	}
	return &cfg, nil
}

func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return Parse(data, formatOf(path))
}

func formatOf(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

// merge overlays override onto base. Scalars override when non-zero,
// slices replace entirely when non-nil.
func merge(base *Config, override *Config) {
	if override.Version != 0 {
		base.Version = override.Version
	}
	if override.Control != "" {
		base.Control = override.Control
	}
	if override.Ingest != "" {
		base.Ingest = override.Ingest
	}
	if override.Instances != nil {
		base.Instances = override.Instances
	}
	if override.Compose != nil {
		base.Compose = override.Compose
	}
	if override.IngestOpt.Normalizer != "" {
		base.IngestOpt.Normalizer = override.IngestOpt.Normalizer
	}
	if override.Watcher.HealthInterval != 0 {
		base.Watcher.HealthInterval = override.Watcher.HealthInterval
	}
	if override.Watcher.Binary != "" {
		base.Watcher.Binary = override.Watcher.Binary
	}
	if override.Forward.Kafka != nil {
		base.Forward.Kafka = override.Forward.Kafka
	}
	if override.Log.Level != "" {
		base.Log.Level = override.Log.Level
	}
	if override.Debug.Gops != "" {
		base.Debug.Gops = override.Debug.Gops
	}
}

// applyEnvOverrides applies CMDHUB_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CMDHUB_CONTROL"); v != "" {
		cfg.Control = v
	}
	if v := os.Getenv("CMDHUB_INGEST"); v != "" {
		cfg.Ingest = v
	}
	if v := os.Getenv("CMDHUB_NORMALIZER"); v != "" {
		cfg.IngestOpt.Normalizer = v
	}
	if v := os.Getenv("CMDHUB_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Save writes cfg as YAML, or TOML when path ends in .toml.
func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if formatOf(path) == "toml" {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

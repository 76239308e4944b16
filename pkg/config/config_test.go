package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.Control != DefaultControl || cfg.Ingest != DefaultIngest {
		t.Errorf("endpoints = %s / %s", cfg.Control, cfg.Ingest)
	}
	if cfg.IngestOpt.Normalizer != "legacy" {
		t.Errorf("normalizer = %q", cfg.IngestOpt.Normalizer)
	}
	if time.Duration(cfg.Watcher.HealthInterval) != 5*time.Second {
		t.Errorf("health interval = %v", cfg.Watcher.HealthInterval)
	}
	want := []Instance{{ID: "7171", Source: SourceRedis}}
	if diff := cmp.Diff(want, cfg.WatchedInstances()); diff != "" {
		t.Errorf("instances (-want +got):\n%s", diff)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	content := `
version: 1
control: unix:///tmp/cmdhub-control.sock
instances:
  - id: "6379"
  - id: replay
    source: file
    file: /tmp/monitor.log
watcher:
  health_interval: 2s
forward:
  kafka:
    brokers: [localhost:9092]
    topic: redis-commands
log:
  level: debug
`
	os.WriteFile(filepath.Join(dir, "cmdhub.yaml"), []byte(content), 0o644)

	path := Discover(dir)
	if filepath.Base(path) != "cmdhub.yaml" {
		t.Fatalf("Discover() = %q", path)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.Control != "unix:///tmp/cmdhub-control.sock" {
		t.Errorf("control = %q", cfg.Control)
	}
	if cfg.Ingest != DefaultIngest {
		t.Errorf("ingest should keep its default, got %q", cfg.Ingest)
	}
	if len(cfg.Instances) != 2 || cfg.Instances[1].File != "/tmp/monitor.log" {
		t.Errorf("instances = %+v", cfg.Instances)
	}
	if time.Duration(cfg.Watcher.HealthInterval) != 2*time.Second {
		t.Errorf("health interval = %v", cfg.Watcher.HealthInterval)
	}
	if cfg.Forward.Kafka == nil || cfg.Forward.Kafka.Topic != "redis-commands" {
		t.Errorf("kafka = %+v", cfg.Forward.Kafka)
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	content := `
version = 1
ingest = "tcp://127.0.0.1:6000"

[[instances]]
id = "6380"
addr = "redis.internal:6379"
db = 2

[ingest_options]
normalizer = "quoted"
`
	os.WriteFile(filepath.Join(dir, "cmdhub.toml"), []byte(content), 0o644)

	cfg, err := LoadFile(Discover(dir))
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.Ingest != "tcp://127.0.0.1:6000" {
		t.Errorf("ingest = %q", cfg.Ingest)
	}
	inst, ok := cfg.Lookup("6380")
	if !ok {
		t.Fatal("instance 6380 missing")
	}
	if inst.RedisAddr() != "redis.internal:6379" || inst.DB != 2 {
		t.Errorf("instance = %+v", inst)
	}
	if cfg.IngestOpt.Normalizer != "quoted" {
		t.Errorf("normalizer = %q", cfg.IngestOpt.Normalizer)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CMDHUB_CONTROL", "tcp://127.0.0.1:7000")
	t.Setenv("CMDHUB_NORMALIZER", "quoted")
	t.Setenv("CMDHUB_LOG_LEVEL", "warn")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.Control != "tcp://127.0.0.1:7000" {
		t.Errorf("control = %q", cfg.Control)
	}
	if cfg.IngestOpt.Normalizer != "quoted" || cfg.Log.Level != "warn" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"version", func(c *Config) { c.Version = 2 }, "version must be 1"},
		{"control", func(c *Config) { c.Control = "ipc://x" }, "control:"},
		{"same endpoints", func(c *Config) { c.Ingest = c.Control }, "must differ"},
		{"bad id", func(c *Config) { c.Instances = []Instance{{ID: "a b"}} }, "instances[0]"},
		{"duplicate", func(c *Config) { c.Instances = []Instance{{ID: "1"}, {ID: "1"}} }, "listed twice"},
		{"file source", func(c *Config) { c.Instances = []Instance{{ID: "1", Source: SourceFile}} }, "file is required"},
		{"source kind", func(c *Config) { c.Instances = []Instance{{ID: "1", Source: "memcached"}} }, "unknown source"},
		{"normalizer", func(c *Config) { c.IngestOpt.Normalizer = "fancy" }, "unknown normalizer"},
		{"kafka", func(c *Config) { c.Forward.Kafka = &KafkaConfig{} }, "brokers is required"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "unknown level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			errs := Validate(&cfg)
			if len(errs) == 0 {
				t.Fatal("expected validation errors")
			}
			found := false
			for _, err := range errs {
				if strings.Contains(err.Error(), tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("no error containing %q in %v", tt.want, errs)
			}
		})
	}

	cfg := DefaultConfig()
	if errs := Validate(&cfg); len(errs) != 0 {
		t.Errorf("defaults should validate, got %v", errs)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"cmdhub.yaml", "cmdhub.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			cfg := DefaultConfig()
			cfg.Instances = []Instance{{ID: "7171", Source: SourceRedis}}
			if err := Save(path, &cfg); err != nil {
				t.Fatalf("Save() error: %v", err)
			}
			got, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile() error: %v", err)
			}
			if diff := cmp.Diff(cfg, *got); diff != "" {
				t.Errorf("round trip (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAddInstances(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Instances = []Instance{{ID: "6379"}}
	n := cfg.AddInstances([]Instance{{ID: "6379"}, {ID: "6380"}, {ID: "6380"}})
	if n != 1 || len(cfg.Instances) != 2 {
		t.Errorf("added %d, instances = %+v", n, cfg.Instances)
	}
}

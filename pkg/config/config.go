// Package config loads cmdhub.yaml (or cmdhub.toml).
package config

import "time"

// Config is the hub configuration file.
type Config struct {
	Version   int           `yaml:"version"                  toml:"version"`
	Control   string        `yaml:"control"                  toml:"control"`
	Ingest    string        `yaml:"ingest"                   toml:"ingest"`
	Instances []Instance    `yaml:"instances"                toml:"instances"`
	Compose   *ComposeRef   `yaml:"compose,omitempty"        toml:"compose,omitempty"`
	IngestOpt IngestOptions `yaml:"ingest_options"           toml:"ingest_options"`
	Watcher   WatcherConfig `yaml:"watcher"                  toml:"watcher"`
	Forward   ForwardConfig `yaml:"forward"                  toml:"forward"`
	Log       LogConfig     `yaml:"log"                      toml:"log"`
	Debug     DebugConfig   `yaml:"debug"                    toml:"debug"`
}

// Instance is one watched store.
type Instance struct {
	ID       string `yaml:"id"                 toml:"id"`
	Addr     string `yaml:"addr,omitempty"     toml:"addr,omitempty"`     // redis: host:port, defaults to 127.0.0.1:<id>
	DB       int    `yaml:"db,omitempty"       toml:"db,omitempty"`       // redis
	Password string `yaml:"password,omitempty" toml:"password,omitempty"` // redis
	Source   string `yaml:"source,omitempty"   toml:"source,omitempty"`   // redis|file
	File     string `yaml:"file,omitempty"     toml:"file,omitempty"`     // file
}

// RedisAddr is the address the redis source connects to.
func (i Instance) RedisAddr() string {
	if i.Addr != "" {
		return i.Addr
	}
	return "127.0.0.1:" + i.ID
}

// Source kinds.
const (
	SourceRedis = "redis"
	SourceFile  = "file"
)

// ComposeRef points to a compose file whose redis services are imported as
// instances.
type ComposeRef struct {
	File string `yaml:"file" toml:"file"`
}

// IngestOptions controls how monitor lines are stored.
type IngestOptions struct {
	Normalizer string `yaml:"normalizer" toml:"normalizer"`
}

// WatcherConfig configures the watcher processes started by the hub.
type WatcherConfig struct {
	HealthInterval Duration `yaml:"health_interval" toml:"health_interval"`
	// Binary is the cmdhubd executable used for watchers. Empty means the
	// running executable.
	Binary string `yaml:"binary,omitempty" toml:"binary,omitempty"`
}

// ForwardConfig configures optional republishing of records.
type ForwardConfig struct {
	Kafka *KafkaConfig `yaml:"kafka,omitempty" toml:"kafka,omitempty"`
}

// KafkaConfig is the Kafka forwarder target.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" toml:"brokers"`
	Topic   string   `yaml:"topic"   toml:"topic"`
}

// LogConfig configures the hub logger.
type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// DebugConfig enables diagnostics.
type DebugConfig struct {
	// Gops is the listen address of the gops agent. Empty disables it.
	Gops string `yaml:"gops,omitempty" toml:"gops,omitempty"`
}

// Duration is a time.Duration written as a string such as "5s".
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

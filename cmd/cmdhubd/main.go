package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/gops/agent"
	"github.com/spf13/cobra"

	"github.com/modoterra/cmdhub/internal/buildinfo"
	"github.com/modoterra/cmdhub/pkg/client"
	"github.com/modoterra/cmdhub/pkg/config"
	"github.com/modoterra/cmdhub/pkg/core"
	"github.com/modoterra/cmdhub/pkg/discover/compose"
	"github.com/modoterra/cmdhub/pkg/forward/kafka"
	"github.com/modoterra/cmdhub/pkg/hub"
	"github.com/modoterra/cmdhub/pkg/ingest"
	"github.com/modoterra/cmdhub/pkg/transport/wire"
)

var (
	configPath string
	logLevel   string
	instances  []string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "cmdhubd",
	Short:         "Aggregation hub for Redis MONITOR streams",
	Long:          "cmdhubd owns the control and ingest endpoints, starts one watcher per Redis instance and keeps the observed commands queryable.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runHub,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to cmdhub.yaml or cmdhub.toml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.Flags().StringSliceVarP(&instances, "instance", "i", nil, "instance id to watch (repeatable, overrides the config)")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cmdhubd %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	},
}

func newLogger(level string) *slog.Logger {
	l, err := config.ParseLevel(level)
	if err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// loadConfig loads the config and applies the --log-level flag.
func loadConfig() (*config.Config, string, *slog.Logger, error) {
	cfg, path, err := config.Load(configPath)
	if err != nil {
		return nil, "", newLogger(logLevel), err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, path, newLogger(cfg.Log.Level), nil
}

func runHub(_ *cobra.Command, _ []string) error {
	cfg, path, logger, err := loadConfig()
	if err != nil {
		logger.Error("config", "err", err)
		return err
	}
	if path != "" {
		logger.Info("config loaded", "path", path)
	}

	if cfg.Compose != nil {
		importCompose(cfg, logger)
	}

	watched, err := selectInstances(cfg, instances)
	if err != nil {
		return err
	}

	control := wire.MustParseEndpoint(cfg.Control)
	ingestEP := wire.MustParseEndpoint(cfg.Ingest)
	normalize, err := ingest.ByName(cfg.IngestOpt.Normalizer)
	if err != nil {
		return err
	}

	if cfg.Debug.Gops != "" {
		if err := agent.Listen(agent.Options{Addr: cfg.Debug.Gops}); err != nil {
			logger.Warn("gops agent failed", "err", err)
		} else {
			defer agent.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	supervisor, err := newSupervisor(cfg, path, logger)
	if err != nil {
		return err
	}
	defer supervisor.TerminateAll()

	opts := hub.Options{
		Control:    control,
		Ingest:     ingestEP,
		Instances:  watched,
		Addrs:      watcherAddrs(cfg, watched),
		Spawner:    supervisor,
		Normalizer: normalize,
		Logger:     logger,
	}
	if k := cfg.Forward.Kafka; k != nil {
		fwd := kafka.New(k.Brokers, k.Topic, logger)
		defer fwd.Close()
		opts.Forwarder = fwd
	}

	h := hub.New(opts)
	acq, err := client.EnsureHub(ctx, h)
	if err != nil {
		if errors.Is(err, client.ErrAddressSquatted) {
			logger.Error("control endpoint is taken by another program", "control", control.String(), "err", err)
		}
		return err
	}
	if acq == hub.AlreadyHeld {
		logger.Info("hub already running, nothing to do", "control", control.String())
		return nil
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Debug("sd_notify", "err", err)
	}
	defer daemon.SdNotify(false, daemon.SdNotifyStopping)

	logger.Info("starting cmdhubd", "version", buildinfo.Version, "instances", len(watched))
	if _, err := h.Run(ctx); err != nil {
		logger.Error("hub error", "err", err)
		return err
	}
	return nil
}

func importCompose(cfg *config.Config, logger *slog.Logger) {
	f, err := compose.Parse(cfg.Compose.File)
	if err != nil {
		logger.Warn("compose parse failed", "file", cfg.Compose.File, "err", err)
		return
	}
	var found []config.Instance
	for _, inst := range f.Instances() {
		found = append(found, config.Instance{ID: inst.ID, Addr: inst.Addr, Source: config.SourceRedis})
	}
	n := cfg.AddInstances(found)
	logger.Info("compose instances imported", "file", cfg.Compose.File, "added", n)
}

// selectInstances returns the ids to watch: the flag values when given,
// otherwise every configured instance.
func selectInstances(cfg *config.Config, flagIDs []string) ([]core.InstanceID, error) {
	var ids []core.InstanceID
	if len(flagIDs) > 0 {
		for _, s := range flagIDs {
			id := core.InstanceID(s)
			if err := core.ValidateInstanceID(id); err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	}
	for _, inst := range cfg.WatchedInstances() {
		ids = append(ids, core.InstanceID(inst.ID))
	}
	return ids, nil
}

// watcherAddrs returns the configured store address of every watched
// instance that has one. The watch child reloads the config on its own, but
// instances imported from compose exist only in this process.
func watcherAddrs(cfg *config.Config, ids []core.InstanceID) map[core.InstanceID]string {
	addrs := make(map[core.InstanceID]string)
	for _, id := range ids {
		if inst, ok := cfg.Lookup(string(id)); ok && inst.Addr != "" {
			addrs[id] = inst.Addr
		}
	}
	return addrs
}

// newSupervisor starts watchers by re-executing this binary in watch mode.
func newSupervisor(cfg *config.Config, path string, logger *slog.Logger) (*hub.Supervisor, error) {
	bin := cfg.Watcher.Binary
	if bin == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		bin = self
	}
	command := []string{bin, "watch"}
	if path != "" {
		command = append(command, "--config", path)
	}
	if cfg.Log.Level != "" {
		command = append(command, "--log-level", cfg.Log.Level)
	}
	return hub.NewSupervisor(command, logger), nil
}

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/modoterra/cmdhub/pkg/config"
	"github.com/modoterra/cmdhub/pkg/core"
	"github.com/modoterra/cmdhub/pkg/source/filetail"
	"github.com/modoterra/cmdhub/pkg/source/redismon"
	"github.com/modoterra/cmdhub/pkg/transport/wire"
	"github.com/modoterra/cmdhub/pkg/watcher"
)

var (
	watchInstance string
	watchControl  string
	watchIngest   string
	watchAddr     string
)

var watchCmd = &cobra.Command{
	Use:    "watch",
	Short:  "Watch one instance and push its commands to the hub",
	Long:   "Started by the hub for every instance. The process exits when the hub refuses the registration or the monitor stream fails.",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchInstance, "instance", "", "instance id")
	watchCmd.Flags().StringVar(&watchControl, "control", "", "hub control endpoint")
	watchCmd.Flags().StringVar(&watchIngest, "ingest", "", "hub ingest endpoint")
	watchCmd.Flags().StringVar(&watchAddr, "addr", "", "redis address, defaults to the config or 127.0.0.1:<instance>")
	watchCmd.MarkFlagRequired("instance")
}

func runWatch(_ *cobra.Command, _ []string) error {
	cfg, _, logger, err := loadConfig()
	if err != nil {
		logger.Error("config", "err", err)
		return err
	}

	id := core.InstanceID(watchInstance)
	if err := core.ValidateInstanceID(id); err != nil {
		return err
	}

	control, err := endpointOr(watchControl, cfg.Control)
	if err != nil {
		return fmt.Errorf("control: %w", err)
	}
	ingestEP, err := endpointOr(watchIngest, cfg.Ingest)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	inst, ok := cfg.Lookup(watchInstance)
	if !ok {
		inst = config.Instance{ID: watchInstance, Source: config.SourceRedis}
	}
	if watchAddr != "" {
		inst.Addr = watchAddr
	}

	var src core.Source
	switch inst.Source {
	case config.SourceFile:
		src = &filetail.Source{Path: inst.File, Follow: true, Logger: logger}
	default:
		src = &redismon.Source{
			Addr:           inst.RedisAddr(),
			DB:             inst.DB,
			Password:       inst.Password,
			HealthInterval: time.Duration(cfg.Watcher.HealthInterval),
			Logger:         logger,
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := watcher.New(watcher.Config{
		Instance: id,
		Control:  control,
		Ingest:   ingestEP,
		Source:   src,
		Logger:   logger,
	})
	if err := w.Run(ctx); err != nil {
		logger.Error("watcher failed", "instance", id, "err", err)
		return err
	}
	return nil
}

func endpointOr(flag, fallback string) (wire.Endpoint, error) {
	if flag != "" {
		return wire.ParseEndpoint(flag)
	}
	return wire.ParseEndpoint(fallback)
}

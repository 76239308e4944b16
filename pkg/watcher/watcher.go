// Package watcher runs the per-instance side of the hub: it registers the
// instance over the control channel and pushes every monitored command to
// the ingest channel.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/modoterra/cmdhub/pkg/core"
	"github.com/modoterra/cmdhub/pkg/ingest"
	"github.com/modoterra/cmdhub/pkg/transport/wire"
)

// Config describes one watcher.
type Config struct {
	Instance core.InstanceID
	Control  wire.Endpoint
	Ingest   wire.Endpoint
	Source   core.Source
	Logger   *slog.Logger
}

// Watcher forwards the monitor stream of one instance to the hub.
type Watcher struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a watcher.
func New(cfg Config) *Watcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{cfg: cfg, logger: logger.With("instance", cfg.Instance)}
}

// Register asks the hub to accept this instance. It reports false when the
// hub refused, typically because another watcher already holds the id.
func (w *Watcher) Register(ctx context.Context) (bool, error) {
	c, err := wire.Dial(ctx, w.cfg.Control)
	if err != nil {
		return false, err
	}
	defer c.Close()

	reply, err := c.Request(ctx, wire.FormatRequest(wire.CmdRegister, string(w.cfg.Instance)))
	if err != nil {
		return false, fmt.Errorf("register: %w", err)
	}
	return reply == wire.ReplyTrue, nil
}

// Run registers and then streams until ctx is cancelled or the stream
// fails. A refused registration returns nil without opening anything.
func (w *Watcher) Run(ctx context.Context) error {
	ok, err := w.Register(ctx)
	if err != nil {
		return err
	}
	if !ok {
		w.logger.Info("registration refused, exiting")
		return nil
	}
	w.logger.Info("registered")

	stream, err := w.cfg.Source.OpenMonitor(ctx)
	if err != nil {
		return fmt.Errorf("open monitor: %w", err)
	}
	defer stream.Close()

	push, err := wire.DialPush(ctx, w.cfg.Ingest)
	if err != nil {
		return err
	}
	defer push.Close()

	return w.forward(ctx, stream, push)
}

func (w *Watcher) forward(ctx context.Context, stream core.Stream, push *wire.Pusher) error {
	var sent int
	for {
		line, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("watcher stopped", "sent", sent)
				return nil
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("monitor stream ended after %d lines", sent)
			}
			return fmt.Errorf("monitor stream: %w", err)
		}
		if line == ingest.Ack {
			continue
		}
		if err := push.Send(ingest.Format(w.cfg.Instance, line)); err != nil {
			return err
		}
		sent++
	}
}

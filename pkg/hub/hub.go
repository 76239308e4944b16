// Package hub implements the aggregation hub: the singleton process that
// owns the control and ingest endpoints, spawns one watcher per instance
// and answers queries over the observed command log.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/modoterra/cmdhub/pkg/core"
	"github.com/modoterra/cmdhub/pkg/ingest"
	"github.com/modoterra/cmdhub/pkg/logstore"
	"github.com/modoterra/cmdhub/pkg/transport/wire"
)

// Acquisition is the outcome of the endpoint election.
type Acquisition int

const (
	// Acquired means this process owns both endpoints.
	Acquired Acquisition = iota + 1
	// AlreadyHeld means another process owns the control endpoint.
	AlreadyHeld
)

func (a Acquisition) String() string {
	switch a {
	case Acquired:
		return "acquired"
	case AlreadyHeld:
		return "already-held"
	default:
		return "none"
	}
}

// Forwarder receives every recorded command. It is called on the event
// loop and must not block.
type Forwarder interface {
	Forward(rec core.Record)
}

// Options configures a Hub.
type Options struct {
	Control   wire.Endpoint
	Ingest    wire.Endpoint
	Instances []core.InstanceID

	// Addrs holds store addresses known to the hub, such as those found
	// by compose import. They are handed to the watchers.
	Addrs map[core.InstanceID]string

	// Spawner starts one watcher per instance. Nil spawns nothing.
	Spawner Spawner

	// Normalizer turns monitor lines into records. Nil means ingest.Legacy.
	Normalizer ingest.Normalizer

	// Forwarder is optional.
	Forwarder Forwarder

	// IngestBuffer is the number of ingest messages queued while the loop
	// handles a control request.
	IngestBuffer int

	Logger *slog.Logger
}

// Hub is the aggregation hub. Its log store is touched only from the
// goroutine running Run or Serve.
type Hub struct {
	opts     Options
	store    *logstore.Store
	commands map[string]Handler
	control  *wire.ControlServer
	ingest   *wire.IngestServer
	watchers []Handle
	stopping bool
	logger   *slog.Logger
}

// New creates a hub. Nothing is bound until Acquire or Run.
func New(opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Normalizer == nil {
		opts.Normalizer = ingest.Legacy
	}
	if opts.IngestBuffer <= 0 {
		opts.IngestBuffer = 1024
	}
	h := &Hub{
		opts:     opts,
		store:    logstore.New(),
		commands: make(map[string]Handler),
		logger:   opts.Logger,
	}
	h.registerHandlers()
	return h
}

// Acquire binds the control endpoint, then the ingest endpoint. If the
// control endpoint is already bound by another process it returns
// AlreadyHeld and binds nothing.
func (h *Hub) Acquire() (Acquisition, error) {
	if h.control != nil {
		return Acquired, nil
	}

	ctl, err := wire.Listen(h.opts.Control)
	if errors.Is(err, wire.ErrAddressInUse) {
		h.logger.Info("control endpoint already held", "control", h.opts.Control.String())
		return AlreadyHeld, nil
	}
	if err != nil {
		return 0, fmt.Errorf("control endpoint: %w", err)
	}

	in, err := wire.Listen(h.opts.Ingest)
	if err != nil {
		ctl.Close()
		return 0, fmt.Errorf("ingest endpoint: %w", err)
	}

	h.control = wire.NewControlServer(ctl, h.logger)
	h.ingest = wire.NewIngestServer(in, h.opts.IngestBuffer, h.logger)
	h.logger.Info("endpoints acquired",
		"control", h.control.Addr().String(),
		"ingest", h.ingest.Addr().String())
	return Acquired, nil
}

// ControlAddr returns the bound control endpoint, or the configured one
// before Acquire.
func (h *Hub) ControlAddr() wire.Endpoint {
	if h.control != nil {
		return h.control.Addr()
	}
	return h.opts.Control
}

// IngestAddr returns the bound ingest endpoint, or the configured one
// before Acquire.
func (h *Hub) IngestAddr() wire.Endpoint {
	if h.ingest != nil {
		return h.ingest.Addr()
	}
	return h.opts.Ingest
}

// Run acquires the endpoints, spawns the watchers and runs the event loop
// until ctx is done or a shutdown command arrives. When the endpoints are
// already held it returns AlreadyHeld without doing anything else.
func (h *Hub) Run(ctx context.Context) (Acquisition, error) {
	acq, err := h.Acquire()
	if err != nil || acq != Acquired {
		return acq, err
	}
	h.spawnWatchers()
	return Acquired, h.Serve(ctx)
}

// Serve runs the event loop on endpoints bound by Acquire.
func (h *Hub) Serve(ctx context.Context) error {
	if h.control == nil {
		return errors.New("hub: Serve called before Acquire")
	}
	go h.control.Serve(ctx)
	go h.ingest.Serve(ctx)
	defer h.closeEndpoints()

	requests := h.control.Requests()
	messages := h.ingest.Messages()
	for !h.stopping {
		select {
		case <-ctx.Done():
			h.logger.Info("interrupted, stopping hub")
			h.terminateWatchers()
			return nil
		case req, ok := <-requests:
			if !ok {
				requests = nil
				continue
			}
			req.Reply(h.Dispatch(req.Line))
		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			h.record(msg)
		}
	}
	// The shutdown reply is already on its way.
	h.terminateWatchers()
	h.logger.Info("hub stopped")
	return nil
}

// record routes one ingest message into the log store.
func (h *Hub) record(msg string) {
	rec, err := ingest.Parse(msg, h.opts.Normalizer)
	if err != nil {
		h.logger.Warn("dropping ingest message", "err", err)
		return
	}
	h.store.Append(rec.Instance, rec.Body)
	if h.opts.Forwarder != nil {
		h.opts.Forwarder.Forward(rec)
	}
}

func (h *Hub) spawnWatchers() {
	if h.opts.Spawner == nil {
		return
	}
	for _, id := range h.opts.Instances {
		handle, err := h.opts.Spawner.Spawn(WatcherSpec{
			Instance: id,
			Control:  h.ControlAddr(),
			Ingest:   h.IngestAddr(),
			Addr:     h.opts.Addrs[id],
		})
		if err != nil {
			h.logger.Error("spawn watcher", "instance", id, "err", err)
			continue
		}
		h.watchers = append(h.watchers, handle)
	}
}

// terminateWatchers stops every watcher this hub spawned. Watchers are
// stopped concurrently, so the whole call takes at most one grace period.
func (h *Hub) terminateWatchers() {
	if h.opts.Spawner == nil {
		return
	}
	var wg sync.WaitGroup
	for _, w := range h.watchers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.opts.Spawner.Terminate(w); err != nil {
				h.logger.Warn("terminate watcher", "instance", w.Instance(), "err", err)
			}
		}()
	}
	wg.Wait()
	h.watchers = nil
}

func (h *Hub) closeEndpoints() {
	h.control.Close()
	h.ingest.Close()
}

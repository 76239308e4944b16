// Package redismon opens MONITOR streams on Redis instances with go-redis.
package redismon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/modoterra/cmdhub/pkg/core"
)

// ErrStreamClosed is returned by Next after Close.
var ErrStreamClosed = errors.New("monitor stream closed")

const defaultHealthInterval = 5 * time.Second

// Source connects to a single Redis instance.
type Source struct {
	Addr     string
	DB       int
	Password string

	// HealthInterval is how often the instance is pinged while the stream
	// is idle. A failed ping ends the stream.
	HealthInterval time.Duration

	Logger *slog.Logger
}

// OpenMonitor checks the instance is reachable and puts a dedicated
// connection into monitor mode.
func (s *Source) OpenMonitor(ctx context.Context) (core.Stream, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := s.HealthInterval
	if interval <= 0 {
		interval = defaultHealthInterval
	}

	client := redis.NewClient(&redis.Options{
		Addr:     s.Addr,
		DB:       s.DB,
		Password: s.Password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping %s: %w", s.Addr, err)
	}

	lines := make(chan string, 1024)
	cmd := client.Monitor(ctx, lines)
	cmd.Start()
	logger.Info("monitor started", "addr", s.Addr, "db", s.DB)

	return &stream{
		client:   client,
		cmd:      cmd,
		lines:    lines,
		health:   time.NewTicker(interval),
		addr:     s.Addr,
		logger:   logger,
		closedCh: make(chan struct{}),
	}, nil
}

type stream struct {
	client   *redis.Client
	cmd      *redis.MonitorCmd
	lines    chan string
	health   *time.Ticker
	addr     string
	logger   *slog.Logger
	closedCh chan struct{}
	closed   bool
}

// Next waits for the next monitor line. Between lines the instance is
// probed every health interval so a dead connection is noticed.
func (s *stream) Next(ctx context.Context) (string, error) {
	for {
		select {
		case <-s.closedCh:
			return "", ErrStreamClosed
		case <-ctx.Done():
			return "", ctx.Err()
		case line := <-s.lines:
			return line, nil
		case <-s.health.C:
			// The monitor command's state belongs to go-redis's reader
			// goroutine. Probe through the pool.
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := s.client.Ping(pctx).Err()
			cancel()
			if err != nil && ctx.Err() == nil {
				return "", fmt.Errorf("health check %s: %w", s.addr, err)
			}
		}
	}
}

func (s *stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.closedCh)
	s.health.Stop()
	s.cmd.Stop()
	s.logger.Info("monitor stopped", "addr", s.addr)
	return s.client.Close()
}

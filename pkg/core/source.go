package core

import "context"

// Source opens the monitor stream of one store instance.
type Source interface {
	// OpenMonitor puts a dedicated connection into monitor mode.
	OpenMonitor(ctx context.Context) (Stream, error)
}

// Stream is a lazy, non-restartable sequence of raw monitor lines.
type Stream interface {
	// Next blocks until the next line is available. A closed or broken
	// connection is reported as an error; io.EOF marks a clean end.
	Next(ctx context.Context) (string, error)

	// Close releases the underlying connection.
	Close() error
}

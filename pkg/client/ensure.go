package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modoterra/cmdhub/pkg/hub"
	"github.com/modoterra/cmdhub/pkg/transport/wire"
)

// ErrAddressSquatted means the control endpoint is bound by something that
// does not answer like a hub.
var ErrAddressSquatted = errors.New("control endpoint held by a process that is not a hub")

// Acquirer is the election part of a hub.
type Acquirer interface {
	Acquire() (hub.Acquisition, error)
	ControlAddr() wire.Endpoint
}

const probeTimeout = 2 * time.Second

// EnsureHub tries to become the hub. When another process already holds
// the control endpoint it must answer ping; otherwise ErrAddressSquatted
// is returned.
func EnsureHub(ctx context.Context, a Acquirer) (hub.Acquisition, error) {
	acq, err := a.Acquire()
	if err != nil || acq == hub.Acquired {
		return acq, err
	}
	if err := Probe(ctx, a.ControlAddr()); err != nil {
		return acq, err
	}
	return acq, nil
}

// Probe checks that ep is served by a live hub.
func Probe(ctx context.Context, ep wire.Endpoint) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	c, err := Dial(ctx, ep)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAddressSquatted, err)
	}
	defer c.Close()
	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrAddressSquatted, err)
	}
	return nil
}

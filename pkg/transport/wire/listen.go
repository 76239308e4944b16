package wire

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// ErrAddressInUse is returned by Listen when another process already owns
// the endpoint.
var ErrAddressInUse = errors.New("address already in use")

// Listen binds ep exclusively. A unix socket file left behind by a dead
// process is removed and the bind retried; a live one yields
// ErrAddressInUse, as does a tcp port already bound.
func Listen(ep Endpoint) (net.Listener, error) {
	ln, err := net.Listen(ep.Network, ep.Address)
	if err == nil {
		return ln, nil
	}
	if !errors.Is(err, syscall.EADDRINUSE) {
		return nil, fmt.Errorf("listen %s: %w", ep, err)
	}
	if ep.Network == "unix" && !socketAlive(ep.Address) {
		if rmErr := os.Remove(ep.Address); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket: %w", rmErr)
		}
		ln, err = net.Listen(ep.Network, ep.Address)
		if err == nil {
			return ln, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen %s: %w", ep, err)
		}
	}
	return nil, fmt.Errorf("listen %s: %w", ep, ErrAddressInUse)
}

func socketAlive(path string) bool {
	conn, err := net.DialTimeout("unix", path, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

package wire

import (
	"fmt"
	"net"
	"strings"
)

// Endpoint is a listen or dial address written as tcp://host:port or
// unix:///path/to.sock. A bare host:port is read as tcp.
type Endpoint struct {
	Network string
	Address string
}

// ParseEndpoint parses s into an Endpoint.
func ParseEndpoint(s string) (Endpoint, error) {
	scheme, rest, found := strings.Cut(s, "://")
	if !found {
		scheme, rest = "tcp", s
	}
	switch scheme {
	case "tcp", "tcp4", "tcp6":
		if _, _, err := net.SplitHostPort(rest); err != nil {
			return Endpoint{}, fmt.Errorf("endpoint %q: %w", s, err)
		}
	case "unix":
		if rest == "" {
			return Endpoint{}, fmt.Errorf("endpoint %q: empty socket path", s)
		}
	default:
		return Endpoint{}, fmt.Errorf("endpoint %q: unsupported scheme %q", s, scheme)
	}
	return Endpoint{Network: scheme, Address: rest}, nil
}

// MustParseEndpoint is ParseEndpoint for constants; it panics on error.
func MustParseEndpoint(s string) Endpoint {
	ep, err := ParseEndpoint(s)
	if err != nil {
		panic(err)
	}
	return ep
}

func (e Endpoint) String() string {
	return e.Network + "://" + e.Address
}

// IsZero reports whether e is the zero Endpoint.
func (e Endpoint) IsZero() bool {
	return e.Network == "" && e.Address == ""
}

func endpointOf(addr net.Addr) Endpoint {
	return Endpoint{Network: addr.Network(), Address: addr.String()}
}

// Package compose imports redis services from a docker compose file as
// watched instances.
package compose

import (
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// File represents a minimal Docker Compose file.
type File struct {
	Services map[string]Service `yaml:"services"`
}

// Service is a minimal service definition from a compose file.
type Service struct {
	Image         string `yaml:"image"`
	Ports         []Port `yaml:"ports"`
	ContainerName string `yaml:"container_name"`
}

// Port is one published port. Both the short "host:container" form and
// the long form with target/published keys are accepted.
type Port struct {
	HostIP    string
	Published string
	Target    string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Port) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		return p.parseShort(n.Value)
	case yaml.MappingNode:
		var long struct {
			Target    string `yaml:"target"`
			Published string `yaml:"published"`
			HostIP    string `yaml:"host_ip"`
		}
		if err := n.Decode(&long); err != nil {
			return err
		}
		p.Target, p.Published, p.HostIP = long.Target, long.Published, long.HostIP
		return nil
	}
	return fmt.Errorf("line %d: unsupported port entry", n.Line)
}

func (p *Port) parseShort(s string) error {
	s, _, _ = strings.Cut(s, "/")
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		p.Target = parts[0]
	case 2:
		p.Published, p.Target = parts[0], parts[1]
	default:
		// IPv6 host addresses contain colons themselves.
		n := len(parts)
		p.HostIP = strings.Trim(strings.Join(parts[:n-2], ":"), "[]")
		p.Published, p.Target = parts[n-2], parts[n-1]
	}
	return nil
}

// Parse reads a compose file.
func Parse(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compose file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse compose file: %w", err)
	}
	return &f, nil
}

// Instance is a redis endpoint published by a compose service.
type Instance struct {
	ID      string
	Addr    string
	Service string
}

// IsRedis reports whether the service runs a redis image.
func (s Service) IsRedis() bool {
	image := s.Image
	if i := strings.LastIndexByte(image, '/'); i >= 0 {
		image = image[i+1:]
	}
	return strings.HasPrefix(image, "redis")
}

// Instances returns one instance per published port of each redis
// service, keyed by host port and sorted by id. Services whose ports are
// not published on the host are skipped.
func (f *File) Instances() []Instance {
	var out []Instance
	for name, svc := range f.Services {
		if !svc.IsRedis() {
			continue
		}
		for _, p := range svc.Ports {
			if _, err := strconv.Atoi(p.Published); err != nil {
				continue
			}
			host := p.HostIP
			if host == "" || host == "0.0.0.0" || host == "::" {
				host = "127.0.0.1"
			}
			out = append(out, Instance{
				ID:      p.Published,
				Addr:    net.JoinHostPort(host, p.Published),
				Service: name,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

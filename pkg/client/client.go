// Package client is a typed client for the hub's control channel.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modoterra/cmdhub/pkg/core"
	"github.com/modoterra/cmdhub/pkg/transport/wire"
)

var (
	// ErrUnknownCommand is returned when the hub has no handler for a command.
	ErrUnknownCommand = errors.New("command unknown to hub")

	// ErrUnexpectedReply is returned when a reply cannot be interpreted.
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// RemoteError is a failure reported by a hub command handler.
type RemoteError struct {
	Command string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("hub %s: %s", e.Command, e.Message)
}

// Client talks to one hub. It is safe for concurrent use; requests are
// serialized on a single connection.
type Client struct {
	conn *wire.Client
}

// Dial connects to the hub's control endpoint.
func Dial(ctx context.Context, ep wire.Endpoint) (*Client, error) {
	conn, err := wire.Dial(ctx, ep)
	if err != nil {
		return nil, fmt.Errorf("connect to hub: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Do sends a raw command and returns the reply text. Unknown commands and
// handler failures come back as errors.
func (c *Client) Do(ctx context.Context, cmd string, args ...string) (string, error) {
	reply, err := c.conn.Request(ctx, wire.FormatRequest(cmd, args...))
	if err != nil {
		return "", err
	}
	switch {
	case reply == wire.ReplyUnknown:
		return "", fmt.Errorf("%s: %w", cmd, ErrUnknownCommand)
	case strings.HasPrefix(reply, wire.ErrorPrefix):
		return "", &RemoteError{Command: cmd, Message: strings.TrimPrefix(reply, wire.ErrorPrefix)}
	}
	return reply, nil
}

func (c *Client) expect(ctx context.Context, want, cmd string, args ...string) error {
	reply, err := c.Do(ctx, cmd, args...)
	if err != nil {
		return err
	}
	if reply != want {
		return fmt.Errorf("%s: %w %q", cmd, ErrUnexpectedReply, reply)
	}
	return nil
}

func (c *Client) decode(ctx context.Context, v any, cmd string, args ...string) (bool, error) {
	reply, err := c.Do(ctx, cmd, args...)
	if err != nil {
		return false, err
	}
	if reply == wire.ReplyNone {
		return false, nil
	}
	if err := json.Unmarshal([]byte(reply), v); err != nil {
		return false, fmt.Errorf("%s: decode reply: %w", cmd, err)
	}
	return true, nil
}

// Ping checks the hub is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.expect(ctx, wire.ReplyPong, wire.CmdPing)
}

// Register claims an instance id. It reports false when the id is already
// registered.
func (c *Client) Register(ctx context.Context, id core.InstanceID) (bool, error) {
	if err := core.ValidateInstanceID(id); err != nil {
		return false, err
	}
	reply, err := c.Do(ctx, wire.CmdRegister, string(id))
	if err != nil {
		return false, err
	}
	switch reply {
	case wire.ReplyTrue:
		return true, nil
	case wire.ReplyFalse:
		return false, nil
	}
	return false, fmt.Errorf("register: %w %q", ErrUnexpectedReply, reply)
}

// Last returns the most recent command from any instance. ok is false when
// nothing has been recorded.
func (c *Client) Last(ctx context.Context) (cmd string, ok bool, err error) {
	reply, err := c.Do(ctx, wire.CmdLast)
	if err != nil {
		return "", false, err
	}
	return reply, reply != wire.ReplyNone, nil
}

// LastByInstance returns the most recent command of one instance.
func (c *Client) LastByInstance(ctx context.Context, id core.InstanceID) (cmd string, ok bool, err error) {
	reply, err := c.Do(ctx, wire.CmdLastByInstance, string(id))
	if err != nil {
		return "", false, err
	}
	return reply, reply != wire.ReplyNone, nil
}

// All returns every recorded command in arrival order.
func (c *Client) All(ctx context.Context) ([]string, error) {
	var all []string
	if _, err := c.decode(ctx, &all, wire.CmdAll); err != nil {
		return nil, err
	}
	return all, nil
}

// AllByInstance returns the commands of one instance. It returns nil when
// the instance is unknown or has no commands.
func (c *Client) AllByInstance(ctx context.Context, id core.InstanceID) ([]string, error) {
	var all []string
	if _, err := c.decode(ctx, &all, wire.CmdAllByInstance, string(id)); err != nil {
		return nil, err
	}
	return all, nil
}

// CommandCounts returns the number of commands recorded per instance.
func (c *Client) CommandCounts(ctx context.Context) (map[core.InstanceID]int, error) {
	counts := make(map[core.InstanceID]int)
	if _, err := c.decode(ctx, &counts, wire.CmdCommandsCount); err != nil {
		return nil, err
	}
	return counts, nil
}

// Reset clears all recorded commands and registrations.
func (c *Client) Reset(ctx context.Context) error {
	return c.expect(ctx, wire.ReplyTrue, wire.CmdReset)
}

// Shutdown stops the hub and its watchers.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.expect(ctx, wire.ReplyTrue, wire.CmdShutdown)
}

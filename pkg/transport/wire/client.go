package wire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// ErrBroken is returned by a Client whose previous request was interrupted
// before its reply arrived; the request/reply pairing is lost after that.
var ErrBroken = errors.New("connection out of sync after an interrupted request")

const dialTimeout = 5 * time.Second

func dial(ctx context.Context, ep Endpoint) (net.Conn, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, ep.Network, ep.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", ep, err)
	}
	return conn, nil
}

// Client is the request side of the control channel. Requests are
// serialized: one reply is read for every request written. Replies have no
// size limit; the hub's logs are unbounded.
type Client struct {
	conn   net.Conn
	frames *frameReader
	mu     sync.Mutex
	broken bool
}

// Dial connects to a control endpoint.
func Dial(ctx context.Context, ep Endpoint) (*Client, error) {
	conn, err := dial(ctx, ep)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, frames: newFrameReader(conn, 0)}, nil
}

// Request sends line and waits for its reply.
func (c *Client) Request(ctx context.Context, line string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken {
		return "", ErrBroken
	}

	release := interruptOn(ctx, c.conn)
	defer release()

	if err := writeFrame(c.conn, line); err != nil {
		if !errors.Is(err, ErrFrameNewline) {
			c.broken = true
		}
		return "", fmt.Errorf("write: %w", err)
	}

	reply, err := c.frames.next()
	if err != nil {
		c.broken = true
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return "", fmt.Errorf("read: %w", err)
	}
	return reply, nil
}

// interruptOn unblocks pending I/O on conn when ctx is done. The returned
// release func must be called once the I/O finished; it clears the
// deadline again if the interrupt fired late.
func interruptOn(ctx context.Context, conn net.Conn) (release func()) {
	if ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	fired := make(chan bool, 1)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetDeadline(time.Now())
			fired <- true
		case <-done:
			fired <- false
		}
	}()
	return func() {
		close(done)
		if <-fired {
			conn.SetDeadline(time.Time{})
		}
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Pusher is the producer side of the ingest channel.
type Pusher struct {
	conn net.Conn
	mu   sync.Mutex
}

// DialPush connects to an ingest endpoint.
func DialPush(ctx context.Context, ep Endpoint) (*Pusher, error) {
	conn, err := dial(ctx, ep)
	if err != nil {
		return nil, err
	}
	return &Pusher{conn: conn}, nil
}

// Send pushes one message. Messages from one Pusher arrive in order.
func (p *Pusher) Send(msg string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := writeFrame(p.conn, msg); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	return nil
}

// Close closes the connection.
func (p *Pusher) Close() error {
	return p.conn.Close()
}

package wire

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Request is one control request waiting for its reply. The connection it
// came from reads nothing else until Reply is called.
type Request struct {
	Line  string
	reply chan string
}

// NewRequest builds a Request outside of a server, for embedding and tests.
// The reply is delivered on the returned channel.
func NewRequest(line string) (Request, <-chan string) {
	ch := make(chan string, 1)
	return Request{Line: line, reply: ch}, ch
}

// Reply sends the single reply for r. Calls after the first are ignored.
func (r Request) Reply(s string) {
	select {
	case r.reply <- s:
	default:
	}
}

// listener accepts connections and runs one handler goroutine per
// connection until closed.
type listener struct {
	ln      net.Listener
	logger  *slog.Logger
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	mu      sync.Mutex
	clients map[net.Conn]struct{}
}

func newListener(ln net.Listener, logger *slog.Logger) *listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &listener{
		ln:      ln,
		logger:  logger,
		done:    make(chan struct{}),
		clients: make(map[net.Conn]struct{}),
	}
}

func (l *listener) serve(handle func(net.Conn)) {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.closing() {
				return
			}
			l.logger.Error("accept error", "addr", l.ln.Addr().String(), "err", err)
			continue
		}
		l.mu.Lock()
		select {
		case <-l.done:
			l.mu.Unlock()
			conn.Close()
			return
		default:
		}
		l.clients[conn] = struct{}{}
		l.wg.Add(1)
		l.mu.Unlock()

		go func() {
			defer l.wg.Done()
			defer func() {
				conn.Close()
				l.mu.Lock()
				delete(l.clients, conn)
				l.mu.Unlock()
			}()
			handle(conn)
		}()
	}
}

func (l *listener) closing() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// close stops accepting and unblocks every pending read. A reply that is
// already being written still goes out before its connection is closed.
func (l *listener) close() {
	l.once.Do(func() {
		close(l.done)
		l.ln.Close()
		l.mu.Lock()
		for conn := range l.clients {
			conn.SetReadDeadline(time.Now())
		}
		l.mu.Unlock()
	})
	l.wg.Wait()
}

// ControlServer serves the request/reply channel. Requests from every
// connection are funneled into one channel; each connection has at most
// one request in flight.
type ControlServer struct {
	*listener
	requests chan Request
	limit    int
	drained  sync.Once
}

// NewControlServer wraps a bound listener.
func NewControlServer(ln net.Listener, logger *slog.Logger) *ControlServer {
	return &ControlServer{
		listener: newListener(ln, logger),
		requests: make(chan Request),
		limit:    MaxFrame,
	}
}

// Addr returns the bound endpoint.
func (s *ControlServer) Addr() Endpoint { return endpointOf(s.ln.Addr()) }

// Requests delivers incoming requests. The receiver must Reply to each.
// The channel is closed once the server is closed and every connection
// handler has returned.
func (s *ControlServer) Requests() <-chan Request { return s.requests }

// Serve accepts connections until ctx is done or Close is called.
func (s *ControlServer) Serve(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() { go s.Close() })
	defer stop()
	s.serve(s.handleConn)
}

// Close stops accepting, drops every connection and waits for handlers.
func (s *ControlServer) Close() {
	s.close()
	s.drained.Do(func() { close(s.requests) })
}

func (s *ControlServer) handleConn(conn net.Conn) {
	frames := newFrameReader(conn, s.limit)
	for {
		line, err := frames.next()
		if errors.Is(err, ErrFrameTooLarge) {
			s.logger.Warn("control request too large", "remote", conn.RemoteAddr().String(), "limit", s.limit)
			if err := writeFrame(conn, ErrorPrefix+err.Error()); err != nil {
				return
			}
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.closing() {
				s.logger.Warn("control connection error", "remote", conn.RemoteAddr().String(), "err", err)
			}
			return
		}

		req, reply := NewRequest(line)
		select {
		case s.requests <- req:
		case <-s.done:
			return
		}
		var resp string
		select {
		case resp = <-reply:
		case <-s.done:
			return
		}
		if err := writeFrame(conn, flatten(resp)); err != nil {
			s.logger.Error("write reply error", "err", err)
			return
		}
	}
}

// IngestServer serves the push/pull channel: many producers, one consumer,
// no replies.
type IngestServer struct {
	*listener
	messages chan string
	limit    int
	drained  sync.Once
}

// NewIngestServer wraps a bound listener. buffer is the number of messages
// held while the consumer is busy.
func NewIngestServer(ln net.Listener, buffer int, logger *slog.Logger) *IngestServer {
	return &IngestServer{
		listener: newListener(ln, logger),
		messages: make(chan string, buffer),
		limit:    MaxIngestFrame,
	}
}

// Addr returns the bound endpoint.
func (s *IngestServer) Addr() Endpoint { return endpointOf(s.ln.Addr()) }

// Messages delivers pushed messages in per-connection order. The channel
// is closed once the server is closed and every connection handler has
// returned.
func (s *IngestServer) Messages() <-chan string { return s.messages }

// Serve accepts connections until ctx is done or Close is called.
func (s *IngestServer) Serve(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() { go s.Close() })
	defer stop()
	s.serve(s.handleConn)
}

// Close stops accepting, drops every connection and waits for handlers.
func (s *IngestServer) Close() {
	s.close()
	s.drained.Do(func() { close(s.messages) })
}

// handleConn reads messages until the producer disconnects. An oversized
// message is dropped and the connection stays up.
func (s *IngestServer) handleConn(conn net.Conn) {
	frames := newFrameReader(conn, s.limit)
	for {
		msg, err := frames.next()
		if errors.Is(err, ErrFrameTooLarge) {
			s.logger.Warn("dropping oversized ingest message", "remote", conn.RemoteAddr().String(), "limit", s.limit)
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.closing() {
				s.logger.Warn("ingest connection error", "remote", conn.RemoteAddr().String(), "err", err)
			}
			return
		}
		select {
		case s.messages <- msg:
		case <-s.done:
			return
		}
	}
}

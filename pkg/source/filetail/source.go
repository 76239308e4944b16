// Package filetail replays monitor lines from a file, following appends
// the way tail -f does. It lets a watcher run against a captured monitor
// log instead of a live store.
package filetail

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/modoterra/cmdhub/pkg/core"
)

const defaultPoll = 250 * time.Millisecond

// Source tails one file.
type Source struct {
	Path string

	// FromStart replays the existing content before following appends.
	// Otherwise only lines written after OpenMonitor are returned.
	FromStart bool

	// Follow keeps waiting for new lines at end of file. Without it the
	// stream ends with io.EOF once the file is drained.
	Follow bool

	Poll   time.Duration
	Logger *slog.Logger
}

// OpenMonitor opens the file and positions the stream.
func (s *Source) OpenMonitor(ctx context.Context) (core.Stream, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	if !s.FromStart {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, fmt.Errorf("seek %s: %w", s.Path, err)
		}
	}
	poll := s.Poll
	if poll <= 0 {
		poll = defaultPoll
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("tailing file", "path", s.Path, "from_start", s.FromStart)
	return &stream{f: f, reader: bufio.NewReader(f), follow: s.Follow, poll: poll, logger: logger}, nil
}

type stream struct {
	f       *os.File
	reader  *bufio.Reader
	pending strings.Builder
	follow  bool
	poll    time.Duration
	logger  *slog.Logger
}

// Next returns the next complete line. A partial last line is held back
// until its newline arrives.
func (s *stream) Next(ctx context.Context) (string, error) {
	for {
		chunk, err := s.reader.ReadString('\n')
		s.pending.WriteString(chunk)
		if err == nil {
			line := strings.TrimRight(s.pending.String(), "\r\n")
			s.pending.Reset()
			return line, nil
		}
		if err != io.EOF {
			return "", fmt.Errorf("read %s: %w", s.f.Name(), err)
		}
		if !s.follow {
			if s.pending.Len() > 0 {
				line := s.pending.String()
				s.pending.Reset()
				return line, nil
			}
			return "", io.EOF
		}

		// No new data, poll.
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.poll):
		}
		s.checkTruncated()
	}
}

// checkTruncated rewinds when the file shrank under us.
func (s *stream) checkTruncated() {
	info, err := s.f.Stat()
	if err != nil {
		return
	}
	pos, err := s.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return
	}
	if info.Size() < pos {
		s.logger.Info("file truncated, rewinding", "path", s.f.Name())
		s.f.Seek(0, io.SeekStart)
		s.reader.Reset(s.f)
		s.pending.Reset()
	}
}

func (s *stream) Close() error {
	return s.f.Close()
}

package wire

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// MaxFrame is the largest control request a server accepts.
const MaxFrame = 1024 * 1024

// MaxIngestFrame is the largest ingest message a server accepts. A monitor
// line carries the full argument list of a command, values included.
const MaxIngestFrame = 64 * 1024 * 1024

// ErrFrameNewline is returned when a frame to be written contains a newline.
var ErrFrameNewline = errors.New("frame contains a newline")

// ErrFrameTooLarge is returned by a frameReader for a frame longer than its
// limit. The frame has been consumed and the next read starts at the frame
// after it.
var ErrFrameTooLarge = errors.New("frame too large")

// frameReader reads '\n' terminated UTF-8 frames; a trailing '\r' is
// dropped. A limit of zero or less means frames of any length.
type frameReader struct {
	r     *bufio.Reader
	limit int
}

func newFrameReader(r io.Reader, limit int) *frameReader {
	return &frameReader{r: bufio.NewReaderSize(r, 64*1024), limit: limit}
}

// next returns the next frame. A final frame without a terminator is
// returned as is; io.EOF follows it.
func (f *frameReader) next() (string, error) {
	var (
		buf      []byte
		oversize bool
	)
	for {
		chunk, err := f.r.ReadSlice('\n')
		if !oversize {
			n := len(buf) + len(chunk)
			if err == nil {
				n-- // terminator
			}
			if f.limit > 0 && n > f.limit {
				oversize = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		switch {
		case err == nil:
			if oversize {
				return "", ErrFrameTooLarge
			}
			return trimEOL(buf), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if oversize {
				return "", ErrFrameTooLarge
			}
			if len(buf) > 0 {
				return trimEOL(buf), nil
			}
			return "", io.EOF
		default:
			return "", err
		}
	}
}

func trimEOL(b []byte) string {
	s := string(b)
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}

// writeFrame writes s followed by '\n'.
func writeFrame(w io.Writer, s string) error {
	if strings.ContainsRune(s, '\n') {
		return ErrFrameNewline
	}
	buf := make([]byte, 0, len(s)+1)
	buf = append(buf, s...)
	buf = append(buf, '\n')
	_, err := w.Write(buf)
	return err
}

// flatten turns s into a single frame.
func flatten(s string) string {
	if !strings.ContainsRune(s, '\n') {
		return s
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", " "), "\n", " ")
}

// Package ingest implements the watcher-to-hub message format
// "(<instance>) - <monitor line>" and the normalization of monitor lines
// into stored records.
package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/modoterra/cmdhub/pkg/core"
)

// Ack is the reply a store sends when a connection enters monitor mode. It
// carries no command and is never forwarded.
const Ack = "OK"

// ErrMalformed is returned for messages without an instance prefix or
// without the client block of a monitor line.
var ErrMalformed = errors.New("malformed ingest message")

// Format builds the message a watcher sends for one monitor line.
func Format(id core.InstanceID, line string) string {
	return fmt.Sprintf("(%s) - %s", id, line)
}

// Parse splits a message into its instance id and normalized body.
func Parse(raw string, normalize Normalizer) (core.Record, error) {
	id, err := InstanceOf(raw)
	if err != nil {
		return core.Record{}, err
	}
	end := strings.IndexByte(raw, ']')
	if end < 0 {
		return core.Record{}, fmt.Errorf("%w: no ']' in %q", ErrMalformed, raw)
	}
	if normalize == nil {
		normalize = Legacy
	}
	return core.Record{Instance: id, Body: normalize(raw[end+1:])}, nil
}

// InstanceOf returns the id between the leading parentheses of raw.
func InstanceOf(raw string) (core.InstanceID, error) {
	end := strings.IndexByte(raw, ')')
	if end < 0 {
		return "", fmt.Errorf("%w: no ')' in %q", ErrMalformed, raw)
	}
	return core.InstanceID(strings.Trim(raw[:end+1], "()")), nil
}

package hub

import (
	"encoding/json"
	"fmt"

	"github.com/modoterra/cmdhub/pkg/transport/wire"
)

// Status tags a Result.
type Status int

const (
	StatusOK Status = iota
	StatusNotFound
	StatusUnknown
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not-found"
	case StatusUnknown:
		return "unknown"
	case StatusFailure:
		return "failure"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of one control command. Only Wire turns it into
// protocol text.
type Result struct {
	Status Status
	Value  string
}

// OK is a successful result carrying the reply text.
func OK(value string) Result { return Result{Status: StatusOK, Value: value} }

// NotFound means there is no data yet for the query.
func NotFound() Result { return Result{Status: StatusNotFound} }

// Unknown means no handler is registered for the command.
func Unknown() Result { return Result{Status: StatusUnknown} }

// Failure is a handler error.
func Failure(err error) Result { return Result{Status: StatusFailure, Value: err.Error()} }

// JSON is an OK result carrying the JSON encoding of v.
func JSON(v any) (Result, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Result{}, fmt.Errorf("encode reply: %w", err)
	}
	return OK(string(b)), nil
}

// Wire renders r as the reply sent on the control channel.
func (r Result) Wire() string {
	switch r.Status {
	case StatusOK:
		return r.Value
	case StatusNotFound:
		return wire.ReplyNone
	case StatusUnknown:
		return wire.ReplyUnknown
	default:
		return wire.ErrorPrefix + r.Value
	}
}

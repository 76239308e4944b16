package hub

import (
	"fmt"

	"github.com/modoterra/cmdhub/pkg/transport/wire"
)

// Handler runs one control command. A returned error becomes a failure
// reply; it never stops the hub.
type Handler func(args []string) (Result, error)

// RegisterCommand adds or replaces a control command. It must be called
// before Run; remote clients cannot add commands.
func (h *Hub) RegisterCommand(name string, handler Handler) {
	h.commands[name] = handler
}

// Dispatch executes one request line and returns the wire reply.
func (h *Hub) Dispatch(line string) string {
	return h.Execute(line).Wire()
}

// Execute runs the handler for a request line. Unknown commands, handler
// errors and handler panics all come back as tagged results.
func (h *Hub) Execute(line string) (res Result) {
	name, args := wire.ParseRequest(line)
	handler, ok := h.commands[name]
	if !ok {
		h.logger.Debug("unknown command", "command", name)
		return Unknown()
	}

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("command panicked", "command", name, "panic", r)
			res = Failure(fmt.Errorf("%v", r))
		}
	}()

	res, err := handler(args)
	if err != nil {
		h.logger.Debug("command failed", "command", name, "err", err)
		return Failure(err)
	}
	return res
}

func exactArgs(name string, args []string, n int) error {
	if len(args) == n {
		return nil
	}
	noun := "arguments"
	if n == 1 {
		noun = "argument"
	}
	return fmt.Errorf("%s takes exactly %d %s (%d given)", name, n, noun, len(args))
}

package wire

import "strings"

// Control commands.
const (
	CmdRegister       = "register"
	CmdLast           = "last"
	CmdLastByInstance = "last_by_instance"
	CmdAll            = "all"
	CmdAllByInstance  = "all_by_instance"
	CmdCommandsCount  = "commands_count"
	CmdReset          = "reset"
	CmdShutdown       = "shutdown"
	CmdPing           = "ping"
)

// Control replies with fixed text.
const (
	ReplyTrue    = "True"
	ReplyFalse   = "False"
	ReplyPong    = "pong"
	ReplyUnknown = "COMMAND_UNKNOWN"
	ReplyNone    = ""

	// ErrorPrefix starts the reply of a command whose handler failed.
	ErrorPrefix = "Error Occurred: "
)

// FormatRequest joins a command and its arguments into one request line.
func FormatRequest(cmd string, args ...string) string {
	if len(args) == 0 {
		return cmd
	}
	return cmd + " " + strings.Join(args, " ")
}

// ParseRequest splits a request line into the command name and its
// arguments. Surrounding whitespace is ignored and arguments are separated
// by single spaces, so repeated spaces yield empty arguments.
func ParseRequest(line string) (cmd string, args []string) {
	parts := strings.Split(strings.TrimSpace(line), " ")
	return parts[0], parts[1:]
}

package daemon

import (
	"strconv"
	"strings"

	"portmsg/internal/logging"
)

// Built-in commands understood by the daemon.
const (
	CommandPing   = "--ping"
	CommandStatus = "--status"
	CommandQuery  = "--query"
	CommandEcho   = "--echo"
)

// commandHandler answers the built-in commands. Messages arrive with tokens
// separated by line breaks.
type commandHandler struct {
	daemon *Daemon
}

func (h *commandHandler) Handle(message string) {
	_, _ = h.Respond(message)
}

func (h *commandHandler) Respond(message string) (string, bool) {
	tokens := strings.Split(message, "\n")
	switch tokens[0] {
	case CommandPing:
		return "pong", true
	case CommandStatus:
		return h.statusReply(), true
	case CommandQuery:
		if len(tokens) > 1 && tokens[1] == "status" {
			return h.statusReply(), true
		}
	case CommandEcho:
		if len(tokens) > 1 {
			return strings.Join(tokens[1:], "\n"), true
		}
		return "", true
	}
	h.daemon.logger.Info("unhandled command",
		logging.String("command", tokens[0]),
		logging.Int("tokens", len(tokens)),
		logging.Event("command_unhandled"))
	return "", false
}

// statusReply renders the daemon status as KEY/VALUE lines.
func (h *commandHandler) statusReply() string {
	status := h.daemon.Status()
	lines := []string{
		"service", status.Service,
		"pid", strconv.Itoa(status.PID),
		"session", status.Session,
		"handled", strconv.FormatUint(status.Handled, 10),
		"uptime", status.Uptime.String(),
		"transport", status.Transport,
	}
	return strings.Join(lines, "\n")
}

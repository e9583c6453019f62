package models

type Mode string

const (
	ModeAny    Mode = ""
	ModeClient Mode = "client"
	ModeServer Mode = "server"
)

// ParseMode maps the raw request value onto a Mode; ok is false for unknown values
func ParseMode(raw string) (Mode, bool) {
	switch Mode(raw) {
	case ModeAny, ModeClient, ModeServer:
		return Mode(raw), true
	default:
		return Mode(raw), false
	}
}

type AssignmentKind string

const (
	AssignmentClient AssignmentKind = "client"
	AssignmentServer AssignmentKind = "server"
	// AssignmentNone means client mode was requested and no server was free
	AssignmentNone AssignmentKind = "none"
)

type Assignment struct {
	Kind    AssignmentKind
	Command string
	Args    []string

	// Set for client assignments only
	Server     *Worker
	Connection *Connection
}

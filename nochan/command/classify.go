// Package command recognizes and executes user commands (/new, /stop, /help).
package command

import "strings"

// Kind is one of the fixed command kinds.
type Kind string

const (
	KindNew     Kind = "new"     // start a fresh conversation
	KindStop    Kind = "stop"    // cancel the in-flight agent invocation
	KindHelp    Kind = "help"    // show help text
	KindUnknown Kind = "unknown" // prefixed but unrecognized; still suppresses dispatch
)

const prefix = "/"

// Classify identifies a command in message text. The second return is false
// for ordinary dialogue (text not starting with the command prefix).
// Deterministic, no side effects.
func Classify(text string) (Kind, bool) {
	if !strings.HasPrefix(text, prefix) {
		return "", false
	}

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}

	name := strings.ToLower(strings.TrimPrefix(fields[0], prefix))
	switch name {
	case "new":
		return KindNew, true
	case "stop":
		return KindStop, true
	case "help":
		return KindHelp, true
	default:
		return KindUnknown, true
	}
}

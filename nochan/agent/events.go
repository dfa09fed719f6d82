package agent

// Event kinds emitted by `opencode run --format json`. Decoded at the process
// boundary into a closed set; everything downstream switches on Kind, never
// on raw JSON keys.
const (
	eventText       = "text"
	eventToolUse    = "tool_use"
	eventStepStart  = "step_start"
	eventStepFinish = "step_finish"
	eventError      = "error"
)

// event is one newline-delimited record from the agent's stdout.
type event struct {
	Type      string     `json:"type"`
	SessionID string     `json:"sessionID"`
	Part      eventPart  `json:"part"`
	Error     eventIssue `json:"error"`
}

type eventPart struct {
	Text   string      `json:"text"`
	Tool   string      `json:"tool"`
	Reason string      `json:"reason"`
	Cost   float64     `json:"cost"`
	Tokens eventTokens `json:"tokens"`
	State  eventState  `json:"state"`
}

type eventTokens struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

type eventState struct {
	Status string `json:"status"`
	Title  string `json:"title"`
	Output string `json:"output"`
}

type eventIssue struct {
	Name string `json:"name"`
	Data struct {
		Message string `json:"message"`
	} `json:"data"`
}

// message extracts the best human-readable description of an error event.
func (e eventIssue) message() string {
	if e.Data.Message != "" {
		return e.Data.Message
	}
	if e.Name != "" {
		return e.Name
	}
	return "unknown error"
}

package gateway

import "encoding/json"

// OneBot 11 post types. Everything arriving over the socket is decoded once,
// here, into typed form; nothing downstream touches raw JSON.
const (
	postMessage   = "message"
	postMetaEvent = "meta_event"
	postNotice    = "notice"
	postRequest   = "request"
)

// Message segment types produced by NapCatQQ.
const (
	segText  = "text"
	segAt    = "at"
	segImage = "image"
	segFace  = "face"
)

// inboundFrame is one frame from NapCatQQ: either a pushed event
// (post_type set) or a response to an API request (echo set).
type inboundFrame struct {
	PostType string `json:"post_type"`

	// Meta events
	MetaEventType string `json:"meta_event_type"`
	SubType       string `json:"sub_type"`

	// Notice / request events (logged only)
	NoticeType  string `json:"notice_type"`
	RequestType string `json:"request_type"`

	// Message events
	SelfID      int64     `json:"self_id"`
	MessageType string    `json:"message_type"`
	UserID      int64     `json:"user_id"`
	GroupID     int64     `json:"group_id"`
	GroupName   string    `json:"group_name"`
	RawMessage  string    `json:"raw_message"`
	Message     []segment `json:"message"`
	Sender      sender    `json:"sender"`

	// API responses
	Echo    string          `json:"echo"`
	Status  string          `json:"status"`
	Retcode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
}

// segment is one element of a OneBot message array.
type segment struct {
	Type string      `json:"type"`
	Data segmentData `json:"data"`
}

type segmentData struct {
	Text string `json:"text"`
	// NapCatQQ sends qq as a string, even though user ids are numeric
	QQ string `json:"qq"`
}

type sender struct {
	Nickname string `json:"nickname"`
	Card     string `json:"card"` // group display name, preferred over nickname
}

// apiRequest is an outbound OneBot API call, correlated by echo.
type apiRequest struct {
	Action string `json:"action"`
	Params any    `json:"params"`
	Echo   string `json:"echo"`
}

// apiResponse is the subset of an API response the server acts on.
type apiResponse struct {
	Status  string
	Retcode int
	Data    json.RawMessage
}

// outSegment is one element of an outbound message array.
type outSegment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// textSegments wraps reply text as a single OneBot text segment.
func textSegments(text string) []outSegment {
	return []outSegment{{Type: segText, Data: map[string]any{"text": text}}}
}

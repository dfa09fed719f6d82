package gateway

import (
	"strconv"
	"strings"

	ports "github.com/nochan-bot/nochan/nochan/dispatch/ports"
)

// convertMessage turns a OneBot message event into the transport-independent
// form the dispatcher consumes: segments flattened to plain text, the bot's
// own @-mention detected and stripped, media replaced with placeholders.
func convertMessage(ev *inboundFrame, botID int64) ports.Message {
	scope := ports.ScopePrivate
	key := ports.PrivateKey(ev.UserID)
	if ev.MessageType == "group" {
		scope = ports.ScopeGroup
		key = ports.GroupKey(ev.GroupID)
	}

	senderName := ev.Sender.Card
	if senderName == "" {
		senderName = ev.Sender.Nickname
	}
	if senderName == "" {
		senderName = strconv.FormatInt(ev.UserID, 10)
	}

	var text strings.Builder
	atBot := false

	for _, seg := range ev.Message {
		switch seg.Type {
		case segText:
			text.WriteString(seg.Data.Text)

		case segAt:
			if seg.Data.QQ == strconv.FormatInt(botID, 10) {
				// The bot's own mention is metadata, not message text
				atBot = true
			} else {
				text.WriteString("@" + seg.Data.QQ)
			}

		case segImage:
			text.WriteString("[图片]")

		case segFace:
			text.WriteString("[表情]")
		}
		// Other segment types (reply, record, ...) are silently ignored
	}

	return ports.Message{
		Key:        key,
		Scope:      scope,
		Text:       strings.TrimSpace(text.String()),
		AtBot:      atBot,
		SenderID:   ev.UserID,
		SenderName: senderName,
		GroupID:    ev.GroupID,
		GroupName:  ev.GroupName,
	}
}

package dispatch

import (
	"fmt"

	ports "github.com/nochan-bot/nochan/nochan/dispatch/ports"
)

// BuildPrompt prepends a context header to the message text so the agent
// knows who is talking and from where.
func BuildPrompt(msg ports.Message) string {
	var header string
	if msg.Scope == ports.ScopePrivate {
		header = fmt.Sprintf("[私聊，用户 %s(%d)]", msg.SenderName, msg.SenderID)
	} else {
		header = fmt.Sprintf("[群聊 %s(%d)，用户 %s(%d)]", msg.GroupName, msg.GroupID, msg.SenderName, msg.SenderID)
	}
	return header + "\n" + msg.Text
}

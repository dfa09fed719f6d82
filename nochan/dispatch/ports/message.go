package dispatchports

import "fmt"

// Scope distinguishes private chats from group chats.
type Scope string

const (
	ScopePrivate Scope = "private"
	ScopeGroup   Scope = "group"
)

// Message is the transport-independent form of one inbound chat message,
// produced by the gateway converter.
type Message struct {
	Key        string // conversation key: "private:<user_id>" or "group:<group_id>"
	Scope      Scope
	Text       string // plain text with @bot stripped and media as placeholders
	AtBot      bool   // whether the bot was @-mentioned (always false for private)
	SenderID   int64
	SenderName string // group card preferred, fallback nickname
	GroupID    int64  // zero for private messages
	GroupName  string // empty for private messages
}

// PrivateKey builds the conversation key for a private chat.
func PrivateKey(userID int64) string { return fmt.Sprintf("private:%d", userID) }

// GroupKey builds the conversation key for a group chat.
func GroupKey(groupID int64) string { return fmt.Sprintf("group:%d", groupID) }

package dispatchports

import (
	"context"

	"github.com/nochan-bot/nochan/nochan/conversation"
)

// ConversationStore persists the chat-to-agent-session mapping.
type ConversationStore interface {
	// GetActive returns the most recently created active conversation for the
	// key, or nil if none exists.
	GetActive(ctx context.Context, key string) (*conversation.Conversation, error)
	// Create inserts a fresh active conversation with no continuation token.
	Create(ctx context.Context, key string) (*conversation.Conversation, error)
	// ArchiveActive archives the active conversation(s) for the key and
	// reports whether any row was changed.
	ArchiveActive(ctx context.Context, key string) (bool, error)
	// SetContinuationToken records the agent session id on an existing row.
	SetContinuationToken(ctx context.Context, id, token string) error
}

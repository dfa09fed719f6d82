// Package conversation persists the mapping from chat identities to dialogue
// sessions and their continuation tokens.
package conversation

import (
	"errors"
	"time"
)

// Status of a conversation row.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// ErrStorage marks storage-layer I/O failures. Callers match it with
// errors.Is; the wrapped error carries the driver detail.
var ErrStorage = errors.New("conversation storage error")

// Conversation links a chat identity to an agent dialogue context.
//
// Key is "private:<user_id>" or "group:<group_id>" and is not unique across
// time: when a user starts over, the old row is archived and a new active row
// is created under the same key.
type Conversation struct {
	ID                string    // nochan-generated UUID
	Key               string    // stable chat identity
	ContinuationToken string    // agent session id; "" until the first successful agent call
	Status            string    // StatusActive or StatusArchived
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

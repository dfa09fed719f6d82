package dispatchports

import "context"

// ReplyFunc sends a user-visible text reply back to the source of a message.
// Provided by the transport layer; safe to call zero or more times per
// inbound message.
type ReplyFunc func(ctx context.Context, msg Message, text string) error

// CancelFunc requests cancellation of the in-flight agent invocation for a
// conversation key. Reports whether a task was found. Bridges the command
// layer to the orchestrator's task registry without a direct dependency.
type CancelFunc func(key string) bool

package dispatchports

import "context"

// Outcome of one agent invocation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// InvocationResult aggregates the decoded output of one agent process run.
// Transient; never persisted.
type InvocationResult struct {
	ContinuationToken string  // session id observed in the event stream; "" if none
	Content           string  // concatenated text events, in stream order
	Outcome           Outcome
	ErrorDetail       string  // set iff Outcome is OutcomeFailure
}

// Failed reports whether the invocation ended in failure.
func (r InvocationResult) Failed() bool { return r.Outcome == OutcomeFailure }

// AgentClient invokes the external AI tool under a global concurrency
// ceiling.
type AgentClient interface {
	// AtCapacity reports whether every execution slot is currently held or
	// waited on. Advisory only: capacity may change between this call and
	// Invoke. Never blocks.
	AtCapacity() bool
	// Invoke runs the tool once, blocking until a slot is free. A supplied
	// continuation token resumes that dialogue context; "" starts fresh.
	// Tool failures (launch errors, non-zero exit, error events) are reported
	// in the result, never as an error. The returned error is non-nil only
	// when ctx was cancelled, which is the caller's cancellation path, not a
	// failure.
	Invoke(ctx context.Context, continuationToken, prompt string) (InvocationResult, error)
}

package dispatch

import (
	"context"
	"sync"
)

// taskRegistry tracks the in-flight agent invocation per conversation key.
// Entries are created when dispatch begins and removed when it ends, on every
// exit path.
type taskRegistry struct {
	mu    sync.Mutex
	tasks map[string]context.CancelFunc
}

func newTaskRegistry() *taskRegistry {
	return &taskRegistry{tasks: make(map[string]context.CancelFunc)}
}

// tryBegin registers a cancellable task for the key. Returns false if a task
// is already registered; check and insert are atomic so two concurrent
// messages for one key can never both dispatch.
func (r *taskRegistry) tryBegin(key string, cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.tasks[key]; busy {
		return false
	}
	r.tasks[key] = cancel
	return true
}

// end removes the registry entry for the key.
func (r *taskRegistry) end(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, key)
}

// cancel requests cancellation of the task registered for the key, if any.
// The entry itself is removed by the dispatching goroutine on its way out.
func (r *taskRegistry) cancel(key string) bool {
	r.mu.Lock()
	cancelFn, ok := r.tasks[key]
	r.mu.Unlock()

	if !ok {
		return false
	}
	cancelFn()
	return true
}

package runq

import "errors"

// The engine's error taxonomy. Task absence during removal or a priority
// update is deliberately not an error; see RunQueue.RemoveTask.
var (
	// ErrAlreadyExists means a run queue was initialized twice for the same
	// core. This indicates a boot-sequence bug and is not recoverable.
	ErrAlreadyExists = errors.New("runqueue already exists for this core")

	// ErrNotFound means the operation named a core that was never registered.
	ErrNotFound = errors.New("no runqueue registered for core")

	// ErrNoRunqueues means the load balancer was invoked before any core
	// registered a run queue.
	ErrNoRunqueues = errors.New("no runqueues registered")
)

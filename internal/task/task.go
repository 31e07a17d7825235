// Package task provides the minimal task-handle surface the run-queue engine
// consumes: an identity-comparable, reference-counted handle with a
// runnable/blocked/exited state query. The rest of a task's life (address
// space, register context, spawning) belongs to the task subsystem proper and
// is out of scope here.
package task

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// ID uniquely identifies a task. IDs are assigned once, process-wide, and are
// never reused.
type ID uint64

var nextID atomic.Uint64

// State is the scheduling-relevant lifecycle state of a task.
type State int32

const (
	Runnable State = iota
	Blocked
	Exited
)

func (s State) String() string {
	switch s {
	case Runnable:
		return "runnable"
	case Blocked:
		return "blocked"
	case Exited:
		return "exited"
	default:
		return "unknown"
	}
}

// Task represents one schedulable unit of execution. The run-queue engine
// never mutates a Task; it only reads its state and compares identities.
type Task struct {
	id    ID
	name  string
	trace uuid.UUID // correlation id carried into log fields
	idle  bool

	state atomic.Int32
	refs  atomic.Int64
}

// New creates a runnable task with the given human-readable name and returns
// the first reference to it.
func New(name string) Ref {
	t := &Task{
		id:    ID(nextID.Add(1)),
		name:  name,
		trace: uuid.New(),
	}
	t.refs.Store(1)
	return Ref{t}
}

// NewIdle creates the idle task for a core. Idle tasks are permanently
// runnable and are never placed on a run queue; the scheduler falls back to
// them when nothing else is eligible.
func NewIdle(core uint8) Ref {
	r := New(fmt.Sprintf("idle_%d", core))
	r.t.idle = true
	return r
}

func (t *Task) ID() ID           { return t.id }
func (t *Task) Name() string     { return t.name }
func (t *Task) Trace() uuid.UUID { return t.trace }
func (t *Task) IsIdle() bool     { return t.idle }
func (t *Task) State() State     { return State(t.state.Load()) }
func (t *Task) IsRunnable() bool { return t.State() == Runnable }
func (t *Task) HasExited() bool  { return t.State() == Exited }

// SetState transitions the task's state. Transitions out of Exited are
// ignored; an exited task never becomes runnable again.
func (t *Task) SetState(s State) {
	for {
		cur := t.state.Load()
		if State(cur) == Exited {
			return
		}
		if t.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

// MarkExited moves the task to its terminal state.
func (t *Task) MarkExited() { t.SetState(Exited) }

// Ref is a shareable reference to a Task. Two Refs are equal iff they refer
// to the same underlying task; Ref is comparable with == and via Equal.
// The zero Ref is invalid and refers to no task.
type Ref struct {
	t *Task
}

// Valid reports whether the reference points at a task.
func (r Ref) Valid() bool { return r.t != nil }

// Equal reports pointer identity of the underlying tasks.
func (r Ref) Equal(o Ref) bool { return r.t == o.t }

// Clone bumps the reference count and returns a new reference to the same
// task.
func (r Ref) Clone() Ref {
	if r.t != nil {
		r.t.refs.Add(1)
	}
	return r
}

// Release drops this reference. The engine releases a reference whenever a
// record leaves a run queue; it never destroys the task itself.
func (r Ref) Release() {
	if r.t != nil {
		r.t.refs.Add(-1)
	}
}

// RefCount returns the current reference count, for diagnostics.
func (r Ref) RefCount() int64 {
	if r.t == nil {
		return 0
	}
	return r.t.refs.Load()
}

func (r Ref) ID() ID {
	if r.t == nil {
		return 0
	}
	return r.t.id
}

func (r Ref) Name() string {
	if r.t == nil {
		return "<nil>"
	}
	return r.t.name
}

func (r Ref) Trace() uuid.UUID {
	if r.t == nil {
		return uuid.Nil
	}
	return r.t.trace
}

func (r Ref) IsIdle() bool     { return r.t != nil && r.t.idle }
func (r Ref) IsRunnable() bool { return r.t != nil && r.t.IsRunnable() }
func (r Ref) HasExited() bool  { return r.t != nil && r.t.HasExited() }

func (r Ref) SetState(s State) {
	if r.t != nil {
		r.t.SetState(s)
	}
}

func (r Ref) MarkExited() {
	if r.t != nil {
		r.t.MarkExited()
	}
}

func (r Ref) String() string {
	if r.t == nil {
		return "task(<nil>)"
	}
	return fmt.Sprintf("task(%d, %q)", r.t.id, r.t.name)
}

package dispatch

import (
	"time"

	"krunq/internal/runq"
	"krunq/internal/task"
)

// StatusKind represents the type of dispatch event.
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusEnqueue
	StatusDispatch
	StatusRollover
	StatusExit
	StatusTick
)

// StatusEvent is emitted every tick or on key actions.
type StatusEvent struct {
	Time   time.Time
	Kind   StatusKind
	Core   runq.CoreID
	TaskID task.ID
	Tick   int64
	Detail string // policy metadata, e.g. "tokens=3" or "period=10"
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusIdle:
		return "Idle"
	case StatusEnqueue:
		return "Enqueued"
	case StatusDispatch:
		return "Dispatch"
	case StatusRollover:
		return "Rollover"
	case StatusExit:
		return "Exit"
	case StatusTick:
		return "Tick"
	default:
		return "Unknown"
	}
}

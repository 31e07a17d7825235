package runq

import "krunq/internal/task"

// RoundRobinRecord carries no metadata that influences ordering: round robin
// is pure FIFO among the entries present at tick time. The context-switch
// counter is diagnostic only.
type RoundRobinRecord struct {
	ref             task.Ref
	ContextSwitches uint64
}

func NewRoundRobinRecord(ref task.Ref) *RoundRobinRecord {
	return &RoundRobinRecord{ref: ref}
}

func (r *RoundRobinRecord) TaskRef() task.Ref { return r.ref }

// RoundRobinPolicy appends at the tail on insert and reinsert.
type RoundRobinPolicy struct{}

func (RoundRobinPolicy) Name() string { return "roundrobin" }

func (RoundRobinPolicy) NewRecord(ref task.Ref) *RoundRobinRecord {
	return NewRoundRobinRecord(ref)
}

func (RoundRobinPolicy) Insert(q *RunQueue[*RoundRobinRecord], rec *RoundRobinRecord) {
	q.PushBack(rec)
}

func (RoundRobinPolicy) Reinsert(q *RunQueue[*RoundRobinRecord], rec *RoundRobinRecord) {
	q.PushBack(rec)
}

// RoundRobinRegistry is the per-core queue registry for the round-robin
// discipline.
type RoundRobinRegistry struct {
	*Registry[*RoundRobinRecord]
}

func NewRoundRobinRegistry() RoundRobinRegistry {
	return RoundRobinRegistry{NewRegistry[*RoundRobinRecord](RoundRobinPolicy{})}
}

// MoveToEnd moves the record at the given index to the back of the queue and
// returns a cloned reference to its task. The tick handler calls this with
// the index of the record it decided was running.
func MoveToEnd(q *RunQueue[*RoundRobinRecord], index int) (task.Ref, bool) {
	return q.pick(index, func(rec *RoundRobinRecord) {
		rec.ContextSwitches++
	})
}

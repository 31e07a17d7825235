package runq

import "krunq/internal/task"

// PriorityRecord carries the static-priority policy's fairness bookkeeping.
// WeightedRuntime is computed externally by the tick handler from elapsed
// runtime and the task's fairness weight; this package only stores it. The
// separation is deliberate so the compare logic can evolve independently of
// queue mechanics.
type PriorityRecord struct {
	ref             task.Ref
	WeightedRuntime uint32
	TimesPicked     uint64
}

func NewPriorityRecord(ref task.Ref) *PriorityRecord {
	return &PriorityRecord{ref: ref}
}

func (r *PriorityRecord) TaskRef() task.Ref { return r.ref }

// PriorityPolicy appends at the tail; ordering among records is caller
// driven (the tick handler scans for the minimum WeightedRuntime).
type PriorityPolicy struct{}

func (PriorityPolicy) Name() string { return "priority" }

func (PriorityPolicy) NewRecord(ref task.Ref) *PriorityRecord {
	return NewPriorityRecord(ref)
}

func (PriorityPolicy) Insert(q *RunQueue[*PriorityRecord], rec *PriorityRecord) {
	q.PushBack(rec)
}

func (PriorityPolicy) Reinsert(q *RunQueue[*PriorityRecord], rec *PriorityRecord) {
	q.PushBack(rec)
}

// PriorityRegistry is the per-core queue registry for the static-priority
// discipline.
type PriorityRegistry struct {
	*Registry[*PriorityRecord]
}

func NewPriorityRegistry() PriorityRegistry {
	return PriorityRegistry{NewRegistry[*PriorityRecord](PriorityPolicy{})}
}

// UpdateAndMoveToEnd moves the record at the given index to the back of the
// queue, overwriting its weighted runtime with the caller-computed value and
// bumping its pick counter. Returns a cloned reference to the task.
func UpdateAndMoveToEnd(q *RunQueue[*PriorityRecord], index int, newWeight uint32) (task.Ref, bool) {
	return q.pick(index, func(rec *PriorityRecord) {
		rec.WeightedRuntime = newWeight
		rec.TimesPicked++
	})
}

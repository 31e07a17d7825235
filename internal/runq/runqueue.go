// Package runq implements the per-core run-queue engine: a registry of
// per-core queues, the policy-specific reordering algorithms (round-robin,
// static priority, rate-monotonic, epoch/token), queue-length load balancing
// and the priority-inheritance protocol.
//
// One generic RunQueue/Registry pair serves all four disciplines; each policy
// contributes a record type and its insertion/reordering rules.
package runq

import (
	"sync"

	"github.com/emirpasic/gods/lists/arraylist"

	"krunq/internal/task"
)

// CoreID identifies a processor core (an APIC-id style small integer).
type CoreID uint8

// Record is one run-queue entry: a task handle plus policy-specific
// scheduling metadata. The embedded handle never changes after construction;
// only the metadata mutates.
type Record interface {
	TaskRef() task.Ref
}

// Policy supplies the per-discipline pieces the generic engine cannot know:
// how to build a record for a newly enqueued task and where records belong in
// the queue. Reinsert is invoked after a pick; for every policy except
// rate-monotonic it is a plain push to the tail.
type Policy[R Record] interface {
	Name() string
	NewRecord(ref task.Ref) R
	Insert(q *RunQueue[R], rec R)
	Reinsert(q *RunQueue[R], rec R)
}

// RunQueue is a per-core ordered, index-addressable sequence of records.
// Position determines pick order; only the rate-monotonic policy maintains a
// sort invariant on top of that.
//
// A RunQueue is not safe for concurrent use on its own. Access always goes
// through the owning LockedRunQueue, whose reader/writer lock stands in for
// the preemption-suspending spinlock a kernel build would use: a core must
// never be preempted while holding its own run-queue lock.
type RunQueue[R Record] struct {
	core   CoreID
	recs   *arraylist.List
	idle   task.Ref
	policy Policy[R]
}

func newRunQueue[R Record](core CoreID, idle task.Ref, policy Policy[R]) *RunQueue[R] {
	return &RunQueue[R]{
		core:   core,
		recs:   arraylist.New(),
		idle:   idle,
		policy: policy,
	}
}

// Core returns the owning core's id.
func (q *RunQueue[R]) Core() CoreID { return q.core }

// IdleTask returns the idle task registered for this queue, if any.
func (q *RunQueue[R]) IdleTask() (task.Ref, bool) {
	return q.idle, q.idle.Valid()
}

// Len returns the number of records in the queue.
func (q *RunQueue[R]) Len() int { return q.recs.Size() }

// At returns the record at the given index.
func (q *RunQueue[R]) At(index int) (R, bool) {
	var zero R
	v, found := q.recs.Get(index)
	if !found {
		return zero, false
	}
	return v.(R), true
}

// Records returns the queue contents in pick order.
func (q *RunQueue[R]) Records() []R {
	out := make([]R, 0, q.recs.Size())
	it := q.recs.Iterator()
	for it.Next() {
		out = append(out, it.Value().(R))
	}
	return out
}

// Each calls fn for each record in pick order, stopping early when fn
// returns false.
func (q *RunQueue[R]) Each(fn func(index int, rec R) bool) {
	it := q.recs.Iterator()
	for it.Next() {
		if !fn(it.Index(), it.Value().(R)) {
			return
		}
	}
}

// PushBack appends a record at the tail.
func (q *RunQueue[R]) PushBack(rec R) { q.recs.Add(rec) }

// InsertAt inserts a record before the given index.
func (q *RunQueue[R]) InsertAt(index int, rec R) { q.recs.Insert(index, rec) }

// RemoveAt removes and returns the record at the given index.
func (q *RunQueue[R]) RemoveAt(index int) (R, bool) {
	rec, ok := q.At(index)
	if !ok {
		return rec, false
	}
	q.recs.Remove(index)
	return rec, true
}

// AddTask wraps the task in a fresh policy record and places it at the
// policy's insertion point.
func (q *RunQueue[R]) AddTask(ref task.Ref) {
	q.policy.Insert(q, q.policy.NewRecord(ref.Clone()))
}

// AddRecord places an already-constructed record at the policy's insertion
// point. Used when the caller supplies policy metadata up front (e.g. a
// rate-monotonic period).
func (q *RunQueue[R]) AddRecord(rec R) {
	q.policy.Insert(q, rec)
}

// RemoveTask drops every record whose handle equals the given task. Removing
// a task that is not present is a no-op, not an error: the caller generally
// cannot know whether the task already migrated or exited.
func (q *RunQueue[R]) RemoveTask(ref task.Ref) int {
	removed := 0
	for i := 0; i < q.recs.Size(); {
		v, _ := q.recs.Get(i)
		if v.(R).TaskRef().Equal(ref) {
			q.recs.Remove(i)
			v.(R).TaskRef().Release()
			removed++
			continue
		}
		i++
	}
	return removed
}

// pick removes the record at index, applies update to it, reinserts it per
// the policy and returns a cloned reference to its task. All four pick-and-
// reorder entry points funnel through here.
func (q *RunQueue[R]) pick(index int, update func(R)) (task.Ref, bool) {
	rec, ok := q.RemoveAt(index)
	if !ok {
		return task.Ref{}, false
	}
	if update != nil {
		update(rec)
	}
	q.policy.Reinsert(q, rec)
	return rec.TaskRef().Clone(), true
}

// LockedRunQueue pairs a RunQueue with its reader/writer lock. The owning
// core's tick handler is the single per-tick writer; task insertion, removal
// and priority changes from any core take the same write lock.
type LockedRunQueue[R Record] struct {
	mu sync.RWMutex
	rq *RunQueue[R]
}

// Read runs fn with the queue read-locked.
func (l *LockedRunQueue[R]) Read(fn func(q *RunQueue[R])) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fn(l.rq)
}

// Write runs fn with the queue write-locked.
func (l *LockedRunQueue[R]) Write(fn func(q *RunQueue[R])) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.rq)
}

// Len returns the queue length under a read lock.
func (l *LockedRunQueue[R]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rq.Len()
}

// Core returns the owning core's id.
func (l *LockedRunQueue[R]) Core() CoreID { return l.rq.core }

package runq

import "krunq/internal/task"

// RealtimeRecord is a rate-monotonic scheduling entry. A nil Period marks an
// aperiodic task; periodic records sort ahead of aperiodic ones. The
// context-switch counter is not used in the scheduling algorithm.
type RealtimeRecord struct {
	ref             task.Ref
	period          *uint32
	ContextSwitches uint64
}

// NewRealtimeRecord wraps a task with its period in ticks; pass nil for an
// aperiodic task.
func NewRealtimeRecord(ref task.Ref, period *uint32) *RealtimeRecord {
	return &RealtimeRecord{ref: ref, period: period}
}

func (r *RealtimeRecord) TaskRef() task.Ref { return r.ref }

// Period returns the record's period in ticks; ok is false for aperiodic
// tasks.
func (r *RealtimeRecord) Period() (uint32, bool) {
	if r.period == nil {
		return 0, false
	}
	return *r.period, true
}

// IsPeriodic reports whether the record refers to a periodic task.
func (r *RealtimeRecord) IsPeriodic() bool { return r.period != nil }

// hasSmallerPeriod reports whether r's period is strictly shorter than
// other's. Aperiodic records never compare smaller; any periodic record
// compares smaller than an aperiodic one.
func (r *RealtimeRecord) hasSmallerPeriod(other *RealtimeRecord) bool {
	if r.period == nil {
		return false
	}
	if other.period == nil {
		return true
	}
	return *r.period < *other.period
}

// RealtimePolicy keeps the queue sorted by ascending period with aperiodic
// records at the tail. Under rate-monotonic scheduling the head of the
// sorted queue is always the ready task with the shortest period, which is
// optimal among static-priority real-time disciplines when periods are
// fixed.
type RealtimePolicy struct{}

func (RealtimePolicy) Name() string { return "realtime" }

// NewRecord builds an aperiodic record; use NewRealtimeRecord to supply a
// period.
func (RealtimePolicy) NewRecord(ref task.Ref) *RealtimeRecord {
	return NewRealtimeRecord(ref, nil)
}

func (RealtimePolicy) Insert(q *RunQueue[*RealtimeRecord], rec *RealtimeRecord) {
	insertAtProperLocation(q, rec)
}

func (RealtimePolicy) Reinsert(q *RunQueue[*RealtimeRecord], rec *RealtimeRecord) {
	insertAtProperLocation(q, rec)
}

// insertAtProperLocation places rec before the first record whose period is
// nil or strictly greater. Scanning for a strictly greater period keeps the
// insertion stable: equal-period and all-aperiodic records retain their
// relative insertion order.
func insertAtProperLocation(q *RunQueue[*RealtimeRecord], rec *RealtimeRecord) {
	if rec.period == nil {
		q.PushBack(rec)
		return
	}
	insertAt := -1
	q.Each(func(i int, existing *RealtimeRecord) bool {
		if rec.hasSmallerPeriod(existing) {
			insertAt = i
			return false
		}
		return true
	})
	if insertAt < 0 {
		q.PushBack(rec)
		return
	}
	q.InsertAt(insertAt, rec)
}

// RealtimeRegistry is the per-core queue registry for the rate-monotonic
// discipline.
type RealtimeRegistry struct {
	*Registry[*RealtimeRecord]
}

func NewRealtimeRegistry() RealtimeRegistry {
	return RealtimeRegistry{NewRegistry[*RealtimeRecord](RealtimePolicy{})}
}

// AddPeriodicTaskToSpecific enqueues a periodic task on the named core.
func (r RealtimeRegistry) AddPeriodicTaskToSpecific(core CoreID, ref task.Ref, period uint32) error {
	return r.AddRecordToSpecific(core, NewRealtimeRecord(ref.Clone(), &period))
}

// AddPeriodicTaskToAny enqueues a periodic task on the least busy core.
func (r RealtimeRegistry) AddPeriodicTaskToAny(ref task.Ref, period uint32) error {
	return r.AddRecordToAny(NewRealtimeRecord(ref.Clone(), &period))
}

// UpdateAndReinsert removes the record at the given index, bumps its
// context-switch counter and reinserts it at its proper sorted location,
// completing one scheduling quantum for that task. Returns a cloned
// reference to the task.
func UpdateAndReinsert(q *RunQueue[*RealtimeRecord], index int) (task.Ref, bool) {
	return q.pick(index, func(rec *RealtimeRecord) {
		rec.ContextSwitches++
	})
}

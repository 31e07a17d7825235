package runq

import (
	"github.com/sirupsen/logrus"

	"krunq/internal/task"
)

// Epoch/token scheduling constants.
const (
	MaxPriority     uint8 = 40
	DefaultPriority uint8 = 20
	InitialTokens   int   = 10
)

// EpochRecord is a token-based fair-share entry. A task is scheduled within
// an epoch until its tokens run out; the tick handler computes the new token
// count (typically one less per tick, or a fresh budget at epoch rollover)
// and stores it via UpdateTokensAndMoveToEnd.
type EpochRecord struct {
	ref             task.Ref
	Priority        uint8
	TokensRemaining int
}

func NewEpochRecord(ref task.Ref) *EpochRecord {
	return &EpochRecord{
		ref:             ref,
		Priority:        DefaultPriority,
		TokensRemaining: InitialTokens,
	}
}

func (r *EpochRecord) TaskRef() task.Ref { return r.ref }

// EpochPolicy appends at the tail on insert and reinsert.
type EpochPolicy struct{}

func (EpochPolicy) Name() string { return "epoch" }

func (EpochPolicy) NewRecord(ref task.Ref) *EpochRecord {
	return NewEpochRecord(ref)
}

func (EpochPolicy) Insert(q *RunQueue[*EpochRecord], rec *EpochRecord) {
	q.PushBack(rec)
}

func (EpochPolicy) Reinsert(q *RunQueue[*EpochRecord], rec *EpochRecord) {
	q.PushBack(rec)
}

// UpdateTokensAndMoveToEnd moves the record at the given index to the back
// of the queue, storing the caller-computed token count. A record with zero
// tokens remains a legal target; passing a fresh budget resets it. Returns a
// cloned reference to the task.
func UpdateTokensAndMoveToEnd(q *RunQueue[*EpochRecord], index int, tokens int) (task.Ref, bool) {
	return q.pick(index, func(rec *EpochRecord) {
		rec.TokensRemaining = tokens
	})
}

// EpochRegistry is the per-core queue registry for the epoch/token
// discipline. It additionally exposes the process-wide priority accessors
// used by priority-aware synchronization primitives.
type EpochRegistry struct {
	*Registry[*EpochRecord]
}

func NewEpochRegistry() EpochRegistry {
	return EpochRegistry{NewRegistry[*EpochRecord](EpochPolicy{})}
}

// priorityOf scans the queue for the task and returns its priority.
func priorityOf(q *RunQueue[*EpochRecord], ref task.Ref) (uint8, bool) {
	var (
		prio  uint8
		found bool
	)
	q.Each(func(_ int, rec *EpochRecord) bool {
		if rec.ref.Equal(ref) {
			prio, found = rec.Priority, true
			return false
		}
		return true
	})
	return prio, found
}

// setPriorityOf scans the queue for the task and overwrites its priority,
// reporting whether the task was found.
func setPriorityOf(q *RunQueue[*EpochRecord], ref task.Ref, priority uint8) bool {
	found := false
	q.Each(func(_ int, rec *EpochRecord) bool {
		if rec.ref.Equal(ref) {
			rec.Priority = priority
			found = true
			return false
		}
		return true
	})
	return found
}

// GetPriority returns the task's priority by scanning every registered
// queue. O(cores × queue length); the caller does not know which core owns
// the task.
func (r EpochRegistry) GetPriority(ref task.Ref) (uint8, bool) {
	for _, core := range r.Cores() {
		q, ok := r.Get(core)
		if !ok {
			continue
		}
		var (
			prio  uint8
			found bool
		)
		q.Read(func(rq *RunQueue[*EpochRecord]) {
			prio, found = priorityOf(rq, ref)
		})
		if found {
			return prio, true
		}
	}
	return 0, false
}

// SetPriority overwrites the task's priority, clamped to MaxPriority,
// scanning every registered queue until the owning one is found. Setting the
// priority of a task that is on no queue is a no-op.
func (r EpochRegistry) SetPriority(ref task.Ref, priority uint8) {
	if priority > MaxPriority {
		priority = MaxPriority
	}
	for _, core := range r.Cores() {
		q, ok := r.Get(core)
		if !ok {
			continue
		}
		done := false
		q.Write(func(rq *RunQueue[*EpochRecord]) {
			done = setPriorityOf(rq, ref, priority)
		})
		if done {
			r.log.WithFields(logrus.Fields{"core": core, "task": ref.ID(), "priority": priority}).
				Debug("set task priority")
			return
		}
	}
}

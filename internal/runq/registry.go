package runq

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"krunq/internal/task"
)

// Registry maps cores to their run queues. One queue is created per core
// during bring-up and never removed; duplicate initialization for a core is a
// fatal configuration error.
//
// The registry is an explicitly constructed object rather than package-level
// state so that initialization order (and duplicate-init failure) is visible
// and testable outside a full boot sequence.
type Registry[R Record] struct {
	mu     sync.RWMutex
	queues map[CoreID]*LockedRunQueue[R]
	policy Policy[R]
	log    *logrus.Entry
}

// NewRegistry creates an empty registry for the given policy.
func NewRegistry[R Record](policy Policy[R]) *Registry[R] {
	return &Registry[R]{
		queues: make(map[CoreID]*LockedRunQueue[R]),
		policy: policy,
		log:    logrus.WithField("policy", policy.Name()),
	}
}

// Policy returns the scheduling policy this registry was built with.
func (r *Registry[R]) Policy() Policy[R] { return r.policy }

// Init creates an empty run queue for the given core. The idle task may be
// the zero Ref when the policy does not use one.
func (r *Registry[R]) Init(core CoreID, idle task.Ref) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.queues[core]; dup {
		r.log.WithField("core", core).Error("BUG: runqueue already exists for core")
		return fmt.Errorf("core %d: %w", core, ErrAlreadyExists)
	}
	r.queues[core] = &LockedRunQueue[R]{rq: newRunQueue(core, idle, r.policy)}
	r.log.WithField("core", core).Trace("created runqueue")
	return nil
}

// Get returns the run queue registered for the given core.
func (r *Registry[R]) Get(core CoreID) (*LockedRunQueue[R], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queues[core]
	return q, ok
}

// Cores returns the registered core ids in ascending order. Iteration over
// the registry always uses this order, which is what makes the load
// balancer's first-encountered tie-break stable.
func (r *Registry[R]) Cores() []CoreID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cores := make([]CoreID, 0, len(r.queues))
	for c := range r.queues {
		cores = append(cores, c)
	}
	sort.Slice(cores, func(i, j int) bool { return cores[i] < cores[j] })
	return cores
}

// NumCores returns the number of registered cores.
func (r *Registry[R]) NumCores() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.queues)
}

// AddTaskToSpecific appends a freshly constructed policy record for the task
// to the named core's queue.
func (r *Registry[R]) AddTaskToSpecific(core CoreID, ref task.Ref) error {
	q, ok := r.Get(core)
	if !ok {
		return fmt.Errorf("core %d: %w", core, ErrNotFound)
	}
	r.log.WithFields(logrus.Fields{"core": core, "task": ref.ID()}).Debug("adding task to runqueue")
	q.Write(func(rq *RunQueue[R]) { rq.AddTask(ref) })
	return nil
}

// AddRecordToSpecific places an already-constructed record on the named
// core's queue. Used by policies whose records carry caller-supplied
// metadata (e.g. a rate-monotonic period).
func (r *Registry[R]) AddRecordToSpecific(core CoreID, rec R) error {
	q, ok := r.Get(core)
	if !ok {
		return fmt.Errorf("core %d: %w", core, ErrNotFound)
	}
	r.log.WithFields(logrus.Fields{"core": core, "task": rec.TaskRef().ID()}).Debug("adding task to runqueue")
	q.Write(func(rq *RunQueue[R]) { rq.AddRecord(rec) })
	return nil
}

// LeastBusy returns the queue with the fewest records, ties broken by
// ascending core id. Queue length is a coarse heuristic, not a load measure;
// scheduling correctness does not depend on it.
func (r *Registry[R]) LeastBusy() (*LockedRunQueue[R], bool) {
	var min *LockedRunQueue[R]
	minLen := 0
	for _, core := range r.Cores() {
		q, ok := r.Get(core)
		if !ok {
			continue
		}
		n := q.Len()
		if min == nil || n < minLen {
			min, minLen = q, n
		}
	}
	return min, min != nil
}

// AddTaskToAny enqueues the task on the least busy core.
func (r *Registry[R]) AddTaskToAny(ref task.Ref) error {
	q, ok := r.LeastBusy()
	if !ok {
		return ErrNoRunqueues
	}
	r.log.WithFields(logrus.Fields{"core": q.Core(), "task": ref.ID()}).Debug("adding task to least busy runqueue")
	q.Write(func(rq *RunQueue[R]) { rq.AddTask(ref) })
	return nil
}

// AddRecordToAny places an already-constructed record on the least busy
// core's queue.
func (r *Registry[R]) AddRecordToAny(rec R) error {
	q, ok := r.LeastBusy()
	if !ok {
		return ErrNoRunqueues
	}
	q.Write(func(rq *RunQueue[R]) { rq.AddRecord(rec) })
	return nil
}

// RemoveTaskFromAll removes every record for the task from every registered
// queue, write-locking each queue in turn. Brute force over all cores, which
// is acceptable because exit and migration are rare relative to ticks. The
// task being absent from a given queue (or from all of them) is not an
// error.
func (r *Registry[R]) RemoveTaskFromAll(ref task.Ref) error {
	removed := 0
	for _, core := range r.Cores() {
		q, ok := r.Get(core)
		if !ok {
			continue
		}
		q.Write(func(rq *RunQueue[R]) { removed += rq.RemoveTask(ref) })
	}
	r.log.WithFields(logrus.Fields{"task": ref.ID(), "removed": removed}).Debug("removed task from all runqueues")
	return nil
}

// Package dispatch drives the run-queue engine from a tick clock. The
// engine stores and reorders records; the comparison that decides which
// index to hand to the reorder entry point lives here, on the dispatcher
// side, so policy compare logic can evolve independently of queue
// mechanics. A kernel build would replace the clock with the per-core
// timer interrupt; everything else stays.
package dispatch

import (
	"fmt"

	"krunq/internal/runq"
	"krunq/internal/task"
)

// Outcome is the result of one pick on one core.
type Outcome struct {
	Task     task.Ref
	Idle     bool   // the idle task was dispatched
	Rollover bool   // epoch budgets were replenished this tick
	Detail   string // policy metadata for the event stream
}

// TaskSpec carries the policy-specific placement and metadata for a newly
// spawned task. Fields a policy does not use are ignored.
type TaskSpec struct {
	Core     *runq.CoreID // pin to a core; nil = least busy
	Period   *uint32      // realtime: nil = aperiodic
	Priority *uint8       // epoch
}

// Engine is one scheduling discipline wired to its registry: it brings up
// cores, places tasks and performs the per-tick pick-and-reorder.
type Engine interface {
	Name() string
	InitCore(core runq.CoreID) error
	Cores() []runq.CoreID
	Add(ref task.Ref, spec TaskSpec) error

	// PickNext selects and reorders the next record on the given core's
	// queue under its write lock. ok is false when the core has no queue or
	// nothing is dispatchable (and no idle task exists).
	PickNext(core runq.CoreID) (out Outcome, ok bool)

	// RemoveFromAll drops the task from every core's queue.
	RemoveFromAll(ref task.Ref) error
}

// NewEngine builds the engine for the named policy.
func NewEngine(policy string) (Engine, error) {
	switch policy {
	case "roundrobin":
		return &roundRobinEngine{reg: runq.NewRoundRobinRegistry()}, nil
	case "priority":
		return &priorityEngine{reg: runq.NewPriorityRegistry()}, nil
	case "realtime":
		return &realtimeEngine{reg: runq.NewRealtimeRegistry()}, nil
	case "epoch":
		return &epochEngine{reg: runq.NewEpochRegistry()}, nil
	default:
		return nil, fmt.Errorf("unknown scheduling policy %q", policy)
	}
}

func addToRegistry[R runq.Record](reg *runq.Registry[R], ref task.Ref, core *runq.CoreID) error {
	if core != nil {
		return reg.AddTaskToSpecific(*core, ref)
	}
	return reg.AddTaskToAny(ref)
}

// roundRobinEngine dispatches the head of the queue: pure FIFO among the
// entries present at tick time.
type roundRobinEngine struct {
	reg runq.RoundRobinRegistry
}

func (e *roundRobinEngine) Name() string                     { return "roundrobin" }
func (e *roundRobinEngine) InitCore(core runq.CoreID) error  { return e.reg.Init(core, task.Ref{}) }
func (e *roundRobinEngine) Cores() []runq.CoreID             { return e.reg.Cores() }
func (e *roundRobinEngine) RemoveFromAll(ref task.Ref) error { return e.reg.RemoveTaskFromAll(ref) }

func (e *roundRobinEngine) Add(ref task.Ref, spec TaskSpec) error {
	return addToRegistry(e.reg.Registry, ref, spec.Core)
}

func (e *roundRobinEngine) PickNext(core runq.CoreID) (Outcome, bool) {
	q, found := e.reg.Get(core)
	if !found {
		return Outcome{}, false
	}
	var (
		out Outcome
		ok  bool
	)
	q.Write(func(rq *runq.RunQueue[*runq.RoundRobinRecord]) {
		if rq.Len() == 0 {
			return
		}
		out.Task, ok = runq.MoveToEnd(rq, 0)
	})
	return out, ok
}

// priorityEngine picks the record with the minimum weighted runtime. The
// fairness formula is owned here, not by the queue: each quantum adds one
// weighted-runtime unit to the task that ran.
type priorityEngine struct {
	reg runq.PriorityRegistry
}

const weightPerQuantum = 1

func (e *priorityEngine) Name() string                     { return "priority" }
func (e *priorityEngine) InitCore(core runq.CoreID) error  { return e.reg.Init(core, task.Ref{}) }
func (e *priorityEngine) Cores() []runq.CoreID             { return e.reg.Cores() }
func (e *priorityEngine) RemoveFromAll(ref task.Ref) error { return e.reg.RemoveTaskFromAll(ref) }

func (e *priorityEngine) Add(ref task.Ref, spec TaskSpec) error {
	return addToRegistry(e.reg.Registry, ref, spec.Core)
}

func (e *priorityEngine) PickNext(core runq.CoreID) (Outcome, bool) {
	q, found := e.reg.Get(core)
	if !found {
		return Outcome{}, false
	}
	var (
		out Outcome
		ok  bool
	)
	q.Write(func(rq *runq.RunQueue[*runq.PriorityRecord]) {
		index, rec := minWeightedRuntime(rq)
		if index < 0 {
			return
		}
		newWeight := rec.WeightedRuntime + weightPerQuantum
		out.Task, ok = runq.UpdateAndMoveToEnd(rq, index, newWeight)
		out.Detail = fmt.Sprintf("weight=%d", newWeight)
	})
	return out, ok
}

// realtimeEngine always dispatches the head: the queue's sort invariant
// guarantees the head is the ready task with the shortest period.
type realtimeEngine struct {
	reg runq.RealtimeRegistry
}

func (e *realtimeEngine) Name() string                     { return "realtime" }
func (e *realtimeEngine) InitCore(core runq.CoreID) error  { return e.reg.Init(core, task.Ref{}) }
func (e *realtimeEngine) Cores() []runq.CoreID             { return e.reg.Cores() }
func (e *realtimeEngine) RemoveFromAll(ref task.Ref) error { return e.reg.RemoveTaskFromAll(ref) }

func (e *realtimeEngine) Add(ref task.Ref, spec TaskSpec) error {
	if spec.Period == nil {
		return addToRegistry(e.reg.Registry, ref, spec.Core)
	}
	if spec.Core != nil {
		return e.reg.AddPeriodicTaskToSpecific(*spec.Core, ref, *spec.Period)
	}
	return e.reg.AddPeriodicTaskToAny(ref, *spec.Period)
}

func (e *realtimeEngine) PickNext(core runq.CoreID) (Outcome, bool) {
	q, found := e.reg.Get(core)
	if !found {
		return Outcome{}, false
	}
	var (
		out Outcome
		ok  bool
	)
	q.Write(func(rq *runq.RunQueue[*runq.RealtimeRecord]) {
		head, exists := rq.At(0)
		if !exists {
			return
		}
		if p, periodic := head.Period(); periodic {
			out.Detail = fmt.Sprintf("period=%d", p)
		} else {
			out.Detail = "aperiodic"
		}
		out.Task, ok = runq.UpdateAndReinsert(rq, 0)
	})
	return out, ok
}

// epochEngine dispatches the first record that still has tokens, spending
// one token per quantum. When every record is exhausted it replenishes all
// budgets (an epoch rollover) and hands the core to the idle task for that
// tick.
type epochEngine struct {
	reg runq.EpochRegistry
}

func (e *epochEngine) Name() string                     { return "epoch" }
func (e *epochEngine) Cores() []runq.CoreID             { return e.reg.Cores() }
func (e *epochEngine) RemoveFromAll(ref task.Ref) error { return e.reg.RemoveTaskFromAll(ref) }

func (e *epochEngine) InitCore(core runq.CoreID) error {
	return e.reg.Init(core, task.NewIdle(uint8(core)))
}

func (e *epochEngine) Add(ref task.Ref, spec TaskSpec) error {
	if err := addToRegistry(e.reg.Registry, ref, spec.Core); err != nil {
		return err
	}
	if spec.Priority != nil {
		e.reg.SetPriority(ref, *spec.Priority)
	}
	return nil
}

// Registry exposes the underlying epoch registry for priority-aware callers
// (get/set/inherit priority).
func (e *epochEngine) Registry() runq.EpochRegistry { return e.reg }

func (e *epochEngine) PickNext(core runq.CoreID) (Outcome, bool) {
	q, found := e.reg.Get(core)
	if !found {
		return Outcome{}, false
	}
	var (
		out Outcome
		ok  bool
	)
	q.Write(func(rq *runq.RunQueue[*runq.EpochRecord]) {
		index := -1
		tokens := 0
		rq.Each(func(i int, rec *runq.EpochRecord) bool {
			if rec.TokensRemaining > 0 {
				index, tokens = i, rec.TokensRemaining
				return false
			}
			return true
		})

		if index >= 0 {
			out.Task, ok = runq.UpdateTokensAndMoveToEnd(rq, index, tokens-1)
			out.Detail = fmt.Sprintf("tokens=%d", tokens-1)
			return
		}

		if rq.Len() > 0 {
			// every runnable task spent its budget: start a fresh epoch
			replenishTokens(rq.Records())
			out.Rollover = true
		}
		if idle, hasIdle := rq.IdleTask(); hasIdle {
			out.Task, out.Idle, ok = idle, true, true
		}
	})
	return out, ok
}

// replenishTokens hands every record a fresh budget for the next epoch. The
// pool scales with the queue length so the per-task average stays at
// InitialTokens, and each task's share is proportional to its weight
// (priority+1), floored at one token so low-priority tasks never starve.
func replenishTokens(recs []*runq.EpochRecord) {
	totalWeight := 0
	for _, rec := range recs {
		totalWeight += int(rec.Priority) + 1
	}
	pool := runq.InitialTokens * len(recs)
	for _, rec := range recs {
		tokens := pool * (int(rec.Priority) + 1) / totalWeight
		if tokens < 1 {
			tokens = 1
		}
		rec.TokensRemaining = tokens
	}
}

// minWeightedRuntime returns the index and record of the entry with the
// smallest weighted runtime, ties broken by task id. Runs the comparison
// through an ordered tree keyed on (weight, id) rather than a bare scan so
// the ordering relation is explicit and reusable.
func minWeightedRuntime(rq *runq.RunQueue[*runq.PriorityRecord]) (int, *runq.PriorityRecord) {
	tree := newWeightTree()
	rq.Each(func(i int, rec *runq.PriorityRecord) bool {
		tree.put(rec.WeightedRuntime, rec.TaskRef().ID(), i)
		return true
	})
	return tree.min(rq)
}

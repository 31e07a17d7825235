package dispatch

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"krunq/internal/job"
	"krunq/internal/runq"
	"krunq/internal/task"
)

// Loop drives an Engine from a tick clock. A kernel build runs one
// interrupt-driven loop per core; the simulator drives every core from a
// single clock, visiting each core's queue once per tick. Either way a
// queue is only ever mutated under its own write lock.
type Loop struct {
	engine Engine
	cfg    Config
	clock  *TickClock
	run    uuid.UUID
	log    *logrus.Entry

	mu        sync.Mutex
	workloads map[task.ID]job.Workload
	picks     map[task.ID]int64

	statusCh chan StatusEvent

	csvFile   *os.File
	csvWriter *csv.Writer
}

// NewLoop creates a loop for the engine. Each run is tagged with a fresh
// run id carried in every log line.
func NewLoop(engine Engine, cfg Config) *Loop {
	run := uuid.New()
	return &Loop{
		engine: engine,
		cfg:    cfg,
		clock:  NewTickClock(256),
		run:    run,
		log: logrus.WithFields(logrus.Fields{
			"policy": engine.Name(),
			"run":    run,
		}),
		workloads: make(map[task.ID]job.Workload),
		picks:     make(map[task.ID]int64),
		statusCh:  make(chan StatusEvent, 256),
	}
}

// EnableCSVLogging opens the given file path for CSV logging of events.
// Must be called before Run.
func (l *Loop) EnableCSVLogging(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Write([]string{"run", "timestamp", "tick", "event", "core", "task_id", "detail"})
	w.Flush()
	l.csvFile = f
	l.csvWriter = w
	return nil
}

// StatusChannel exposes a read-only stream of dispatch events.
func (l *Loop) StatusChannel() <-chan StatusEvent { return l.statusCh }

// Spawn registers a task with its workload and places it on a queue per the
// spec.
func (l *Loop) Spawn(ref task.Ref, spec TaskSpec, work job.Workload) error {
	if err := l.engine.Add(ref, spec); err != nil {
		return err
	}
	l.mu.Lock()
	l.workloads[ref.ID()] = work
	l.mu.Unlock()
	l.emit(StatusEvent{Time: time.Now(), Kind: StatusEnqueue, TaskID: ref.ID()})
	return nil
}

// Picks returns how many quanta the given task received.
func (l *Loop) Picks(id task.ID) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.picks[id]
}

// Run drives the engine for cfg.Ticks ticks, then drains and closes the
// event stream.
func (l *Loop) Run(ctx context.Context) error {
	l.clock.Start(time.Duration(l.cfg.TickMS) * time.Millisecond)
	go l.ticker(ctx)

	for ev := range l.statusCh {
		l.handleEvent(ev)
	}

	if l.csvFile != nil {
		l.csvWriter.Flush()
		l.csvFile.Close()
	}
	return nil
}

func (l *Loop) ticker(ctx context.Context) {
	defer func() {
		l.clock.Stop()
		close(l.statusCh)
	}()

	for tick := int64(1); tick <= int64(l.cfg.Ticks); tick++ {
		select {
		case <-ctx.Done():
			return
		case _, open := <-l.clock.Ch:
			if !open {
				return
			}
		}
		for _, core := range l.engine.Cores() {
			l.tickCore(core, tick)
		}
	}
}

// tickCore performs one scheduling quantum on one core.
func (l *Loop) tickCore(core runq.CoreID, tick int64) {
	out, ok := l.engine.PickNext(core)
	if !ok {
		l.emit(StatusEvent{Time: time.Now(), Kind: StatusIdle, Core: core, Tick: tick})
		return
	}
	if out.Rollover {
		l.emit(StatusEvent{Time: time.Now(), Kind: StatusRollover, Core: core, Tick: tick})
	}
	if out.Idle {
		l.emit(StatusEvent{
			Time: time.Now(), Kind: StatusIdle, Core: core,
			TaskID: out.Task.ID(), Tick: tick,
		})
		return
	}

	l.emit(StatusEvent{
		Time: time.Now(), Kind: StatusDispatch, Core: core,
		TaskID: out.Task.ID(), Tick: tick, Detail: out.Detail,
	})

	l.mu.Lock()
	l.picks[out.Task.ID()]++
	work := l.workloads[out.Task.ID()]
	l.mu.Unlock()

	if work != nil && work.Tick() {
		out.Task.MarkExited()
		if err := l.engine.RemoveFromAll(out.Task); err != nil {
			l.log.WithError(err).WithField("task", out.Task.ID()).Warn("failed to remove exited task")
		}
		l.mu.Lock()
		delete(l.workloads, out.Task.ID())
		l.mu.Unlock()
		l.emit(StatusEvent{
			Time: time.Now(), Kind: StatusExit, Core: core,
			TaskID: out.Task.ID(), Tick: tick,
		})
	}
	out.Task.Release()
}

func (l *Loop) emit(ev StatusEvent) {
	l.statusCh <- ev
}

func (l *Loop) handleEvent(ev StatusEvent) {
	if ev.Kind == StatusTick {
		return
	}

	l.log.WithFields(logrus.Fields{
		"tick":  ev.Tick,
		"core":  ev.Core,
		"task":  ev.TaskID,
		"event": ev.Kind.String(),
	}).Debug(ev.Detail)

	if l.csvWriter != nil {
		l.csvWriter.Write([]string{
			l.run.String(),
			ev.Time.Format(time.RFC3339Nano),
			strconv.FormatInt(ev.Tick, 10),
			ev.Kind.String(),
			strconv.FormatUint(uint64(ev.Core), 10),
			strconv.FormatUint(uint64(ev.TaskID), 10),
			ev.Detail,
		})
		l.csvWriter.Flush()
	}
}

// Summary prints one line per registered task in ID order.
func Summary(table *task.Table, l *Loop) {
	table.Each(func(ref task.Ref) {
		if ref.IsIdle() {
			return
		}
		fmt.Printf("task %04d %-12s state=%-8s picks=%d\n",
			ref.ID(), ref.Name(), stateOf(ref), l.Picks(ref.ID()))
	})
}

func stateOf(ref task.Ref) string {
	if ref.HasExited() {
		return "exited"
	}
	if ref.IsRunnable() {
		return "runnable"
	}
	return "blocked"
}

package runq

import (
	"github.com/sirupsen/logrus"

	"krunq/internal/task"
)

// RestoreFunc undoes a priority boost. The caller invokes it after releasing
// the contended resource; it is a no-op when no boost was applied.
type RestoreFunc func()

// InheritPriority raises the blocking task's priority to the current task's
// priority when the current task's is strictly greater, bounding the time a
// low-priority resource holder can stall a high-priority waiter.
//
// Both priorities are located in one pass over all queues, each read-locked
// individually; the boost is applied under the owning queue's write lock.
// The returned RestoreFunc restores the blocking task's original priority,
// but only if it was actually raised. The implementation assumes the
// blocking task does not migrate while the boost is outstanding.
func (r EpochRegistry) InheritPriority(current, blocking task.Ref) RestoreFunc {
	var (
		currentPriority  *uint8
		blockingPriority *uint8
		blockingCore     CoreID
	)

scan:
	for _, core := range r.Cores() {
		q, ok := r.Get(core)
		if !ok {
			continue
		}
		foundBoth := false
		q.Read(func(rq *RunQueue[*EpochRecord]) {
			rq.Each(func(_ int, rec *EpochRecord) bool {
				switch {
				case rec.ref.Equal(current):
					p := rec.Priority
					currentPriority = &p
				case rec.ref.Equal(blocking):
					p := rec.Priority
					blockingPriority = &p
					blockingCore = core
				}
				return currentPriority == nil || blockingPriority == nil
			})
			foundBoth = currentPriority != nil && blockingPriority != nil
		})
		if foundBoth {
			break scan
		}
	}

	boosted := currentPriority != nil && blockingPriority != nil &&
		*currentPriority > *blockingPriority
	if !boosted {
		return func() {}
	}

	if q, ok := r.Get(blockingCore); ok {
		q.Write(func(rq *RunQueue[*EpochRecord]) {
			setPriorityOf(rq, blocking, *currentPriority)
		})
	}
	r.log.WithFields(logrus.Fields{
		"task": blocking.ID(),
		"core": blockingCore,
		"from": *blockingPriority,
		"to":   *currentPriority,
	}).Debug("inherited priority")

	original := *blockingPriority
	return func() {
		r.SetPriority(blocking, original)
		r.log.WithFields(logrus.Fields{"task": blocking.ID(), "priority": original}).
			Debug("restored priority")
	}
}

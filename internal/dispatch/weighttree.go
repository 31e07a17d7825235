package dispatch

import (
	"github.com/emirpasic/gods/trees/redblacktree"

	"krunq/internal/runq"
	"krunq/internal/task"
)

// weightKey orders the static-priority comparison: weighted runtime first,
// task id as the tie-break.
type weightKey struct {
	weight uint32
	id     task.ID
}

func weightCmp(a, b interface{}) int {
	ka, kb := a.(weightKey), b.(weightKey)
	switch {
	case ka.weight < kb.weight:
		return -1
	case ka.weight > kb.weight:
		return 1
	case ka.id < kb.id:
		return -1
	case ka.id > kb.id:
		return 1
	default:
		return 0
	}
}

// weightTree is the dispatcher-side comparison structure for the
// static-priority policy. It is rebuilt from the queue each tick; the queue
// itself stays caller-ordered per the policy contract.
type weightTree struct {
	rbt *redblacktree.Tree
}

func newWeightTree() *weightTree {
	return &weightTree{rbt: redblacktree.NewWith(weightCmp)}
}

func (t *weightTree) put(weight uint32, id task.ID, index int) {
	t.rbt.Put(weightKey{weight: weight, id: id}, index)
}

// min returns the queue index and record with the smallest key, or (-1, nil)
// for an empty queue.
func (t *weightTree) min(rq *runq.RunQueue[*runq.PriorityRecord]) (int, *runq.PriorityRecord) {
	node := t.rbt.Left()
	if node == nil {
		return -1, nil
	}
	index := node.Value.(int)
	rec, ok := rq.At(index)
	if !ok {
		return -1, nil
	}
	return index, rec
}

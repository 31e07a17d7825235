package runq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krunq/internal/task"
)

func rrQueueWith(t *testing.T, names ...string) (*LockedRunQueue[*RoundRobinRecord], []task.Ref) {
	t.Helper()
	reg := NewRoundRobinRegistry()
	require.NoError(t, reg.Init(0, task.Ref{}))

	refs := make([]task.Ref, 0, len(names))
	for _, n := range names {
		ref := task.New(n)
		refs = append(refs, ref)
		require.NoError(t, reg.AddTaskToSpecific(0, ref))
	}
	q, ok := reg.Get(0)
	require.True(t, ok)
	return q, refs
}

func queueNames[R Record](q *LockedRunQueue[R]) []string {
	var names []string
	q.Read(func(rq *RunQueue[R]) {
		for _, rec := range rq.Records() {
			names = append(names, rec.TaskRef().Name())
		}
	})
	return names
}

func TestMoveToEndIsFIFO(t *testing.T) {
	q, refs := rrQueueWith(t, "A", "B", "C")

	var (
		picked task.Ref
		ok     bool
	)
	q.Write(func(rq *RunQueue[*RoundRobinRecord]) {
		picked, ok = MoveToEnd(rq, 0)
	})
	require.True(t, ok)
	assert.True(t, picked.Equal(refs[0]))
	assert.Equal(t, []string{"B", "C", "A"}, queueNames(q))
}

func TestMoveToEndIncrementsContextSwitches(t *testing.T) {
	q, _ := rrQueueWith(t, "A", "B")

	q.Write(func(rq *RunQueue[*RoundRobinRecord]) {
		_, ok := MoveToEnd(rq, 0)
		require.True(t, ok)
	})

	q.Read(func(rq *RunQueue[*RoundRobinRecord]) {
		tail, ok := rq.At(1)
		require.True(t, ok)
		assert.Equal(t, "A", tail.TaskRef().Name())
		assert.Equal(t, uint64(1), tail.ContextSwitches)
	})
}

func TestMoveToEndOutOfRange(t *testing.T) {
	q, _ := rrQueueWith(t, "A")

	q.Write(func(rq *RunQueue[*RoundRobinRecord]) {
		_, ok := MoveToEnd(rq, 5)
		assert.False(t, ok)
		assert.Equal(t, 1, rq.Len())
	})
}

func TestRemoveTaskReleasesReference(t *testing.T) {
	q, refs := rrQueueWith(t, "A")
	before := refs[0].RefCount()

	q.Write(func(rq *RunQueue[*RoundRobinRecord]) {
		assert.Equal(t, 1, rq.RemoveTask(refs[0]))
	})
	assert.Equal(t, before-1, refs[0].RefCount())
	assert.Equal(t, 0, q.Len())
}

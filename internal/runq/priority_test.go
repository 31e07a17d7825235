package runq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krunq/internal/task"
)

func TestUpdateAndMoveToEndStoresCallerWeight(t *testing.T) {
	reg := NewPriorityRegistry()
	require.NoError(t, reg.Init(0, task.Ref{}))

	a := task.New("a")
	require.NoError(t, reg.AddTaskToSpecific(0, a))
	require.NoError(t, reg.AddTaskToSpecific(0, task.New("b")))

	q, _ := reg.Get(0)
	q.Write(func(rq *RunQueue[*PriorityRecord]) {
		picked, ok := UpdateAndMoveToEnd(rq, 0, 42)
		require.True(t, ok)
		assert.True(t, picked.Equal(a))

		tail, _ := rq.At(1)
		assert.True(t, tail.TaskRef().Equal(a))
		assert.Equal(t, uint32(42), tail.WeightedRuntime)
		assert.Equal(t, uint64(1), tail.TimesPicked)
	})
}

func TestUpdateAndMoveToEndOutOfRange(t *testing.T) {
	reg := NewPriorityRegistry()
	require.NoError(t, reg.Init(0, task.Ref{}))
	require.NoError(t, reg.AddTaskToSpecific(0, task.New("a")))

	q, _ := reg.Get(0)
	q.Write(func(rq *RunQueue[*PriorityRecord]) {
		_, ok := UpdateAndMoveToEnd(rq, 3, 1)
		assert.False(t, ok)
		assert.Equal(t, 1, rq.Len())
	})
}

func TestPriorityRecordStartsAtZeroWeight(t *testing.T) {
	rec := NewPriorityRecord(task.New("a"))
	assert.Equal(t, uint32(0), rec.WeightedRuntime)
	assert.Equal(t, uint64(0), rec.TimesPicked)
}

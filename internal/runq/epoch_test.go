package runq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krunq/internal/task"
)

func TestEpochRecordDefaults(t *testing.T) {
	rec := NewEpochRecord(task.New("a"))
	assert.Equal(t, DefaultPriority, rec.Priority)
	assert.Equal(t, InitialTokens, rec.TokensRemaining)
}

func TestUpdateTokensAndMoveToEnd(t *testing.T) {
	reg := NewEpochRegistry()
	require.NoError(t, reg.Init(0, task.NewIdle(0)))

	a := task.New("a")
	require.NoError(t, reg.AddTaskToSpecific(0, a))
	require.NoError(t, reg.AddTaskToSpecific(0, task.New("b")))

	q, _ := reg.Get(0)
	q.Write(func(rq *RunQueue[*EpochRecord]) {
		picked, ok := UpdateTokensAndMoveToEnd(rq, 0, 7)
		require.True(t, ok)
		assert.True(t, picked.Equal(a))

		tail, _ := rq.At(1)
		assert.True(t, tail.TaskRef().Equal(a))
		assert.Equal(t, 7, tail.TokensRemaining)
	})
}

func TestExhaustedRecordCanBeReset(t *testing.T) {
	reg := NewEpochRegistry()
	require.NoError(t, reg.Init(0, task.NewIdle(0)))
	require.NoError(t, reg.AddTaskToSpecific(0, task.New("a")))

	q, _ := reg.Get(0)
	q.Write(func(rq *RunQueue[*EpochRecord]) {
		rec, _ := rq.At(0)
		rec.TokensRemaining = 0

		// a zero-token record is still a legal pick target; a fresh budget
		// resets it
		_, ok := UpdateTokensAndMoveToEnd(rq, 0, InitialTokens)
		require.True(t, ok)

		rec, _ = rq.At(0)
		assert.Equal(t, InitialTokens, rec.TokensRemaining)
	})
}

func TestIdleTaskCarriedByQueue(t *testing.T) {
	idle := task.NewIdle(4)
	reg := NewEpochRegistry()
	require.NoError(t, reg.Init(4, idle))

	q, _ := reg.Get(4)
	q.Read(func(rq *RunQueue[*EpochRecord]) {
		got, ok := rq.IdleTask()
		require.True(t, ok)
		assert.True(t, got.Equal(idle))
	})
}

func TestGetSetPriorityAcrossCores(t *testing.T) {
	reg := NewEpochRegistry()
	require.NoError(t, reg.Init(0, task.NewIdle(0)))
	require.NoError(t, reg.Init(1, task.NewIdle(1)))

	a := task.New("a")
	require.NoError(t, reg.AddTaskToSpecific(1, a))

	prio, found := reg.GetPriority(a)
	require.True(t, found)
	assert.Equal(t, DefaultPriority, prio)

	reg.SetPriority(a, 35)
	prio, found = reg.GetPriority(a)
	require.True(t, found)
	assert.Equal(t, uint8(35), prio)
}

func TestSetPriorityClampsToMax(t *testing.T) {
	reg := NewEpochRegistry()
	require.NoError(t, reg.Init(0, task.NewIdle(0)))

	a := task.New("a")
	require.NoError(t, reg.AddTaskToSpecific(0, a))

	reg.SetPriority(a, MaxPriority+10)
	prio, found := reg.GetPriority(a)
	require.True(t, found)
	assert.Equal(t, MaxPriority, prio)
}

func TestPriorityOfUnknownTask(t *testing.T) {
	reg := NewEpochRegistry()
	require.NoError(t, reg.Init(0, task.NewIdle(0)))

	ghost := task.New("ghost")
	_, found := reg.GetPriority(ghost)
	assert.False(t, found)

	// setting priority on an absent task is a silent no-op
	reg.SetPriority(ghost, 1)
}

package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krunq/internal/runq"
	"krunq/internal/task"
)

func mustEngine(t *testing.T, policy string, cores int) Engine {
	t.Helper()
	e, err := NewEngine(policy)
	require.NoError(t, err)
	for c := 0; c < cores; c++ {
		require.NoError(t, e.InitCore(runq.CoreID(c)))
	}
	return e
}

func TestNewEngineUnknownPolicy(t *testing.T) {
	_, err := NewEngine("lottery")
	assert.Error(t, err)
}

func TestRoundRobinEngineCycles(t *testing.T) {
	e := mustEngine(t, "roundrobin", 1)

	a := task.New("a")
	b := task.New("b")
	core := runq.CoreID(0)
	require.NoError(t, e.Add(a, TaskSpec{Core: &core}))
	require.NoError(t, e.Add(b, TaskSpec{Core: &core}))

	var order []task.ID
	for i := 0; i < 4; i++ {
		out, ok := e.PickNext(0)
		require.True(t, ok)
		order = append(order, out.Task.ID())
		out.Task.Release()
	}
	assert.Equal(t, []task.ID{a.ID(), b.ID(), a.ID(), b.ID()}, order)
}

func TestRoundRobinEngineEmptyCore(t *testing.T) {
	e := mustEngine(t, "roundrobin", 1)
	_, ok := e.PickNext(0)
	assert.False(t, ok)

	_, ok = e.PickNext(9) // unregistered core
	assert.False(t, ok)
}

func TestPriorityEngineFavorsLeastRun(t *testing.T) {
	e := mustEngine(t, "priority", 1)

	a := task.New("a")
	b := task.New("b")
	core := runq.CoreID(0)
	require.NoError(t, e.Add(a, TaskSpec{Core: &core}))
	require.NoError(t, e.Add(b, TaskSpec{Core: &core}))

	// both start at weight 0; a has the lower id and wins the tie, then the
	// two alternate as each pick raises the winner's weighted runtime
	var order []task.ID
	for i := 0; i < 4; i++ {
		out, ok := e.PickNext(0)
		require.True(t, ok)
		order = append(order, out.Task.ID())
		out.Task.Release()
	}
	assert.Equal(t, []task.ID{a.ID(), b.ID(), a.ID(), b.ID()}, order)
}

func TestRealtimeEngineRunsShortestPeriodFirst(t *testing.T) {
	e := mustEngine(t, "realtime", 1)

	core := runq.CoreID(0)
	slow := task.New("slow")
	fast := task.New("fast")
	aper := task.New("aper")
	period := func(v uint32) *uint32 { return &v }
	require.NoError(t, e.Add(slow, TaskSpec{Core: &core, Period: period(50)}))
	require.NoError(t, e.Add(fast, TaskSpec{Core: &core, Period: period(5)}))
	require.NoError(t, e.Add(aper, TaskSpec{Core: &core}))

	// the shortest-period task is always at the head after reinsertion
	for i := 0; i < 3; i++ {
		out, ok := e.PickNext(0)
		require.True(t, ok)
		assert.Equal(t, fast.ID(), out.Task.ID())
		assert.Equal(t, "period=5", out.Detail)
		out.Task.Release()
	}
}

func TestEpochEngineSpendsTokens(t *testing.T) {
	e := mustEngine(t, "epoch", 1)

	a := task.New("a")
	core := runq.CoreID(0)
	require.NoError(t, e.Add(a, TaskSpec{Core: &core}))

	out, ok := e.PickNext(0)
	require.True(t, ok)
	assert.Equal(t, a.ID(), out.Task.ID())
	assert.Equal(t, "tokens=9", out.Detail)
	out.Task.Release()
}

func TestEpochEngineIdleWhenExhausted(t *testing.T) {
	e := mustEngine(t, "epoch", 1)

	a := task.New("a")
	core := runq.CoreID(0)
	require.NoError(t, e.Add(a, TaskSpec{Core: &core}))

	// burn the whole budget
	for i := 0; i < runq.InitialTokens; i++ {
		out, ok := e.PickNext(0)
		require.True(t, ok)
		require.False(t, out.Idle)
		out.Task.Release()
	}

	// exhausted: the idle task runs and budgets are replenished
	out, ok := e.PickNext(0)
	require.True(t, ok)
	assert.True(t, out.Idle)
	assert.True(t, out.Rollover)
	assert.True(t, out.Task.IsIdle())

	out, ok = e.PickNext(0)
	require.True(t, ok)
	assert.False(t, out.Idle)
	assert.Equal(t, a.ID(), out.Task.ID())
	out.Task.Release()
}

func TestEpochEngineIdleOnEmptyQueue(t *testing.T) {
	e := mustEngine(t, "epoch", 1)

	out, ok := e.PickNext(0)
	require.True(t, ok)
	assert.True(t, out.Idle)
	assert.False(t, out.Rollover)
}

func TestEpochEngineAppliesConfiguredPriority(t *testing.T) {
	e := mustEngine(t, "epoch", 1)
	epoch, isEpoch := e.(*epochEngine)
	require.True(t, isEpoch)

	a := task.New("a")
	core := runq.CoreID(0)
	prio := uint8(33)
	require.NoError(t, e.Add(a, TaskSpec{Core: &core, Priority: &prio}))

	got, found := epoch.Registry().GetPriority(a)
	require.True(t, found)
	assert.Equal(t, uint8(33), got)
}

func TestEpochEngineRolloverFavorsHighPriority(t *testing.T) {
	e := mustEngine(t, "epoch", 1)

	core := runq.CoreID(0)
	hi, lo := task.New("hi"), task.New("lo")
	hiPrio, loPrio := uint8(39), uint8(1)
	require.NoError(t, e.Add(hi, TaskSpec{Core: &core, Priority: &hiPrio}))
	require.NoError(t, e.Add(lo, TaskSpec{Core: &core, Priority: &loPrio}))

	// burn the identical starting budgets through the first epoch
	for i := 0; i < 2*runq.InitialTokens; i++ {
		out, ok := e.PickNext(0)
		require.True(t, ok)
		require.False(t, out.Idle)
		out.Task.Release()
	}

	out, ok := e.PickNext(0)
	require.True(t, ok)
	require.True(t, out.Rollover)

	// replenished budgets split the epoch pool by weight (priority+1):
	// pool=20, weights 40 and 2, so 19 tokens against the floor of 1
	picks := map[task.ID]int{}
	for {
		out, ok = e.PickNext(0)
		require.True(t, ok)
		if out.Idle {
			break
		}
		picks[out.Task.ID()]++
		out.Task.Release()
	}
	assert.Equal(t, 19, picks[hi.ID()])
	assert.Equal(t, 1, picks[lo.ID()])
}

func TestEngineLoadBalancesAcrossCores(t *testing.T) {
	e := mustEngine(t, "roundrobin", 2)

	for i := 0; i < 4; i++ {
		require.NoError(t, e.Add(task.New("t"), TaskSpec{}))
	}

	// queue lengths even out under the least-busy heuristic
	for _, core := range e.Cores() {
		out, ok := e.PickNext(core)
		require.True(t, ok)
		out.Task.Release()
	}
}

func TestEngineRemoveFromAll(t *testing.T) {
	e := mustEngine(t, "roundrobin", 2)

	a := task.New("a")
	core := runq.CoreID(1)
	require.NoError(t, e.Add(a, TaskSpec{Core: &core}))
	require.NoError(t, e.RemoveFromAll(a))

	_, ok := e.PickNext(1)
	assert.False(t, ok)
}

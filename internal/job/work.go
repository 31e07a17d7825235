// Package job provides canned workloads for the simulator: each workload
// consumes scheduling quanta until it reports completion.
package job

// Workload models the work a simulated task performs. Tick consumes one
// scheduling quantum and reports whether the task is finished.
type Workload interface {
	Tick() (done bool)
}

type fixed struct {
	remaining int
}

// FixedTicks returns a workload that finishes after n quanta.
func FixedTicks(n int) Workload {
	if n < 1 {
		n = 1
	}
	return &fixed{remaining: n}
}

func (f *fixed) Tick() bool {
	f.remaining--
	return f.remaining <= 0
}

type forever struct{}

// Forever returns a workload that never finishes, like a daemon task.
func Forever() Workload { return forever{} }

func (forever) Tick() bool { return false }

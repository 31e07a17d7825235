package task

import (
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
)

// Table is a process-wide registry of live tasks keyed by ID, kept ordered so
// callers can iterate tasks in creation order (e.g. for a per-task summary).
// The run-queue engine itself never consults the table; it compares handle
// identities only.
type Table struct {
	mu    sync.RWMutex
	tasks *treemap.Map // ID -> Ref
}

func NewTable() *Table {
	return &Table{
		tasks: treemap.NewWith(func(a, b interface{}) int {
			ia, ib := a.(ID), b.(ID)
			switch {
			case ia < ib:
				return -1
			case ia > ib:
				return 1
			default:
				return 0
			}
		}),
	}
}

// Register adds a task to the table, replacing any previous entry for the
// same ID (which cannot happen in practice since IDs are never reused).
func (tb *Table) Register(ref Ref) {
	if !ref.Valid() {
		return
	}
	tb.mu.Lock()
	tb.tasks.Put(ref.ID(), ref.Clone())
	tb.mu.Unlock()
}

// Lookup returns the reference registered under the given ID.
func (tb *Table) Lookup(id ID) (Ref, bool) {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	v, found := tb.tasks.Get(id)
	if !found {
		return Ref{}, false
	}
	return v.(Ref), true
}

// Len returns the number of registered tasks.
func (tb *Table) Len() int {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	return tb.tasks.Size()
}

// Each calls fn for every registered task in ascending ID order.
func (tb *Table) Each(fn func(Ref)) {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	it := tb.tasks.Iterator()
	for it.Next() {
		fn(it.Value().(Ref))
	}
}

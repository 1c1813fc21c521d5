// Package visitor holds the process-wide visitor counters.
//
// A single Registry is constructed at startup and shared by pointer with
// every page handler and stream session. All reads and writes go through
// atomic operations, so the registry needs no lock.
package visitor

import (
	"time"

	"go.uber.org/atomic"
)

// Registry counts total page renders and currently open stream sessions.
type Registry struct {
	total     *atomic.Int64
	active    *atomic.Int64
	startedAt time.Time
}

// Snapshot is a point-in-time copy of the registry counters.
type Snapshot struct {
	Active int64     `json:"active"`
	Total  int64     `json:"total"`
	Since  time.Time `json:"since"`
}

func NewRegistry() *Registry {
	return &Registry{
		total:     atomic.NewInt64(0),
		active:    atomic.NewInt64(0),
		startedAt: time.Now(),
	}
}

// ReadAndIncrementTotal returns the total visitor count as it was before this
// call and bumps it by one. Concurrent callers always see distinct values.
func (r *Registry) ReadAndIncrementTotal() int64 {
	return r.total.Inc() - 1
}

// Total returns the total visitor count without changing it.
func (r *Registry) Total() int64 {
	return r.total.Load()
}

func (r *Registry) IncrementActive() {
	r.active.Inc()
}

// DecrementActive lowers the active count by one. The count never drops
// below zero; a decrement at zero is ignored and reported as false.
func (r *Registry) DecrementActive() bool {
	for {
		cur := r.active.Load()
		if cur <= 0 {
			return false
		}
		if r.active.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

func (r *Registry) CurrentActive() int64 {
	return r.active.Load()
}

// Since returns the time the registry was created.
func (r *Registry) Since() time.Time {
	return r.startedAt
}

func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		Active: r.active.Load(),
		Total:  r.total.Load(),
		Since:  r.startedAt,
	}
}

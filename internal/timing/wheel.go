// Package timing implements the single-threaded cooperative scheduler that
// drives every protocol engine in ridgebreaker. There is exactly one Wheel
// per daemon instance; every timer job it fires runs to completion on the
// caller's goroutine before the next job starts.
package timing

import (
	"container/heap"
	"context"
	"time"
)

// Job is invoked when a timer fires. Jobs must never block: arming another
// timer and returning is the only way to "wait" (see spec §5).
type Job func()

// Handle is a re-armable timer handle returned by Wheel.Add/AddPeriodic.
// Cancelling a Handle is safe at any point in its lifecycle,
// including after it has already fired or been cancelled — the wheel
// tolerates stale handles exactly as the source's timer_del tolerates a
// null/stale timer pointer (spec §5 "Cancellation").
type Handle struct {
	wheel    *Wheel
	id       uint64
	periodic bool
	period   time.Duration
	job      Job
}

// Cancel disarms the handle. Idempotent: cancelling an unarmed, already
// fired, or already cancelled handle is a no-op.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.wheel.cancel(h.id)
}

// IsArmed reports whether the handle currently has a pending firing.
func (h *Handle) IsArmed() bool {
	if h == nil {
		return false
	}
	return h.wheel.isArmed(h.id)
}

// entry is one scheduled firing in the wheel's priority queue.
type entry struct {
	deadline time.Time
	seq      uint64 // insertion order, breaks deadline ties (spec §5 ordering)
	handle   *Handle
	index    int // heap index, maintained by container/heap
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Wheel is a single-threaded, cooperative, monotonic timer scheduler.
// All methods except Run and the Handle accessors are safe to call only
// from the wheel's own goroutine (i.e., from inside a Job); Add/AddPeriodic
// calls made from arbitrary goroutines before Run starts, or synchronously
// within a Job, are both supported. There is no internal locking: per
// spec §5 the wheel is the only execution context.
type Wheel struct {
	now     func() time.Time
	heap    entryHeap
	byID    map[uint64]*entry
	nextID  uint64
	nextSeq uint64
}

// New creates a Wheel using the real monotonic clock.
func New() *Wheel {
	return NewWithClock(time.Now)
}

// NewWithClock creates a Wheel driven by an injected clock, for deterministic
// tests (advancing a fake clock and calling RunOnce/RunUntilIdle).
func NewWithClock(now func() time.Time) *Wheel {
	return &Wheel{
		now:  now,
		byID: make(map[uint64]*entry),
	}
}

// Add arms a one-shot job to fire after d.
func (w *Wheel) Add(d time.Duration, job Job) *Handle {
	h := &Handle{wheel: w, job: job}
	w.arm(h, d)
	return h
}

// AddPeriodic arms a job that re-arms itself for `period` every time it
// fires, until cancelled. The first firing happens after `period`.
func (w *Wheel) AddPeriodic(period time.Duration, job Job) *Handle {
	h := &Handle{wheel: w, periodic: true, period: period, job: job}
	w.arm(h, period)
	return h
}

func (w *Wheel) arm(h *Handle, d time.Duration) {
	w.nextID++
	h.id = w.nextID
	w.nextSeq++
	e := &entry{deadline: w.now().Add(d), seq: w.nextSeq, handle: h}
	heap.Push(&w.heap, e)
	w.byID[h.id] = e
}

func (w *Wheel) cancel(id uint64) {
	e, ok := w.byID[id]
	if !ok {
		return
	}
	delete(w.byID, id)
	if e.index >= 0 {
		heap.Remove(&w.heap, e.index)
	}
}

func (w *Wheel) isArmed(id uint64) bool {
	_, ok := w.byID[id]
	return ok
}

// RunOnce fires every entry whose deadline is <= now, running each job to
// completion in deadline order (ties broken by insertion order). Jobs that
// arm new timers during this call are only fired by a subsequent RunOnce.
// Returns the number of jobs fired.
func (w *Wheel) RunOnce() int {
	fired := 0
	now := w.now()
	lastSeq := w.nextSeq
	for w.heap.Len() > 0 && !w.heap[0].deadline.After(now) {
		if w.heap[0].seq > lastSeq {
			break // armed by a job during this call
		}
		e := heap.Pop(&w.heap).(*entry)
		delete(w.byID, e.handle.id)
		h := e.handle
		h.job()
		fired++
		if h.periodic {
			if _, stillArmed := w.byID[h.id]; !stillArmed {
				w.arm(h, h.period)
			}
		}
	}
	return fired
}

// NextDeadline returns the earliest pending deadline and true, or the zero
// time and false if nothing is armed.
func (w *Wheel) NextDeadline() (time.Time, bool) {
	if w.heap.Len() == 0 {
		return time.Time{}, false
	}
	return w.heap[0].deadline, true
}

// Run drives the wheel against the real clock until ctx is cancelled,
// sleeping between firings. This is the production entry point used by
// cmd/ridgebreaker's daemon loop.
func (w *Wheel) Run(ctx context.Context) {
	for {
		w.RunOnce()
		deadline, ok := w.NextDeadline()
		var wait time.Duration
		if !ok {
			wait = 100 * time.Millisecond
		} else {
			wait = time.Until(deadline)
			if wait < 0 {
				wait = 0
			}
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// Len returns the number of entries currently armed. Useful for tests
// asserting "the set of armed timers equals exactly the set specified for
// the destination state" (spec §8 invariant 3).
func (w *Wheel) Len() int {
	return len(w.byID)
}

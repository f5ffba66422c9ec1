// Package scheduler implements the cooperative, priority-ordered
// ready set the Runner pulls guest threads from: a priority queue
// guarded by a mutex, exactly as the data model's concurrency section
// describes, generalizing the teacher's single `core.running` bool
// (rcornwell-S370 emu/core/core.go) from "is the one CPU running" to
// "which of N guest threads, across however many are registered, is
// ready to run next."
package scheduler

import (
	"container/heap"
	"sync"
	"time"
)

// ThreadID names one scheduled guest thread (a PPU or SPU Thread),
// opaque to this package.
type ThreadID uint32

// State is a thread's scheduling state.
type State int

const (
	StateReady State = iota
	StateRunning
	StateWaiting
	StateStopped
)

// DefaultQuantum is the time slice charged before a running thread is
// preempted back to Ready, per the data model's default.
const DefaultQuantum = time.Millisecond

type entry struct {
	id       ThreadID
	priority int // lower is more urgent
	seq      uint64
	index    int
}

// readyHeap orders by (priority, seq): numerically smaller priority
// first, ties broken by earlier arrival — a stable priority queue.
type readyHeap []*entry

func (h readyHeap) Len() int { return len(h) }
func (h readyHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h readyHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *readyHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

type threadInfo struct {
	priority  int
	state     State
	elapsed   time.Duration
	waitCause string
}

// Scheduler is the shared ready set every worker goroutine the Runner
// owns pulls from; every operation it exposes takes and releases the
// lock quickly, per the data model's "operations are short" guarantee.
type Scheduler struct {
	mu      sync.Mutex
	ready   readyHeap
	threads map[ThreadID]*threadInfo
	seq     uint64
	quantum time.Duration
}

// New builds a Scheduler with the given preemption quantum; a zero
// quantum means DefaultQuantum.
func New(quantum time.Duration) *Scheduler {
	if quantum <= 0 {
		quantum = DefaultQuantum
	}
	return &Scheduler{
		threads: make(map[ThreadID]*threadInfo),
		quantum: quantum,
	}
}

func (s *Scheduler) nextSeq() uint64 {
	s.seq++
	return s.seq
}

// Add registers a new thread, or re-admits a known one, to the Ready
// set at the given priority (lower numeric value runs first).
func (s *Scheduler) Add(id ThreadID, priority int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[id] = &threadInfo{priority: priority, state: StateReady}
	heap.Push(&s.ready, &entry{id: id, priority: priority, seq: s.nextSeq()})
}

// Schedule pops the Ready thread with the smallest priority (FIFO
// among ties) and marks it Running. ok is false when no thread is
// Ready.
func (s *Scheduler) Schedule() (id ThreadID, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ready) == 0 {
		return 0, false
	}
	e := heap.Pop(&s.ready).(*entry)
	if info := s.threads[e.id]; info != nil {
		info.state = StateRunning
	}
	return e.id, true
}

// YieldCurrent returns a Running thread to the tail of its priority
// bucket without charging it further time slice.
func (s *Scheduler) YieldCurrent(id ThreadID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.threads[id]
	if info == nil {
		return
	}
	info.state = StateReady
	info.elapsed = 0
	heap.Push(&s.ready, &entry{id: id, priority: info.priority, seq: s.nextSeq()})
}

// Block marks a thread Waiting on reason (a channel/MFC stall or a
// syscall that itself blocks); it will not be scheduled again until
// Unblock.
func (s *Scheduler) Block(id ThreadID, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.threads[id]
	if info == nil {
		return
	}
	info.state = StateWaiting
	info.waitCause = reason
}

// Unblock returns a Waiting thread to Ready, at the tail of its
// priority bucket.
func (s *Scheduler) Unblock(id ThreadID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.threads[id]
	if info == nil || info.state != StateWaiting {
		return
	}
	info.state = StateReady
	info.waitCause = ""
	heap.Push(&s.ready, &entry{id: id, priority: info.priority, seq: s.nextSeq()})
}

// Stop retires a thread permanently: it is dropped from the ready set
// and never rescheduled. Matches a Breakpoint/InvalidInstruction/Error
// exit or explicit termination.
func (s *Scheduler) Stop(id ThreadID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.threads[id]
	if info == nil {
		return
	}
	info.state = StateStopped
	kept := s.ready[:0]
	for _, e := range s.ready {
		if e.id != id {
			e.index = len(kept)
			kept = append(kept, e)
		}
	}
	s.ready = kept
	heap.Init(&s.ready)
}

// UpdateTimeSlice charges elapsed against the running thread's
// quantum; once the total charged since its last Schedule exceeds the
// configured quantum, it returns true and the caller must route the
// thread back to Ready (at the tail of its bucket) instead of
// continuing to run it.
func (s *Scheduler) UpdateTimeSlice(id ThreadID, elapsed time.Duration) (expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.threads[id]
	if info == nil {
		return false
	}
	info.elapsed += elapsed
	return info.elapsed >= s.quantum
}

// State reports a thread's current scheduling state.
func (s *Scheduler) State(id ThreadID) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.threads[id]
	if info == nil {
		return StateStopped, false
	}
	return info.state, true
}

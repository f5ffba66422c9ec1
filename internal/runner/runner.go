// Package runner drives PPU and SPU execution cooperatively across a
// host worker pool, generalizing the teacher's single-CPU
// goroutine-plus-done-channel-plus-master.Packet control loop
// (rcornwell-S370 emu/core/core.go) to N workers pulling from a
// shared scheduler.Scheduler instead of one `core.running` bool.
package runner

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/cellcore/ps3emu/internal/coreerr"
	"github.com/cellcore/ps3emu/internal/memory"
	"github.com/cellcore/ps3emu/internal/scheduler"
)

// MaxCyclesPerFrame bounds how many instructions run per run_frame
// call before the frame ends regardless of quantum state, per the
// data model's default.
const MaxCyclesPerFrame = 100_000

// FrameInterval is the ~60 Hz frame boundary the Runner paces itself
// to.
const FrameInterval = time.Second / 60

// Kind classifies why one thread's dispatch returned control to the
// Runner, collapsing the PPU and SPU cores' distinct ExitReason types
// into the one handling table the data model describes.
type Kind int

const (
	KindQuantumExpired Kind = iota
	KindBlocked
	KindSyscallHandled
	KindStopped
	KindBreakpoint
	KindError
)

// Outcome is a Runnable's dispatch result, already translated into the
// Runner's shared vocabulary.
type Outcome struct {
	Kind       Kind
	WaitReason string         // set on KindBlocked
	Fault      *coreerr.Fault // set on KindError
	Breakpoint uint32         // set on KindBreakpoint
}

// Runnable is anything the Runner can schedule: a PPU thread, an SPU
// thread, or (per the compiled-code callback contract) a JIT-compiled
// routine standing in for the interpreter.
type Runnable interface {
	ID() scheduler.ThreadID
	// DispatchOnce runs up to budget instructions and translates the
	// core's own ExitReason into the Runner's Outcome vocabulary.
	DispatchOnce(budget int) Outcome
}

// Runner owns the scheduler, the registered threads, and the host
// worker pool that dispatches them.
type Runner struct {
	Scheduler *scheduler.Scheduler
	Fabric    *memory.Fabric

	// RSXDrain is called once per frame boundary between CPU dispatch
	// rounds, per the external RSX command hook contract. Nil disables
	// the call (useful standalone/in tests).
	RSXDrain func(*memory.Fabric)

	workers int
	dmaSem  *semaphore.Weighted

	threads map[scheduler.ThreadID]Runnable

	// OnStop, when set, is called for every thread the Runner retires
	// (Stopped/Breakpoint/Error outcomes), so a debug console or host
	// integration can surface the failure.
	OnStop func(id scheduler.ThreadID, outcome Outcome)
}

// New builds a Runner with workers host goroutines dispatching guest
// threads concurrently, each SPU DMA dispatch bounded by a semaphore
// sized to workers (mirroring the teacher's one-core-one-device-set
// concern scaled to several SPUs sharing the Fabric's DMA path).
func New(sched *scheduler.Scheduler, fabric *memory.Fabric, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		Scheduler: sched,
		Fabric:    fabric,
		workers:   workers,
		dmaSem:    semaphore.NewWeighted(int64(workers)),
		threads:   make(map[scheduler.ThreadID]Runnable),
	}
}

// Register adds a Runnable to the thread table and its scheduler entry
// at the given priority.
func (r *Runner) Register(rn Runnable, priority int) {
	r.threads[rn.ID()] = rn
	r.Scheduler.Add(rn.ID(), priority)
}

// Unregister drops a thread from the table after it stops, so a
// terminated guest thread's ID can later be reused.
func (r *Runner) Unregister(id scheduler.ThreadID) {
	delete(r.threads, id)
}

// AcquireDMA/ReleaseDMA bound how many Runnables may be concurrently
// mid-DMA-dispatch against the shared Fabric; an SPU Runnable wraps
// its MFC-touching dispatch calls with these.
func (r *Runner) AcquireDMA(ctx context.Context) error {
	return r.dmaSem.Acquire(ctx, 1)
}

func (r *Runner) ReleaseDMA() {
	r.dmaSem.Release(1)
}

// RunFrame pulls threads from the Scheduler across the worker pool
// until either MaxCyclesPerFrame instructions have run or the ready
// set empties out, handles each Outcome per the data model's
// ExitReason table, drains the RSX command FIFO once, and returns —
// the caller is expected to call RunFrame roughly every FrameInterval
// to hold the ~60 Hz frame cadence (see RunLoop for the paced form).
func (r *Runner) RunFrame(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	cyclesRemaining := newBudget(MaxCyclesPerFrame)

	for w := 0; w < r.workers; w++ {
		g.Go(func() error {
			return r.workerLoop(ctx, cyclesRemaining)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if r.RSXDrain != nil {
		r.RSXDrain(r.Fabric)
	}
	return nil
}

// workerLoop schedules one thread, keeps dispatching it in small
// chunks until its time slice expires, it blocks, or it stops, then
// picks the next Ready thread — so the quantum (not the chunk size)
// is what governs when a thread yields to its priority peers.
func (r *Runner) workerLoop(ctx context.Context, budget *cycleBudget) error {
outer:
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		id, ok := r.Scheduler.Schedule()
		if !ok {
			return nil
		}

		rn := r.threads[id]
		if rn == nil {
			r.Scheduler.Stop(id) // no Runnable registered; drop a stale entry
			continue
		}

		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n := budget.take(256)
			if n == 0 {
				r.Scheduler.YieldCurrent(id)
				return nil
			}

			start := time.Now()
			outcome := rn.DispatchOnce(n)
			elapsed := time.Since(start)

			switch outcome.Kind {
			case KindQuantumExpired, KindSyscallHandled:
				if r.Scheduler.UpdateTimeSlice(id, elapsed) {
					r.Scheduler.YieldCurrent(id)
					continue outer
				}
			case KindBlocked:
				r.Scheduler.Block(id, outcome.WaitReason)
				continue outer
			default: // KindStopped, KindBreakpoint, KindError
				r.Scheduler.Stop(id)
				if r.OnStop != nil {
					r.OnStop(id, outcome)
				}
				if outcome.Fault != nil {
					slog.Error("guest thread stopped", "thread", id, "fault", outcome.Fault.Error())
				}
				continue outer
			}
		}
	}
}

// RunLoop calls RunFrame repeatedly, sleeping out the remainder of
// each ~16.67ms frame boundary, until ctx is canceled.
func (r *Runner) RunLoop(ctx context.Context) error {
	for {
		start := time.Now()
		if err := r.RunFrame(ctx); err != nil {
			return err
		}
		if elapsed := time.Since(start); elapsed < FrameInterval {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(FrameInterval - elapsed):
			}
		}
	}
}

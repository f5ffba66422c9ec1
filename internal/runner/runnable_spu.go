package runner

import (
	"context"
	"fmt"

	"github.com/cellcore/ps3emu/internal/scheduler"
	"github.com/cellcore/ps3emu/internal/spu"
)

// SPURunnable adapts an spu.Thread to the Runner's Runnable interface,
// translating spu.ExitReason into the shared Outcome vocabulary.
// ExitStop maps to KindStopped: the data model leaves restarting a
// stopped SPU to PPU-side HLE, not this core.
type SPURunnable struct {
	id     scheduler.ThreadID
	Thread *spu.Thread
	runner *Runner
}

// NewSPURunnable wraps thread for the Runner under id. r is the same
// Runner thread will be registered with; its DMA semaphore bounds how
// many SPU threads may be mid-dispatch against the shared Fabric at
// once.
func NewSPURunnable(id scheduler.ThreadID, thread *spu.Thread, r *Runner) *SPURunnable {
	return &SPURunnable{id: id, Thread: thread, runner: r}
}

func (s *SPURunnable) ID() scheduler.ThreadID { return s.id }

func (s *SPURunnable) DispatchOnce(budget int) Outcome {
	if err := s.runner.AcquireDMA(context.Background()); err != nil {
		return Outcome{Kind: KindBlocked, WaitReason: "DMA slot unavailable"}
	}
	defer s.runner.ReleaseDMA()

	reason := s.Thread.Dispatch(budget)
	switch reason.Kind {
	case spu.ExitQuantumExpired:
		return Outcome{Kind: KindQuantumExpired}

	case spu.ExitSuspended:
		cause := "channel write stall"
		if reason.Stall != nil && reason.Stall.Read {
			cause = "channel read stall"
		}
		if reason.Stall != nil {
			cause = fmt.Sprintf("%s on channel %d", cause, reason.Stall.Channel)
		}
		return Outcome{Kind: KindBlocked, WaitReason: cause}

	case spu.ExitStop:
		if reason.Fault != nil {
			return Outcome{Kind: KindError, Fault: reason.Fault}
		}
		return Outcome{Kind: KindStopped}

	default:
		return Outcome{Kind: KindError, Fault: reason.Fault}
	}
}

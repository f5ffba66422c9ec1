package runner

import (
	"github.com/cellcore/ps3emu/internal/ppu"
	"github.com/cellcore/ps3emu/internal/scheduler"
)

// SyscallHandler services a PPU `sc` instruction synchronously: number
// comes from GPR11, args from GPR3-GPR10, and the u64 it returns is
// stored into GPR3 — the external syscall handler contract.
type SyscallHandler func(number uint64, args [8]uint64) uint64

// PPURunnable adapts a ppu.Thread to the Runner's Runnable interface,
// translating ppu.ExitReason into the shared Outcome vocabulary and
// servicing Syscall exits inline per the data model's handling table.
type PPURunnable struct {
	id      scheduler.ThreadID
	Thread  *ppu.Thread
	Syscall SyscallHandler
}

// NewPPURunnable wraps thread for the Runner under id.
func NewPPURunnable(id scheduler.ThreadID, thread *ppu.Thread, syscall SyscallHandler) *PPURunnable {
	return &PPURunnable{id: id, Thread: thread, Syscall: syscall}
}

func (p *PPURunnable) ID() scheduler.ThreadID { return p.id }

func (p *PPURunnable) DispatchOnce(budget int) Outcome {
	reason := p.Thread.Dispatch(budget)
	switch reason.Kind {
	case ppu.ExitQuantumExpired:
		return Outcome{Kind: KindQuantumExpired}

	case ppu.ExitSyscall:
		number := p.Thread.GPR[11]
		var args [8]uint64
		for i := 0; i < 8; i++ {
			args[i] = p.Thread.GPR[3+i]
		}
		var result uint64
		if p.Syscall != nil {
			result = p.Syscall(number, args)
		}
		p.Thread.GPR[3] = result
		return Outcome{Kind: KindSyscallHandled}

	case ppu.ExitBreakpoint:
		return Outcome{Kind: KindBreakpoint, Breakpoint: reason.Breakpoint}

	case ppu.ExitInvalidInstruction:
		return Outcome{Kind: KindError, Fault: reason.Fault}

	default:
		return Outcome{Kind: KindError, Fault: reason.Fault}
	}
}

package hostif

import (
	"testing"

	"github.com/cellcore/ps3emu/internal/memory"
	"github.com/cellcore/ps3emu/internal/mfc"
	"github.com/cellcore/ps3emu/internal/runner"
	"github.com/cellcore/ps3emu/internal/scheduler"
	"github.com/cellcore/ps3emu/internal/spu"
)

// encodeRDCH packs an RI7-form `rdch rt, ch` word, mirroring the SPU
// package's own instruction encoder (unexported there).
func encodeRDCH(rt, ch int) uint32 {
	const opRDCH = 8
	return 0x1<<28 | uint32(opRDCH&0x3F)<<22 | uint32(ch&0x7F)<<15 | uint32(rt&0x7F)<<1
}

func newTestManager(t *testing.T) (*Manager, *scheduler.Scheduler) {
	t.Helper()
	fabric := memory.NewFabricSize(uint64(memory.MainRAMSize))
	sched := scheduler.New(0)
	run := runner.New(sched, fabric, 1)
	return NewManager(fabric, sched, run), sched
}

func TestRegisteredSyscallReceivesArgsAndReturnsResult(t *testing.T) {
	m, _ := newTestManager(t)

	var gotArg uint64
	m.RegisterSyscall(42, func(args [8]uint64) uint64 {
		gotArg = args[0]
		return 7
	})

	result := m.dispatchSyscall(42, [8]uint64{0x55})
	if result != 7 {
		t.Fatalf("dispatchSyscall result: got %d want 7", result)
	}
	if gotArg != 0x55 {
		t.Fatalf("dispatchSyscall arg0: got 0x%x want 0x55", gotArg)
	}
}

func TestDispatchSyscallReturnsENOSYSWhenUnregistered(t *testing.T) {
	m, _ := newTestManager(t)
	result := m.dispatchSyscall(999, [8]uint64{})
	if result != errnoSyscallNotImplemented {
		t.Fatalf("expected -ENOSYS sentinel, got 0x%x", result)
	}
}

func TestSpawnPPUAssignsDistinctThreadIDs(t *testing.T) {
	m, _ := newTestManager(t)
	a := m.SpawnPPU(0x1000, 0, 0x2000)
	b := m.SpawnPPU(0x1000, 0, 0x2000)
	if a == b {
		t.Fatalf("expected distinct thread IDs, got %d twice", a)
	}
}

func TestSpawnSPUPreloadsLocalStorage(t *testing.T) {
	m, _ := newTestManager(t)
	image := make([]byte, spu.LocalStorageSize)
	image[0] = 0xAB

	id := m.SpawnSPU(image, 1)
	if id == 0 {
		t.Fatalf("expected a non-zero thread ID")
	}
}

// TestPostMailboxDeliversToSPUInboundMailbox exercises the PPU-to-SPU
// mailbox handshake end to end: a host-side PostMailbox call (standing
// in for a PPU thread's MMIO/syscall write) is observed by the SPU's
// own `rdch` on its inbound mailbox channel once the Runner dispatches
// it.
func TestPostMailboxDeliversToSPUInboundMailbox(t *testing.T) {
	m, _ := newTestManager(t)

	queue := mfc.NewQueue(make([]byte, spu.LocalStorageSize), m.fabric)
	channels := mfc.NewChannelFile(queue)
	th := spu.NewThread(m.fabric, channels, queue)

	word := encodeRDCH(1, mfc.ChanInboundMbox) // rdch r1, ChanInboundMbox
	th.LS[0], th.LS[1], th.LS[2], th.LS[3] = byte(word>>24), byte(word>>16), byte(word>>8), byte(word)

	id := m.allocID()
	m.spuChannels[id] = channels
	m.run.Register(runner.NewSPURunnable(id, th, m.run), 1)

	reason := th.Dispatch(1)
	if reason.Kind != spu.ExitSuspended {
		t.Fatalf("expected rdch to stall on the empty mailbox first, got %+v", reason)
	}

	if !m.PostMailbox(id, 0xDEADBEEF) {
		t.Fatalf("expected PostMailbox to succeed on an empty inbound mailbox")
	}

	reason = th.Dispatch(1)
	if reason.Kind != spu.ExitQuantumExpired {
		t.Fatalf("expected the resumed rdch to complete, got %+v", reason)
	}
	if got := th.GPR[1].Word(0); got != 0xDEADBEEF {
		t.Fatalf("rdch result: got 0x%x want 0xDEADBEEF", got)
	}
}

func TestTerminateStopsThread(t *testing.T) {
	m, sched := newTestManager(t)
	image := make([]byte, spu.LocalStorageSize)
	id := m.SpawnSPU(image, 1)

	m.Terminate(id)
	if state, ok := sched.State(id); !ok || state != scheduler.StateStopped {
		t.Fatalf("expected thread %d Stopped after Terminate, got %v/%v", id, state, ok)
	}
}

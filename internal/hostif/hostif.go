// Package hostif is the seam between the execution core and its host
// collaborators: the ELF/SELF loader, HLE syscall modules, and RSX.
// It owns thread spawn/terminate and wires each new thread's syscall
// exits back to a caller-supplied dispatch table, the way the
// teacher's emu/core.Core owns device attach/detach and wires device
// interrupts back to the channel subsystem.
package hostif

import (
	"fmt"

	"github.com/cellcore/ps3emu/internal/memory"
	"github.com/cellcore/ps3emu/internal/mfc"
	"github.com/cellcore/ps3emu/internal/ppu"
	"github.com/cellcore/ps3emu/internal/runner"
	"github.com/cellcore/ps3emu/internal/scheduler"
	"github.com/cellcore/ps3emu/internal/spu"
)

// SyscallFunc services one syscall number's worth of work; args mirror
// GPR3-10 as handed off by the PPU `sc` contract.
type SyscallFunc func(args [8]uint64) uint64

// RSXDrain is the RSX command hook the Runner calls once per frame
// boundary.
type RSXDrain func(*memory.Fabric)

// CompiledCodeHook dispatches a guest start address to compiled code
// standing in for the interpreter, returning an exit outcome with the
// identical contract DispatchOnce expects. No concrete backend is
// wired in this core; native code generation is out of scope, so this
// type exists only so a host integration has somewhere to plug one in
// later without changing Manager's shape.
type CompiledCodeHook func(thread *ppu.Thread, startPC uint32) (handled bool, outcome runner.Outcome)

// Manager spawns and terminates guest threads against a shared Fabric,
// Scheduler, and Runner, and dispatches PPU syscalls to a registered
// table by number.
type Manager struct {
	fabric *memory.Fabric
	sched  *scheduler.Scheduler
	run    *runner.Runner

	nextID      scheduler.ThreadID
	syscalls    map[uint64]SyscallFunc
	spuChannels map[scheduler.ThreadID]*mfc.ChannelFile
}

// NewManager builds a Manager driving threads through run, which must
// already be constructed over sched and fabric.
func NewManager(fabric *memory.Fabric, sched *scheduler.Scheduler, run *runner.Runner) *Manager {
	return &Manager{
		fabric:      fabric,
		sched:       sched,
		run:         run,
		syscalls:    make(map[uint64]SyscallFunc),
		spuChannels: make(map[scheduler.ThreadID]*mfc.ChannelFile),
	}
}

// RegisterSyscall binds a handler for syscall number, overwriting any
// prior binding.
func (m *Manager) RegisterSyscall(number uint64, fn SyscallFunc) {
	m.syscalls[number] = fn
}

// SetRSXDrain installs the RSX command hook the Runner calls once per
// RunFrame; passing nil disables the call.
func (m *Manager) SetRSXDrain(drain RSXDrain) {
	if drain == nil {
		m.run.RSXDrain = nil
		return
	}
	m.run.RSXDrain = func(fabric *memory.Fabric) { drain(fabric) }
}

// errnoSyscallNotImplemented is returned, per spec.md's SyscallError
// convention (a negative errno placed in GPR3), when no handler is
// registered for the requested number.
const errnoSyscallNotImplemented = ^uint64(38 - 1) // -ENOSYS, two's complement

func (m *Manager) dispatchSyscall(number uint64, args [8]uint64) uint64 {
	fn, ok := m.syscalls[number]
	if !ok {
		return errnoSyscallNotImplemented
	}
	return fn(args)
}

// SpawnPPU creates a PPU thread starting at entryPC with stackTop
// preloaded into GPR1 (the ABI's stack pointer register), registers it
// with the Runner at priority, and returns its thread ID.
func (m *Manager) SpawnPPU(entryPC uint32, priority int, stackTop uint64) scheduler.ThreadID {
	th := ppu.NewThread(m.fabric)
	th.PC = entryPC
	th.GPR[1] = stackTop
	th.OnICBI = func(addr uint32) { m.OnICBI(addr, 128) }

	id := m.allocID()
	rn := runner.NewPPURunnable(id, th, m.dispatchSyscall)
	m.run.Register(rn, priority)
	return id
}

// SpawnSPU creates an SPU thread with its Local Storage preloaded from
// lsImage, registers it with the Runner at priority, and returns its
// thread ID. lsImage longer than Local Storage is an error from the
// caller, not this core's to detect; it is silently truncated by copy.
func (m *Manager) SpawnSPU(lsImage []byte, priority int) scheduler.ThreadID {
	queue := mfc.NewQueue(make([]byte, spu.LocalStorageSize), m.fabric)
	channels := mfc.NewChannelFile(queue)
	th := spu.NewThread(m.fabric, channels, queue)
	copy(th.LS, lsImage)

	id := m.allocID()
	rn := runner.NewSPURunnable(id, th, m.run)
	m.run.Register(rn, priority)
	m.spuChannels[id] = channels
	return id
}

// PostMailbox delivers value into the inbound mailbox of the SPU thread
// id, the PPU-side (or other host-side) half of a mailbox handshake: a
// PPU thread calls this through its syscall/MMIO handler, and the SPU
// side observes it with `rdch` on ChanInboundMbox. Reports false if id
// names no SPU thread or its inbound mailbox is full.
func (m *Manager) PostMailbox(id scheduler.ThreadID, value uint32) bool {
	cf, ok := m.spuChannels[id]
	if !ok {
		return false
	}
	return cf.PostMailbox(value)
}

// Terminate retires a thread: it is dropped from the Runner's thread
// table and stopped in the scheduler so it can never again be handed
// out by Schedule.
func (m *Manager) Terminate(id scheduler.ThreadID) {
	m.run.Unregister(id)
	m.sched.Stop(id)
	delete(m.spuChannels, id)
}

// OnICBI is the code-cache invalidation hook: called for every PPU
// thread spawned by SpawnPPU on an `icbi` instruction (with size 128,
// one cache line), and available to the loader when it patches code in
// place. MFC Put commands do not call it. This core has no
// compiled-code cache of its own, so it is a no-op extension point for
// a host integration that does.
func (m *Manager) OnICBI(addr uint32, size uint32) {}

func (m *Manager) allocID() scheduler.ThreadID {
	m.nextID++
	return m.nextID
}

// String renders a short diagnostic summary, mirroring the teacher's
// habit of a human-readable Core/device summary for the debug console.
func (m *Manager) String() string {
	return fmt.Sprintf("hostif.Manager{syscalls=%d}", len(m.syscalls))
}

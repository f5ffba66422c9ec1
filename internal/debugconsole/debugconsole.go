// Package debugconsole is an interactive liner-backed REPL exposing
// spec.md §4.4's breakpoint support: list threads, set/clear a
// breakpoint, show a PPU thread's registers, single-step, and dump
// guest memory. Modeled on the
// teacher's command/reader.ConsoleReader plus command/parser.go's
// abbreviation-matching command table, scaled down from the S/370's
// device-oriented command set to this core's thread/breakpoint set.
package debugconsole

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/cellcore/ps3emu/internal/hexfmt"
	"github.com/cellcore/ps3emu/internal/memory"
	"github.com/cellcore/ps3emu/internal/ppu"
	"github.com/cellcore/ps3emu/internal/scheduler"
)

// Console drives breakpoint/register commands against a fixed set of
// attached PPU threads, stepping them directly rather than through the
// Runner's scheduler (a single-stepped thread is, by definition, not
// competing for the ready queue).
type Console struct {
	fabric  *memory.Fabric
	threads map[scheduler.ThreadID]*ppu.Thread
	order   []scheduler.ThreadID
	out     func(string)
}

// New builds an empty Console reading guest memory from fabric (for
// the dump command); threads are added with Attach.
func New(fabric *memory.Fabric) *Console {
	return &Console{fabric: fabric, threads: make(map[scheduler.ThreadID]*ppu.Thread)}
}

// Attach makes thread reachable from the console under id.
func (c *Console) Attach(id scheduler.ThreadID, thread *ppu.Thread) {
	if _, exists := c.threads[id]; !exists {
		c.order = append(c.order, id)
		sort.Slice(c.order, func(i, j int) bool { return c.order[i] < c.order[j] })
	}
	c.threads[id] = thread
}

type cmd struct {
	name    string
	min     int
	process func(*Console, []string) (string, error)
}

var cmdList = []cmd{
	{name: "threads", min: 2, process: (*Console).cmdThreads},
	{name: "registers", min: 3, process: (*Console).cmdRegisters},
	{name: "break", min: 2, process: (*Console).cmdBreak},
	{name: "clear", min: 2, process: (*Console).cmdClear},
	{name: "step", min: 2, process: (*Console).cmdStep},
	{name: "dump", min: 2, process: (*Console).cmdDump},
	{name: "quit", min: 1, process: (*Console).cmdQuit},
}

var errQuit = errors.New("quit")

func matchCommand(c cmd, name string) bool {
	if name == "" || len(name) > len(c.name) {
		return false
	}
	return c.name[:len(name)] == name && len(name) >= c.min
}

func matchList(name string) []cmd {
	var matches []cmd
	for _, c := range cmdList {
		if matchCommand(c, strings.ToLower(name)) {
			matches = append(matches, c)
		}
	}
	return matches
}

// Process executes one command line and returns its textual reply (if
// any). errQuit is returned when the caller typed "quit".
func (c *Console) Process(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}

	matches := matchList(fields[0])
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("unknown command: %s", fields[0])
	case 1:
		return matches[0].process(c, fields[1:])
	default:
		return "", fmt.Errorf("ambiguous command: %s", fields[0])
	}
}

func (c *Console) cmdThreads(_ []string) (string, error) {
	var b strings.Builder
	for _, id := range c.order {
		fmt.Fprintf(&b, "%d: pc=0x%08x\n", id, c.threads[id].PC)
	}
	return b.String(), nil
}

func (c *Console) cmdRegisters(args []string) (string, error) {
	th, err := c.resolve(args)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "pc=0x%08x lr=0x%016x ctr=0x%016x\n", th.PC, th.LR, th.CTR)
	for i := 0; i < 32; i += 4 {
		fmt.Fprintf(&b, "r%d=0x%016x r%d=0x%016x r%d=0x%016x r%d=0x%016x\n",
			i, th.GPR[i], i+1, th.GPR[i+1], i+2, th.GPR[i+2], i+3, th.GPR[i+3])
	}
	return b.String(), nil
}

func (c *Console) cmdBreak(args []string) (string, error) {
	th, addr, err := c.resolveWithAddr(args)
	if err != nil {
		return "", err
	}
	th.Breakpoints = append(th.Breakpoints, &ppu.Breakpoint{Addr: addr, Enabled: true, CondGPR: -1})
	return fmt.Sprintf("breakpoint set at 0x%08x", addr), nil
}

func (c *Console) cmdClear(args []string) (string, error) {
	th, addr, err := c.resolveWithAddr(args)
	if err != nil {
		return "", err
	}
	kept := th.Breakpoints[:0]
	for _, bp := range th.Breakpoints {
		if bp.Addr != addr {
			kept = append(kept, bp)
		}
	}
	th.Breakpoints = kept
	return fmt.Sprintf("breakpoint at 0x%08x cleared", addr), nil
}

func (c *Console) cmdStep(args []string) (string, error) {
	th, err := c.resolve(args)
	if err != nil {
		return "", err
	}
	reason := th.Dispatch(1)
	return fmt.Sprintf("stopped: kind=%d pc=0x%08x", reason.Kind, th.PC), nil
}

func (c *Console) cmdDump(args []string) (string, error) {
	if c.fabric == nil {
		return "", errors.New("no memory fabric attached to this console")
	}
	if len(args) != 2 {
		return "", errors.New("expected an address and a byte count")
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 32)
	if err != nil {
		return "", fmt.Errorf("invalid address %q", args[0])
	}
	count, err := strconv.Atoi(args[1])
	if err != nil || count <= 0 {
		return "", fmt.Errorf("invalid byte count %q", args[1])
	}

	var b strings.Builder
	for off := 0; off < count; off += 16 {
		n := count - off
		if n > 16 {
			n = 16
		}
		row, err := c.fabric.ReadBytes(uint32(addr)+uint32(off), uint32(n))
		if err != nil {
			return b.String(), fmt.Errorf("read at 0x%08x: %w", uint32(addr)+uint32(off), err)
		}
		fmt.Fprintf(&b, "%08x  ", uint32(addr)+uint32(off))
		hexfmt.FormatBytes(&b, true, row)
		fmt.Fprintf(&b, " %s\n", hexfmt.ASCII(row))
	}
	return b.String(), nil
}

func (c *Console) cmdQuit(_ []string) (string, error) {
	return "", errQuit
}

func (c *Console) resolve(args []string) (*ppu.Thread, error) {
	if len(args) != 1 {
		return nil, errors.New("expected a thread id")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("invalid thread id %q", args[0])
	}
	th, ok := c.threads[scheduler.ThreadID(n)]
	if !ok {
		return nil, fmt.Errorf("no such thread: %d", n)
	}
	return th, nil
}

func (c *Console) resolveWithAddr(args []string) (*ppu.Thread, uint32, error) {
	if len(args) != 2 {
		return nil, 0, errors.New("expected a thread id and an address")
	}
	th, err := c.resolve(args[:1])
	if err != nil {
		return nil, 0, err
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(args[1], "0x"), 16, 32)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid address %q", args[1])
	}
	return th, uint32(addr), nil
}

// Run drives an interactive liner prompt until the user quits or
// aborts with Ctrl-C, printing each command's reply to stdout.
func Run(c *Console) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt("cellrun> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}
			slog.Error("debug console read failed", "error", err)
			return err
		}
		line.AppendHistory(input)

		reply, err := c.Process(input)
		if err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Println("error: " + err.Error())
			continue
		}
		if reply != "" {
			fmt.Print(reply)
		}
	}
}

// Package mfc implements the SPU Channel file and Memory Flow
// Controller: the 32-entry channel FIFO array per SPU (mailboxes,
// signals, tag status) and the DMA command queue that moves data
// between local storage and the shared memory.Fabric.
//
// The channel FIFOs are grounded on the teacher's per-subchannel
// control structure (rcornwell-S370 emu/sys_channel/channel.go's
// chanCtl busy/status bookkeeping), generalized from "one CCW chain
// per subchannel" to "one bounded FIFO per named channel".
package mfc

// Channel names, per the data model's channel file.
const (
	ChanInboundMbox = iota
	ChanOutboundMbox
	ChanOutboundIntrMbox
	ChanEventMask
	ChanEventAck
	ChanSignal1
	ChanSignal2
	ChanDecrementer
	ChanMfcCmdOpcode // writes here atomically commit queued MFC params as a command.
	ChanMfcWriteTagMask
	ChanMfcReadTagStatus // read-only, derived from the Queue.
	ChanMfcAtomicStatus

	// Parameter channels backing the MFC command being assembled.
	ChanMfcLSA
	ChanMfcEAH
	ChanMfcEAL
	ChanMfcSize
	ChanMfcTag

	numNamedChannels
	ChannelCount = 32
)

// StallReason identifies why an SPU dispatch suspended on a channel
// operation.
type StallReason struct {
	Read    bool // true for rdch, false for wrch
	Channel int
}

// depthOf returns the bounded-FIFO depth for a channel, per the data
// model (Inbound Mailbox 4, Outbound/Interrupt mailbox 1, every other
// named channel 1; the unnamed channel numbers default to depth 4).
func depthOf(ch int) int {
	switch ch {
	case ChanInboundMbox:
		return 4
	case ChanOutboundMbox, ChanOutboundIntrMbox:
		return 1
	case ChanEventMask, ChanEventAck, ChanSignal1, ChanSignal2, ChanDecrementer:
		return 1
	case ChanMfcWriteTagMask, ChanMfcReadTagStatus, ChanMfcAtomicStatus:
		return 1
	case ChanMfcCmdOpcode, ChanMfcLSA, ChanMfcEAH, ChanMfcEAL, ChanMfcSize, ChanMfcTag:
		return 1
	default:
		return 4
	}
}

// fifo is a small bounded ring buffer.
type fifo struct {
	buf   []uint32
	depth int
}

func newFIFO(depth int) *fifo {
	return &fifo{buf: make([]uint32, 0, depth), depth: depth}
}

func (f *fifo) push(v uint32) bool {
	if len(f.buf) >= f.depth {
		return false
	}
	f.buf = append(f.buf, v)
	return true
}

func (f *fifo) pop() (uint32, bool) {
	if len(f.buf) == 0 {
		return 0, false
	}
	v := f.buf[0]
	f.buf = f.buf[1:]
	return v, true
}

func (f *fifo) count() int { return len(f.buf) }

// ChannelFile is the 32-entry channel array belonging to one SPU.
type ChannelFile struct {
	channels [ChannelCount]*fifo
	queue    *Queue
}

// NewChannelFile constructs a channel file bound to queue, which
// supplies derived values for the read-only tag-status/atomic-status
// channels.
func NewChannelFile(queue *Queue) *ChannelFile {
	cf := &ChannelFile{queue: queue}
	for i := range cf.channels {
		cf.channels[i] = newFIFO(depthOf(i))
	}
	return cf
}

// Read implements rdch: dequeues if non-empty, else reports a stall
// for the caller (the SPU interpreter) to suspend on.
func (cf *ChannelFile) Read(ch int) (value uint32, stall *StallReason) {
	if ch == ChanMfcReadTagStatus {
		return cf.queue.TagStatusMask(), nil
	}
	if ch == ChanMfcAtomicStatus {
		v, _ := cf.channels[ch].pop()
		return v, nil
	}
	v, ok := cf.channels[ch].pop()
	if !ok {
		return 0, &StallReason{Read: true, Channel: ch}
	}
	return v, nil
}

// eventAckDecrementer is this core's own encoding for "the decrementer
// reached zero" posted into ChanEventAck — it is not the architectural
// SPU event-status bit layout, just a single-bit signal this channel
// file and its wakeup path agree on.
const eventAckDecrementer uint32 = 1

// Write implements wrch. A write to ChanMfcCmdOpcode atomically
// commits the preceding LSA/EAH/EAL/Size/Tag parameter writes as one
// queued MfcCommand. A write to ChanDecrementer additionally schedules
// a wakeup: once value cycles of queue time pass, ChanEventAck is
// posted so a thread blocked on rdch ChanEventAck resumes.
func (cf *ChannelFile) Write(ch int, value uint32) (stall *StallReason) {
	if ch == ChanDecrementer {
		if !cf.channels[ch].push(value) {
			return &StallReason{Read: false, Channel: ch}
		}
		cf.queue.ScheduleWakeup(int64(value), uint8(eventAckDecrementer), func(tag uint8) {
			cf.PostSignal(ChanEventAck, uint32(tag))
		})
		return nil
	}
	if ch == ChanMfcCmdOpcode {
		cmd := Command{
			Opcode: Opcode(value),
			LSA:    cf.paramPeek(ChanMfcLSA),
			EA:     uint64(cf.paramPeek(ChanMfcEAH))<<32 | uint64(cf.paramPeek(ChanMfcEAL)),
			Size:   cf.paramPeek(ChanMfcSize),
			Tag:    uint8(cf.paramPeek(ChanMfcTag) & 0x1F),
		}
		if !cf.queue.Issue(cmd) {
			return &StallReason{Read: false, Channel: ch}
		}
		return nil
	}
	if ch == ChanMfcLSA || ch == ChanMfcEAH || ch == ChanMfcEAL || ch == ChanMfcSize || ch == ChanMfcTag {
		cf.PostSignal(ch, value)
		return nil
	}
	if !cf.channels[ch].push(value) {
		return &StallReason{Read: false, Channel: ch}
	}
	return nil
}

// Count implements rchcnt: FIFO occupancy without stalling.
func (cf *ChannelFile) Count(ch int) uint32 {
	if ch == ChanMfcReadTagStatus {
		return 1
	}
	return uint32(cf.channels[ch].count())
}

// paramPeek reads the most recent parameter write without consuming
// it — parameter channels act as latches, not FIFOs, for the purposes
// of command assembly.
func (cf *ChannelFile) paramPeek(ch int) uint32 {
	f := cf.channels[ch]
	if len(f.buf) == 0 {
		return 0
	}
	return f.buf[len(f.buf)-1]
}

// PostMailbox delivers a value from the PPU side into the SPU's
// inbound mailbox (used by the external MMIO write path).
func (cf *ChannelFile) PostMailbox(value uint32) bool {
	return cf.channels[ChanInboundMbox].push(value)
}

// PostSignal replaces a signal-notification channel's latched value,
// or sets it when the channel is empty. Only replace mode is modeled:
// there is no OR mode that merges the new value with the latched one.
func (cf *ChannelFile) PostSignal(ch int, value uint32) {
	f := cf.channels[ch]
	if len(f.buf) == 0 {
		f.buf = append(f.buf, value)
		return
	}
	f.buf[0] = value
}

// PostAtomicStatus records an MFC atomic/transfer error for the SPU
// to observe via the MFC Atomic Status channel.
func (cf *ChannelFile) PostAtomicStatus(code uint32) {
	cf.channels[ChanMfcAtomicStatus].push(code)
}

package mfc

// eventList is a delta-time ordered linked list of pending callbacks,
// generalized from the teacher's emu/event/event.go: each node stores
// its time as a delta from the node before it, so advancing the clock
// by t cycles is an O(1) decrement on the head plus firing whatever
// now has delta<=0. Unlike the teacher's package-global list, this one
// is owned per-Queue so multiple SPUs don't share a clock.
type eventCallback func(tag uint8)

type eventNode struct {
	delta int64
	tag   uint8
	cb    eventCallback
	prev  *eventNode
	next  *eventNode
}

type eventList struct {
	head *eventNode
	tail *eventNode
}

// add schedules cb to fire after ticks cycles from now.
func (el *eventList) add(ticks int64, tag uint8, cb eventCallback) {
	if ticks <= 0 {
		cb(tag)
		return
	}
	ev := &eventNode{delta: ticks, tag: tag, cb: cb}

	cur := el.head
	if cur == nil {
		el.head = ev
		el.tail = ev
		return
	}
	for cur != nil {
		if ev.delta <= cur.delta {
			cur.delta -= ev.delta
			ev.prev = cur.prev
			ev.next = cur
			cur.prev = ev
			if ev.prev != nil {
				ev.prev.next = ev
			} else {
				el.head = ev
			}
			return
		}
		ev.delta -= cur.delta
		cur = cur.next
	}
	ev.prev = el.tail
	el.tail.next = ev
	el.tail = ev
}

// advance moves the clock forward by t cycles, firing every event
// whose delta reaches zero or below, in order.
func (el *eventList) advance(t int64) {
	cur := el.head
	if cur == nil {
		return
	}
	cur.delta -= t
	for cur != nil && cur.delta <= 0 {
		over := cur.delta // overshoot past this event, carried to the next
		cur.cb(cur.tag)
		el.head = cur.next
		if el.head != nil {
			el.head.prev = nil
		} else {
			el.tail = nil
		}
		cur = el.head
		if cur != nil {
			cur.delta += over
		}
	}
}

// pending reports whether any event remains scheduled.
func (el *eventList) pending() bool {
	return el.head != nil
}

package control

import (
	"context"
	"errors"
	"sync"
)

// ErrChannelClosed is returned by Listener.WaitContext once the event channel is closed.
var ErrChannelClosed = errors.New("control: event channel closed")

// EventChannel is the runner's outgoing event log.
//
// Delivery is broadcast: every Listener sees every event sent after it was
// created, in send order. Each listener consumes its events once through Pop.
// Events already popped by every listener are dropped from the log.
//
// Waiting uses a sync.Cond bound to the same mutex as Send and Pop, so a
// listener cannot miss a wake-up between checking and sleeping.
type EventChannel struct {
	mu        sync.Mutex
	cond      *sync.Cond
	events    []Event
	base      uint64 // sequence number of events[0]
	listeners map[*Listener]struct{}
	closed    bool
}

// NewEventChannel creates an event channel with no listeners.
func NewEventChannel() *EventChannel {
	ch := &EventChannel{listeners: make(map[*Listener]struct{})}
	ch.cond = sync.NewCond(&ch.mu)
	return ch
}

// Send appends an event and wakes every waiting listener.
// Only the runner sends events.
func (c *EventChannel) Send(ev Event) {
	ev.MustValid()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if len(c.listeners) == 0 {
		// Nobody can ever read it.
		c.base++
		return
	}
	c.events = append(c.events, ev)
	c.cond.Broadcast()
}

// Listen registers a new listener positioned at the end of the log.
func (c *EventChannel) Listen() *Listener {
	c.mu.Lock()
	defer c.mu.Unlock()

	l := &Listener{ch: c, next: c.tail()}
	if !c.closed {
		c.listeners[l] = struct{}{}
	}
	return l
}

// Clear discards every buffered event for every listener.
func (c *EventChannel) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	tail := c.tail()
	for l := range c.listeners {
		l.next = tail
	}
	c.events = nil
	c.base = tail
}

// Close wakes every waiter; later sends are ignored.
// Events still buffered can be popped.
func (c *EventChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.cond.Broadcast()
}

// Listeners returns the number of registered listeners.
func (c *EventChannel) Listeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

func (c *EventChannel) tail() uint64 {
	return c.base + uint64(len(c.events))
}

// compact drops the prefix every listener has consumed. Caller holds mu.
func (c *EventChannel) compact() {
	low := c.tail()
	for l := range c.listeners {
		if l.next < low {
			low = l.next
		}
	}
	drop := int(low - c.base)
	if drop == 0 {
		return
	}
	c.events = append([]Event(nil), c.events[drop:]...)
	c.base = low
}

// Listener is one reader's cursor into an EventChannel.
// A listener may be shared between goroutines; each event is then popped by
// exactly one of them.
type Listener struct {
	ch     *EventChannel
	next   uint64 // sequence number of the next unread event
	closed bool
}

// pending returns the number of unread events. Caller holds ch.mu.
func (l *Listener) pending() int {
	if l.closed {
		return 0
	}
	return int(l.ch.tail() - l.next)
}

// Pop drains and returns this listener's unread events, oldest first.
// A second Pop with no send in between returns an empty slice.
func (l *Listener) Pop() []Event {
	c := l.ch
	c.mu.Lock()
	defer c.mu.Unlock()

	n := l.pending()
	if n == 0 {
		return nil
	}
	start := int(l.next - c.base)
	out := make([]Event, n)
	copy(out, c.events[start:])
	l.next = c.tail()
	c.compact()
	return out
}

// Pending returns the number of events Pop would return.
func (l *Listener) Pending() int {
	l.ch.mu.Lock()
	defer l.ch.mu.Unlock()
	return l.pending()
}

// Wait blocks until an event is pending, or the channel or listener is closed.
func (l *Listener) Wait() {
	c := l.ch
	c.mu.Lock()
	defer c.mu.Unlock()

	for l.pending() == 0 && !c.closed && !l.closed {
		c.cond.Wait()
	}
}

// WaitContext is Wait with cancellation. It returns nil when an event is
// pending, ctx.Err() when ctx is done, and ErrChannelClosed when the channel
// (or this listener) is closed with nothing pending.
func (l *Listener) WaitContext(ctx context.Context) error {
	c := l.ch
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.cond.Broadcast()
	})
	defer stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	for l.pending() == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.closed || l.closed {
			return ErrChannelClosed
		}
		c.cond.Wait()
	}
	return nil
}

// Close unregisters the listener and wakes its waiters.
func (l *Listener) Close() {
	c := l.ch
	c.mu.Lock()
	defer c.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	delete(c.listeners, l)
	c.compact()
	c.cond.Broadcast()
}

package control

import (
	"log/slog"
	"sync"
)

// CommandChannel is an unbounded many-producer, single-consumer FIFO of Commands.
//
// Send never blocks on the consumer and reports nothing to the producer.
// Delivery is best effort: once the channel is closed (the runner has
// exited) commands are accepted and silently dropped.
//
// Producers serialize on a token separate from the queue lock. Lock hands the
// token out so a producer can send a sequence of commands without another
// producer's commands interleaving; plain Send takes it for a single enqueue.
type CommandChannel struct {
	sendMu sync.Mutex // producer token

	mu       sync.Mutex
	commands []Command
	closed   bool
	signal   chan struct{} // buffered, size 1

	logger *slog.Logger
}

// NewCommandChannel creates an empty command channel.
func NewCommandChannel(logger *slog.Logger) *CommandChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandChannel{
		commands: make([]Command, 0, 16),
		signal:   make(chan struct{}, 1),
		logger:   logger,
	}
}

// Send enqueues a command for the runner.
// Safe for concurrent use; commands from one goroutine stay in order.
func (c *CommandChannel) Send(cmd Command) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.enqueue(cmd)
}

// Lock acquires the producer token and returns a session holding it.
// Release the session when done, usually with defer:
//
//	s := ch.Lock()
//	defer s.Release()
//	s.Send(control.Reset(cfg))
//	s.Send(control.Run())
//
// Do not block on the event channel while holding the token.
func (c *CommandChannel) Lock() *SendSession {
	c.sendMu.Lock()
	return &SendSession{ch: c}
}

func (c *CommandChannel) enqueue(cmd Command) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.logger.Debug("command dropped, runner has exited", "command", cmd.String())
		return
	}

	c.commands = append(c.commands, cmd)

	// Non-blocking: the buffer of 1 coalesces wake-ups.
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// Drain removes and returns every queued command, oldest first.
// Consumer only. Returns nil if the queue is empty.
func (c *CommandChannel) Drain() []Command {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.commands) == 0 {
		return nil
	}
	out := c.commands
	c.commands = make([]Command, 0, cap(out))
	return out
}

// Wait returns a channel that signals when commands may be available.
// Wake-ups are coalesced and may be spurious; drain after every receive.
func (c *CommandChannel) Wait() <-chan struct{} {
	return c.signal
}

// Len returns the number of queued commands.
func (c *CommandChannel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.commands)
}

// Closed reports whether Close was called.
func (c *CommandChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close stops accepting commands and discards the ones still queued.
// Wakes a blocked consumer.
func (c *CommandChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if n := len(c.commands); n > 0 {
		c.logger.Debug("discarding undelivered commands", "count", n)
	}
	c.closed = true
	c.commands = nil
	close(c.signal)
}

// SendSession holds a CommandChannel's producer token.
// It is owned by the goroutine that called Lock and must not be shared.
type SendSession struct {
	ch       *CommandChannel
	released bool
}

// Send enqueues a command while holding the token.
// Panics if the session was released.
func (s *SendSession) Send(cmd Command) {
	if s.released {
		panic("control: Send on released SendSession")
	}
	s.ch.enqueue(cmd)
}

// Release gives the token back. Calling it more than once is a no-op.
func (s *SendSession) Release() {
	if s.released {
		return
	}
	s.released = true
	s.ch.sendMu.Unlock()
}

package control

import (
	"context"
	"log/slog"
	"sync"
)

// Session owns one engine's control plane: the three gateways, the pause
// flag and the runner goroutine. It is constructed explicitly and shared by
// reference with the foreground actors that need it.
type Session struct {
	commands *CommandChannel
	events   *EventChannel
	frames   *FrameBuffer
	pause    *PauseFlag
	runner   *Runner
	logger   *slog.Logger

	startOnce sync.Once
	done      chan struct{}
	err       error // set before done is closed
}

// SessionOption configures a Session.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	logger *slog.Logger
	runner []RunnerOption
}

// WithLogger sets the logger used by the session, its command channel and
// its runner. Default: slog.Default().
func WithLogger(logger *slog.Logger) SessionOption {
	return func(o *sessionOptions) {
		o.logger = logger
	}
}

// WithRunnerOptions passes options through to the runner.
func WithRunnerOptions(opts ...RunnerOption) SessionOption {
	return func(o *sessionOptions) {
		o.runner = append(o.runner, opts...)
	}
}

// NewSession creates a session around engine. The runner is not started.
func NewSession(engine Engine, opts ...SessionOption) *Session {
	o := sessionOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		commands: NewCommandChannel(o.logger),
		events:   NewEventChannel(),
		frames:   NewFrameBuffer(),
		pause:    &PauseFlag{},
		logger:   o.logger,
		done:     make(chan struct{}),
	}
	runnerOpts := append([]RunnerOption{WithRunnerLogger(o.logger)}, o.runner...)
	s.runner = NewRunner(engine, s.commands, s.events, s.frames, s.pause, runnerOpts...)
	return s
}

// Start launches the runner goroutine. Calls after the first are no-ops.
// Cancelling ctx stops the runner as if Exit had been sent.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go func() {
			err := s.runner.Run(ctx)
			s.finish(err)
		}()
	})
}

func (s *Session) finish(err error) {
	s.commands.Close()
	s.events.Close()
	s.err = err
	close(s.done)
}

// Shutdown sends Exit and waits for the runner to return, or for ctx.
// A session that was never started closes its engine directly.
// Returns the runner's error, or ctx.Err() if the wait was cut short.
func (s *Session) Shutdown(ctx context.Context) error {
	s.startOnce.Do(func() {
		s.logger.Debug("session shut down before start")
		s.finish(s.runner.engine.Close())
	})

	s.commands.Send(Exit())

	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the runner has returned and the channels are closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the runner's error once Done is closed, nil before.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Send enqueues a command. See CommandChannel.Send.
func (s *Session) Send(cmd Command) {
	s.commands.Send(cmd)
}

// Lock acquires the producer token. See CommandChannel.Lock.
func (s *Session) Lock() *SendSession {
	return s.commands.Lock()
}

// RequestPause raises the pause flag. Safe from signal-handling goroutines.
func (s *Session) RequestPause() {
	s.pause.Request()
}

// Listen registers a new event listener.
func (s *Session) Listen() *Listener {
	return s.events.Listen()
}

// Commands returns the command channel.
func (s *Session) Commands() *CommandChannel { return s.commands }

// Events returns the event channel.
func (s *Session) Events() *EventChannel { return s.events }

// Frames returns the frame buffer.
func (s *Session) Frames() *FrameBuffer { return s.frames }

// State returns the runner's last run state.
func (s *Session) State() RunState { return s.runner.State() }

// Loaded reports whether the engine holds a cartridge that reset cleanly.
func (s *Session) Loaded() bool { return s.runner.Loaded() }

// Advances returns the number of frames advanced so far.
func (s *Session) Advances() uint64 { return s.runner.Advances() }

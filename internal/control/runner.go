package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Runner is the run-state machine. It owns the Engine exclusively.
//
// CRITICAL: Run must be called from exactly ONE goroutine. That goroutine is
// the only one that calls into the engine or changes the run state.
//
// Thread-safety model:
//   - Run(): one dedicated goroutine
//   - State(), Advances(): safe from any goroutine, informational only
//   - everything else reaches the runner through its channels and pause flag
//
// Loop, once per iteration:
//  1. Drain every queued command and apply them in order.
//  2. Test-and-clear the pause flag. A raised flag pauses the engine unless a
//     Run or Pause command was applied in the same iteration; explicit
//     commands win and the request is dropped.
//  3. Unless running, block until a command arrives.
//  4. Advance the engine by one frame and publish the frame.
//
// The loop is the pacing mechanism: one advance per iteration, no timer.
// Callers that need wall-clock pacing rate-limit on their side.
type Runner struct {
	engine   Engine
	commands *CommandChannel
	events   *EventChannel
	frames   *FrameBuffer
	pause    *PauseFlag
	logger   *slog.Logger

	cyclesPerFrame uint64
	frameLimit     uint64

	// loaded is false until the engine accepted a Reset. Written by the
	// runner goroutine only.
	loaded   atomic.Bool
	state    atomic.Int32
	advances atomic.Uint64
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets the logger. Default: slog.Default().
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithCyclesPerFrame overrides the cycles advanced per iteration.
// Default: CyclesPerFrame.
func WithCyclesPerFrame(cycles uint64) RunnerOption {
	return func(r *Runner) {
		r.cyclesPerFrame = cycles
	}
}

// WithFrameLimit pauses the runner once the engine has advanced n frames in
// total. A later Run advances one more frame and pauses again.
// Default: 0, no limit.
func WithFrameLimit(n uint64) RunnerOption {
	return func(r *Runner) {
		r.frameLimit = n
	}
}

// NewRunner creates a runner over the given engine and gateways.
func NewRunner(
	engine Engine,
	commands *CommandChannel,
	events *EventChannel,
	frames *FrameBuffer,
	pause *PauseFlag,
	opts ...RunnerOption,
) *Runner {
	r := &Runner{
		engine:         engine,
		commands:       commands,
		events:         events,
		frames:         frames,
		pause:          pause,
		logger:         slog.Default(),
		cyclesPerFrame: CyclesPerFrame,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the last run state. Informational: by the time the caller
// looks at it the runner may have moved on.
func (r *Runner) State() RunState {
	return RunState(r.state.Load())
}

// Loaded reports whether the engine accepted its last Reset. A runner that
// is not loaded ignores Run. Informational, like State.
func (r *Runner) Loaded() bool {
	return r.loaded.Load()
}

// Advances returns the number of frames the engine has been advanced.
func (r *Runner) Advances() uint64 {
	return r.advances.Load()
}

// Run executes the loop until an Exit command, a closed command channel, or
// ctx cancellation. It returns nil on Exit and ctx.Err() on cancellation.
// The engine is closed on every return path.
func (r *Runner) Run(ctx context.Context) (err error) {
	defer func() {
		r.state.Store(int32(StateExited))
		if cerr := r.engine.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close engine: %w", cerr)
		}
		r.logger.Info("runner stopped", "frames", r.Advances())
	}()

	r.logger.Info("runner started", "cycles_per_frame", r.cyclesPerFrame)
	r.events.Send(EventStarted)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		exit, explicit := r.drain()
		if exit {
			return nil
		}

		if r.pause.TakeRequest() {
			if explicit {
				r.logger.Debug("pause request dropped, explicit run/pause command in same iteration")
			} else {
				r.logger.Debug("pause requested")
				r.pauseEngine()
			}
		}

		if r.State() != StateRunning {
			if r.commands.Len() > 0 {
				continue
			}
			if r.commands.Closed() {
				r.logger.Debug("command channel closed")
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.commands.Wait():
			}
			continue
		}

		r.advance()
	}
}

// drain applies every queued command. It reports whether an Exit was seen
// and whether a Run or Pause command was applied.
func (r *Runner) drain() (exit, explicit bool) {
	cmds := r.commands.Drain()
	for i, cmd := range cmds {
		switch cmd.Kind {
		case CommandExit:
			if rest := len(cmds) - i - 1; rest > 0 {
				r.logger.Debug("dropping commands queued after exit", "count", rest)
			}
			r.logger.Info("exit requested")
			return true, explicit
		case CommandReset:
			r.reset(cmd)
		case CommandRun:
			explicit = true
			r.runEngine()
		case CommandPause:
			explicit = true
			r.pauseEngine()
		case CommandKey:
			r.engine.SetKey(cmd.Key, cmd.Pressed)
		default:
			panic(fmt.Sprintf("control: unknown command kind %d", int(cmd.Kind)))
		}
	}
	return false, explicit
}

func (r *Runner) reset(cmd Command) {
	if cmd.Config == nil {
		r.logger.Warn("reset without configuration ignored")
		return
	}
	if err := r.engine.Reset(cmd.Config); err != nil {
		r.logger.Error("engine reset failed", "error", err)
		r.loaded.Store(false)
		r.pauseEngine()
		return
	}

	r.loaded.Store(true)
	if r.State() == StateUninitialized {
		r.state.Store(int32(StatePaused))
	}
	r.logger.Debug("engine reset", "state", r.State().String())
	r.events.Send(EventReset)
}

func (r *Runner) runEngine() {
	if !r.loaded.Load() {
		r.logger.Warn("run ignored, engine has not been reset")
		return
	}
	r.transition(StateRunning, EventRunning)
}

func (r *Runner) pauseEngine() {
	if r.State() == StateUninitialized {
		r.logger.Debug("pause ignored, engine has not been reset")
		return
	}
	r.transition(StatePaused, EventPaused)
}

// transition moves to the given state and reports it. Repeating the current
// state reports nothing.
func (r *Runner) transition(to RunState, ev Event) {
	from := r.State()
	if from == to {
		return
	}
	r.state.Store(int32(to))
	r.logger.Debug("run state changed", "from", from.String(), "to", to.String())
	r.events.Send(ev)
}

func (r *Runner) advance() {
	r.engine.Advance(r.cyclesPerFrame)
	r.frames.Publish(r.engine.Frame())
	n := r.advances.Add(1)

	if r.frameLimit > 0 && n >= r.frameLimit {
		r.logger.Info("frame limit reached", "frames", n)
		r.pauseEngine()
	}
}

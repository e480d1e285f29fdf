package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/hades/internal/config"
	"github.com/roach88/hades/internal/control"
	"github.com/roach88/hades/internal/journal"
	"github.com/roach88/hades/internal/store"
	"github.com/roach88/hades/internal/testutil"
)

// DefaultTimeout bounds each blocking step and the final shutdown.
const DefaultTimeout = 5 * time.Second

// epoch is the start of every scenario's deterministic wall clock.
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type options struct {
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures Run.
type Option func(*options)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithLogger sets the logger passed to the session and recorder.
// Scenarios run silently by default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Harness holds the per-scenario session and the events observed so far.
type Harness struct {
	session *control.Session
	engine  *testutil.FakeEngine
	config  *config.Config
	timeout time.Duration

	observer *control.Listener
	seen     []control.Event // observed but not yet matched by wait_for
}

// Run executes a scenario against a fresh session over a fake engine and
// returns the result.
//
// Each scenario records its journal into a fresh in-memory database with a
// deterministic clock and a fixed session id, so the trace is identical
// across runs for golden comparison. Step and assertion failures are
// reported in the Result; the error return is for harness failures.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{
		timeout: DefaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewDeterministicClock(epoch, time.Millisecond)
	sessionID := testutil.FixedSessionID(scenario.SessionID).Generate()
	if err := st.CreateSession(ctx, store.SessionRecord{
		ID:        sessionID,
		ROMPath:   "scenario:" + scenario.Name,
		GameCode:  "TEST",
		Title:     scenario.Name,
		StartedAt: clock.Now(),
	}); err != nil {
		return nil, err
	}

	cfg, err := config.NewBuilder().ROM([]byte(scenario.Name)).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}

	var runnerOpts []control.RunnerOption
	if scenario.FrameLimit > 0 {
		runnerOpts = append(runnerOpts, control.WithFrameLimit(scenario.FrameLimit))
	}
	engine := testutil.NewFakeEngine()
	sess := control.NewSession(engine,
		control.WithLogger(o.logger),
		control.WithRunnerOptions(runnerOpts...))

	rec := journal.NewRecorder(st, sessionID,
		journal.WithNow(clock.Now),
		journal.WithFrameCounter(sess.Frames().Frames),
		journal.WithLogger(o.logger))
	recorded := make(chan error, 1)
	recListener := sess.Listen()
	go func() { recorded <- rec.Run(ctx, recListener) }()

	h := &Harness{
		session:  sess,
		engine:   engine,
		config:   cfg,
		timeout:  o.timeout,
		observer: sess.Listen(),
	}
	defer h.observer.Close()

	sess.Start(ctx)

	result := NewResult()
	result.SessionID = sessionID
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, step); err != nil {
			result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
			break
		}
	}
	result.FinalState = sess.State().String()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	if err := sess.Shutdown(shutdownCtx); err != nil {
		return nil, fmt.Errorf("session shutdown: %w", err)
	}
	if err := <-recorded; err != nil {
		return nil, fmt.Errorf("journal recorder: %w", err)
	}
	result.Advances = sess.Advances()

	if err := st.EndSession(ctx, sessionID, clock.Now()); err != nil {
		return nil, err
	}
	transitions, err := st.ListTransitions(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, tr := range transitions {
		result.Trace = append(result.Trace, TraceEvent{Seq: tr.Seq, Event: tr.Event})
	}

	actx := &AssertionContext{Store: st, Ctx: ctx, SessionID: sessionID}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) execute(ctx context.Context, step Step) error {
	kind, err := step.kind()
	if err != nil {
		return err
	}

	switch kind {
	case StepSend:
		cmd, err := commandFor(step, h.config)
		if err != nil {
			return err
		}
		h.session.Send(cmd)

	case StepBatch:
		cmds := make([]control.Command, 0, len(step.Batch))
		for _, inner := range step.Batch {
			cmd, err := commandFor(inner, h.config)
			if err != nil {
				return err
			}
			cmds = append(cmds, cmd)
		}
		s := h.session.Lock()
		for _, cmd := range cmds {
			s.Send(cmd)
		}
		s.Release()

	case StepRequestPause:
		h.session.RequestPause()

	case StepFailResets:
		if *step.FailResets {
			h.engine.FailResets(errors.New("reset rejected by scenario"))
		} else {
			h.engine.FailResets(nil)
		}

	case StepWaitFor:
		ev, err := control.ParseEvent(step.WaitFor)
		if err != nil {
			return err
		}
		return h.waitFor(ctx, ev)

	case StepExpectState:
		want, err := control.ParseRunState(step.ExpectState)
		if err != nil {
			return err
		}
		return h.poll(ctx, func() (bool, string) {
			got := h.session.State()
			return got == want, fmt.Sprintf("expect_state: want %s, got %s", want, got)
		})

	case StepExpectAdvancesAtLeast:
		want := *step.ExpectAdvancesAtLeast
		return h.poll(ctx, func() (bool, string) {
			got := h.session.Advances()
			return got >= want, fmt.Sprintf("expect_advances_at_least: want >= %d, got %d", want, got)
		})
	}
	return nil
}

// waitFor consumes observed events up to and including the first want.
func (h *Harness) waitFor(ctx context.Context, want control.Event) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	for {
		for i, ev := range h.seen {
			if ev == want {
				h.seen = h.seen[i+1:]
				return nil
			}
		}
		h.seen = h.seen[:0]

		if err := h.observer.WaitContext(ctx); err != nil {
			return fmt.Errorf("wait_for %s: %w", want, err)
		}
		for _, ev := range h.observer.Pop() {
			h.seen = append(h.seen, ev.MustValid())
		}
	}
}

// poll checks cond every millisecond until it holds or the step times out.
func (h *Harness) poll(ctx context.Context, cond func() (bool, string)) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		ok, msg := cond()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.New(msg)
		case <-ticker.C:
		}
	}
}

// commandFor converts a send step into a command. cfg may be nil when only
// validating.
func commandFor(step Step, cfg *config.Config) (control.Command, error) {
	switch strings.ToLower(step.Send) {
	case "run":
		return control.Run(), nil
	case "pause":
		return control.Pause(), nil
	case "exit":
		return control.Exit(), nil
	case "reset":
		return control.Reset(cfg), nil
	case "key":
		key, err := control.ParseKey(step.Key)
		if err != nil {
			return control.Command{}, err
		}
		switch strings.ToLower(step.State) {
		case "down":
			return control.KeyInput(key, true), nil
		case "up":
			return control.KeyInput(key, false), nil
		default:
			return control.Command{}, fmt.Errorf("key state must be up or down, not %q", step.State)
		}
	default:
		return control.Command{}, fmt.Errorf("unknown command %q", step.Send)
	}
}

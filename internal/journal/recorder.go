package journal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/hades/internal/control"
	"github.com/roach88/hades/internal/store"
)

// Sink persists recorded transitions. *store.Store implements it.
type Sink interface {
	AppendTransition(ctx context.Context, tr store.Transition) error
}

// Recorder persists a session's run-state events as journal transitions.
//
// Each event popped from the listener becomes one Transition stamped with the
// next seq from the recorder's Clock, the wall time, and the frame counter at
// the moment the event was observed.
type Recorder struct {
	sink      Sink
	sessionID string
	clock     *Clock
	now       func() time.Time
	frames    func() uint64
	logger    *slog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock continues an existing journal from clock's current seq.
func WithClock(clock *Clock) RecorderOption {
	return func(r *Recorder) {
		r.clock = clock
	}
}

// WithNow overrides the wall clock used for transition timestamps.
func WithNow(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// WithFrameCounter sets the source of the frame number stored with each
// transition, usually (*control.FrameBuffer).Frames.
func WithFrameCounter(frames func() uint64) RecorderOption {
	return func(r *Recorder) {
		r.frames = frames
	}
}

// WithLogger sets the recorder's logger.
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// NewRecorder creates a recorder writing transitions for sessionID to sink.
func NewRecorder(sink Sink, sessionID string, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		sink:      sink,
		sessionID: sessionID,
		clock:     NewClock(),
		now:       time.Now,
		frames:    func() uint64 { return 0 },
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run records events from l until ctx is done or the event channel closes.
// Returns nil when the channel closes and ctx.Err() on cancellation.
// Events still pending when the channel closes are recorded first.
func (r *Recorder) Run(ctx context.Context, l *control.Listener) error {
	defer l.Close()

	for {
		err := l.WaitContext(ctx)
		if errors.Is(err, control.ErrChannelClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, ev := range l.Pop() {
			r.record(ctx, ev)
		}
	}
}

// Seq returns the seq of the last recorded transition.
func (r *Recorder) Seq() int64 {
	return r.clock.Current()
}

func (r *Recorder) record(ctx context.Context, ev control.Event) {
	tr := store.Transition{
		SessionID: r.sessionID,
		Seq:       r.clock.Next(),
		Event:     ev.String(),
		Frame:     r.frames(),
		At:        r.now().UTC(),
	}
	if err := r.sink.AppendTransition(ctx, tr); err != nil {
		r.logger.Error("journal append failed",
			"session", r.sessionID,
			"seq", tr.Seq,
			"event", tr.Event,
			"error", err)
		return
	}
	r.logger.Debug("journal append", "session", r.sessionID, "seq", tr.Seq, "event", tr.Event)
}

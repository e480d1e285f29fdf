package control

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/hades/internal/config"
)

// fakeEngine records every call the runner makes. Frames are filled with a
// single byte value equal to the number of advances, so a torn frame shows
// up as a non-uniform buffer.
type fakeEngine struct {
	mu       sync.Mutex
	calls    []string
	resets   []*config.Config
	advances int
	cycles   uint64
	keys     map[Key]bool
	closed   int
	resetErr error
	frame    []byte

	// onAdvance runs on the runner goroutine after the n-th advance.
	onAdvance func(n int)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		keys:  make(map[Key]bool),
		frame: make([]byte, FrameSize),
	}
}

func (e *fakeEngine) Reset(cfg *config.Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resetErr != nil {
		e.calls = append(e.calls, "reset-failed")
		return e.resetErr
	}
	e.calls = append(e.calls, "reset")
	e.resets = append(e.resets, cfg)
	return nil
}

func (e *fakeEngine) Advance(cycles uint64) {
	e.mu.Lock()
	e.advances++
	e.cycles += cycles
	n := e.advances
	e.calls = append(e.calls, "advance")
	for i := range e.frame {
		e.frame[i] = byte(n)
	}
	hook := e.onAdvance
	e.mu.Unlock()

	if hook != nil {
		hook(n)
	}
}

func (e *fakeEngine) SetKey(key Key, pressed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, fmt.Sprintf("key %s %t", key, pressed))
	e.keys[key] = pressed
}

func (e *fakeEngine) Frame() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed++
	return nil
}

func (e *fakeEngine) Advances() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.advances
}

func (e *fakeEngine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.calls)
}

func (e *fakeEngine) Resets() []*config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.resets)
}

func (e *fakeEngine) Closed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, tag byte) *config.Config {
	t.Helper()
	cfg, err := config.NewBuilder().ROM([]byte{tag}).Build()
	require.NoError(t, err)
	return cfg
}

// startSession starts a session over engine and shuts it down at test end.
// The returned listener was registered before the runner started.
func startSession(t *testing.T, engine Engine, opts ...RunnerOption) (*Session, *Listener) {
	t.Helper()
	sess := NewSession(engine, WithLogger(discardLogger()), WithRunnerOptions(opts...))
	l := sess.Listen()
	sess.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sess.Shutdown(ctx)
	})
	return sess, l
}

// collectUntil pops events until want shows up, returning everything popped.
func collectUntil(t *testing.T, l *Listener, want Event) []Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []Event
	for {
		require.NoError(t, l.WaitContext(ctx), "waiting for %s, got %v", want, got)
		batch := l.Pop()
		got = append(got, batch...)
		if slices.Contains(batch, want) {
			return got
		}
	}
}

func waitDone(t *testing.T, sess *Session) {
	t.Helper()
	select {
	case <-sess.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}
}

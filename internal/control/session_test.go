package control

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_ShutdownJoinsRunner(t *testing.T) {
	engine := newFakeEngine()
	sess := NewSession(engine, WithLogger(discardLogger()))
	l := sess.Listen()
	sess.Start(context.Background())
	sess.Start(context.Background())

	sess.Send(Reset(testConfig(t, 1)))
	sess.Send(Run())
	collectUntil(t, l, EventRunning)

	require.NoError(t, sess.Shutdown(context.Background()))
	select {
	case <-sess.Done():
	default:
		t.Fatal("done not closed after shutdown")
	}
	assert.Equal(t, StateExited, sess.State())
	assert.Equal(t, 1, engine.Closed())

	// Best effort: sends after exit are dropped.
	sess.Send(Run())
	assert.Equal(t, 0, sess.Commands().Len())

	// Waiters wake once the runner is gone.
	l.Pop()
	assert.ErrorIs(t, l.WaitContext(context.Background()), ErrChannelClosed)

	require.NoError(t, sess.Shutdown(context.Background()), "second shutdown")
	assert.Equal(t, 1, engine.Closed())
}

func TestSession_ShutdownBeforeStart(t *testing.T) {
	engine := newFakeEngine()
	sess := NewSession(engine, WithLogger(discardLogger()))

	assert.NoError(t, sess.Err())
	require.NoError(t, sess.Shutdown(context.Background()))
	assert.Equal(t, 1, engine.Closed())

	sess.Start(context.Background())
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, engine.Closed(), "start after shutdown is a no-op")
}

func TestSession_ShutdownTimeout(t *testing.T) {
	engine := newFakeEngine()
	block := make(chan struct{})
	engine.onAdvance = func(int) { <-block }
	defer close(block)

	sess := NewSession(engine, WithLogger(discardLogger()))
	l := sess.Listen()
	sess.Start(context.Background())
	sess.Send(Reset(testConfig(t, 1)))
	sess.Send(Run())
	collectUntil(t, l, EventRunning)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sess.Shutdown(ctx), context.DeadlineExceeded)
}

func TestSession_LockedSequence(t *testing.T) {
	engine := newFakeEngine()
	sess, l := startSession(t, engine, WithFrameLimit(1))

	func() {
		s := sess.Lock()
		defer s.Release()
		s.Send(Reset(testConfig(t, 1)))
		s.Send(Run())
	}()

	got := collectUntil(t, l, EventPaused)
	assert.Equal(t, []Event{EventStarted, EventReset, EventRunning, EventPaused}, got)
}

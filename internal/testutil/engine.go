package testutil

import (
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/hades/internal/config"
	"github.com/roach88/hades/internal/control"
)

// FakeEngine is a control.Engine that records every call made by the runner.
//
// Every advance fills the frame with one byte equal to the advance count,
// so frame digests change deterministically from frame to frame.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeEngine struct {
	mu       sync.Mutex
	calls    []string
	config   *config.Config
	advances int
	cycles   uint64
	keys     map[control.Key]bool
	closed   int
	resetErr error
	frame    []byte

	onAdvance func(n int)
}

// NewFakeEngine creates a fake engine with a blank frame.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		keys:  make(map[control.Key]bool),
		frame: make([]byte, control.FrameSize),
	}
}

// FailResets makes subsequent resets return err. A nil err restores success.
func (e *FakeEngine) FailResets(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetErr = err
}

// OnAdvance installs a hook run on the runner goroutine after the n-th advance.
func (e *FakeEngine) OnAdvance(hook func(n int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onAdvance = hook
}

func (e *FakeEngine) Reset(cfg *config.Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resetErr != nil {
		e.calls = append(e.calls, "reset-failed")
		return e.resetErr
	}
	e.calls = append(e.calls, "reset")
	e.config = cfg
	return nil
}

func (e *FakeEngine) Advance(cycles uint64) {
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

func (e *FakeEngine) SetKey(key control.Key, pressed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, fmt.Sprintf("key %s %t", key, pressed))
	e.keys[key] = pressed
}

func (e *FakeEngine) Frame() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame
}

func (e *FakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed++
	return nil
}

// Calls returns every recorded call in order.
func (e *FakeEngine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.calls)
}

// Advances returns the number of Advance calls.
func (e *FakeEngine) Advances() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.advances
}

// Cycles returns the total number of cycles advanced.
func (e *FakeEngine) Cycles() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cycles
}

// Config returns the config from the last successful reset.
func (e *FakeEngine) Config() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config
}

// Pressed reports whether key was last set pressed.
func (e *FakeEngine) Pressed(key control.Key) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.keys[key]
}

// Closed returns how many times Close was called.
func (e *FakeEngine) Closed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Config builds a config around a one-byte ROM tagged with tag.
func Config(t testing.TB, tag byte) *config.Config {
	t.Helper()
	cfg, err := config.NewBuilder().ROM([]byte{tag}).Build()
	require.NoError(t, err)
	return cfg
}

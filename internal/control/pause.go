package control

import "sync/atomic"

// PauseFlag is a pause request that can be raised from any goroutine,
// including a signal handler, without allocating or blocking.
//
// The runner test-and-clears it once per loop iteration, so a request is
// honoured within one frame's worth of cycles.
type PauseFlag struct {
	requested atomic.Bool
}

// Request raises the flag.
func (p *PauseFlag) Request() {
	p.requested.Store(true)
}

// TakeRequest clears the flag and reports whether it was raised. Runner only.
func (p *PauseFlag) TakeRequest() bool {
	return p.requested.Swap(false)
}

// Pending reports whether a request is waiting, without clearing it.
func (p *PauseFlag) Pending() bool {
	return p.requested.Load()
}

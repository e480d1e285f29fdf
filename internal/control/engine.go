package control

import "github.com/roach88/hades/internal/config"

// CyclesPerFrame is one frame of emulated time: 4 cycles per dot, 308 dots
// per line including horizontal blanking, 228 lines including vertical blanking.
const CyclesPerFrame = 4 * 308 * 228

// Engine is the emulation core as seen by the runner.
//
// The runner is the only caller. Construction is the engine's own business;
// Close destroys it and is called once when the runner returns.
type Engine interface {
	// Reset replaces all engine state with a fresh machine built from cfg.
	Reset(cfg *config.Config) error

	// Advance runs the engine for the given number of cycles.
	Advance(cycles uint64)

	// SetKey applies a key edge.
	SetKey(key Key, pressed bool)

	// Frame returns the current frame, FrameSize bytes of RGBA8.
	// The runner copies it before the next call into the engine.
	Frame() []byte

	// Close releases the engine.
	Close() error
}

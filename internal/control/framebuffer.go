package control

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash"
)

// Screen geometry and frame format.
const (
	ScreenWidth  = 240
	ScreenHeight = 160

	// FrameSize is the size of one RGBA8 frame in bytes.
	FrameSize = ScreenWidth * ScreenHeight * 4
)

// ErrFrameSize is returned when a destination buffer is not exactly FrameSize bytes.
var ErrFrameSize = errors.New("control: destination must be exactly one frame")

// FrameBuffer is the guarded hand-off of the engine's pixels.
//
// The runner publishes a complete frame after every advance; readers copy a
// complete frame. Both happen under the same lock, so a reader never sees a
// mix of two frames. The lock is never held across any other lock or a
// blocking call.
type FrameBuffer struct {
	mu     sync.Mutex
	pixels []byte
	frame  uint64
}

// NewFrameBuffer returns a black frame buffer with frame number 0.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{pixels: make([]byte, FrameSize)}
}

func (f *FrameBuffer) lock() func() {
	f.mu.Lock()
	return f.mu.Unlock
}

// Publish copies a full frame in. Runner only.
// A frame of the wrong size is an engine contract violation and panics.
func (f *FrameBuffer) Publish(frame []byte) {
	if len(frame) != FrameSize {
		panic(fmt.Sprintf("control: engine frame is %d bytes, want %d", len(frame), FrameSize))
	}
	defer f.lock()()

	copy(f.pixels, frame)
	f.frame++
}

// CopyInto copies the current frame into dst and returns its frame number.
func (f *FrameBuffer) CopyInto(dst []byte) (uint64, error) {
	if len(dst) != FrameSize {
		return 0, fmt.Errorf("%w: got %d bytes, want %d", ErrFrameSize, len(dst), FrameSize)
	}
	defer f.lock()()

	copy(dst, f.pixels)
	return f.frame, nil
}

// Snapshot returns a copy of the current frame and its frame number.
func (f *FrameBuffer) Snapshot() ([]byte, uint64) {
	dst := make([]byte, FrameSize)
	n, _ := f.CopyInto(dst)
	return dst, n
}

// Digest returns the xxhash of the current frame and its frame number.
// Consumers use it to skip frames identical to the last one they handled.
func (f *FrameBuffer) Digest() (uint64, uint64) {
	defer f.lock()()
	return xxhash.Sum64(f.pixels), f.frame
}

// Frames returns the number of frames published so far.
func (f *FrameBuffer) Frames() uint64 {
	defer f.lock()()
	return f.frame
}

package machine

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash"

	"github.com/roach88/hades/internal/config"
	"github.com/roach88/hades/internal/control"
)

// keyBarHeight is the height in pixels of the pressed-key strip at the
// bottom of the screen.
const keyBarHeight = 8

// Machine is the stand-in engine. The runner is its only caller while a
// session runs; Backup and Header may be called from any goroutine.
type Machine struct {
	mu     sync.Mutex
	logger *slog.Logger

	header config.Header
	seed   uint64
	loaded bool

	cycles uint64 // cycles not yet rendered as a frame
	frames uint64
	keys   uint16 // bit i set when control.Keys[i] is pressed

	frame  []byte
	backup []byte
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the machine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// New creates a machine with no cartridge loaded.
func New(opts ...Option) *Machine {
	m := &Machine{
		logger: slog.Default(),
		frame:  make([]byte, control.FrameSize),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Reset discards all state and loads the cartridge described by cfg.
// A ROM without a valid header is rejected and leaves the machine unloaded.
func (m *Machine) Reset(cfg *config.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, err := config.ParseHeader(cfg.ROM())
	if err != nil {
		m.loaded = false
		return fmt.Errorf("machine reset: %w", err)
	}

	m.header = h
	m.seed = xxhash.Sum64String(h.Code)
	m.loaded = true
	m.cycles = 0
	m.frames = 0
	m.keys = 0
	m.backup = backupImage(cfg)
	m.render()

	m.logger.Info("machine reset",
		"title", h.Title,
		"code", h.Code,
		"backup", cfg.BackupType().String(),
		"rtc", cfg.RTC(),
		"skip_bios", cfg.SkipBIOS())
	return nil
}

// backupImage returns the backup storage for cfg, padded with 0xFF (erased
// flash) to the type's full size.
func backupImage(cfg *config.Config) []byte {
	size := cfg.BackupType().Size()
	if size == 0 {
		return nil
	}
	img := bytes.Repeat([]byte{0xFF}, size)
	copy(img, cfg.BackupData())
	return img
}

// Advance accumulates cycles and renders one frame per full frame quantum.
func (m *Machine) Advance(cycles uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		return
	}
	m.cycles += cycles
	for m.cycles >= control.CyclesPerFrame {
		m.cycles -= control.CyclesPerFrame
		m.frames++
		m.render()
	}
}

// SetKey records a key edge.
func (m *Machine) SetKey(key control.Key, pressed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bit := uint16(1) << uint(key)
	if pressed {
		m.keys |= bit
	} else {
		m.keys &^= bit
	}
}

// Frame returns the machine's frame buffer. The slice is reused across frames.
func (m *Machine) Frame() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame
}

// Close releases the machine. Backup remains readable afterwards.
func (m *Machine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = false
	return nil
}

// Header returns the header of the loaded cartridge.
func (m *Machine) Header() config.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.header
}

// Frames returns the number of frames rendered since the last reset.
func (m *Machine) Frames() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// Keys returns the pressed-key bitmask, bit i for control.Keys[i].
func (m *Machine) Keys() uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys
}

// Backup returns a copy of the backup storage, or nil if the cartridge has none.
func (m *Machine) Backup() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Clone(m.backup)
}

// render draws the test pattern: a diagonal gradient scrolling one pixel per
// frame, tinted by the game code, over a strip with one bar per pressed key.
// Caller holds m.mu.
func (m *Machine) render() {
	tint := [3]byte{byte(m.seed), byte(m.seed >> 8), byte(m.seed >> 16)}
	scroll := int(m.frames)
	barWidth := control.ScreenWidth / len(control.Keys)

	for y := 0; y < control.ScreenHeight; y++ {
		for x := 0; x < control.ScreenWidth; x++ {
			i := (y*control.ScreenWidth + x) * 4
			px := m.frame[i : i+4 : i+4]

			if y >= control.ScreenHeight-keyBarHeight {
				key := x / barWidth
				if key < len(control.Keys) && m.keys&(1<<uint(key)) != 0 {
					px[0], px[1], px[2] = 0xFF, 0xFF, 0xFF
				} else {
					px[0], px[1], px[2] = 0, 0, 0
				}
				px[3] = 0xFF
				continue
			}

			px[0] = byte(x+scroll) ^ tint[0]
			px[1] = byte(y+scroll) ^ tint[1]
			px[2] = byte(x+y) ^ tint[2]
			px[3] = 0xFF
		}
	}
}

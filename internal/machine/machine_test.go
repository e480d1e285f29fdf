package machine

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hades/internal/config"
	"github.com/roach88/hades/internal/control"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeROM(title, code string) []byte {
	rom := make([]byte, config.HeaderSize)
	copy(rom[0xA0:], title)
	copy(rom[0xAC:], code)
	copy(rom[0xB0:], "01")
	return rom
}

func buildConfig(t *testing.T, rom []byte, backup config.BackupType, data []byte) *config.Config {
	t.Helper()
	b := config.NewBuilder().ROM(rom)
	require.NoError(t, b.BackupStorageType(backup))
	if data != nil {
		require.NoError(t, b.BackupStorageData(data))
	}
	cfg, err := b.Build()
	require.NoError(t, err)
	return cfg
}

// pixel returns the RGBA value at (x, y).
func pixel(frame []byte, x, y int) []byte {
	i := (y*control.ScreenWidth + x) * 4
	return frame[i : i+4]
}

func TestMachine_ImplementsEngine(t *testing.T) {
	var _ control.Engine = New()
}

func TestMachine_RejectsBadHeader(t *testing.T) {
	m := New(WithLogger(discardLogger()))
	cfg, err := config.NewBuilder().ROM([]byte{1, 2, 3}).Build()
	require.NoError(t, err)

	err = m.Reset(cfg)
	require.Error(t, err)
	assert.True(t, config.IsInvalidROM(err))

	m.Advance(control.CyclesPerFrame)
	assert.Equal(t, uint64(0), m.Frames(), "unloaded machine does not advance")
}

func TestMachine_FramesPerQuantum(t *testing.T) {
	m := New(WithLogger(discardLogger()))
	require.NoError(t, m.Reset(buildConfig(t, makeROM("TEST", "ATST"), config.BackupNone, nil)))

	m.Advance(control.CyclesPerFrame / 2)
	assert.Equal(t, uint64(0), m.Frames())
	m.Advance(control.CyclesPerFrame / 2)
	assert.Equal(t, uint64(1), m.Frames())
	m.Advance(3 * control.CyclesPerFrame)
	assert.Equal(t, uint64(4), m.Frames())
}

func TestMachine_Deterministic(t *testing.T) {
	run := func() []byte {
		m := New(WithLogger(discardLogger()))
		require.NoError(t, m.Reset(buildConfig(t, makeROM("TEST", "ATST"), config.BackupNone, nil)))
		for i := 0; i < 5; i++ {
			m.Advance(control.CyclesPerFrame)
		}
		return bytes.Clone(m.Frame())
	}
	assert.Equal(t, run(), run())
}

func TestMachine_FramesDifferByGameAndTime(t *testing.T) {
	a := New(WithLogger(discardLogger()))
	b := New(WithLogger(discardLogger()))
	require.NoError(t, a.Reset(buildConfig(t, makeROM("A", "AAAE"), config.BackupNone, nil)))
	require.NoError(t, b.Reset(buildConfig(t, makeROM("B", "BBBE"), config.BackupNone, nil)))

	assert.NotEqual(t, a.Frame(), b.Frame(), "pattern is tinted by game code")

	before := bytes.Clone(a.Frame())
	a.Advance(control.CyclesPerFrame)
	assert.NotEqual(t, before, a.Frame(), "pattern scrolls")
}

func TestMachine_KeyBars(t *testing.T) {
	m := New(WithLogger(discardLogger()))
	require.NoError(t, m.Reset(buildConfig(t, makeROM("TEST", "ATST"), config.BackupNone, nil)))

	m.SetKey(control.KeyStart, true)
	m.SetKey(control.KeyA, true)
	m.SetKey(control.KeyA, false)
	assert.Equal(t, uint16(1)<<uint(control.KeyStart), m.Keys())

	m.Advance(control.CyclesPerFrame)
	barWidth := control.ScreenWidth / len(control.Keys)
	y := control.ScreenHeight - 1
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, pixel(m.Frame(), int(control.KeyStart)*barWidth, y))
	assert.Equal(t, []byte{0, 0, 0, 0xFF}, pixel(m.Frame(), int(control.KeyA)*barWidth, y))
}

func TestMachine_Backup(t *testing.T) {
	m := New(WithLogger(discardLogger()))
	save := []byte("SAVEDATA")
	require.NoError(t, m.Reset(buildConfig(t, makeROM("TEST", "ATST"), config.BackupSRAM, save)))

	backup := m.Backup()
	require.Len(t, backup, config.BackupSRAM.Size())
	assert.Equal(t, save, backup[:len(save)])
	assert.Equal(t, byte(0xFF), backup[len(save)], "rest of the image is erased")

	backup[0] = 0
	assert.Equal(t, byte('S'), m.Backup()[0], "Backup returns a copy")

	require.NoError(t, m.Close())
	assert.NotNil(t, m.Backup(), "backup outlives Close")
}

func TestMachine_NoBackup(t *testing.T) {
	m := New(WithLogger(discardLogger()))
	require.NoError(t, m.Reset(buildConfig(t, makeROM("TEST", "ATST"), config.BackupNone, nil)))
	assert.Nil(t, m.Backup())
}

func TestMachine_Header(t *testing.T) {
	m := New(WithLogger(discardLogger()))
	require.NoError(t, m.Reset(buildConfig(t, makeROM("POKEMON EMER", "BPEE"), config.BackupFlash128, nil)))
	assert.Equal(t, "BPEE", m.Header().Code)
	assert.Equal(t, "POKEMON EMER", m.Header().Title)
}

func TestMachine_UnderSession(t *testing.T) {
	m := New(WithLogger(discardLogger()))
	sess := control.NewSession(m,
		control.WithLogger(discardLogger()),
		control.WithRunnerOptions(control.WithFrameLimit(10)))
	l := sess.Listen()
	ctx := context.Background()
	sess.Start(ctx)

	sess.Send(control.Reset(buildConfig(t, makeROM("TEST", "ATST"), config.BackupNone, nil)))
	sess.Send(control.Run())

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for paused := false; !paused; {
		require.NoError(t, l.WaitContext(waitCtx))
		for _, ev := range l.Pop() {
			paused = paused || ev == control.EventPaused
		}
	}

	assert.Equal(t, uint64(10), m.Frames())
	assert.Equal(t, uint64(10), sess.Frames().Frames())
	snap, _ := sess.Frames().Snapshot()
	assert.Equal(t, m.Frame(), snap)

	require.NoError(t, sess.Shutdown(waitCtx))
}

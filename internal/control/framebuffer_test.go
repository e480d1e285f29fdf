package control

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformFrame(b byte) []byte {
	return bytes.Repeat([]byte{b}, FrameSize)
}

func TestFrameBuffer_CopyInto(t *testing.T) {
	fb := NewFrameBuffer()

	dst := make([]byte, FrameSize)
	n, err := fb.CopyInto(dst)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)
	assert.Equal(t, uniformFrame(0), dst)

	fb.Publish(uniformFrame(7))
	n, err = fb.CopyInto(dst)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	assert.Equal(t, uniformFrame(7), dst)
}

func TestFrameBuffer_CopyIntoWrongSize(t *testing.T) {
	fb := NewFrameBuffer()

	_, err := fb.CopyInto(make([]byte, FrameSize-1))
	assert.ErrorIs(t, err, ErrFrameSize)

	_, err = fb.CopyInto(nil)
	assert.ErrorIs(t, err, ErrFrameSize)
}

func TestFrameBuffer_PublishWrongSizePanics(t *testing.T) {
	fb := NewFrameBuffer()
	assert.Panics(t, func() { fb.Publish(make([]byte, 10)) })
	assert.Equal(t, uint64(0), fb.Frames())
}

func TestFrameBuffer_PublishCopies(t *testing.T) {
	fb := NewFrameBuffer()
	src := uniformFrame(3)
	fb.Publish(src)
	src[0] = 99

	snap, n := fb.Snapshot()
	assert.Equal(t, uint64(1), n)
	assert.Equal(t, byte(3), snap[0])
}

func TestFrameBuffer_Digest(t *testing.T) {
	fb := NewFrameBuffer()
	d0, n0 := fb.Digest()
	assert.Equal(t, uint64(0), n0)

	fb.Publish(uniformFrame(1))
	d1, n1 := fb.Digest()
	assert.Equal(t, uint64(1), n1)
	assert.NotEqual(t, d0, d1)

	fb.Publish(uniformFrame(1))
	d2, n2 := fb.Digest()
	assert.Equal(t, uint64(2), n2)
	assert.Equal(t, d1, d2, "identical frames hash the same")
}

func TestFrameBuffer_NoTearing(t *testing.T) {
	fb := NewFrameBuffer()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		frame := make([]byte, FrameSize)
		for i := 1; ctx.Err() == nil; i++ {
			for j := range frame {
				frame[j] = byte(i)
			}
			fb.Publish(frame)
		}
	}()

	const readers = 4
	torn := make([]int, readers)
	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			dst := make([]byte, FrameSize)
			for ctx.Err() == nil {
				if _, err := fb.CopyInto(dst); err != nil {
					return
				}
				if !bytes.Equal(dst, bytes.Repeat(dst[:1], FrameSize)) {
					torn[r]++
				}
			}
		}(r)
	}
	wg.Wait()

	for r, n := range torn {
		assert.Zero(t, n, "reader %d saw torn frames", r)
	}
	assert.Greater(t, fb.Frames(), uint64(0))
}

func TestFrameBuffer_RunnerFramesAreUniform(t *testing.T) {
	engine := newFakeEngine()
	sess, _ := startSession(t, engine, WithFrameLimit(50))

	sess.Send(Reset(testConfig(t, 1)))
	sess.Send(Run())

	dst := make([]byte, FrameSize)
	for sess.State() != StatePaused || sess.Advances() < 50 {
		n, err := sess.Frames().CopyInto(dst)
		require.NoError(t, err)
		assert.Equal(t, bytes.Repeat([]byte{byte(n)}, FrameSize), dst, "frame %d", n)
	}
	assert.Equal(t, uint64(50), sess.Frames().Frames())
}

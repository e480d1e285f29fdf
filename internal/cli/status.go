package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	tm "github.com/buger/goterm"

	"github.com/roach88/hades/internal/control"
)

// statusSample is one reading of a running session.
type statusSample struct {
	Title  string
	State  control.RunState
	Frames uint64
	Digest uint64
	FPS    float64
}

// printStatus writes the status screen body.
func printStatus(w io.Writer, s statusSample) {
	fmt.Fprintf(w, "%s\n", s.Title)
	fmt.Fprintf(w, "  State:  %s\n", s.State)
	fmt.Fprintf(w, "  Frame:  %d\n", s.Frames)
	fmt.Fprintf(w, "  Digest: %016x\n", s.Digest)
	fmt.Fprintf(w, "  FPS:    %.1f\n", s.FPS)
}

// fps returns the frame rate between two frame counter readings.
func fps(prev, cur uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 || cur < prev {
		return 0
	}
	return float64(cur-prev) / elapsed.Seconds()
}

// runStatus redraws the terminal with the session's status every interval
// until ctx is done or the session exits.
func runStatus(ctx context.Context, session *control.Session, title string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := session.Frames().Frames()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-session.Done():
			return
		case now := <-ticker.C:
			digest, frames := session.Frames().Digest()
			sample := statusSample{
				Title:  title,
				State:  session.State(),
				Frames: frames,
				Digest: digest,
				FPS:    fps(prev, frames, now.Sub(last)),
			}
			prev, last = frames, now

			tm.Clear()
			tm.MoveCursor(1, 1)
			printStatus(tm.Screen, sample)
			tm.Flush()
		}
	}
}

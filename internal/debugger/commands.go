package debugger

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/image/draw"

	"github.com/roach88/hades/internal/control"
)

type command struct {
	name        string
	alias       string
	usage       string
	description string
	minArgs     int
	maxArgs     int // -1 for unbounded
	run         func(ctx context.Context, d *Debugger, args []string) error
}

func commandTable() []*command {
	return []*command{
		{
			name:        "help",
			alias:       "h",
			usage:       "help [COMMAND]",
			description: "Show the list of commands, or help for one command.",
			maxArgs:     1,
			run:         cmdHelp,
		},
		{
			name:        "run",
			alias:       "r",
			usage:       "run",
			description: "Resume emulation and return to the prompt.",
			run:         cmdRun,
		},
		{
			name:        "continue",
			alias:       "c",
			usage:       "continue",
			description: "Resume emulation and wait until it pauses (Ctrl-C to interrupt).",
			run:         cmdContinue,
		},
		{
			name:        "pause",
			alias:       "p",
			usage:       "pause",
			description: "Pause emulation.",
			run:         cmdPause,
		},
		{
			name:        "reset",
			usage:       "reset",
			description: "Reset the machine with the session's configuration.",
			run:         cmdReset,
		},
		{
			name:        "key",
			alias:       "k",
			usage:       "key NAME up|down",
			description: "Press or release a key (" + keyNames() + ").",
			minArgs:     2,
			maxArgs:     2,
			run:         cmdKey,
		},
		{
			name:        "tap",
			alias:       "t",
			usage:       "tap NAME",
			description: "Press and release a key with no other command in between.",
			minArgs:     1,
			maxArgs:     1,
			run:         cmdTap,
		},
		{
			name:        "frame",
			alias:       "f",
			usage:       "frame",
			description: "Show the last published frame number and its digest.",
			run:         cmdFrame,
		},
		{
			name:        "screenshot",
			alias:       "ss",
			usage:       "screenshot PATH [SCALE]",
			description: "Save the last published frame as a PNG, optionally scaled.",
			minArgs:     1,
			maxArgs:     2,
			run:         cmdScreenshot,
		},
		{
			name:        "status",
			usage:       "status",
			description: "Show the run state and frame counters.",
			run:         cmdStatus,
		},
		{
			name:        "quit",
			alias:       "q",
			usage:       "quit",
			description: "Leave the debugger.",
			run:         cmdQuit,
		},
	}
}

func keyNames() string {
	names := make([]string, len(control.Keys))
	for i, k := range control.Keys {
		names[i] = k.String()
	}
	return strings.Join(names, ", ")
}

func cmdHelp(_ context.Context, d *Debugger, args []string) error {
	if len(args) == 1 {
		cmd := d.lookup(args[0])
		if cmd == nil {
			fmt.Fprintf(d.out, "Unknown command %q. Type \"help\" for a list of commands.\n", args[0])
			return nil
		}
		fmt.Fprintf(d.out, "%s\n    %s\n", cmd.usage, cmd.description)
		if cmd.alias != "" {
			fmt.Fprintf(d.out, "    Alias: %s\n", cmd.alias)
		}
		return nil
	}

	fmt.Fprintln(d.out, "Commands:")
	for _, cmd := range d.commands {
		name := cmd.name
		if cmd.alias != "" {
			name += ", " + cmd.alias
		}
		fmt.Fprintf(d.out, "  %-16s %s\n", name, cmd.description)
	}
	return nil
}

func cmdRun(_ context.Context, d *Debugger, _ []string) error {
	d.session.Send(control.Run())
	return nil
}

var errNotLoaded = errors.New("no cartridge loaded, reset with a working configuration first")

func cmdContinue(ctx context.Context, d *Debugger, _ []string) error {
	// The runner ignores Run without a loaded cartridge, so no Paused
	// event would ever arrive.
	if !d.session.Loaded() {
		return errNotLoaded
	}
	d.discard()
	d.session.Send(control.Run())
	if err := d.WaitForPause(ctx); err != nil {
		return err
	}
	fmt.Fprintf(d.out, "Paused at frame %d.\n", d.session.Frames().Frames())
	return nil
}

func cmdPause(_ context.Context, d *Debugger, _ []string) error {
	d.session.Send(control.Pause())
	return nil
}

func cmdReset(_ context.Context, d *Debugger, _ []string) error {
	if d.config == nil {
		return errors.New("no configuration to reset with")
	}
	d.session.Send(control.Reset(d.config))
	return nil
}

// resolveKey accepts a console key name, or a host key bound to exactly one
// console key.
func (d *Debugger) resolveKey(name string) (control.Key, error) {
	key, err := control.ParseKey(name)
	if err == nil {
		return key, nil
	}

	var bound []string
	for console, host := range d.keybinds {
		if strings.EqualFold(host, name) {
			bound = append(bound, console)
		}
	}
	switch len(bound) {
	case 0:
		return 0, err
	case 1:
		return control.ParseKey(bound[0])
	default:
		slices.Sort(bound)
		return 0, fmt.Errorf("%q is bound to several keys (%s)", name, strings.Join(bound, ", "))
	}
}

func cmdKey(_ context.Context, d *Debugger, args []string) error {
	key, err := d.resolveKey(args[0])
	if err != nil {
		return err
	}
	var pressed bool
	switch strings.ToLower(args[1]) {
	case "down", "press":
		pressed = true
	case "up", "release":
		pressed = false
	default:
		return fmt.Errorf("key state must be up or down, not %q", args[1])
	}
	d.session.Send(control.KeyInput(key, pressed))
	return nil
}

func cmdTap(_ context.Context, d *Debugger, args []string) error {
	key, err := d.resolveKey(args[0])
	if err != nil {
		return err
	}
	s := d.session.Lock()
	defer s.Release()
	s.Send(control.KeyInput(key, true))
	s.Send(control.KeyInput(key, false))
	return nil
}

func cmdFrame(_ context.Context, d *Debugger, _ []string) error {
	digest, n := d.session.Frames().Digest()
	fmt.Fprintf(d.out, "Frame %d, digest %016x\n", n, digest)
	return nil
}

func cmdScreenshot(_ context.Context, d *Debugger, args []string) error {
	scale := 1
	if len(args) == 2 {
		s, err := strconv.Atoi(args[1])
		if err != nil || s < 1 || s > 16 {
			return fmt.Errorf("scale must be an integer between 1 and 16, not %q", args[1])
		}
		scale = s
	}

	pixels, n := d.session.Frames().Snapshot()
	if err := writeScreenshot(args[0], pixels, scale); err != nil {
		return err
	}
	fmt.Fprintf(d.out, "Saved frame %d to %s.\n", n, args[0])
	return nil
}

// writeScreenshot encodes an RGBA frame as a PNG, scaled by an integer factor
// with nearest-neighbour sampling.
func writeScreenshot(path string, pixels []byte, scale int) error {
	src := &image.RGBA{
		Pix:    pixels,
		Stride: control.ScreenWidth * 4,
		Rect:   image.Rect(0, 0, control.ScreenWidth, control.ScreenHeight),
	}

	var img image.Image = src
	if scale > 1 {
		dst := image.NewRGBA(image.Rect(0, 0, control.ScreenWidth*scale, control.ScreenHeight*scale))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		img = dst
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("screenshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	return nil
}

func cmdStatus(_ context.Context, d *Debugger, _ []string) error {
	fmt.Fprintf(d.out, "State:    %s\n", d.session.State())
	fmt.Fprintf(d.out, "Frames:   %d\n", d.session.Frames().Frames())
	fmt.Fprintf(d.out, "Advances: %d\n", d.session.Advances())
	fmt.Fprintf(d.out, "Pending:  %d commands\n", d.session.Commands().Len())
	return nil
}

func cmdQuit(context.Context, *Debugger, []string) error {
	return errQuit
}

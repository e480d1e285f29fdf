package debugger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/hades/internal/config"
	"github.com/roach88/hades/internal/control"
)

// errQuit is returned by the quit command to end the REPL.
var errQuit = errors.New("quit")

// Debugger drives a session from a command line.
type Debugger struct {
	session  *control.Session
	listener *control.Listener
	config   *config.Config
	keybinds map[string]string // console key name -> host key
	out      io.Writer
	logger   *slog.Logger
	commands []*command
}

// Option configures a Debugger.
type Option func(*Debugger)

// WithConfig sets the configuration resent by the reset command.
func WithConfig(cfg *config.Config) Option {
	return func(d *Debugger) {
		d.config = cfg
	}
}

// WithKeybinds lets key commands name a console key by the host key bound
// to it in the settings file.
func WithKeybinds(keybinds map[string]string) Option {
	return func(d *Debugger) {
		d.keybinds = keybinds
	}
}

// WithLogger sets the debugger's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Debugger) {
		d.logger = logger
	}
}

// New attaches a debugger to session. The debugger registers its event
// listener immediately, so it sees every event sent after New returns.
func New(session *control.Session, out io.Writer, opts ...Option) *Debugger {
	d := &Debugger{
		session:  session,
		listener: session.Listen(),
		out:      out,
		logger:   slog.Default(),
		commands: commandTable(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Close detaches the debugger's listener.
func (d *Debugger) Close() {
	d.listener.Close()
}

// WaitForPause blocks until the runner reports a Paused event. Other events
// are consumed and ignored. Returns ctx.Err() on cancellation and
// control.ErrChannelClosed if the session shuts down first.
func (d *Debugger) WaitForPause(ctx context.Context) error {
	for {
		if err := d.listener.WaitContext(ctx); err != nil {
			return err
		}
		for _, ev := range d.listener.Pop() {
			if ev.MustValid() == control.EventPaused {
				return nil
			}
		}
	}
}

// discard drops events received so far, so a later WaitForPause only sees
// what follows.
func (d *Debugger) discard() {
	d.listener.Pop()
}

// Execute runs one command line. Empty lines are ignored.
func (d *Debugger) Execute(ctx context.Context, line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}

	cmd := d.lookup(args[0])
	if cmd == nil {
		fmt.Fprintf(d.out, "Unknown command %q. Type \"help\" for a list of commands.\n", args[0])
		return nil
	}
	if len(args)-1 < cmd.minArgs || (cmd.maxArgs >= 0 && len(args)-1 > cmd.maxArgs) {
		fmt.Fprintf(d.out, "Usage: %s\n", cmd.usage)
		return nil
	}

	d.logger.Debug("debugger command", "name", cmd.name, "args", args[1:])
	return cmd.run(ctx, d, args[1:])
}

func (d *Debugger) lookup(name string) *command {
	name = strings.ToLower(name)
	for _, cmd := range d.commands {
		if cmd.name == name || (cmd.alias != "" && cmd.alias == name) {
			return cmd
		}
	}
	return nil
}

// REPL reads and executes command lines until quit, end of input or ctx
// cancellation. Ctrl-C at the prompt requests a pause and keeps reading.
func (d *Debugger) REPL(ctx context.Context, editor LineEditor) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := editor.GetLine(d.prompt())
		switch {
		case errors.Is(err, ErrInterrupt):
			d.session.RequestPause()
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("read command: %w", err)
		}

		err = d.Execute(ctx, line)
		switch {
		case errors.Is(err, errQuit):
			return nil
		case errors.Is(err, control.ErrChannelClosed):
			fmt.Fprintln(d.out, "Session closed.")
			return nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case err != nil:
			fmt.Fprintf(d.out, "Error: %v\n", err)
		}
	}
}

func (d *Debugger) prompt() string {
	return fmt.Sprintf("[%s] > ", d.session.State())
}

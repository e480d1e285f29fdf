package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/hades/internal/config"
	"github.com/roach88/hades/internal/control"
	"github.com/roach88/hades/internal/debugger"
	"github.com/roach88/hades/internal/journal"
	"github.com/roach88/hades/internal/machine"
	"github.com/roach88/hades/internal/remote"
	"github.com/roach88/hades/internal/store"
)

const (
	resetTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	BIOS      string
	SkipBIOS  bool
	Config    string
	Database  string
	Debug     bool
	Monitor   string
	Statsview bool
	Status    bool
	Frames    uint64
	Journal   bool

	// Editor overrides the debugger's line editor (for testing).
	// If nil, a readline editor is used on a terminal.
	Editor debugger.LineEditor

	// SessionIDs overrides the journal session id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	SessionIDs journal.IDGenerator
}

// RunSummary is printed when a run ends.
type RunSummary struct {
	ROM       string `json:"rom"`
	Title     string `json:"title"`
	Code      string `json:"code"`
	Backup    string `json:"backup"`
	Frames    uint64 `json:"frames"`
	SavePath  string `json:"save_path,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <rom>",
		Short: "Run a cartridge",
		Long: `Load a cartridge and run it until interrupted.

The ROM may be a raw image or the first entry of a .zip or .7z archive.
Backup storage is read from and written back to the ROM's .sav file.
The backup type comes from the game database, or is detected from the
ROM when the game is unknown.

With --debug the cartridge starts paused and a debugger prompt reads
commands from stdin. Ctrl-C pauses the emulation instead of exiting.

Examples:
  hades run game.gba
  hades run --frames 600 --db ./hades.db --journal game.zip
  hades run --debug --monitor localhost:8910 game.gba`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmulator(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.BIOS, "bios", "", "path to the BIOS image (overrides the settings file)")
	cmd.Flags().BoolVar(&opts.SkipBIOS, "skip-bios", false, "start the cartridge without the BIOS intro")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to the settings file (default ~/.config/hades/config.yaml)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides the settings file)")
	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "start paused with a debugger prompt")
	cmd.Flags().StringVar(&opts.Monitor, "monitor", "", "serve the websocket monitor on this address")
	cmd.Flags().BoolVar(&opts.Statsview, "statsview", false, "serve runtime statistics on "+statsviewAddr)
	cmd.Flags().BoolVar(&opts.Status, "status", false, "show a status screen refreshed every second")
	cmd.Flags().Uint64Var(&opts.Frames, "frames", 0, "pause and exit after this many frames (0 = unlimited)")
	cmd.Flags().BoolVar(&opts.Journal, "journal", false, "record run-state transitions in the database")

	return cmd
}

func runEmulator(opts *RunOptions, romPath string, cmd *cobra.Command) error {
	logger := setupLogging(opts.RootOptions)

	if opts.Debug && opts.Status {
		return NewExitError(ExitCommandError, "--status cannot be combined with --debug")
	}

	settings, err := loadSettings(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load settings", err)
	}
	dbPath := opts.Database
	if dbPath == "" {
		dbPath = settings.Database
	}
	if opts.Journal && dbPath == "" {
		return NewExitError(ExitCommandError, "--journal needs a database: pass --db or set database in the settings file")
	}

	parentCtx := cmdContext(cmd)

	var st *store.Store
	if dbPath != "" {
		slog.Info("opening database", "path", dbPath)
		st, err = store.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
	}

	cart, err := loadCartridge(parentCtx, cartridgeRequest{
		ROMPath:  romPath,
		BIOSPath: firstNonEmpty(opts.BIOS, settings.BIOS),
		SkipBIOS: opts.SkipBIOS || settings.SkipBIOS,
		AudioHz:  settings.AudioFrequency,
		Store:    st,
	})
	if err != nil {
		return err
	}
	slog.Info("cartridge loaded",
		"title", cart.Header.Title,
		"code", cart.Header.Code,
		"backup", cart.Config.BackupType(),
		"source", cart.Source)

	m := machine.New(machine.WithLogger(logger))
	var runnerOpts []control.RunnerOption
	if opts.Frames > 0 {
		runnerOpts = append(runnerOpts, control.WithFrameLimit(opts.Frames))
	}
	session := control.NewSession(m,
		control.WithLogger(logger),
		control.WithRunnerOptions(runnerOpts...))

	// Listeners must exist before Start so they see the Started event.
	waiter := session.Listen()
	defer waiter.Close()

	var sessionID string
	recorderDone := make(chan struct{})
	if opts.Journal {
		ids := opts.SessionIDs
		if ids == nil {
			ids = journal.UUIDv7Generator{}
		}
		sessionID = ids.Generate()
		err := st.CreateSession(parentCtx, store.SessionRecord{
			ID:        sessionID,
			ROMPath:   romPath,
			GameCode:  cart.Header.Code,
			Title:     cart.Header.Title,
			StartedAt: time.Now(),
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create journal session", err)
		}
		recorder := journal.NewRecorder(st, sessionID,
			journal.WithFrameCounter(session.Frames().Frames),
			journal.WithLogger(logger))
		listener := session.Listen()
		go func() {
			defer close(recorderDone)
			if err := recorder.Run(parentCtx, listener); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("journal recorder stopped", "error", err)
			}
		}()
		slog.Info("journal recording", "session", sessionID)
	} else {
		close(recorderDone)
	}

	session.Start(parentCtx)

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		for {
			select {
			case sig := <-sigChan:
				if opts.Debug && sig == os.Interrupt {
					slog.Debug("interrupt, requesting pause")
					session.RequestPause()
					continue
				}
				slog.Info("received signal, shutting down", "signal", sig)
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	runErr := drive(ctx, opts, session, waiter, cart, settings.Keybinds, logger, cmd)

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := session.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("session shutdown", "error", err)
		if runErr == nil {
			runErr = WrapExitError(ExitFailure, "session error", err)
		}
	}
	<-recorderDone

	if opts.Journal {
		if err := st.EndSession(context.Background(), sessionID, time.Now()); err != nil {
			slog.Error("failed to end journal session", "session", sessionID, "error", err)
		}
	}

	summary := RunSummary{
		ROM:       romPath,
		Title:     cart.Header.Title,
		Code:      cart.Header.Code,
		Backup:    cart.Config.BackupType().String(),
		Frames:    session.Frames().Frames(),
		SessionID: sessionID,
	}
	if backup := m.Backup(); backup != nil {
		if err := config.WriteBackup(cart.SavePath, backup); err != nil {
			return WrapExitError(ExitCommandError, "failed to write backup", err)
		}
		summary.SavePath = cart.SavePath
		slog.Info("backup written", "path", cart.SavePath, "bytes", len(backup))
	}

	if runErr != nil {
		return runErr
	}
	return outputRunSummary(cmd, opts, summary)
}

// drive resets the session with the cartridge and runs it until ctx is
// done, the frame limit pauses it, or the debugger quits.
func drive(
	ctx context.Context,
	opts *RunOptions,
	session *control.Session,
	waiter *control.Listener,
	cart *cartridge,
	keybinds map[string]string,
	logger *slog.Logger,
	cmd *cobra.Command,
) error {
	var dbg *debugger.Debugger
	if opts.Debug {
		dbg = debugger.New(session, cmd.OutOrStdout(),
			debugger.WithConfig(cart.Config),
			debugger.WithKeybinds(keybinds),
			debugger.WithLogger(logger))
		defer dbg.Close()
	}

	session.Send(control.Reset(cart.Config))
	resetCtx, cancelReset := context.WithTimeout(ctx, resetTimeout)
	err := waitForEvent(resetCtx, waiter, control.EventReset)
	cancelReset()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return WrapExitError(ExitFailure, "cartridge did not reset", err)
	}

	if opts.Monitor != "" {
		srv := remote.NewServer(session, remote.WithConfig(cart.Config), remote.WithLogger(logger))
		go func() {
			if err := srv.ListenAndServe(ctx, opts.Monitor); err != nil {
				slog.Error("monitor stopped", "error", err)
			}
		}()
	}
	if opts.Statsview {
		stopStats := launchStatsview(cmd.ErrOrStderr())
		defer stopStats()
	}
	if opts.Status {
		go runStatus(ctx, session, cart.Header.Title, time.Second)
	}

	if opts.Debug {
		waiter.Close()
		editor := opts.Editor
		if editor == nil {
			editor = debugger.NewLineEditor(historyPath())
		}
		defer editor.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %s (%s). Type \"help\" for a list of commands.\n",
			cart.Header.Title, cart.Header.Code)
		if err := dbg.REPL(ctx, editor); err != nil && ctx.Err() == nil {
			return WrapExitError(ExitFailure, "debugger error", err)
		}
		return nil
	}

	session.Send(control.Run())

	if opts.Frames > 0 {
		err := waitForEvent(ctx, waiter, control.EventPaused)
		if err != nil && ctx.Err() == nil && !errors.Is(err, control.ErrChannelClosed) {
			return WrapExitError(ExitFailure, "emulation error", err)
		}
		return nil
	}

	waiter.Close()
	select {
	case <-ctx.Done():
	case <-session.Done():
		if err := session.Err(); err != nil {
			return WrapExitError(ExitFailure, "emulation error", err)
		}
	}
	return nil
}

// waitForEvent blocks until l delivers want.
func waitForEvent(ctx context.Context, l *control.Listener, want control.Event) error {
	for {
		for _, ev := range l.Pop() {
			if ev.MustValid() == want {
				return nil
			}
		}
		if err := l.WaitContext(ctx); err != nil {
			return err
		}
	}
}

func outputRunSummary(cmd *cobra.Command, opts *RunOptions, summary RunSummary) error {
	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(summary)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Ran %s (%s) for %d frames.\n", summary.Title, summary.Code, summary.Frames)
	if summary.SavePath != "" {
		fmt.Fprintf(w, "Saved %s backup to %s.\n", summary.Backup, summary.SavePath)
	}
	if summary.SessionID != "" {
		fmt.Fprintf(w, "Journal session: %s\n", summary.SessionID)
	}
	return nil
}

// loadSettings reads the settings file. An explicit path must exist; the
// default path is optional.
func loadSettings(path string) (config.Settings, error) {
	if path != "" {
		return config.LoadSettings(path)
	}
	if path = defaultConfigPath(); path == "" {
		return config.DefaultSettings(), nil
	}
	return config.LoadSettingsOptional(path)
}

// historyPath returns the debugger history file, or "" to disable history.
func historyPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "hades")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/hades/internal/gamedb"
	"github.com/roach88/hades/internal/store"
)

// GameDBOptions holds flags for the gamedb commands.
type GameDBOptions struct {
	*RootOptions
	Database string
}

// GameInfo is the JSON form of a game database entry.
type GameInfo struct {
	Code   string `json:"code"`
	Title  string `json:"title"`
	Backup string `json:"backup"`
	RTC    bool   `json:"rtc"`
	Source string `json:"source"`
}

// ImportResult reports a gamedb import.
type ImportResult struct {
	Source   string `json:"source"`
	Imported int    `json:"imported"`
	Total    int    `json:"total"`
}

// NewGameDBCommand creates the gamedb command group.
func NewGameDBCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GameDBOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "gamedb",
		Short: "Manage the game database",
		Long: `Manage the game database used to pick a cartridge's backup storage type.

Entries in the SQLite database take precedence over the database built
into the binary. Entries are written in CUE:

  game: {
    AXVE: {title: "Pokémon Ruby", backup: "flash128", rtc: true}
  }`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database")

	cmd.AddCommand(newGameDBImportCommand(opts))
	cmd.AddCommand(newGameDBLookupCommand(opts))

	return cmd
}

func newGameDBImportCommand(opts *GameDBOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file.cue]",
		Short: "Import games into the database",
		Long: `Import game entries into the SQLite database.

Without a file, the built-in game database is imported.

Examples:
  hades gamedb import --db ./hades.db
  hades gamedb import --db ./hades.db ./my-games.cue`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runGameDBImport(opts, path, cmd)
		},
	}
}

func newGameDBLookupCommand(opts *GameDBOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <code>",
		Short: "Look up a game by its 4-character code",
		Long: `Look up a game by the code in its cartridge header.

The SQLite database is searched first when --db is given, then the
built-in database.

Examples:
  hades gamedb lookup AXVE
  hades gamedb lookup --db ./hades.db --format json BPEE`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGameDBLookup(opts, args[0], cmd)
		},
	}
}

func runGameDBImport(opts *GameDBOptions, path string, cmd *cobra.Command) error {
	if opts.Database == "" {
		return NewExitError(ExitCommandError, "--db is required for import")
	}
	ctx := cmdContext(cmd)

	var (
		db     *gamedb.DB
		err    error
		source = sourceEmbedded
	)
	if path == "" {
		db, err = gamedb.Embedded()
	} else {
		db, err = gamedb.LoadFile(path)
		source = path
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load game database", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if err := st.UpsertGames(ctx, db.Entries()); err != nil {
		return WrapExitError(ExitCommandError, "failed to import games", err)
	}
	total, err := st.CountGames(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count games", err)
	}

	result := ImportResult{Source: source, Imported: db.Len(), Total: total}
	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d games from %s (%d in database).\n",
		result.Imported, result.Source, result.Total)
	return nil
}

func runGameDBLookup(opts *GameDBOptions, code string, cmd *cobra.Command) error {
	ctx := cmdContext(cmd)

	entry, source, found, err := lookupGame(ctx, opts.Database, code)
	if err != nil {
		return err
	}
	if !found {
		return NewExitError(ExitFailure, fmt.Sprintf("game %s not found", code))
	}

	info := GameInfo{
		Code:   entry.Code,
		Title:  entry.Title,
		Backup: entry.Backup.String(),
		RTC:    entry.RTC,
		Source: source,
	}
	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(info)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s  %s\n", info.Code, info.Title)
	fmt.Fprintf(w, "  Backup: %s\n", info.Backup)
	fmt.Fprintf(w, "  RTC:    %t\n", info.RTC)
	fmt.Fprintf(w, "  Source: %s\n", info.Source)
	return nil
}

func lookupGame(ctx context.Context, dbPath, code string) (gamedb.Entry, string, bool, error) {
	var st *store.Store
	if dbPath != "" {
		var err error
		st, err = store.Open(dbPath)
		if err != nil {
			return gamedb.Entry{}, "", false, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
	}
	return findGame(ctx, st, code)
}

// findGame searches st (if not nil), then the built-in database.
func findGame(ctx context.Context, st *store.Store, code string) (gamedb.Entry, string, bool, error) {
	if st != nil {
		entry, ok, err := st.LookupGame(ctx, code)
		if err != nil {
			return gamedb.Entry{}, "", false, WrapExitError(ExitCommandError, "failed to look up game", err)
		}
		if ok {
			return entry, sourceDatabase, true, nil
		}
	}

	db, err := gamedb.Embedded()
	if err != nil {
		return gamedb.Entry{}, "", false, WrapExitError(ExitCommandError, "failed to load game database", err)
	}
	entry, ok := db.Lookup(code)
	return entry, sourceEmbedded, ok, nil
}

// cmdContext returns the command's context, or Background outside Execute.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

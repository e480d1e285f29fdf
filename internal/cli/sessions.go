package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/hades/internal/store"
)

// SessionsOptions holds flags for the sessions command.
type SessionsOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// SessionInfo is the JSON form of a journal session.
type SessionInfo struct {
	ID          string     `json:"id"`
	ROMPath     string     `json:"rom_path"`
	GameCode    string     `json:"game_code"`
	Title       string     `json:"title"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Transitions int        `json:"transitions"`
}

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List journaled sessions",
		Long: `List sessions recorded with run --journal, newest first.

Examples:
  hades sessions --db ./hades.db
  hades sessions --db ./hades.db --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessions(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show at most this many sessions (0 = all)")

	return cmd
}

func runSessions(opts *SessionsOptions, cmd *cobra.Command) error {
	ctx := cmdContext(cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	records, err := st.ListSessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}

	sessions := make([]SessionInfo, 0, len(records))
	for _, rec := range records {
		n, err := st.CountTransitions(ctx, rec.ID, "")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to count transitions", err)
		}
		sessions = append(sessions, SessionInfo{
			ID:          rec.ID,
			ROMPath:     rec.ROMPath,
			GameCode:    rec.GameCode,
			Title:       rec.Title,
			StartedAt:   rec.StartedAt,
			EndedAt:     rec.EndedAt,
			Transitions: n,
		})
	}

	if opts.Format == "json" {
		return outputJSON(cmd.OutOrStdout(), sessions)
	}

	w := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return nil
	}
	for _, s := range sessions {
		ended := "running"
		if s.EndedAt != nil {
			ended = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s  %s  %-4s  %-24s  %3d transitions  %s\n",
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.GameCode,
			s.Title,
			s.Transitions,
			ended)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/hades/internal/config"
	"github.com/roach88/hades/internal/gamedb"
)

// UpsertGames writes game database entries, replacing existing rows with the
// same code. All entries are written in one transaction.
func (s *Store) UpsertGames(ctx context.Context, entries []gamedb.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert games: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO games (code, title, backup, rtc)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			title = excluded.title,
			backup = excluded.backup,
			rtc = excluded.rtc
	`)
	if err != nil {
		return fmt.Errorf("upsert games: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, strings.ToUpper(e.Code), e.Title, e.Backup.String(), e.RTC); err != nil {
			return fmt.Errorf("upsert game %s: %w", e.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert games: %w", err)
	}
	return nil
}

// LookupGame returns the game with the given code.
// Returns false if the code is not in the database.
func (s *Store) LookupGame(ctx context.Context, code string) (gamedb.Entry, bool, error) {
	var (
		e      gamedb.Entry
		backup string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT code, title, backup, rtc FROM games WHERE code = ?
	`, strings.ToUpper(code)).Scan(&e.Code, &e.Title, &backup, &e.RTC)
	if errors.Is(err, sql.ErrNoRows) {
		return gamedb.Entry{}, false, nil
	}
	if err != nil {
		return gamedb.Entry{}, false, fmt.Errorf("lookup game: %w", err)
	}

	e.Backup, err = config.ParseBackupType(backup)
	if err != nil {
		return gamedb.Entry{}, false, fmt.Errorf("lookup game %s: %w", code, err)
	}
	return e, true, nil
}

// CountGames returns the number of games in the database.
func (s *Store) CountGames(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count games: %w", err)
	}
	return n, nil
}

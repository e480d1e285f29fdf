package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SessionRecord describes one emulation session.
type SessionRecord struct {
	ID        string
	ROMPath   string
	GameCode  string
	Title     string
	StartedAt time.Time
	EndedAt   *time.Time // nil while the session is running
}

// Transition is one run-state transition reported by a session's runner.
type Transition struct {
	SessionID string
	Seq       int64
	Event     string
	Frame     uint64
	At        time.Time
}

// CreateSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) CreateSession(ctx context.Context, rec SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, rom_path, game_code, title, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.ROMPath,
		rec.GameCode,
		rec.Title,
		rec.StartedAt.UnixMilli(),
		nullMillis(rec.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// EndSession stamps a session's end time.
func (s *Store) EndSession(ctx context.Context, id string, endedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET ended_at = ? WHERE id = ?
	`, endedAt.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("end session: session %s not found", id)
	}
	return nil
}

// AppendTransition records a transition.
// Uses ON CONFLICT(session_id, seq) DO NOTHING: recording the same seq twice is a no-op.
// The session must exist (foreign key constraint).
func (s *Store) AppendTransition(ctx context.Context, tr Transition) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions (session_id, seq, event, frame, at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		tr.SessionID,
		tr.Seq,
		tr.Event,
		int64(tr.Frame),
		tr.At.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append transition: %w", err)
	}
	return nil
}

// ListTransitions returns a session's transitions ordered by seq.
// Returns an empty slice (not nil) if the session has none.
func (s *Store) ListTransitions(ctx context.Context, sessionID string) ([]Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, event, frame, at
		FROM transitions
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	transitions := []Transition{}
	for rows.Next() {
		var (
			tr    Transition
			frame int64
			at    int64
		)
		if err := rows.Scan(&tr.SessionID, &tr.Seq, &tr.Event, &frame, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		tr.Frame = uint64(frame)
		tr.At = time.UnixMilli(at).UTC()
		transitions = append(transitions, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return transitions, nil
}

// CountTransitions returns how many transitions of the given event a session
// recorded. An empty event counts every transition.
func (s *Store) CountTransitions(ctx context.Context, sessionID, event string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transitions
		WHERE session_id = ? AND (? = '' OR event = ?)
	`, sessionID, event, event).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transitions: %w", err)
	}
	return n, nil
}

// GetSession returns one session record. Returns false if it does not exist.
func (s *Store) GetSession(ctx context.Context, id string) (SessionRecord, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rom_path, game_code, title, started_at, ended_at
		FROM sessions WHERE id = ?
	`, id)
	if err != nil {
		return SessionRecord{}, false, fmt.Errorf("query session: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return SessionRecord{}, false, rows.Err()
	}
	rec, err := scanSession(rows)
	if err != nil {
		return SessionRecord{}, false, err
	}
	return rec, true, nil
}

// ListSessions returns every session, most recent first.
func (s *Store) ListSessions(ctx context.Context) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rom_path, game_code, title, started_at, ended_at
		FROM sessions
		ORDER BY started_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionRecord{}
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func scanSession(rows *sql.Rows) (SessionRecord, error) {
	var (
		rec     SessionRecord
		started int64
		ended   sql.NullInt64
	)
	if err := rows.Scan(&rec.ID, &rec.ROMPath, &rec.GameCode, &rec.Title, &started, &ended); err != nil {
		return SessionRecord{}, fmt.Errorf("scan session: %w", err)
	}
	rec.StartedAt = time.UnixMilli(started).UTC()
	if ended.Valid {
		t := time.UnixMilli(ended.Int64).UTC()
		rec.EndedAt = &t
	}
	return rec, nil
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestSession inserts a session record with minimal required fields.
func createTestSession(t *testing.T, s *Store, id string, startedAt time.Time) SessionRecord {
	t.Helper()
	rec := SessionRecord{
		ID:        id,
		ROMPath:   "/roms/" + id + ".gba",
		GameCode:  "TEST",
		Title:     "Test " + id,
		StartedAt: startedAt,
	}
	if err := s.CreateSession(context.Background(), rec); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	return rec
}

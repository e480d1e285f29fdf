package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hades/internal/store"
)

var traceEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// seedJournal creates a database with one ended session "s1" whose
// transitions are events, one second apart.
func seedJournal(t *testing.T, events ...string) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "hades.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.CreateSession(ctx, store.SessionRecord{
		ID:        "s1",
		ROMPath:   "/roms/ruby.gba",
		GameCode:  "AXVE",
		Title:     "POKEMON RUBY",
		StartedAt: traceEpoch,
	}))
	for i, ev := range events {
		require.NoError(t, st.AppendTransition(ctx, store.Transition{
			SessionID: "s1",
			Seq:       int64(i + 1),
			Event:     ev,
			Frame:     uint64(i * 10),
			At:        traceEpoch.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, st.EndSession(ctx, "s1", traceEpoch.Add(90*time.Second)))
	return dbPath
}

func TestTraceMissingDatabaseFlag(t *testing.T) {
	_, err := executeRoot(t, "trace", "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTraceNonExistentDatabase(t *testing.T) {
	_, err := executeRoot(t, "trace", "--db", "/nonexistent/path/test.db", "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open database")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceUnknownSession(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := executeRoot(t, "trace", "--db", dbPath, "nope")
	require.NoError(t, err)
	assert.Contains(t, out, "No session found: nope")

	out, err = executeRoot(t, "--format", "json", "trace", "--db", dbPath, "nope")
	require.NoError(t, err)
	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "nope", resp.Data.SessionID)
	assert.Empty(t, resp.Data.Timeline)
}

func TestTraceText(t *testing.T) {
	dbPath := seedJournal(t, "started", "reset", "running", "paused")

	out, err := executeRoot(t, "trace", "--db", dbPath, "s1")
	require.NoError(t, err)

	assert.Contains(t, out, "Trace for Session: s1")
	assert.Contains(t, out, "Game: POKEMON RUBY (AXVE)")
	assert.Contains(t, out, "Status: Ended")
	assert.Contains(t, out, "[1] started  frame 0")
	assert.Contains(t, out, "[4] paused   frame 30")
	assert.Contains(t, out, "Transitions: 4")
	assert.Contains(t, out, "paused:      1")
	assert.Contains(t, out, "Duration:    1m30s")
}

func TestTraceEventFilterJSON(t *testing.T) {
	dbPath := seedJournal(t, "started", "reset", "running", "paused", "running", "paused")

	out, err := executeRoot(t, "--format", "json", "trace", "--db", dbPath, "--event", "paused", "s1")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	require.Len(t, resp.Data.Timeline, 2)
	assert.Equal(t, int64(4), resp.Data.Timeline[0].Seq)
	assert.Equal(t, int64(6), resp.Data.Timeline[1].Seq)
	assert.Equal(t, 6, resp.Data.Stats.Transitions)
	assert.Equal(t, map[string]int{"started": 1, "reset": 1, "running": 2, "paused": 2}, resp.Data.Stats.ByEvent)
	assert.Equal(t, uint64(50), resp.Data.Stats.LastFrame)
	assert.True(t, resp.Data.Stats.IsComplete)
}

func TestBuildTrace_RunningSession(t *testing.T) {
	rec := store.SessionRecord{ID: "s2", StartedAt: traceEpoch}
	result := buildTrace(rec, nil, "")

	assert.Equal(t, "s2", result.SessionID)
	assert.NotNil(t, result.Timeline)
	assert.False(t, result.Stats.IsComplete)
	assert.Empty(t, result.Stats.Duration)
}

func TestSessions(t *testing.T) {
	dbPath := seedJournal(t, "started", "reset")

	out, err := executeRoot(t, "sessions", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "s1")
	assert.Contains(t, out, "AXVE")
	assert.Contains(t, out, "2 transitions")
	assert.Contains(t, out, "1m30s")

	out, err = executeRoot(t, "--format", "json", "sessions", "--db", dbPath)
	require.NoError(t, err)
	var resp struct {
		Data []SessionInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "s1", resp.Data[0].ID)
	assert.Equal(t, "/roms/ruby.gba", resp.Data[0].ROMPath)
	assert.Equal(t, 2, resp.Data[0].Transitions)
	require.NotNil(t, resp.Data[0].EndedAt)
}

func TestSessions_Empty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "hades.db")

	out, err := executeRoot(t, "sessions", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions recorded.")
}

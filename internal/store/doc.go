// Package store provides SQLite-backed storage for hades.
//
// Two kinds of data live in one database file:
//   - Games: the game database imported from CUE (code, title, backup type, RTC)
//   - Journal: sessions and the run-state transitions their runners reported
//
// # Ordering
//
// Transitions are ordered by seq, a per-session logical clock, never by
// their wall-clock timestamp. Times are stored as Unix milliseconds.
//
// # Pragmas
//
// Every Open sets journal_mode=WAL, so `hades trace` and `hades sessions`
// read a journal that a running session is still writing. Writers wait up
// to five seconds for a lock (busy_timeout). Foreign keys are enforced: a
// transition cannot be appended for an unknown session. The schema version
// lives in user_version.
package store

package testutil

// FixedSessionID returns the same session id every time.
//
// Unlike journal.FixedGenerator which returns ids in sequence, this generator
// never runs out, so a scenario can be replayed any number of times against
// the same journal rows.
//
// Thread-safety: FixedSessionID is stateless and safe for concurrent use.
type FixedSessionID string

// DefaultSessionID is used when a scenario does not name one.
const DefaultSessionID FixedSessionID = "test-session-default"

// Generate returns the fixed id, or DefaultSessionID when empty.
func (id FixedSessionID) Generate() string {
	if id == "" {
		return string(DefaultSessionID)
	}
	return string(id)
}

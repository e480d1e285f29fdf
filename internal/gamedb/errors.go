package gamedb

import (
	"fmt"

	"cuelang.org/go/cue/token"
)

// Error codes for database loading.
const (
	ErrCodeRead    = "E201"
	ErrCodeCompile = "E202"
	ErrCodeInvalid = "E203"
)

// LoadError represents an error that occurred while loading a game database.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

package config

import (
	"errors"
	"fmt"
)

// ConfigError reports a rejected configuration operation.
// Construction errors are returned at build time, never deferred to reset.
type ConfigError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Message is a human-readable description.
	Message string
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeBackupDataPresent indicates a backup type change after data was attached.
	ErrCodeBackupDataPresent ConfigErrorCode = "BACKUP_DATA_PRESENT"

	// ErrCodeBackupTypeMissing indicates backup data attached before a type was chosen.
	ErrCodeBackupTypeMissing ConfigErrorCode = "BACKUP_TYPE_MISSING"

	// ErrCodeBackupTooLarge indicates backup data larger than the chosen storage.
	ErrCodeBackupTooLarge ConfigErrorCode = "BACKUP_TOO_LARGE"

	// ErrCodeMissingROM indicates Build was called without a ROM.
	ErrCodeMissingROM ConfigErrorCode = "MISSING_ROM"

	// ErrCodeInvalidROM indicates the ROM image is too short or malformed.
	ErrCodeInvalidROM ConfigErrorCode = "INVALID_ROM"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsOrderError returns true if the error is a backup storage construction-order violation.
// Uses errors.As to handle wrapped errors.
func IsOrderError(err error) bool {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeBackupDataPresent || ce.Code == ErrCodeBackupTypeMissing
	}
	return false
}

// IsInvalidROM returns true if the error reports an unusable ROM image.
func IsInvalidROM(err error) bool {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeInvalidROM || ce.Code == ErrCodeMissingROM
	}
	return false
}

func newConfigError(code ConfigErrorCode, format string, args ...any) *ConfigError {
	return &ConfigError{Code: code, Message: fmt.Sprintf(format, args...)}
}

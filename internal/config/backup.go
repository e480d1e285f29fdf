package config

import (
	"fmt"
	"strings"
)

// BackupType identifies the kind of save storage a cartridge carries.
type BackupType int

const (
	// BackupNone means the cartridge has no backup storage.
	BackupNone BackupType = iota
	BackupEEPROM4K
	BackupEEPROM64K
	BackupSRAM
	BackupFlash64
	BackupFlash128
)

var backupNames = map[BackupType]string{
	BackupNone:      "none",
	BackupEEPROM4K:  "eeprom4k",
	BackupEEPROM64K: "eeprom64k",
	BackupSRAM:      "sram",
	BackupFlash64:   "flash64",
	BackupFlash128:  "flash128",
}

// String returns the canonical lowercase name used in settings and the game database.
func (t BackupType) String() string {
	if name, ok := backupNames[t]; ok {
		return name
	}
	return fmt.Sprintf("BackupType(%d)", int(t))
}

// Size returns the storage size in bytes.
func (t BackupType) Size() int {
	switch t {
	case BackupEEPROM4K:
		return 512
	case BackupEEPROM64K:
		return 8 * 1024
	case BackupSRAM:
		return 32 * 1024
	case BackupFlash64:
		return 64 * 1024
	case BackupFlash128:
		return 128 * 1024
	default:
		return 0
	}
}

// ParseBackupType parses a backup type name (case-insensitive).
// The empty string parses as BackupNone.
func ParseBackupType(s string) (BackupType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return BackupNone, nil
	}
	for t, name := range backupNames {
		if name == s {
			return t, nil
		}
	}
	return BackupNone, fmt.Errorf("unknown backup type %q", s)
}

package config

import (
	"bytes"
	"strings"
)

// Cartridge header layout.
const (
	HeaderSize = 0xC0

	titleOffset = 0xA0
	titleLength = 12
	codeOffset  = 0xAC
	codeLength  = 4
	makerOffset = 0xB0
	makerLength = 2
)

// Header holds the identifying fields of a cartridge header.
type Header struct {
	Title string
	Code  string
	Maker string
}

// ParseHeader extracts the cartridge header from a ROM image.
// ROMs shorter than the header are rejected.
func ParseHeader(rom []byte) (Header, error) {
	if len(rom) < HeaderSize {
		return Header{}, newConfigError(ErrCodeInvalidROM,
			"ROM is %d bytes, shorter than the %d-byte header", len(rom), HeaderSize)
	}
	return Header{
		Title: headerString(rom[titleOffset : titleOffset+titleLength]),
		Code:  headerString(rom[codeOffset : codeOffset+codeLength]),
		Maker: headerString(rom[makerOffset : makerOffset+makerLength]),
	}, nil
}

func headerString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}

// Library markers embedded in ROMs by the official save-storage libraries.
// Longer markers come first so FLASH512_V is not reported as FLASH_V.
var backupMarkers = []struct {
	marker []byte
	kind   BackupType
}{
	{[]byte("FLASH1M_V"), BackupFlash128},
	{[]byte("FLASH512_V"), BackupFlash64},
	{[]byte("FLASH_V"), BackupFlash64},
	{[]byte("EEPROM_V"), BackupEEPROM64K},
	{[]byte("SRAM_V"), BackupSRAM},
}

// DetectBackup guesses the backup storage type by scanning the ROM for
// library markers. EEPROM size cannot be told apart this way; 64K is assumed.
// Returns BackupNone and false if no marker is found.
func DetectBackup(rom []byte) (BackupType, bool) {
	for _, m := range backupMarkers {
		if bytes.Contains(rom, m.marker) {
			return m.kind, true
		}
	}
	return BackupNone, false
}

package config

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
)

// LoadROM reads a ROM image from disk.
//
// Plain images are returned as is. For .zip and .7z archives the first file
// of the archive is returned.
func LoadROM(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rom: %w", err)
	}

	var r io.ReadCloser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("open zip %s: %w", path, err)
		}
		if len(zr.File) == 0 {
			return nil, fmt.Errorf("open zip %s: archive is empty", path)
		}
		r, err = zr.File[0].Open()
		if err != nil {
			return nil, fmt.Errorf("open zip entry %s: %w", zr.File[0].Name, err)
		}
	case ".7z":
		sr, err := sevenzip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("open 7z %s: %w", path, err)
		}
		if len(sr.File) == 0 {
			return nil, fmt.Errorf("open 7z %s: archive is empty", path)
		}
		r, err = sr.File[0].Open()
		if err != nil {
			return nil, fmt.Errorf("open 7z entry %s: %w", sr.File[0].Name, err)
		}
	default:
		return data, nil
	}
	defer r.Close()

	rom, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompress rom: %w", err)
	}
	return rom, nil
}

// SavePath returns the backup storage path for a ROM: the ROM path with its
// extension replaced by ".sav".
func SavePath(romPath string) string {
	return strings.TrimSuffix(romPath, filepath.Ext(romPath)) + ".sav"
}

// LoadBackup reads a backup storage file.
// A missing file is not an error: it returns nil data and false.
func LoadBackup(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read backup: %w", err)
	}
	return data, true, nil
}

// WriteBackup writes backup storage content next to the ROM.
// The file is written to a temporary name first and renamed into place.
func WriteBackup(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/hades/internal/config"
	"github.com/roach88/hades/internal/store"
)

// Sources of a cartridge's backup type.
const (
	sourceDatabase = "database"
	sourceEmbedded = "embedded"
	sourceDetected = "detected"
	sourceNone     = "none"
)

type cartridgeRequest struct {
	ROMPath  string
	BIOSPath string
	SkipBIOS bool
	AudioHz  int
	Store    *store.Store // optional, consulted before the embedded game db
}

type cartridge struct {
	Config   *config.Config
	Header   config.Header
	SavePath string
	Source   string // where the backup type came from
}

// loadCartridge reads the ROM, BIOS and backup file and builds the
// emulator configuration.
func loadCartridge(ctx context.Context, req cartridgeRequest) (*cartridge, error) {
	rom, err := config.LoadROM(req.ROMPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load ROM", err)
	}
	header, err := config.ParseHeader(rom)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid ROM", err)
	}

	b := config.NewBuilder().
		ROM(rom).
		SkipBIOS(req.SkipBIOS).
		AudioFrequency(req.AudioHz)

	if req.BIOSPath != "" {
		bios, err := os.ReadFile(req.BIOSPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read BIOS", err)
		}
		b.BIOS(bios)
	}

	source, err := applyGameEntry(ctx, b, header.Code, rom, req.Store)
	if err != nil {
		return nil, err
	}

	savePath := config.SavePath(req.ROMPath)
	data, found, err := config.LoadBackup(savePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read backup", err)
	}
	if found {
		if err := b.BackupStorageData(data); err != nil {
			slog.Warn("ignoring backup file", "path", savePath, "error", err)
		}
	}

	cfg, err := b.Build()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	return &cartridge{
		Config:   cfg,
		Header:   header,
		SavePath: savePath,
		Source:   source,
	}, nil
}

// applyGameEntry sets the backup type from the game database, or from
// header detection for unknown games.
func applyGameEntry(ctx context.Context, b *config.Builder, code string, rom []byte, st *store.Store) (string, error) {
	entry, source, found, err := findGame(ctx, st, code)
	if err != nil {
		return "", err
	}
	if found {
		if err := entry.Apply(b); err != nil {
			return "", WrapExitError(ExitCommandError, fmt.Sprintf("invalid game entry %s", entry.Code), err)
		}
		return source, nil
	}

	if t, ok := config.DetectBackup(rom); ok {
		if err := b.BackupStorageType(t); err != nil {
			return "", WrapExitError(ExitCommandError, "invalid configuration", err)
		}
		return sourceDetected, nil
	}
	b.WithoutBackupStorage()
	return sourceNone, nil
}

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings is the user's settings file.
//
// Example:
//
//	bios: ~/gba/gba_bios.bin
//	skip_bios: true
//	audio_frequency: 48000
//	database: ~/.local/share/hades/hades.db
//	keybinds:
//	  a: p
//	  b: l
//	  start: enter
type Settings struct {
	// BIOS is the path to the BIOS image.
	BIOS string `yaml:"bios,omitempty"`

	// SkipBIOS starts the cartridge without running the BIOS intro.
	SkipBIOS bool `yaml:"skip_bios,omitempty"`

	// AudioFrequency is the audio sample rate in Hz.
	AudioFrequency int `yaml:"audio_frequency,omitempty"`

	// Database is the path to the sqlite database (game db and session journal).
	Database string `yaml:"database,omitempty"`

	// Keybinds maps a console key name (a, b, l, r, up, down, left, right,
	// start, select) to the host key that drives it.
	Keybinds map[string]string `yaml:"keybinds,omitempty"`
}

// ConsoleKeys are the key names a keybinds entry may bind.
var ConsoleKeys = []string{"a", "b", "l", "r", "up", "down", "left", "right", "start", "select"}

// DefaultSettings returns the settings used when no file is given.
func DefaultSettings() Settings {
	return Settings{
		AudioFrequency: DefaultAudioFrequency,
		Keybinds: map[string]string{
			"a":      "p",
			"b":      "l",
			"l":      "e",
			"r":      "o",
			"up":     "w",
			"down":   "s",
			"left":   "a",
			"right":  "d",
			"start":  "enter",
			"select": "backspace",
		},
	}
}

// LoadSettings reads a YAML settings file. Unknown fields are rejected.
// Fields missing from the file keep their default values.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	}
	return ParseSettings(data)
}

// LoadSettingsOptional is LoadSettings but returns the defaults if the file does not exist.
func LoadSettingsOptional(path string) (Settings, error) {
	s, err := LoadSettings(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultSettings(), nil
	}
	return s, err
}

// ParseSettings decodes settings from YAML bytes.
func ParseSettings(data []byte) (Settings, error) {
	settings := DefaultSettings()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&settings); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("failed to parse settings: %w", err)
	}

	if settings.AudioFrequency < 0 {
		return Settings{}, fmt.Errorf("audio_frequency must be positive, got %d", settings.AudioFrequency)
	}
	for console, host := range settings.Keybinds {
		if !slices.Contains(ConsoleKeys, console) {
			return Settings{}, fmt.Errorf("keybinds: unknown console key %q, want one of %s",
				console, strings.Join(ConsoleKeys, ", "))
		}
		if host == "" {
			return Settings{}, fmt.Errorf("keybinds: %s is bound to an empty key", console)
		}
	}
	return settings, nil
}

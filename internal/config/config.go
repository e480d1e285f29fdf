package config

import "bytes"

// DefaultAudioFrequency is the sample rate used when none is configured.
const DefaultAudioFrequency = 48000

// Config is the configuration blob carried by a Reset command.
// It is immutable once built; accessors return copies of byte slices.
type Config struct {
	rom            []byte
	bios           []byte
	skipBIOS       bool
	audioFrequency int
	rtc            bool
	backupType     BackupType
	backupData     []byte
}

// ROM returns a copy of the ROM image.
func (c *Config) ROM() []byte { return bytes.Clone(c.rom) }

// BIOS returns a copy of the BIOS image, or nil if none was set.
func (c *Config) BIOS() []byte { return bytes.Clone(c.bios) }

// SkipBIOS reports whether the engine should start directly at the cartridge entry point.
func (c *Config) SkipBIOS() bool { return c.skipBIOS }

// AudioFrequency returns the audio sample rate in Hz.
func (c *Config) AudioFrequency() int { return c.audioFrequency }

// RTC reports whether the cartridge has a real-time clock.
func (c *Config) RTC() bool { return c.rtc }

// BackupType returns the backup storage type.
func (c *Config) BackupType() BackupType { return c.backupType }

// BackupData returns a copy of the initial backup storage content, or nil.
func (c *Config) BackupData() []byte { return bytes.Clone(c.backupData) }

// Builder populates a Config field by field.
//
// Setters for plain fields chain. The backup storage setters return an error
// when called out of order: BackupStorageType is rejected once data is
// attached, BackupStorageData is rejected until a type is set.
type Builder struct {
	cfg     Config
	typeSet bool
}

// NewBuilder returns a builder with default audio frequency and no backup storage.
func NewBuilder() *Builder {
	return &Builder{
		cfg: Config{audioFrequency: DefaultAudioFrequency},
	}
}

// ROM sets the ROM image. The builder keeps its own copy.
func (b *Builder) ROM(rom []byte) *Builder {
	b.cfg.rom = bytes.Clone(rom)
	return b
}

// BIOS sets the BIOS image. The builder keeps its own copy.
func (b *Builder) BIOS(bios []byte) *Builder {
	b.cfg.bios = bytes.Clone(bios)
	return b
}

// SkipBIOS sets whether the BIOS intro is skipped.
func (b *Builder) SkipBIOS(skip bool) *Builder {
	b.cfg.skipBIOS = skip
	return b
}

// AudioFrequency sets the audio sample rate. Non-positive values keep the default.
func (b *Builder) AudioFrequency(hz int) *Builder {
	if hz > 0 {
		b.cfg.audioFrequency = hz
	}
	return b
}

// RTC sets whether the cartridge has a real-time clock.
func (b *Builder) RTC(rtc bool) *Builder {
	b.cfg.rtc = rtc
	return b
}

// BackupStorageType sets the backup storage type.
// It fails if backup data has already been attached.
func (b *Builder) BackupStorageType(t BackupType) error {
	if b.cfg.backupData != nil {
		return newConfigError(ErrCodeBackupDataPresent,
			"cannot set backup type to %s: backup data already attached", t)
	}
	b.cfg.backupType = t
	b.typeSet = true
	return nil
}

// BackupStorageData attaches the initial backup content.
// It fails if no backup type was set, or if data exceeds the type's size.
func (b *Builder) BackupStorageData(data []byte) error {
	if !b.typeSet || b.cfg.backupType == BackupNone {
		return newConfigError(ErrCodeBackupTypeMissing,
			"cannot attach %d bytes of backup data: no backup type set", len(data))
	}
	if len(data) > b.cfg.backupType.Size() {
		return newConfigError(ErrCodeBackupTooLarge,
			"backup data is %d bytes, %s holds %d", len(data), b.cfg.backupType, b.cfg.backupType.Size())
	}
	b.cfg.backupData = bytes.Clone(data)
	if b.cfg.backupData == nil {
		b.cfg.backupData = []byte{}
	}
	return nil
}

// WithoutBackupStorage clears the backup type and any attached data.
func (b *Builder) WithoutBackupStorage() *Builder {
	b.cfg.backupType = BackupNone
	b.cfg.backupData = nil
	b.typeSet = true
	return b
}

// HasBackupType reports whether a backup type was chosen, explicitly or by WithoutBackupStorage.
func (b *Builder) HasBackupType() bool {
	return b.typeSet
}

// Build validates and returns the configuration.
// The builder may be reused; the returned Config shares no memory with it.
func (b *Builder) Build() (*Config, error) {
	if len(b.cfg.rom) == 0 {
		return nil, newConfigError(ErrCodeMissingROM, "no ROM image set")
	}
	cfg := b.cfg
	cfg.rom = bytes.Clone(b.cfg.rom)
	cfg.bios = bytes.Clone(b.cfg.bios)
	cfg.backupData = bytes.Clone(b.cfg.backupData)
	return &cfg, nil
}

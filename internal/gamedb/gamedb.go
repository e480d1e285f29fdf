package gamedb

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/hades/internal/config"
)

//go:embed games.cue
var embeddedGames []byte

// Entry is one cartridge in the database.
type Entry struct {
	Code   string
	Title  string
	Backup config.BackupType
	RTC    bool
}

// Apply sets the entry's backup storage type and RTC flag on a config builder.
// It must run before any backup data is attached.
func (e Entry) Apply(b *config.Builder) error {
	b.RTC(e.RTC)
	if e.Backup == config.BackupNone {
		b.WithoutBackupStorage()
		return nil
	}
	return b.BackupStorageType(e.Backup)
}

// DB is an in-memory game database keyed by game code.
type DB struct {
	entries map[string]Entry
}

// Embedded returns the database compiled into the binary.
func Embedded() (*DB, error) {
	return Load(embeddedGames, "games.cue")
}

// LoadFile reads a CUE game database from disk.
func LoadFile(path string) (*DB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}
	return Load(data, path)
}

// Load compiles a CUE game database.
//
// The source must define a `game` struct keyed by game code, each entry with
// a `title`, an optional `backup` (default "none") and an optional `rtc`
// (default false). Titles are NFC-normalized.
func Load(src []byte, filename string) (*DB, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeCompile, Message: err.Error()}
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: err.Error(), Pos: value.Pos()}
	}

	games := value.LookupPath(cue.ParsePath("game"))
	if !games.Exists() {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: "no game struct defined", Pos: value.Pos()}
	}

	iter, err := games.Fields()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("iterating games: %v", err), Pos: games.Pos()}
	}

	db := &DB{entries: make(map[string]Entry)}
	for iter.Next() {
		entry, err := compileEntry(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		db.entries[entry.Code] = entry
	}
	return db, nil
}

func compileEntry(code string, v cue.Value) (Entry, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 4 {
		return Entry{}, &LoadError{
			Code:    ErrCodeInvalid,
			Message: fmt.Sprintf("game code %q must be 4 characters", code),
			Pos:     v.Pos(),
		}
	}

	title, err := v.LookupPath(cue.ParsePath("title")).String()
	if err != nil {
		return Entry{}, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("game %s: title: %v", code, err), Pos: v.Pos()}
	}

	entry := Entry{Code: code, Title: norm.NFC.String(title)}

	if bv := v.LookupPath(cue.ParsePath("backup")); bv.Exists() {
		bv, _ = bv.Default()
		name, err := bv.String()
		if err != nil {
			return Entry{}, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("game %s: backup: %v", code, err), Pos: bv.Pos()}
		}
		entry.Backup, err = config.ParseBackupType(name)
		if err != nil {
			return Entry{}, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("game %s: %v", code, err), Pos: bv.Pos()}
		}
	}

	if rv := v.LookupPath(cue.ParsePath("rtc")); rv.Exists() {
		rv, _ = rv.Default()
		entry.RTC, err = rv.Bool()
		if err != nil {
			return Entry{}, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("game %s: rtc: %v", code, err), Pos: rv.Pos()}
		}
	}

	return entry, nil
}

// Lookup returns the entry for a game code.
func (db *DB) Lookup(code string) (Entry, bool) {
	e, ok := db.entries[strings.ToUpper(code)]
	return e, ok
}

// Entries returns every entry sorted by game code.
func (db *DB) Entries() []Entry {
	out := make([]Entry, 0, len(db.entries))
	for _, e := range db.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Len returns the number of entries.
func (db *DB) Len() int {
	return len(db.entries)
}

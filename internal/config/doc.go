// Package config builds the configuration blob handed to the engine on reset
// and loads the inputs it is built from: ROM images, BIOS images, backup
// storage (.sav) files and the user's settings file.
//
// A Config is immutable once built. The Builder enforces the construction
// order of the backup storage fields: a type must be chosen before data is
// attached, and a type can no longer change once data is present.
package config

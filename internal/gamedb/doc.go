// Package gamedb is the game database: per-cartridge facts the ROM does not
// reliably tell, namely the save storage type and whether a real-time clock
// is fitted.
//
// The database is written in CUE. A default list is embedded; users can
// supply their own file with the same shape, and `hades gamedb import`
// copies either into the sqlite store.
package gamedb

// Package machine provides the stand-in emulation core driven by the runner.
//
// A Machine does not execute ARM code. It validates the cartridge header,
// keeps the backup storage the configuration attached, and renders a
// deterministic test pattern once per frame of emulated cycles so the whole
// control plane (runner, debugger, monitor, journal) can be exercised end to
// end against a real cartridge file.
package machine

// Package monitoring holds the diagnostic loggers shared by the counting
// packages and the CLI.
package monitoring

import (
	"log"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

var verbose atomic.Bool

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetVerbose toggles per-track trace output through Verbosef.
func SetVerbose(on bool) {
	verbose.Store(on)
}

// Verbose reports whether per-track trace output is enabled.
func Verbose() bool {
	return verbose.Load()
}

// Verbosef forwards to Logf only when verbose output is enabled.
// Track creation and eviction are logged here; they fire once per object
// and would drown the crossing log on busy scenes.
func Verbosef(format string, v ...interface{}) {
	if verbose.Load() {
		Logf(format, v...)
	}
}

// Package tasmlog is a thin, verbosity-gated wrapper over the standard
// logger, matching the `if verbose { log.Printf(...) }` idiom used
// throughout the teacher's DiskTileStore and generation pump.
package tasmlog

import (
	"log"
	"os"
)

// Logger wraps *log.Logger with a verbosity gate. The zero value logs to
// os.Stderr with verbose logging disabled.
type Logger struct {
	out     *log.Logger
	verbose bool
}

// New builds a Logger writing to os.Stderr. verbose controls whether
// Verbosef calls are emitted.
func New(verbose bool) *Logger {
	return &Logger{out: log.New(os.Stderr, "", log.LstdFlags), verbose: verbose}
}

// Infof always logs. A nil *Logger is a valid no-op logger, so callers
// that have no Logger configured can pass nil instead of branching.
func (l *Logger) Infof(format string, args ...any) {
	if l == nil {
		return
	}
	l.printf(format, args...)
}

// Verbosef logs only when the Logger was constructed with verbose=true.
func (l *Logger) Verbosef(format string, args ...any) {
	if l == nil || !l.verbose {
		return
	}
	l.printf(format, args...)
}

// printf writes through out, or through the standard logger (os.Stderr)
// for a zero-value Logger.
func (l *Logger) printf(format string, args ...any) {
	if l.out == nil {
		log.Printf(format, args...)
		return
	}
	l.out.Printf(format, args...)
}

// SetVerbose toggles Verbosef's gate. A no-op on a nil *Logger.
func (l *Logger) SetVerbose(v bool) {
	if l == nil {
		return
	}
	l.verbose = v
}

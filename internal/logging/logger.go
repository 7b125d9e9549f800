// Package logging provides the structured log sink shared by every
// component of a herd member.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger wraps a standard library logger with a component prefix, mirroring
// the one-logger-per-subsystem shape used throughout the originating
// codebase (each component gets its own bracketed tag, e.g. "[FLOOD]").
type Logger struct {
	component string
	logger    *log.Logger
}

// New creates a Logger that writes to w with the given server and
// component name baked into every line's prefix.
func New(w io.Writer, serverName, component string) *Logger {
	prefix := fmt.Sprintf("[%s][%s] ", serverName, component)
	return &Logger{
		component: component,
		logger:    log.New(w, prefix, log.LstdFlags|log.Lmicroseconds),
	}
}

// Open opens the server's log file (append, create if missing) per the
// logging.filename config, or returns os.Stdout if filename is empty.
// The file is never rotated. The caller owns closing the returned file,
// if any.
func Open(filename string) (io.Writer, *os.File, error) {
	if filename == "" {
		return os.Stdout, nil, nil
	}
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

// Infof logs at informational level.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Printf("INFO "+format, args...)
}

// Warnf logs at warning level.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Printf("WARN "+format, args...)
}

// Errorf logs at error level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Printf("ERROR "+format, args...)
}

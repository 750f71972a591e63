// Package logging builds the component loggers. Every component gets a
// standard *log.Logger with a bracketed prefix ("[sync] ", "[daemon] ");
// they share one output, stderr or a size-rotated file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the shared output.
type Options struct {
	// File enables rotation into this path (empty = stderr)
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Stderr replaces os.Stderr, mainly for tests
	Stderr io.Writer
}

// Sink is the shared log output.
type Sink struct {
	out     io.Writer
	rotator *lumberjack.Logger
}

// Open prepares the output. With a File, its directory is created and
// old logs are compressed on rotation.
func Open(opts Options) (*Sink, error) {
	if opts.File == "" {
		out := opts.Stderr
		if out == nil {
			out = os.Stderr
		}
		return &Sink{out: out}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	return &Sink{out: rotator, rotator: rotator}, nil
}

// Logger returns a logger for one component.
func (s *Sink) Logger(component string) *log.Logger {
	return log.New(s.out, "["+component+"] ", log.LstdFlags)
}

// Rotate forces a rotation. It is a no-op on stderr.
func (s *Sink) Rotate() error {
	if s.rotator == nil {
		return nil
	}
	return s.rotator.Rotate()
}

// Close closes the log file, if any.
func (s *Sink) Close() error {
	if s.rotator == nil {
		return nil
	}
	return s.rotator.Close()
}

// Discard is a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

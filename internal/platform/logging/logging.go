// Package logging builds the process-wide hclog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	hclog "github.com/hashicorp/go-hclog"
)

// Options controls where and how verbosely the logger writes.
type Options struct {
	Level string
	// Path is the log file. The TUI owns the terminal, so logs never go to stderr
	// unless Path is empty.
	Path string
	JSON bool
}

// New returns the root logger and a closer for its output.
func New(opts Options) (hclog.Logger, io.Closer, error) {
	level := hclog.LevelFromString(opts.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closer = f
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "readingroom",
		Level:      level,
		Output:     out,
		JSONFormat: opts.JSON,
	})
	return logger, closer, nil
}

// Discard is a logger that drops everything; used by tests and by commands that
// never mount a reading view.
func Discard() hclog.Logger {
	return hclog.NewNullLogger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

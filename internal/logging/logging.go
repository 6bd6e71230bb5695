package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/phuslu/log"

	"finqa/internal/config"
)

// New builds the application logger. The returned closer releases the log file, if any.
func New(cfg config.LoggingConfig, out io.Writer) (*log.Logger, io.Closer, error) {
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}
	if out == nil {
		out = io.Discard
	}

	logger := &log.Logger{
		Level:      log.ParseLevel(cfg.Level),
		TimeFormat: "15:04:05",
	}
	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.TimeFormat = ""
		logger.Writer = &log.IOWriter{Writer: out}
	default:
		logger.Writer = &log.ConsoleWriter{
			Writer:      out,
			ColorOutput: cfg.File == "" && out == os.Stderr,
			QuoteString: true,
		}
	}
	return logger, closer, nil
}

// Discard returns a logger that drops everything. Used by tests and library callers without logging.
func Discard() *log.Logger {
	return &log.Logger{Level: log.ErrorLevel, Writer: &log.IOWriter{Writer: io.Discard}}
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Package logger builds charmbracelet/log loggers sharing one verbosity.
package logger

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	mu      sync.Mutex
	loggers []*log.Logger
)

// New creates a logger writing to stderr, apart from the report tables on stdout.
func New(prefix string) *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          prefix,
		ReportCaller:    false,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Formatter:       log.TextFormatter,
		Level:           log.GetLevel(),
	})

	mu.Lock()
	loggers = append(loggers, l)
	mu.Unlock()
	return l
}

// Level maps the -v count to a level: 0 info, 1 or more debug.
func Level(verbose int) log.Level {
	if verbose > 0 {
		return log.DebugLevel
	}
	return log.InfoLevel
}

// SetVerbose applies Level(verbose) to the default logger and every logger made by New.
func SetVerbose(verbose int) {
	level := Level(verbose)
	log.SetLevel(level)

	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		l.SetLevel(level)
	}
}

// Package logging provides component loggers for the repack tool.
// Repack is a single-run batch tool, so loggers write to stderr; the
// update pipeline's user-facing progress goes through the cmd layer,
// while component loggers carry structured diagnostics.
//
// Basic usage:
//
//	logging.Init("info")
//	logger := logging.Get("archive")
//	logger.Debug("running", "command", cmdline)
package logging

import (
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type state struct {
	mu      sync.Mutex
	level   log.Level
	loggers map[string]*log.Logger
}

var globalState = &state{
	level:   log.WarnLevel,
	loggers: make(map[string]*log.Logger),
}

// Init sets the global log level. Unknown strings fall back to "info".
// It may be called before or after Get; existing loggers are updated.
func Init(level string) {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}

	globalState.mu.Lock()
	defer globalState.mu.Unlock()
	globalState.level = parsed
	for _, logger := range globalState.loggers {
		logger.SetLevel(parsed)
	}
}

// Get returns the logger for a component, creating it on first use.
func Get(component string) *log.Logger {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	if logger, ok := globalState.loggers[component]; ok {
		return logger
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           globalState.level,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          component,
	})
	globalState.loggers[component] = logger
	return logger
}

package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/YuminosukeSato/findhome/pkg/errors"
)

var (
	globalMu       sync.RWMutex
	globalProvider LoggerProvider = NewZerologProvider(LevelInfo, os.Stderr)
)

// SetupLogger configures the process-wide provider used by components that
// were not given an explicit Logger. format is "json" or "console".
// Library warnings raised through errors.Warn are routed to the new provider.
func SetupLogger(level, format string, w io.Writer) (LoggerProvider, error) {
	lvl, err := ToLogLevel(level)
	if err != nil {
		return nil, err
	}

	var provider *ZerologProvider
	switch strings.ToLower(format) {
	case "", "json":
		provider = NewZerologProvider(lvl, w)
	case "console":
		provider = NewConsoleProvider(lvl, w)
	default:
		return nil, errors.NewConfigurationError("logging.format", format, "must be json or console")
	}

	SetProvider(provider)
	warnLogger := provider.GetLoggerWithName("warnings")
	errors.SetZerologWarnFunc(func(w error) {
		warnLogger.Warn(w.Error(), "warning", w)
	})
	return provider, nil
}

// SetProvider replaces the process-wide provider.
func SetProvider(p LoggerProvider) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalProvider = p
}

// GetLogger returns a logger from the process-wide provider.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalProvider.GetLogger()
}

// GetLoggerWithName returns a component logger from the process-wide provider.
func GetLoggerWithName(name string) Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalProvider.GetLoggerWithName(name)
}

// OrDefault returns l, or a component logger from the process-wide provider when l is nil.
func OrDefault(l Logger, name string) Logger {
	if l != nil {
		return l
	}
	return GetLoggerWithName(name)
}

// ToLogLevel parses a level name.
func ToLogLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewConfigurationError("logging.level", level, fmt.Sprintf("invalid log level %q", level))
	}
}

// Package log provides the process-wide logger, a logrus adapter with a
// pattern formatter and pluggable appenders.
package log

import (
	"sync"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

// Fields is a shorthand for structured log fields.
type Fields = map[string]interface{}

var (
	once   sync.Once
	mu     sync.RWMutex
	logger Logger
	closer func() error
)

// GetLogger returns the global logger. Before Init it is a stderr info logger.
func GetLogger() Logger {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if logger == nil {
			l, c, _ := newLogger(DefaultConfig())
			logger, closer = l, c
		}
	})
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Init replaces the global logger. A previous file appender is closed.
func Init(cfg *LoggerConfig) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	l, c, err := newLogger(cfg)
	if err != nil {
		return err
	}

	once.Do(func() {})
	mu.Lock()
	prev := closer
	logger, closer = l, c
	mu.Unlock()

	if prev != nil {
		return prev()
	}
	return nil
}

// Close releases appender resources of the global logger.
func Close() error {
	mu.Lock()
	c := closer
	closer = nil
	mu.Unlock()
	if c == nil {
		return nil
	}
	return c()
}

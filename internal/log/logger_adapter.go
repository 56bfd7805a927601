package log

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

type logrusAdapter struct {
	entry *logrus.Entry
}

// New builds a standalone logger from cfg without touching the global one.
func New(cfg *LoggerConfig) (Logger, error) {
	l, _, err := newLogger(cfg)
	return l, err
}

func newLogger(cfg *LoggerConfig) (Logger, func() error, error) {
	l := logrus.New()

	pattern := cfg.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	layout := cfg.Time
	if layout == "" {
		layout = DefaultTimeLayout
	}
	l.SetFormatter(&formatter{
		pattern: pattern,
		time:    layout,
	})
	l.SetLevel(parseLevel(cfg.Level))

	if strings.Contains(pattern, "%caller") || strings.Contains(pattern, "%func") {
		l.SetReportCaller(true)
	}

	out, err := buildAppenders(cfg.Appenders)
	if err != nil {
		return nil, nil, err
	}
	l.SetOutput(out)

	return &logrusAdapter{entry: logrus.NewEntry(l)}, out.Close, nil
}

func parseLevel(s string) logrus.Level {
	level, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func buildAppenders(cfgs []AppenderConfig) (*MultiWriter, error) {
	mw := NewMultiWriter()
	if len(cfgs) == 0 {
		return mw.Add(os.Stderr), nil
	}

	for i, ac := range cfgs {
		switch strings.ToLower(ac.Type) {
		case AppenderConsole:
			var opt ConsoleAppenderOpt
			if err := mapstructure.Decode(ac.Options, &opt); err != nil {
				return nil, fmt.Errorf("appender %d (console): %w", i, err)
			}
			switch strings.ToLower(opt.Target) {
			case "", "stderr":
				mw.Add(os.Stderr)
			case "stdout":
				mw.Add(os.Stdout)
			default:
				return nil, fmt.Errorf("appender %d (console): unknown target %q", i, opt.Target)
			}
		case AppenderFile:
			opt, err := decodeFileAppender(ac.Options)
			if err != nil {
				return nil, fmt.Errorf("appender %d (file): %w", i, err)
			}
			mw.AddFileAppender(opt)
		default:
			return nil, fmt.Errorf("appender %d: unknown type %q", i, ac.Type)
		}
	}
	return mw, nil
}

func (l *logrusAdapter) Print(args ...interface{})                 { l.entry.Print(args...) }
func (l *logrusAdapter) Printf(format string, args ...interface{}) { l.entry.Printf(format, args...) }

func (l *logrusAdapter) Trace(args ...interface{})                 { l.entry.Trace(args...) }
func (l *logrusAdapter) Tracef(format string, args ...interface{}) { l.entry.Tracef(format, args...) }

func (l *logrusAdapter) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logrusAdapter) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

func (l *logrusAdapter) Info(args ...interface{})                 { l.entry.Info(args...) }
func (l *logrusAdapter) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

func (l *logrusAdapter) Warn(args ...interface{})                 { l.entry.Warn(args...) }
func (l *logrusAdapter) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

func (l *logrusAdapter) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logrusAdapter) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusAdapter) Fatal(args ...interface{})                 { l.entry.Fatal(args...) }
func (l *logrusAdapter) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

func (l *logrusAdapter) Panic(args ...interface{})                 { l.entry.Panic(args...) }
func (l *logrusAdapter) Panicf(format string, args ...interface{}) { l.entry.Panicf(format, args...) }

func (l *logrusAdapter) WithField(field string, value interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithField(field, value)}
}
func (l *logrusAdapter) WithFields(fields map[string]interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithFields(fields)}
}
func (l *logrusAdapter) WithError(err error) Logger {
	return &logrusAdapter{entry: l.entry.WithError(err)}
}

func (l *logrusAdapter) IsTraceEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.TraceLevel)
}
func (l *logrusAdapter) IsDebugEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}
func (l *logrusAdapter) IsInfoEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.InfoLevel)
}

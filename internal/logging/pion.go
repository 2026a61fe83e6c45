package logging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

// levelTrace sits below debug; pion is very chatty at trace.
const levelTrace = slog.LevelDebug - 4

// PionFactory routes pion's scoped loggers into slog. A nil Logger means
// slog.Default at the time each message is logged.
type PionFactory struct {
	Logger *slog.Logger
}

// NewLogger implements logging.LoggerFactory.
func (f PionFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{base: f.Logger, scope: scope}
}

type pionLogger struct {
	base  *slog.Logger
	scope string
}

func (l *pionLogger) log(level slog.Level, msg string) {
	logger := l.base
	if logger == nil {
		logger = slog.Default()
	}
	ctx := context.Background()
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.Log(ctx, level, msg, "scope", "pion/"+l.scope)
}

func (l *pionLogger) Trace(msg string) { l.log(levelTrace, msg) }
func (l *pionLogger) Tracef(format string, args ...interface{}) {
	l.log(levelTrace, fmt.Sprintf(format, args...))
}

func (l *pionLogger) Debug(msg string) { l.log(slog.LevelDebug, msg) }
func (l *pionLogger) Debugf(format string, args ...interface{}) {
	l.log(slog.LevelDebug, fmt.Sprintf(format, args...))
}

func (l *pionLogger) Info(msg string) { l.log(slog.LevelInfo, msg) }
func (l *pionLogger) Infof(format string, args ...interface{}) {
	l.log(slog.LevelInfo, fmt.Sprintf(format, args...))
}

func (l *pionLogger) Warn(msg string) { l.log(slog.LevelWarn, msg) }
func (l *pionLogger) Warnf(format string, args ...interface{}) {
	l.log(slog.LevelWarn, fmt.Sprintf(format, args...))
}

func (l *pionLogger) Error(msg string) { l.log(slog.LevelError, msg) }
func (l *pionLogger) Errorf(format string, args ...interface{}) {
	l.log(slog.LevelError, fmt.Sprintf(format, args...))
}

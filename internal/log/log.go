// Package log provides the process-wide zap logger used by snowline.
package log

import (
	"fmt"

	"go.uber.org/zap"
)

var log *zap.SugaredLogger
var baseLogger *zap.Logger

// Init initializes the package-level logger
func Init(debug bool) error {
	var zapLogger *zap.Logger
	var err error

	if debug {
		zapLogger, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		zapLogger, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}

	baseLogger = zapLogger
	log = zapLogger.Sugar()
	return nil
}

func base() *zap.Logger {
	if baseLogger == nil {
		baseLogger, _ = zap.NewProduction(zap.AddCallerSkip(1))
		log = baseLogger.Sugar()
	}
	return baseLogger
}

// Component returns a named logger to hand to a component's constructor.
// The package caller skip is undone so call sites are reported correctly.
func Component(name string) *zap.SugaredLogger {
	return base().WithOptions(zap.AddCallerSkip(-1)).Sugar().Named(name)
}

// Sync flushes any buffered log entries
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}

// Infow logs a message with key-value pairs at info level
func Infow(msg string, keysAndValues ...interface{}) {
	base()
	log.Infow(msg, keysAndValues...)
}

// Warnw logs a message with key-value pairs at warn level
func Warnw(msg string, keysAndValues ...interface{}) {
	base()
	log.Warnw(msg, keysAndValues...)
}

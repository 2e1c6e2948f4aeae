package kv

import (
	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

type logger struct {
	sugar *zap.SugaredLogger
}

// NewLogger routes badger logs to l. A nil l discards them.
func NewLogger(l *zap.Logger) badger.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &logger{sugar: l.Named("badger").WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *logger) Errorf(format string, args ...any) {
	l.sugar.Errorf(format, args...)
}

func (l *logger) Warningf(format string, args ...any) {
	l.sugar.Warnf(format, args...)
}

func (l *logger) Infof(format string, args ...any) {
	l.sugar.Infof(format, args...)
}

func (l *logger) Debugf(format string, args ...any) {
	l.sugar.Debugf(format, args...)
}

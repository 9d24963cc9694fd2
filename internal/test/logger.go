// Package test contains test utilities.
package test

import "github.com/bluenviron/dashmtx/internal/logger"

type nilLogger struct{}

func (nilLogger) Log(_ logger.Level, _ string, _ ...interface{}) {
}

// NilLogger is a logger to /dev/null.
var NilLogger logger.Writer = &nilLogger{}

type testLogger struct {
	cb func(level logger.Level, format string, args ...interface{})
}

func (l *testLogger) Log(level logger.Level, format string, args ...interface{}) {
	l.cb(level, format, args...)
}

// Logger returns a logger that calls a callback.
func Logger(cb func(logger.Level, string, ...interface{})) logger.Writer {
	return &testLogger{cb: cb}
}

package logger

// Writer is an entity that can write logs.
type Writer interface {
	Log(level Level, format string, args ...interface{})
}

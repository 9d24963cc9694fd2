// Package logger contains a logger implementation.
package logger

import (
	"bytes"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Level is a log level.
type Level int

// Log levels.
const (
	Debug Level = iota + 1
	Info
	Warn
	Error
)

// Destination is a log destination.
type Destination int

const (
	// DestinationStdout writes logs to the standard output.
	DestinationStdout Destination = iota

	// DestinationFile writes logs to a file.
	DestinationFile
)

type destination interface {
	log(t time.Time, level Level, format string, args ...interface{})
	close()
}

func writePad(buf *bytes.Buffer, v int, width int) {
	s := strconv.Itoa(v)
	for i := len(s); i < width; i++ {
		buf.WriteByte('0')
	}
	buf.WriteString(s)
}

func writeTime(buf *bytes.Buffer, t time.Time) {
	year, month, day := t.Date()
	writePad(buf, year, 4)
	buf.WriteByte('/')
	writePad(buf, int(month), 2)
	buf.WriteByte('/')
	writePad(buf, day, 2)
	buf.WriteByte(' ')

	hour, minute, sec := t.Clock()
	writePad(buf, hour, 2)
	buf.WriteByte(':')
	writePad(buf, minute, 2)
	buf.WriteByte(':')
	writePad(buf, sec, 2)
	buf.WriteByte(' ')
}

func labelOfLevel(level Level) string {
	switch level {
	case Debug:
		return "DEB"
	case Info:
		return "INF"
	case Warn:
		return "WAR"
	default:
		return "ERR"
	}
}

func writeContent(buf *bytes.Buffer, format string, args []interface{}) {
	fmt.Fprintf(buf, format, args...)
	buf.WriteByte('\n')
}

// writeEntryPlain renders a full entry without terminal colors.
func writeEntryPlain(buf *bytes.Buffer, t time.Time, level Level, format string, args []interface{}) {
	writeTime(buf, t)
	buf.WriteString(labelOfLevel(level))
	buf.WriteByte(' ')
	writeContent(buf, format, args)
}

// Logger is a log handler.
type Logger struct {
	level Level

	mutex        sync.Mutex
	destinations []destination
}

// New allocates a Logger.
func New(level Level, destinations []Destination, filePath string) (*Logger, error) {
	lh := &Logger{
		level: level,
	}

	for _, destType := range destinations {
		switch destType {
		case DestinationStdout:
			lh.destinations = append(lh.destinations, &destinationStdout{})

		case DestinationFile:
			dest, err := newDestinationFile(filePath)
			if err != nil {
				lh.Close()
				return nil, err
			}
			lh.destinations = append(lh.destinations, dest)
		}
	}

	return lh, nil
}

// Close closes a Logger.
func (lh *Logger) Close() {
	for _, dest := range lh.destinations {
		dest.close()
	}
}

// Log writes a log entry.
func (lh *Logger) Log(level Level, format string, args ...interface{}) {
	if level < lh.level {
		return
	}

	t := time.Now()

	lh.mutex.Lock()
	defer lh.mutex.Unlock()

	for _, dest := range lh.destinations {
		dest.log(t, level, format, args...)
	}
}

package logger

import (
	"bytes"
	"os"
	"time"

	"github.com/gookit/color"
)

type destinationStdout struct {
	buf bytes.Buffer
}

func levelCode(level Level) string {
	switch level {
	case Debug:
		return color.Debug.Code()
	case Info:
		return color.Green.Code()
	case Warn:
		return color.Warn.Code()
	default:
		return color.Error.Code()
	}
}

func (d *destinationStdout) log(t time.Time, level Level, format string, args ...interface{}) {
	d.buf.Reset()

	var timebuf bytes.Buffer
	writeTime(&timebuf, t)
	d.buf.WriteString(color.RenderString(color.Gray.Code(), timebuf.String()))

	d.buf.WriteString(color.RenderString(levelCode(level), labelOfLevel(level)))
	d.buf.WriteByte(' ')

	writeContent(&d.buf, format, args)
	os.Stdout.Write(d.buf.Bytes()) //nolint:errcheck
}

func (d *destinationStdout) close() {
}

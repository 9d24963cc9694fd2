package dash

import (
	"fmt"
	"os"
	"path/filepath"

	mp4codecs "github.com/bluenviron/mediacommon/v2/pkg/formats/mp4/codecs"
)

// initSegmentWriter is a one-shot writer of a track's
// initialization segment.
type initSegmentWriter struct {
	path    string
	trackID int
	codec   mp4codecs.Codec
}

func (w *initSegmentWriter) write() error {
	err := os.MkdirAll(filepath.Dir(w.path), 0o755)
	if err != nil {
		return fmt.Errorf("create init segment dir: %w", err)
	}

	tmpPath := w.path + ".tmp"

	fi, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("open init segment: %w", err)
	}

	err = writeInit(fi, w.trackID, w.codec)
	if err != nil {
		fi.Close()
		return fmt.Errorf("write init segment: %w", err)
	}

	err = fi.Close()
	if err != nil {
		return fmt.Errorf("close init segment: %w", err)
	}

	err = os.Rename(tmpPath, w.path)
	if err != nil {
		return fmt.Errorf("rename init segment: %w", err)
	}

	return nil
}

package dash

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// fragmentWriter drives one in-progress fragment: it opens the
// destination, feeds the container encoder sample by sample and
// atomically publishes the result under its final name.
type fragmentWriter struct {
	frag      *fragment
	fi        *os.File
	enc       segmentEncoder
	finalized bool
}

func (w *fragmentWriter) initialize(
	isVideo bool,
	start time.Duration,
	mpd *mpdWriter,
	trackID int,
	newEncoder newSegmentEncoderFunc,
) error {
	dir, fileName, sequence := mpd.allocateFragmentSlot(isVideo, start)

	w.frag = &fragment{
		isVideo:  isVideo,
		sequence: sequence,
		start:    start,
		path:     filepath.Join(dir, fileName),
	}

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("create fragment dir: %w", err)
	}

	fi, err := os.Create(w.frag.path + ".tmp")
	if err != nil {
		return fmt.Errorf("open fragment: %w", err)
	}
	w.fi = fi

	w.enc = newEncoder(fi, trackID, sequence, start)
	return nil
}

func (w *fragmentWriter) duration() time.Duration {
	return w.frag.duration
}

// writeSample appends a media sample. Samples without a payload are no-ops.
func (w *fragmentWriter) writeSample(s *Sample) error {
	if s.Payload == nil {
		return nil
	}

	dts := s.DTS
	pts := dts
	keyFrame := true
	if w.frag.isVideo {
		pts = dts + s.PTSOffset
		keyFrame = s.KeyFrame
	}

	err := w.enc.writeSample(dts, pts, keyFrame, s.Payload)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}

	w.extend(s.DTS)
	return nil
}

// extend records the upper edge of the fragment's time span.
// The closing edge is the opening timestamp of the following fragment.
func (w *fragmentWriter) extend(edge time.Duration) {
	if edge > w.frag.start {
		w.frag.duration = edge - w.frag.start
	}
}

// finalize flushes the container trailer, closes the destination and
// renames it to its final name. It must be called at most once.
func (w *fragmentWriter) finalize() (time.Duration, error) {
	if w.finalized {
		return 0, fmt.Errorf("fragment already finalized")
	}
	w.finalized = true

	lastDTS, err := w.enc.flush()
	if err != nil {
		w.fi.Close()
		return 0, fmt.Errorf("flush encoder: %w", err)
	}

	err = w.fi.Close()
	if err != nil {
		return 0, fmt.Errorf("close fragment: %w", err)
	}

	err = os.Rename(w.frag.path+".tmp", w.frag.path)
	if err != nil {
		return 0, fmt.Errorf("rename fragment: %w", err)
	}

	return lastDTS, nil
}

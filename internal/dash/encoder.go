package dash

import (
	"io"
	"time"
)

// segmentEncoder serializes the samples of a single fragment
// into a media container.
type segmentEncoder interface {
	// writeSample appends one sample.
	writeSample(dts time.Duration, pts time.Duration, keyFrame bool, payload []byte) error

	// flush writes the container trailer to the sink and
	// returns the decode timestamp of the last written sample.
	flush() (time.Duration, error)
}

// newSegmentEncoderFunc allocates a segmentEncoder bound to a byte sink.
type newSegmentEncoderFunc func(w io.Writer, trackID int, sequenceNumber uint64, baseTime time.Duration) segmentEncoder

package dash

import (
	"io"
	"time"

	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4/seekablebuffer"
	mp4codecs "github.com/bluenviron/mediacommon/v2/pkg/formats/mp4/codecs"
)

// manifest and container timestamps share a millisecond clock.
const fmp4Timescale = 1000

func writeInit(w io.Writer, trackID int, codec mp4codecs.Codec) error {
	init := fmp4.Init{
		Tracks: []*fmp4.InitTrack{{
			ID:        trackID,
			TimeScale: fmp4Timescale,
			Codec:     codec,
		}},
	}

	var buf seekablebuffer.Buffer
	err := init.Marshal(&buf)
	if err != nil {
		return err
	}

	_, err = w.Write(buf.Bytes())
	return err
}

// fmp4SegmentEncoder writes the samples of one fragment as a
// single-track fMP4 part (moof + mdat).
type fmp4SegmentEncoder struct {
	w              io.Writer
	sequenceNumber uint64

	partTrack    *fmp4.PartTrack
	queued       *fmp4.PartSample
	queuedDTS    time.Duration
	lastDuration uint32
	lastDTS      time.Duration
}

func newFMP4SegmentEncoder(w io.Writer, trackID int, sequenceNumber uint64, baseTime time.Duration) segmentEncoder {
	return &fmp4SegmentEncoder{
		w:              w,
		sequenceNumber: sequenceNumber,
		partTrack: &fmp4.PartTrack{
			ID:       trackID,
			BaseTime: uint64(durationToMs(baseTime)),
		},
	}
}

// the duration of each sample is the distance to the following one;
// the closing sample reuses the previous duration.
func (e *fmp4SegmentEncoder) writeSample(dts time.Duration, pts time.Duration, keyFrame bool, payload []byte) error {
	sample := &fmp4.PartSample{
		PTSOffset:       int32(durationToMs(pts - dts)),
		IsNonSyncSample: !keyFrame,
		Payload:         payload,
	}

	if e.queued != nil {
		delta := durationToMs(dts - e.queuedDTS)
		if delta < 0 {
			delta = 0
		}
		e.queued.Duration = uint32(delta)
		e.lastDuration = uint32(delta)
		e.partTrack.Samples = append(e.partTrack.Samples, e.queued)
	}

	e.queued = sample
	e.queuedDTS = dts
	e.lastDTS = dts
	return nil
}

func (e *fmp4SegmentEncoder) flush() (time.Duration, error) {
	if e.queued != nil {
		e.queued.Duration = e.lastDuration
		e.partTrack.Samples = append(e.partTrack.Samples, e.queued)
		e.queued = nil
	}

	part := fmp4.Part{
		SequenceNumber: uint32(e.sequenceNumber),
		Tracks:         []*fmp4.PartTrack{e.partTrack},
	}

	var buf seekablebuffer.Buffer
	err := part.Marshal(&buf)
	if err != nil {
		return 0, err
	}

	_, err = e.w.Write(buf.Bytes())
	if err != nil {
		return 0, err
	}

	return e.lastDTS, nil
}

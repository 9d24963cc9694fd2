package dash

import (
	"time"
)

// CodecParams is a codec parameter set carried in place of a media payload.
type CodecParams struct {
	// H264 sequence parameter set (video).
	SPS []byte

	// H264 picture parameter set (video).
	PPS []byte

	// MPEG-4 Audio configuration (audio).
	MPEG4AudioConfig []byte
}

// Sample is a timed media unit fed into the muxer.
// Either Payload or Params is set.
type Sample struct {
	// decode timestamp, on the media clock.
	DTS time.Duration

	// offset between presentation and decode timestamp (video only).
	PTSOffset time.Duration

	// whether the sample can start independent decoding (video only).
	KeyFrame bool

	// media payload.
	Payload []byte

	// codec parameter set, replacing the media payload.
	Params *CodecParams
}

func durationToMs(d time.Duration) int64 {
	return int64(d / time.Millisecond)
}

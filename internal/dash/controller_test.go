package dash

import (
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bluenviron/dashmtx/internal/logger"
	"github.com/bluenviron/dashmtx/internal/test"
)

type stubEncoder struct {
	lastDTS time.Duration
}

func (e *stubEncoder) writeSample(dts time.Duration, _ time.Duration, _ bool, _ []byte) error {
	e.lastDTS = dts
	return nil
}

func (e *stubEncoder) flush() (time.Duration, error) {
	return e.lastDTS, nil
}

func newStubEncoder(_ io.Writer, _ int, _ uint64, _ time.Duration) segmentEncoder {
	return &stubEncoder{}
}

// flakyEncoder fails flush() while *failures is positive.
type flakyEncoder struct {
	failures *int
	lastDTS  time.Duration
}

func (e *flakyEncoder) writeSample(dts time.Duration, _ time.Duration, _ bool, _ []byte) error {
	e.lastDTS = dts
	return nil
}

func (e *flakyEncoder) flush() (time.Duration, error) {
	if *e.failures > 0 {
		*e.failures--
		return 0, fmt.Errorf("transient disk error")
	}
	return e.lastDTS, nil
}

func testSessionConf(root string) sessionConf {
	return sessionConf{
		root:             root,
		app:              "live",
		stream:           "mystream",
		mpdPathTemplate:  "%app/%stream.mpd",
		fragmentDuration: 1 * time.Second,
		updatePeriod:     5 * time.Second,
		timeshift:        60 * time.Second,
		windowSize:       1,
	}
}

func TestControllerVideoWaitsForKeyframe(t *testing.T) {
	var warns []string
	c := &controller{
		parent: test.Logger(func(level logger.Level, format string, args ...interface{}) {
			if level == logger.Warn {
				warns = append(warns, fmt.Sprintf(format, args...))
			}
		}),
		newEncoder: newStubEncoder,
	}
	c.initialize()
	c.onPublish(testSessionConf(t.TempDir()))

	err := c.onVideo(&Sample{Params: &CodecParams{SPS: testSPS, PPS: testPPS}})
	require.NoError(t, err)

	err = c.onVideo(&Sample{DTS: 0, KeyFrame: false, Payload: []byte{1}})
	require.NoError(t, err)
	require.Nil(t, c.curVideo)
	require.Equal(t, []string{"discarding video sample received before the first keyframe"}, warns)

	err = c.onVideo(&Sample{DTS: 500 * time.Millisecond, KeyFrame: true, Payload: []byte{2}})
	require.NoError(t, err)
	require.NotNil(t, c.curVideo)
	require.Equal(t, 500*time.Millisecond, c.curVideo.frag.start)
}

func TestControllerSkipsSamplesBeforeParams(t *testing.T) {
	c := &controller{
		parent:     test.NilLogger,
		newEncoder: newStubEncoder,
	}
	c.initialize()
	c.onPublish(testSessionConf(t.TempDir()))

	err := c.onAudio(&Sample{DTS: 0, Payload: []byte{1}})
	require.NoError(t, err)
	require.Nil(t, c.curAudio)

	err = c.onVideo(&Sample{DTS: 0, KeyFrame: true, Payload: []byte{1}})
	require.NoError(t, err)
	require.Nil(t, c.curVideo)
}

func TestControllerRejectsInvalidParams(t *testing.T) {
	var warns []string
	c := &controller{
		parent: test.Logger(func(level logger.Level, format string, args ...interface{}) {
			if level == logger.Warn {
				warns = append(warns, fmt.Sprintf(format, args...))
			}
		}),
		newEncoder: newStubEncoder,
	}
	c.initialize()
	c.onPublish(testSessionConf(t.TempDir()))

	err := c.onVideo(&Sample{Params: &CodecParams{}})
	require.NoError(t, err)
	require.Nil(t, c.videoParams)

	err = c.onVideo(&Sample{Params: &CodecParams{SPS: []byte{0x67}, PPS: testPPS}})
	require.NoError(t, err)
	require.Nil(t, c.videoParams)

	err = c.onAudio(&Sample{Params: &CodecParams{}})
	require.NoError(t, err)
	require.Nil(t, c.audioParams)

	require.Equal(t, 3, len(warns))
}

func TestControllerManifestThrottle(t *testing.T) {
	dir := t.TempDir()

	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	published := 0

	c := &controller{
		parent:     test.NilLogger,
		newEncoder: newStubEncoder,
		onManifest: func(string) { published++ },
		timeNow:    func() time.Time { return now },
	}
	c.initialize()
	c.onPublish(testSessionConf(dir))

	err := c.onVideo(&Sample{Params: &CodecParams{SPS: testSPS, PPS: testPPS}})
	require.NoError(t, err)
	err = c.onAudio(&Sample{Params: &CodecParams{MPEG4AudioConfig: testAudioConfig}})
	require.NoError(t, err)

	feed := func(dts time.Duration, keyFrame bool) {
		err2 := c.onVideo(&Sample{DTS: dts, KeyFrame: keyFrame, Payload: []byte{1}})
		require.NoError(t, err2)
		err2 = c.onAudio(&Sample{DTS: dts, Payload: []byte{2}})
		require.NoError(t, err2)
	}

	feed(0, true)
	feed(1*time.Second, false)
	require.Equal(t, 0, published)

	// both tracks rotate, both windows reach the required size
	feed(1500*time.Millisecond, true)
	require.Equal(t, 1, published)

	// within the update period
	feed(2*time.Second, false)
	require.Equal(t, 1, published)

	now = now.Add(6 * time.Second)
	feed(2500*time.Millisecond, false)
	require.Equal(t, 2, published)
}

func TestControllerRecoversFromFinalizeError(t *testing.T) {
	dir := t.TempDir()

	failures := 1
	c := &controller{
		parent: test.NilLogger,
		newEncoder: func(_ io.Writer, _ int, _ uint64, _ time.Duration) segmentEncoder {
			return &flakyEncoder{failures: &failures}
		},
	}
	c.initialize()
	c.onPublish(testSessionConf(dir))

	err := c.onAudio(&Sample{Params: &CodecParams{MPEG4AudioConfig: testAudioConfig}})
	require.NoError(t, err)

	err = c.onAudio(&Sample{DTS: 0, Payload: []byte{1}})
	require.NoError(t, err)
	err = c.onAudio(&Sample{DTS: 1 * time.Second, Payload: []byte{2}})
	require.NoError(t, err)

	// rotation fails, the broken writer is dropped
	err = c.onAudio(&Sample{DTS: 1500 * time.Millisecond, Payload: []byte{3}})
	require.EqualError(t, err, "finalize fragment: flush encoder: transient disk error")
	require.Nil(t, c.curAudio)
	require.Equal(t, 0, c.audioFragments.size())

	// the session continues on the next sample with a fresh fragment
	err = c.onAudio(&Sample{DTS: 2 * time.Second, Payload: []byte{4}})
	require.NoError(t, err)
	require.NotNil(t, c.curAudio)
	require.Equal(t, 2*time.Second, c.curAudio.frag.start)

	err = c.onAudio(&Sample{DTS: 3 * time.Second, Payload: []byte{5}})
	require.NoError(t, err)
	err = c.onAudio(&Sample{DTS: 3500 * time.Millisecond, Payload: []byte{6}})
	require.NoError(t, err)

	require.Equal(t, 1, c.audioFragments.size())
	require.Equal(t, 2*time.Second, c.audioFragments.at(0).start)
}

func TestControllerUnpublishFinalizes(t *testing.T) {
	dir := t.TempDir()

	var completed []string
	c := &controller{
		parent:     test.NilLogger,
		newEncoder: newStubEncoder,
		onFragment: func(path string, _ time.Duration) {
			completed = append(completed, path)
		},
	}
	c.initialize()
	c.onPublish(testSessionConf(dir))

	err := c.onVideo(&Sample{Params: &CodecParams{SPS: testSPS, PPS: testPPS}})
	require.NoError(t, err)
	err = c.onAudio(&Sample{Params: &CodecParams{MPEG4AudioConfig: testAudioConfig}})
	require.NoError(t, err)

	err = c.onVideo(&Sample{DTS: 0, KeyFrame: true, Payload: []byte{1}})
	require.NoError(t, err)
	err = c.onAudio(&Sample{DTS: 0, Payload: []byte{2}})
	require.NoError(t, err)
	err = c.onVideo(&Sample{DTS: 700 * time.Millisecond, KeyFrame: false, Payload: []byte{3}})
	require.NoError(t, err)
	err = c.onAudio(&Sample{DTS: 700 * time.Millisecond, Payload: []byte{4}})
	require.NoError(t, err)

	c.onUnpublish()
	require.Nil(t, c.curVideo)
	require.Nil(t, c.curAudio)
	require.Equal(t, 2, len(completed))

	for _, path := range completed {
		_, err = os.Stat(path)
		require.NoError(t, err)
		_, err = os.Stat(path + ".tmp")
		require.True(t, os.IsNotExist(err))
	}

	require.Equal(t, 700*time.Millisecond, c.videoFragments.at(0).duration)
	require.Equal(t, 700*time.Millisecond, c.audioFragments.at(0).duration)
}

func TestFragmentWriterDoubleFinalize(t *testing.T) {
	m := &mpdWriter{parent: test.NilLogger}
	m.initialize()
	m.onPublish(mpdWriterConf{
		root:            t.TempDir(),
		app:             "live",
		stream:          "mystream",
		mpdPathTemplate: "%app/%stream.mpd",
		windowSize:      1,
	})

	w := &fragmentWriter{}
	err := w.initialize(false, 0, m, audioTrackID, newStubEncoder)
	require.NoError(t, err)

	_, err = w.finalize()
	require.NoError(t, err)

	_, err = w.finalize()
	require.EqualError(t, err, "fragment already finalized")
}

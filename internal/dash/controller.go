package dash

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	mp4codecs "github.com/bluenviron/mediacommon/v2/pkg/formats/mp4/codecs"

	"github.com/bluenviron/dashmtx/internal/logger"
)

// track ids start from 1, some players reject track id 0.
const (
	videoTrackID = 1
	audioTrackID = 2
)

func avc1CodecString(sps []byte) string {
	return fmt.Sprintf("avc1.%02x%02x%02x", sps[1], sps[2], sps[3])
}

type h264Params struct {
	sps    []byte
	pps    []byte
	parsed h264.SPS
}

type sessionConf struct {
	root             string
	app              string
	stream           string
	mpdPathTemplate  string
	fragmentDuration time.Duration
	updatePeriod     time.Duration
	timeshift        time.Duration
	windowSize       int
}

// controller is the per-session state machine: it owns the currently
// open fragment of each track, applies the rotation policy and
// triggers manifest refreshes.
type controller struct {
	parent     logger.Writer
	newEncoder newSegmentEncoderFunc
	onFragment func(path string, duration time.Duration)
	onManifest func(path string)
	timeNow    func() time.Time

	// session snapshot, set at onPublish
	root             string
	app              string
	stream           string
	fragmentDuration time.Duration

	mpd *mpdWriter

	curAudio       *fragmentWriter
	curVideo       *fragmentWriter
	audioFragments *fragmentWindow
	videoFragments *fragmentWindow
	audioDTS       time.Duration
	videoDTS       time.Duration
	firstSeen      bool

	audioParams *mpeg4audio.Config
	videoParams *h264Params
}

func (c *controller) initialize() {
	if c.newEncoder == nil {
		c.newEncoder = newFMP4SegmentEncoder
	}
	if c.onFragment == nil {
		c.onFragment = func(string, time.Duration) {}
	}
	if c.onManifest == nil {
		c.onManifest = func(string) {}
	}
	if c.timeNow == nil {
		c.timeNow = time.Now
	}

	c.mpd = &mpdWriter{
		parent:      c.parent,
		onPublished: c.onManifest,
		timeNow:     c.timeNow,
	}
	c.mpd.initialize()

	c.audioFragments = &fragmentWindow{}
	c.videoFragments = &fragmentWindow{}
}

// onPublish snapshots the resolved configuration for the session's
// lifetime; later configuration reloads do not affect it.
func (c *controller) onPublish(cnf sessionConf) {
	c.root = cnf.root
	c.app = cnf.app
	c.stream = cnf.stream
	c.fragmentDuration = cnf.fragmentDuration

	c.mpd.onPublish(mpdWriterConf{
		root:             cnf.root,
		app:              cnf.app,
		stream:           cnf.stream,
		mpdPathTemplate:  cnf.mpdPathTemplate,
		fragmentDuration: cnf.fragmentDuration,
		updatePeriod:     cnf.updatePeriod,
		timeshift:        cnf.timeshift,
		windowSize:       cnf.windowSize,
	})

	c.curAudio = nil
	c.curVideo = nil
	c.audioFragments = &fragmentWindow{}
	c.videoFragments = &fragmentWindow{}
	c.audioDTS = 0
	c.videoDTS = 0
	c.firstSeen = false
}

// onUnpublish finalizes both open fragments. Failures are logged and
// swallowed: teardown completes unconditionally.
func (c *controller) onUnpublish() {
	if c.curVideo != nil {
		c.curVideo.extend(c.videoDTS)
		if _, err := c.curVideo.finalize(); err != nil {
			c.parent.Log(logger.Warn, "unable to finalize video fragment: %v", err)
		} else {
			c.videoFragments.push(c.curVideo.frag)
			c.onFragment(c.curVideo.frag.path, c.curVideo.frag.duration)
		}
		c.curVideo = nil
	}

	if c.curAudio != nil {
		c.curAudio.extend(c.audioDTS)
		if _, err := c.curAudio.finalize(); err != nil {
			c.parent.Log(logger.Warn, "unable to finalize audio fragment: %v", err)
		} else {
			c.audioFragments.push(c.curAudio.frag)
			c.onFragment(c.curAudio.frag.path, c.curAudio.frag.duration)
		}
		c.curAudio = nil
	}
}

// setAvailabilityStartTime computes the availability start time from
// the first media sample seen on either track.
func (c *controller) setAvailabilityStartTime(dts time.Duration) {
	if c.firstSeen {
		return
	}
	c.firstSeen = true
	c.mpd.setAvailabilityStartTime(c.timeNow().Add(-dts))
}

// rotate closes the current fragment at the given edge, publishes it,
// moves it into the window and opens a new fragment starting there.
func (c *controller) rotate(cur **fragmentWriter, window *fragmentWindow,
	edge time.Duration, isVideo bool, trackID int,
) error {
	w := *cur
	w.extend(edge)

	lastDTS, err := w.finalize()
	if err != nil {
		// drop the broken writer: the next sample opens a fresh fragment
		*cur = nil
		return fmt.Errorf("finalize fragment: %w", err)
	}

	if isVideo {
		c.videoDTS = lastDTS
	} else {
		c.audioDTS = lastDTS
	}

	window.push(w.frag)
	c.onFragment(w.frag.path, w.frag.duration)

	nw := &fragmentWriter{}
	err = nw.initialize(isVideo, edge, c.mpd, trackID, c.newEncoder)
	if err != nil {
		*cur = nil
		return fmt.Errorf("initialize fragment: %w", err)
	}
	*cur = nw

	return nil
}

func (c *controller) onAudio(s *Sample) error {
	if s.Params != nil {
		return c.refreshAudioInit(s.Params)
	}

	if c.audioParams == nil {
		return nil
	}

	c.audioDTS = s.DTS

	if c.curAudio == nil {
		c.curAudio = &fragmentWriter{}
		err := c.curAudio.initialize(false, s.DTS, c.mpd, audioTrackID, c.newEncoder)
		if err != nil {
			c.curAudio = nil
			return fmt.Errorf("initialize audio fragment: %w", err)
		}
	}

	c.setAvailabilityStartTime(s.DTS)

	if c.curAudio.duration() >= c.fragmentDuration {
		err := c.rotate(&c.curAudio, c.audioFragments, s.DTS, false, audioTrackID)
		if err != nil {
			return err
		}
	}

	err := c.curAudio.writeSample(s)
	if err != nil {
		return fmt.Errorf("write audio sample: %w", err)
	}

	return c.refreshMPD()
}

func (c *controller) onVideo(s *Sample) error {
	if s.Params != nil {
		return c.refreshVideoInit(s.Params)
	}

	if c.videoParams == nil {
		return nil
	}

	c.videoDTS = s.DTS

	if c.curVideo == nil {
		// video fragments must begin on a keyframe
		if !s.KeyFrame {
			c.parent.Log(logger.Warn, "discarding video sample received before the first keyframe")
			return nil
		}

		c.curVideo = &fragmentWriter{}
		err := c.curVideo.initialize(true, s.DTS, c.mpd, videoTrackID, c.newEncoder)
		if err != nil {
			c.curVideo = nil
			return fmt.Errorf("initialize video fragment: %w", err)
		}
	}

	c.setAvailabilityStartTime(s.DTS)

	if s.KeyFrame && c.curVideo.duration() >= c.fragmentDuration {
		err := c.rotate(&c.curVideo, c.videoFragments, s.DTS, true, videoTrackID)
		if err != nil {
			return err
		}
	}

	err := c.curVideo.writeSample(s)
	if err != nil {
		return fmt.Errorf("write video sample: %w", err)
	}

	return c.refreshMPD()
}

func (c *controller) refreshAudioInit(params *CodecParams) error {
	if len(params.MPEG4AudioConfig) == 0 {
		c.parent.Log(logger.Warn, "ignoring empty audio parameter set")
		return nil
	}

	var cnf mpeg4audio.Config
	err := cnf.Unmarshal(params.MPEG4AudioConfig)
	if err != nil {
		c.parent.Log(logger.Warn, "ignoring invalid audio parameter set: %v", err)
		return nil
	}
	c.audioParams = &cnf

	w := &initSegmentWriter{
		path:    filepath.Join(c.root, c.app, c.stream, "audio-init.mp4"),
		trackID: audioTrackID,
		codec:   &mp4codecs.MPEG4Audio{Config: cnf},
	}
	err = w.write()
	if err != nil {
		return fmt.Errorf("refresh audio init segment: %w", err)
	}

	c.parent.Log(logger.Info, "refreshed audio init segment")
	return nil
}

func (c *controller) refreshVideoInit(params *CodecParams) error {
	if len(params.SPS) == 0 || len(params.PPS) == 0 {
		c.parent.Log(logger.Warn, "ignoring empty video parameter set")
		return nil
	}

	var sps h264.SPS
	err := sps.Unmarshal(params.SPS)
	if err != nil {
		c.parent.Log(logger.Warn, "ignoring invalid video parameter set: %v", err)
		return nil
	}
	c.videoParams = &h264Params{
		sps:    params.SPS,
		pps:    params.PPS,
		parsed: sps,
	}

	w := &initSegmentWriter{
		path:    filepath.Join(c.root, c.app, c.stream, "video-init.mp4"),
		trackID: videoTrackID,
		codec: &mp4codecs.H264{
			SPS: params.SPS,
			PPS: params.PPS,
		},
	}
	err = w.write()
	if err != nil {
		return fmt.Errorf("refresh video init segment: %w", err)
	}

	c.parent.Log(logger.Info, "refreshed video init segment")
	return nil
}

func (c *controller) refreshMPD() error {
	if c.audioParams == nil || c.videoParams == nil {
		return nil
	}

	info := &formatInfo{
		audioConfig: c.audioParams,
		videoSPS:    &c.videoParams.parsed,
		videoCodec:  avc1CodecString(c.videoParams.sps),
	}

	err := c.mpd.tryPublish(info, c.audioFragments, c.videoFragments)
	if err != nil {
		return fmt.Errorf("refresh MPD: %w", err)
	}

	return nil
}

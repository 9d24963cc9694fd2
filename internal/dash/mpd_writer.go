package dash

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"

	"github.com/bluenviron/dashmtx/internal/logger"
	"github.com/bluenviron/dashmtx/internal/mpd"
)

// representation attributes advertised in the manifest.
// Bandwidths are nominal; the engine transports a single rendition.
const (
	audioBandwidth = 48000
	videoBandwidth = 800000
)

// formatInfo describes the codecs present in the current session.
type formatInfo struct {
	audioConfig *mpeg4audio.Config
	videoSPS    *h264.SPS
	videoCodec  string
}

// mpdWriter owns the manifest timing and throttle state and the
// fragment sequence counter shared by both tracks, and atomically
// publishes the manifest.
type mpdWriter struct {
	parent logger.Writer

	// session snapshot, set at onPublish
	root             string
	app              string
	stream           string
	fragmentDuration time.Duration
	updatePeriod     time.Duration
	timeshift        time.Duration
	windowSize       int
	mpdPath          string // relative to root
	fragmentDir      string // relative to root

	lastPublish           time.Time
	availabilityStartTime time.Time
	availabilitySet       bool
	nextSequenceNumber    uint64

	onPublished func(path string)
	timeNow     func() time.Time
}

func (m *mpdWriter) initialize() {
	if m.onPublished == nil {
		m.onPublished = func(string) {}
	}
	if m.timeNow == nil {
		m.timeNow = time.Now
	}
}

type mpdWriterConf struct {
	root             string
	app              string
	stream           string
	mpdPathTemplate  string
	fragmentDuration time.Duration
	updatePeriod     time.Duration
	timeshift        time.Duration
	windowSize       int
}

func (m *mpdWriter) onPublish(cnf mpdWriterConf) {
	m.root = cnf.root
	m.app = cnf.app
	m.stream = cnf.stream
	m.fragmentDuration = cnf.fragmentDuration
	m.updatePeriod = cnf.updatePeriod
	m.timeshift = cnf.timeshift
	m.windowSize = cnf.windowSize

	m.mpdPath = strings.NewReplacer(
		"%app", cnf.app,
		"%stream", cnf.stream,
	).Replace(cnf.mpdPathTemplate)
	m.fragmentDir = filepath.Join(filepath.Dir(m.mpdPath), cnf.stream)

	m.lastPublish = time.Time{}
	m.availabilityStartTime = time.Time{}
	m.availabilitySet = false

	// the counter is shared by both tracks and must start from a
	// defined value; the first allocated sequence number is 1.
	m.nextSequenceNumber = 0

	m.parent.Log(logger.Debug, "fragment=%v, period=%v, window size=%d",
		cnf.fragmentDuration, cnf.updatePeriod, cnf.windowSize)
}

// setAvailabilityStartTime maps media timestamp zero to a wall clock
// instant. It is one-shot: later calls are ignored.
func (m *mpdWriter) setAvailabilityStartTime(t time.Time) {
	if m.availabilitySet {
		return
	}
	m.availabilitySet = true
	m.availabilityStartTime = t
}

// allocateFragmentSlot reserves a destination and a sequence number
// for a new fragment.
func (m *mpdWriter) allocateFragmentSlot(isVideo bool, start time.Duration) (string, string, uint64) {
	m.nextSequenceNumber++

	prefix := "audio"
	if isVideo {
		prefix = "video"
	}
	fileName := fmt.Sprintf("%s-%d.m4s", prefix, durationToMs(start))

	return filepath.Join(m.root, m.fragmentDir), fileName, m.nextSequenceNumber
}

func lastDuration(audioWindow *fragmentWindow, videoWindow *fragmentWindow) time.Duration {
	d := audioWindow.at(audioWindow.size() - 1).duration
	if vd := videoWindow.at(videoWindow.size() - 1).duration; vd > d {
		d = vd
	}
	return d
}

func timelineOf(w *fragmentWindow, n int) *mpd.SegmentTimeline {
	tl := &mpd.SegmentTimeline{}
	for _, frag := range w.trailing(n) {
		tl.Segments = append(tl.Segments, mpd.Segment{
			T: durationToMs(frag.start),
			D: durationToMs(frag.duration),
		})
	}
	return tl
}

func segmentTemplate(tl *mpd.SegmentTimeline) *mpd.SegmentTemplate {
	return &mpd.SegmentTemplate{
		Initialization:  "$RepresentationID$-init.mp4",
		Media:           "$RepresentationID$-$Time$.m4s",
		Timescale:       fmp4Timescale,
		SegmentTimeline: tl,
	}
}

// tryPublish renders and atomically publishes the manifest. It returns
// without error when the windows are not filled yet or the previous
// publication is recent enough.
func (m *mpdWriter) tryPublish(info *formatInfo, audioWindow *fragmentWindow, videoWindow *fragmentWindow) error {
	if m.windowSize == 0 ||
		audioWindow.size() < m.windowSize ||
		videoWindow.size() < m.windowSize {
		return nil
	}

	now := m.timeNow()
	if !m.lastPublish.IsZero() && now.Sub(m.lastPublish) < m.updatePeriod {
		return nil
	}
	m.lastPublish = now

	segmentDuration := lastDuration(audioWindow, videoWindow)

	doc := mpd.MPD{
		MinimumUpdatePeriod:   mpd.FormatDuration(m.updatePeriod),
		TimeShiftBufferDepth:  mpd.FormatDuration(segmentDuration * time.Duration(m.windowSize)),
		AvailabilityStartTime: mpd.FormatTime(m.availabilityStartTime),
		PublishTime:           mpd.FormatTime(now),
		MinBufferTime:         mpd.FormatDuration(2 * segmentDuration),
		BaseURL:               m.stream + "/",
		Periods: []*mpd.Period{{
			Start: "PT0S",
		}},
	}

	if info.audioConfig != nil && !audioWindow.empty() {
		doc.Periods[0].AdaptationSets = append(doc.Periods[0].AdaptationSets, &mpd.AdaptationSet{
			MimeType:         "audio/mp4",
			SegmentAlignment: true,
			StartWithSAP:     1,
			Representations: []*mpd.Representation{{
				ID:              "audio",
				Bandwidth:       audioBandwidth,
				Codecs:          fmt.Sprintf("mp4a.40.%d", info.audioConfig.Type),
				SegmentTemplate: segmentTemplate(timelineOf(audioWindow, m.windowSize)),
			}},
		})
	}

	if info.videoSPS != nil && !videoWindow.empty() {
		doc.Periods[0].AdaptationSets = append(doc.Periods[0].AdaptationSets, &mpd.AdaptationSet{
			MimeType:         "video/mp4",
			SegmentAlignment: true,
			StartWithSAP:     1,
			Representations: []*mpd.Representation{{
				ID:              "video",
				Bandwidth:       videoBandwidth,
				Codecs:          info.videoCodec,
				Width:           info.videoSPS.Width(),
				Height:          info.videoSPS.Height(),
				SegmentTemplate: segmentTemplate(timelineOf(videoWindow, m.windowSize)),
			}},
		})
	}

	byts, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("marshal MPD: %w", err)
	}

	fullPath := filepath.Join(m.root, m.mpdPath)

	err = os.MkdirAll(filepath.Dir(fullPath), 0o755)
	if err != nil {
		return fmt.Errorf("create MPD dir: %w", err)
	}

	tmpPath := fullPath + ".tmp"

	err = os.WriteFile(tmpPath, byts, 0o644)
	if err != nil {
		return fmt.Errorf("write MPD: %w", err)
	}

	err = os.Rename(tmpPath, fullPath)
	if err != nil {
		return fmt.Errorf("rename MPD: %w", err)
	}

	m.parent.Log(logger.Info, "refreshed MPD, size=%dB, file=%s", len(byts), fullPath)
	m.onPublished(fullPath)

	return nil
}

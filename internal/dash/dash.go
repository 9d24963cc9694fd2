// Package dash contains the DASH muxer: it repackages a live stream
// into self-contained fragmented-MP4 segments and periodically
// republishes the MPD manifest consumed by adaptive-streaming clients.
package dash

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bluenviron/dashmtx/internal/conf"
	"github.com/bluenviron/dashmtx/internal/logger"
)

// OnFragmentCompleteFunc is the prototype of the function passed as OnFragmentComplete.
type OnFragmentCompleteFunc = func(path string, duration time.Duration)

// OnManifestRefreshFunc is the prototype of the function passed as OnManifestRefresh.
type OnManifestRefreshFunc = func(path string)

// OnSessionOpenFunc is the prototype of the function passed as OnSessionOpen.
type OnSessionOpenFunc = func()

// OnSessionCloseFunc is the prototype of the function passed as OnSessionClose.
type OnSessionCloseFunc = func()

// Muxer writes a live stream to disk in DASH format.
type Muxer struct {
	App                string
	Stream             string
	Root               string
	MPDPath            string
	FragmentDuration   conf.Duration
	UpdatePeriod       conf.Duration
	Timeshift          conf.Duration
	WindowSize         int
	OnFragmentComplete OnFragmentCompleteFunc
	OnManifestRefresh  OnManifestRefreshFunc
	OnSessionOpen      OnSessionOpenFunc
	OnSessionClose     OnSessionCloseFunc
	Parent             logger.Writer

	enabled    bool
	sessionID  uuid.UUID
	controller *controller
}

// Initialize initializes Muxer.
func (m *Muxer) Initialize() {
	if m.OnFragmentComplete == nil {
		m.OnFragmentComplete = func(string, time.Duration) {
		}
	}
	if m.OnManifestRefresh == nil {
		m.OnManifestRefresh = func(string) {
		}
	}
	if m.OnSessionOpen == nil {
		m.OnSessionOpen = func() {
		}
	}
	if m.OnSessionClose == nil {
		m.OnSessionClose = func() {
		}
	}

	m.controller = &controller{
		parent:     m,
		onFragment: m.OnFragmentComplete,
		onManifest: m.OnManifestRefresh,
	}
	m.controller.initialize()
}

// Log implements logger.Writer.
func (m *Muxer) Log(level logger.Level, format string, args ...interface{}) {
	m.Parent.Log(level, "[dash %s/%s] "+format, append([]interface{}{m.App, m.Stream}, args...)...)
}

// OnPublish opens a session. Duplicated calls are no-ops.
func (m *Muxer) OnPublish() {
	if m.enabled {
		return
	}
	m.enabled = true
	m.sessionID = uuid.New()

	m.controller.onPublish(sessionConf{
		root:             m.Root,
		app:              m.App,
		stream:           m.Stream,
		mpdPathTemplate:  m.MPDPath,
		fragmentDuration: time.Duration(m.FragmentDuration),
		updatePeriod:     time.Duration(m.UpdatePeriod),
		timeshift:        time.Duration(m.Timeshift),
		windowSize:       m.WindowSize,
	})

	m.OnSessionOpen()
	m.Log(logger.Info, "session %s opened", m.sessionID)
}

// OnAudio consumes an audio sample.
func (m *Muxer) OnAudio(s *Sample) error {
	if !m.enabled {
		return nil
	}

	err := m.controller.onAudio(s)
	if err != nil {
		return fmt.Errorf("unable to consume audio: %w", err)
	}

	return nil
}

// OnVideo consumes a video sample.
func (m *Muxer) OnVideo(s *Sample) error {
	if !m.enabled {
		return nil
	}

	err := m.controller.onVideo(s)
	if err != nil {
		return fmt.Errorf("unable to consume video: %w", err)
	}

	return nil
}

// OnUnpublish closes the session, finalizing both open fragments.
// Duplicated calls are no-ops.
func (m *Muxer) OnUnpublish() {
	if !m.enabled {
		return
	}
	m.enabled = false

	m.controller.onUnpublish()

	m.OnSessionClose()
	m.Log(logger.Info, "session %s closed", m.sessionID)
}

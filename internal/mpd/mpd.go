// Package mpd contains the MPD manifest format.
package mpd

import (
	"encoding/xml"
	"fmt"
	"time"
)

const (
	profiles = "urn:mpeg:dash:profile:isoff-live:2011,http://dashif.org/guidelines/dash-if-simple"
	xmlns    = "urn:mpeg:dash:schema:mpd:2011"
)

// FormatDuration formats a duration as a xs:duration with millisecond precision.
func FormatDuration(d time.Duration) string {
	return fmt.Sprintf("PT%.3fS", d.Seconds())
}

// FormatTime formats a wall clock instant as a xs:dateTime in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// Segment is a SegmentTimeline entry.
type Segment struct {
	// start, in timescale units.
	T int64 `xml:"t,attr"`
	// duration, in timescale units.
	D int64 `xml:"d,attr"`
}

// SegmentTimeline is a SegmentTimeline element.
type SegmentTimeline struct {
	Segments []Segment `xml:"S"`
}

// SegmentTemplate is a SegmentTemplate element.
type SegmentTemplate struct {
	Initialization  string           `xml:"initialization,attr"`
	Media           string           `xml:"media,attr"`
	Timescale       int              `xml:"timescale,attr"`
	SegmentTimeline *SegmentTimeline `xml:"SegmentTimeline"`
}

// Representation is a Representation element.
type Representation struct {
	ID              string           `xml:"id,attr"`
	Bandwidth       int              `xml:"bandwidth,attr"`
	Codecs          string           `xml:"codecs,attr"`
	Width           int              `xml:"width,attr,omitempty"`
	Height          int              `xml:"height,attr,omitempty"`
	SegmentTemplate *SegmentTemplate `xml:"SegmentTemplate"`
}

// AdaptationSet is an AdaptationSet element.
type AdaptationSet struct {
	MimeType         string            `xml:"mimeType,attr"`
	SegmentAlignment bool              `xml:"segmentAlignment,attr"`
	StartWithSAP     int               `xml:"startWithSAP,attr"`
	Representations  []*Representation `xml:"Representation"`
}

// Period is a Period element.
type Period struct {
	Start          string           `xml:"start,attr"`
	AdaptationSets []*AdaptationSet `xml:"AdaptationSet"`
}

// MPD is a dynamic DASH manifest.
type MPD struct {
	XMLName               xml.Name  `xml:"MPD"`
	Xmlns                 string    `xml:"xmlns,attr"`
	Profiles              string    `xml:"profiles,attr"`
	Type                  string    `xml:"type,attr"`
	MinimumUpdatePeriod   string    `xml:"minimumUpdatePeriod,attr"`
	TimeShiftBufferDepth  string    `xml:"timeShiftBufferDepth,attr"`
	AvailabilityStartTime string    `xml:"availabilityStartTime,attr"`
	PublishTime           string    `xml:"publishTime,attr"`
	MinBufferTime         string    `xml:"minBufferTime,attr"`
	BaseURL               string    `xml:"BaseURL,omitempty"`
	Periods               []*Period `xml:"Period"`
}

// Marshal encodes the manifest.
func (m MPD) Marshal() ([]byte, error) {
	if m.Xmlns == "" {
		m.Xmlns = xmlns
	}
	if m.Profiles == "" {
		m.Profiles = profiles
	}
	if m.Type == "" {
		m.Type = "dynamic"
	}

	body, err := xml.MarshalIndent(m, "", "    ")
	if err != nil {
		return nil, err
	}

	return append([]byte(xml.Header), append(body, '\n')...), nil
}

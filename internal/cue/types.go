// Package cue implements the cue-alignment handler: it merges samples from
// every input stream of a program, listens for SCTE-35 signals, and
// re-broadcasts a single, GOP-aligned
// sequence of cue events to each stream so that downstream media playlist
// generation can cut ad segments at identical boundaries everywhere.
package cue

import (
	"errors"

	"hls-packager/internal/signal"
)

// Errors surfaced by the alignment handler. NotGopAligned and
// BackpressureExceeded are fatal: the caller must stop feeding the handler
// and propagate failure. Cancelled means the handler was shut down and the
// caller should unwind cleanly.
var (
	ErrNotGopAligned        = errors.New("cue: requested sync point does not land on a key frame")
	ErrBackpressureExceeded = errors.New("cue: stream buffer exceeded 1000 pending samples")
	ErrCancelled            = errors.New("cue: handler cancelled")
)

// maxBufferedSamples bounds how many non-video samples a single stream may
// hold while waiting for the video stream to catch up.
const maxBufferedSamples = 1000

// StreamType classifies an input stream for alignment purposes. Only video
// drives key-frame promotion; audio and text are aligned by midpoint/start
// time against whatever the video stream (or, in no-video mode, the signal
// itself) establishes as the next cue.
type StreamType uint8

const (
	StreamVideo StreamType = iota
	StreamAudio
	StreamText
)

// StreamInfo describes one input stream's static properties, delivered once
// before any samples.
type StreamInfo struct {
	StreamType StreamType
	TimeScale  uint32
}

// MediaSample is one encoded access unit from an audio or video stream.
type MediaSample struct {
	PTS        int64
	Duration   int64
	IsKeyFrame bool
}

// TextSample is one subtitle/caption cue, given directly in start/end time
// rather than PTS+duration since text tracks do not carry key frames.
type TextSample struct {
	StartTime int64
	EndTime   int64
}

// CueEventType distinguishes a placement-opportunity request (no underlying
// SCTE-35 signal) from an SCTE-35-derived cue.
type CueEventType uint8

const (
	CueEventPlacementOpportunity CueEventType = iota
	CueEventScte35
)

// CueEvent is a single point in program time at which every stream must cut
// a segment boundary. It is cloned (not shared by pointer) into each
// stream's own queue, since each stream consumes it independently and at a
// different pace.
type CueEvent struct {
	Type           CueEventType
	TimeInSeconds  float64
	Duration       float64
	Signal         *signal.Scte35Event // non-nil iff Type == CueEventScte35
}

// Clone returns an independent copy of the event suitable for handing to a
// single stream's queue.
func (c CueEvent) Clone() *CueEvent {
	clone := c
	return &clone
}

// StreamState tracks where a single input stream sits relative to the
// program's ad timeline.
type StreamState uint8

const (
	StateInProgram StreamState = iota
	StateInAd
)

// DataType tags the kind of payload a StreamData value carries, modeling
// the handler's input as a single tagged-variant stream rather than
// separate typed channels per kind.
type DataType uint8

const (
	DataStreamInfo DataType = iota
	DataMediaSample
	DataTextSample
	DataScte35Event
	DataFlush
)

// StreamData is one unit of work arriving on a single stream's input. Only
// the field matching Type is populated.
type StreamData struct {
	Type        DataType
	StreamIndex int
	Info        *StreamInfo
	MediaSample *MediaSample
	TextSample  *TextSample
	Scte35Event *signal.Scte35Event
}

// DispatchFunc forwards aligned StreamData downstream for a given stream.
// The handler calls it synchronously from whichever goroutine is processing
// that stream's input.
type DispatchFunc func(streamIndex int, data StreamData) error

package orchestrator

import (
	"hls-packager/internal/playlist"
)

// StreamID uniquely identifies a live stream.
type StreamID string

// RenditionID identifies a particular rendition of a stream (e.g. "720p", "480p").
type RenditionID string

// InitRenditionRequest is the body of POST .../hls/init: it establishes the
// time scale and codec a rendition's ad-signal-aware playlist will use for
// every subsequent segment, key frame, and SCTE-35 section.
type InitRenditionRequest struct {
	Codec           string   `json:"codec"`
	Language        string   `json:"language"`
	Characteristics []string `json:"characteristics"`
	// StreamType is one of "audio", "video", "subtitle". I-frame-only mode
	// is entered implicitly by the first AddKeyFrame call, not requested here.
	StreamType   string `json:"stream_type"`
	TimeScale    uint32 `json:"time_scale"`
	UseByteRange bool   `json:"use_byte_range"`
}

func (r InitRenditionRequest) streamType() playlist.StreamType {
	switch r.StreamType {
	case "video":
		return playlist.StreamVideo
	case "subtitle":
		return playlist.StreamSubtitle
	default:
		return playlist.StreamAudio
	}
}

// TimedSegmentRequest is the body of POST .../hls/segments: a segment
// addressed in PTS ticks at the rendition's configured time scale, optionally
// by byte range within a shared file.
type TimedSegmentRequest struct {
	FileName   string `json:"file_name"`
	StartTime  int64  `json:"start_time"`
	Duration   int64  `json:"duration"`
	ByteOffset uint64 `json:"byte_offset"`
	Size       uint64 `json:"size"`
}

// KeyFrameRequest is the body of POST .../hls/keyframes.
type KeyFrameRequest struct {
	Timestamp  int64  `json:"timestamp"`
	ByteOffset uint64 `json:"byte_offset"`
	Size       uint64 `json:"size"`
}

// Scte35Request is the body of POST .../hls/scte35: a base64-encoded
// splice_info_section plus the program clock reference it arrived under, for
// descriptors whose splice command carries no explicit splice time.
type Scte35Request struct {
	Section string `json:"section"`
	PcrPTS  int64  `json:"pcr_pts"`
}

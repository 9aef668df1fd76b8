// Package playlist generates HLS media playlists: ordinary VOD/EVENT/LIVE
// renditions, I-frame-only renditions, and the ad-signaling tags
// (EXT-X-SIGNAL-EXIT/SPAN/RETURN, EXT-X-PLACEMENT-OPPORTUNITY) that let a
// player react to SCTE-35 cues without demuxing them itself.
package playlist

// StreamType classifies what kind of rendition a MediaPlaylist describes.
type StreamType uint8

const (
	StreamAudio StreamType = iota
	StreamVideo
	StreamSubtitle
	StreamVideoIFramesOnly
)

// PlaylistType controls the header tags and sliding-window behavior of a
// MediaPlaylist.
type PlaylistType uint8

const (
	PlaylistVOD PlaylistType = iota
	PlaylistEvent
	PlaylistLive
)

// EncryptionMethod is the METHOD attribute of an EXT-X-KEY tag.
type EncryptionMethod uint8

const (
	EncryptionNone EncryptionMethod = iota
	EncryptionAES128
	EncryptionSampleAES
	EncryptionSampleAESCTR
)

func (m EncryptionMethod) String() string {
	switch m {
	case EncryptionNone:
		return "NONE"
	case EncryptionAES128:
		return "AES-128"
	case EncryptionSampleAES:
		return "SAMPLE-AES"
	case EncryptionSampleAESCTR:
		return "SAMPLE-AES-CTR"
	default:
		return "NONE"
	}
}

// SpliceType is the SpliceType attribute carried on every ad-signal tag.
type SpliceType uint8

const (
	SpliceLiveDAI SpliceType = iota
	SpliceALTCON
)

func (t SpliceType) String() string {
	switch t {
	case SpliceLiveDAI:
		return "LiveDAI"
	case SpliceALTCON:
		return "ALTCON"
	default:
		return "LiveDAI"
	}
}

// Single-bit flags packed into a SignalExitEntry's Flags field. Each is
// exactly one bit; flagBit renders one flag as 0 or 1 by masking Flags with
// that flag's own bit and testing the result for nonzero, so no shift is
// involved.
const (
	FlagWebDeliveryAllowed uint32 = 1 << iota
	FlagNoRegionalBlackout
	FlagArchiveAllowed
)

func flagBit(flags, bit uint32) uint64 {
	if flags&bit != 0 {
		return 1
	}
	return 0
}

// StreamDescriptor carries the static per-rendition facts a MediaPlaylist
// needs before it can accept segments.
type StreamDescriptor struct {
	Codec           string
	Language        string
	Characteristics []string
	StreamType      StreamType
}

// Params configures a MediaPlaylist for the lifetime of the job. There is
// no global configuration: every playlist gets its own Params value.
type Params struct {
	PlaylistType                       PlaylistType
	TimeShiftBufferDepth                float64 // seconds; sliding window disabled if <= 0
	PreservedSegmentsOutsideLiveWindow  int
	PackagerName                        string
	PackagerVersion                     string
}

// KeyFrameRecord is one buffered I-frame, recorded by AddKeyFrame until the
// next AddSegment call turns the batch into EXTINF entries.
type KeyFrameRecord struct {
	Timestamp       int64
	StartByteOffset uint64
	Size            uint64
}

package playlist

import (
	"container/list"
	"fmt"
	"math"
	"os"
	"sync"
)

// MediaPlaylist accumulates segments, key frames, encryption changes and ad
// signals for one rendition and renders them into HLS media-playlist text.
// All mutating operations are safe to call from multiple goroutines; the
// cue-alignment handler dispatches to one MediaPlaylist per stream, each
// potentially fed from its own goroutine.
type MediaPlaylist struct {
	mu sync.Mutex

	params     Params
	descriptor StreamDescriptor
	timeScale  uint32
	mediaInfoSet bool

	mediaSequenceNumber         int
	discontinuitySequenceNumber int

	targetDuration    uint32
	targetDurationSet bool

	longestSegmentDuration float64

	entries *list.List // of *HlsEntry

	bandwidth *BandwidthEstimator
	overrideBandwidth   uint64
	hasOverrideBandwidth bool

	keyFrames []KeyFrameRecord

	useByteRange             bool
	previousSegmentEndOffset uint64
	insertedDiscontinuityTag bool

	hasInitSegment    bool
	initSegmentURI    string
	initSegmentLength uint64
	initSegmentOffset uint64

	inAd          bool
	adSpliceType  SpliceType
	adDurationSec float64
	adPositionSec float64
	adSegments    int

	segmentsToBeRemoved []string
}

// NewMediaPlaylist returns an empty playlist configured by params. Segments
// cannot be added until SetMediaInfo establishes a time scale.
func NewMediaPlaylist(params Params) *MediaPlaylist {
	return &MediaPlaylist{
		params:    params,
		entries:   list.New(),
		bandwidth: NewBandwidthEstimator(),
	}
}

// SetMediaInfo establishes the rendition's codec/language/characteristics,
// stream type, time scale, and whether segments are addressed by byte range
// within a single file rather than by separate files.
func (p *MediaPlaylist) SetMediaInfo(descriptor StreamDescriptor, timeScale uint32, useByteRange bool) error {
	if timeScale == 0 {
		return ErrBadMediaInfo
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.descriptor = descriptor
	p.timeScale = timeScale
	p.useByteRange = useByteRange
	p.mediaInfoSet = true
	return nil
}

// SetInitSegment records an EXT-X-MAP initialization segment reference,
// rendered once at the top of the playlist body.
func (p *MediaPlaylist) SetInitSegment(uri string, length, offset uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hasInitSegment = true
	p.initSegmentURI = uri
	p.initSegmentLength = length
	p.initSegmentOffset = offset
}

// SetBandwidthOverride fixes the BANDWIDTH value instead of deriving it from
// observed segment sizes, for callers that already know the rendition's
// nominal bitrate.
func (p *MediaPlaylist) SetBandwidthOverride(bps uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hasOverrideBandwidth = true
	p.overrideBandwidth = bps
}

func (p *MediaPlaylist) timeScaleLocked() uint32 { return p.timeScale }

// AddSegment records one media segment. In VideoIFramesOnly mode (entered
// via AddKeyFrame), it instead flushes every key frame buffered since the
// previous call, one EXTINF entry per key frame, each running until the
// next key frame's timestamp (or, for the last one, until startTime+duration).
func (p *MediaPlaylist) AddSegment(fileName string, startTime, duration int64, byteOffset, size uint64) error {
	p.mu.Lock()
	if !p.mediaInfoSet {
		p.mu.Unlock()
		return ErrBadMediaInfo
	}
	iframeOnly := p.descriptor.StreamType == StreamVideoIFramesOnly
	p.mu.Unlock()

	if iframeOnly {
		return p.addSegmentFromKeyFrames(fileName, startTime, duration, byteOffset, size)
	}
	return p.addSegmentInfoEntry(fileName, startTime, duration, byteOffset, size)
}

func (p *MediaPlaylist) addSegmentFromKeyFrames(fileName string, startTime, duration int64, byteOffset, size uint64) error {
	p.mu.Lock()
	frames := p.keyFrames
	p.keyFrames = nil
	p.mu.Unlock()

	if len(frames) == 0 {
		return nil
	}
	for i, kf := range frames {
		var next int64
		if i == len(frames)-1 {
			next = startTime + duration
		} else {
			next = frames[i+1].Timestamp
		}
		if err := p.addSegmentInfoEntry(fileName, kf.Timestamp, next-kf.Timestamp, kf.StartByteOffset, kf.Size); err != nil {
			return err
		}
	}
	return nil
}

// addSegmentInfoEntry is the common tail of AddSegment: convert to seconds,
// fold an ad-state span if one is open, append the EXTINF entry, and slide
// the window.
func (p *MediaPlaylist) addSegmentInfoEntry(fileName string, startTime, duration int64, byteOffset, size uint64) error {
	p.mu.Lock()
	if p.timeScale == 0 {
		p.mu.Unlock()
		return ErrBadMediaInfo
	}
	timeScale := p.timeScale

	if p.inAd {
		if p.adSegments > 0 {
			p.appendSignalSpanLocked(p.adPositionSec)
		}
		p.adPositionSec += float64(duration) / float64(timeScale)
	}

	startSec := float64(startTime) / float64(timeScale)
	durSec := float64(duration) / float64(timeScale)
	if durSec > p.longestSegmentDuration {
		p.longestSegmentDuration = durSec
	}
	p.bandwidth.AddBlock(size, durSec)

	entry := &HlsEntry{Type: EntryExtInf, ExtInf: &ExtInfEntry{
		FileName:                 fileName,
		StartTime:                startSec,
		Duration:                 durSec,
		UseByteRange:             p.useByteRange,
		StartByteOffset:          byteOffset,
		SegmentFileSize:          size,
		PreviousSegmentEndOffset: p.previousSegmentEndOffset,
	}}
	p.entries.PushBack(entry)
	p.previousSegmentEndOffset = byteOffset + size - 1
	if p.inAd {
		p.adSegments++
	}
	p.mu.Unlock()

	p.slideWindow()
	return nil
}

// AddKeyFrame records one I-frame. The first call switches the rendition to
// VideoIFramesOnly (I-frame-only renditions are always addressed by byte
// range) and every subsequent frame is buffered until the next AddSegment
// call.
func (p *MediaPlaylist) AddKeyFrame(timestamp int64, byteOffset, size uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mediaInfoSet {
		return ErrBadMediaInfo
	}
	if p.descriptor.StreamType != StreamVideo && p.descriptor.StreamType != StreamVideoIFramesOnly {
		return fmt.Errorf("playlist: AddKeyFrame called on a non-video rendition")
	}
	if p.descriptor.StreamType != StreamVideoIFramesOnly {
		p.descriptor.StreamType = StreamVideoIFramesOnly
		p.useByteRange = true
	}
	p.keyFrames = append(p.keyFrames, KeyFrameRecord{Timestamp: timestamp, StartByteOffset: byteOffset, Size: size})
	return nil
}

// AddEncryptionInfo appends an EXT-X-KEY tag, preceding it with a single
// EXT-X-DISCONTINUITY the first time a key change follows any unencrypted
// segment -- players must reset timing assumptions at that boundary.
func (p *MediaPlaylist) AddEncryptionInfo(method EncryptionMethod, uri, keyID, iv, keyFormat, keyFormatVersions string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.insertedDiscontinuityTag {
		if p.entries.Len() > 0 {
			p.entries.PushBack(&HlsEntry{Type: EntryExtDiscontinuity})
		}
		p.insertedDiscontinuityTag = true
	}
	p.entries.PushBack(&HlsEntry{Type: EntryExtKey, ExtKey: &ExtKeyEntry{
		Method:            method,
		URI:               uri,
		KeyID:             keyID,
		IV:                iv,
		KeyFormat:         keyFormat,
		KeyFormatVersions: keyFormatVersions,
	}})
}

// AddPlacementOpportunity appends an EXT-X-PLACEMENT-OPPORTUNITY tag, for ad
// insertion points with no underlying SCTE-35 signal.
func (p *MediaPlaylist) AddPlacementOpportunity() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries.PushBack(&HlsEntry{Type: EntryExtPlacementOpportunity})
}

// SignalExitParams carries the optional SCTE-35-derived metadata a
// EXT-X-SIGNAL-EXIT tag may echo back to the player.
type SignalExitParams struct {
	SpliceType            SpliceType
	HasDuration           bool
	Duration              float64
	SignalID              string
	PAID                  string
	HasEventID            bool
	EventID               uint32
	UPID                  string
	HasSegmentationTypeID bool
	SegmentationTypeID    uint8
	Flags                 uint32
	DeviceRestrictions    uint8
	HasMaxD               bool
	MaxD                  uint64
	HasMinD               bool
	MinD                  uint64
}

// AddSignalExit appends an EXT-X-SIGNAL-EXIT tag and opens the rendition's
// ad state: position and segment count reset to zero, and every subsequent
// AddSegment call until AddSignalReturn will interleave EXT-X-SIGNAL-SPAN
// tags.
func (p *MediaPlaylist) AddSignalExit(params SignalExitParams) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries.PushBack(&HlsEntry{Type: EntryExtSignalExit, ExtSignalExit: &SignalExitEntry{
		SpliceType:            params.SpliceType,
		HasDuration:           params.HasDuration,
		Duration:              params.Duration,
		SignalID:              params.SignalID,
		PAID:                  params.PAID,
		HasEventID:            params.HasEventID,
		EventID:               params.EventID,
		UPID:                  params.UPID,
		HasSegmentationTypeID: params.HasSegmentationTypeID,
		SegmentationTypeID:    params.SegmentationTypeID,
		Flags:                 params.Flags,
		DeviceRestrictions:    params.DeviceRestrictions,
		HasMaxD:               params.HasMaxD,
		MaxD:                  params.MaxD,
		HasMinD:               params.HasMinD,
		MinD:                  params.MinD,
	}})
	p.inAd = true
	p.adSpliceType = params.SpliceType
	p.adDurationSec = params.Duration
	p.adPositionSec = 0
	p.adSegments = 0
}

// AddSignalReturn appends an EXT-X-SIGNAL-RETURN tag and closes the
// rendition's ad state.
func (p *MediaPlaylist) AddSignalReturn(spliceType SpliceType, hasDuration bool, duration float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries.PushBack(&HlsEntry{Type: EntryExtSignalReturn, ExtSignalReturn: &SignalReturnEntry{
		SpliceType:  spliceType,
		HasDuration: hasDuration,
		Duration:    duration,
	}})
	p.inAd = false
}

// appendSignalSpanLocked appends an EXT-X-SIGNAL-SPAN tag for the ad
// segment about to start at position. Callers must hold p.mu.
func (p *MediaPlaylist) appendSignalSpanLocked(position float64) {
	p.entries.PushBack(&HlsEntry{Type: EntryExtSignalSpan, ExtSignalSpan: &SignalSpanEntry{
		SpliceType:  p.adSpliceType,
		Position:    position,
		HasDuration: true,
		Duration:    p.adDurationSec,
	}})
}

// SetTargetDuration fixes EXT-X-TARGETDURATION explicitly. If never called,
// WriteToFile derives it as ceil(longest segment duration).
func (p *MediaPlaylist) SetTargetDuration(seconds uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.targetDuration = seconds
	p.targetDurationSet = true
}

// MaxBitrate returns the highest observed per-segment bitrate, or the
// configured override if one was set.
func (p *MediaPlaylist) MaxBitrate() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hasOverrideBandwidth {
		return p.overrideBandwidth
	}
	return p.bandwidth.Max()
}

// AvgBitrate returns the average bitrate across every observed segment
// (total bits over total duration), or the configured override if one was
// set.
func (p *MediaPlaylist) AvgBitrate() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hasOverrideBandwidth {
		return p.overrideBandwidth
	}
	return p.bandwidth.Average()
}

// WriteToFile renders the playlist and writes it to path atomically.
func (p *MediaPlaylist) WriteToFile(path string) error {
	p.mu.Lock()
	if !p.targetDurationSet {
		p.targetDuration = uint32(math.Ceil(p.longestSegmentDuration))
	}
	content := p.renderLocked()
	p.mu.Unlock()
	return writeFileAtomically(path, []byte(content))
}

// Render returns the playlist text without writing it anywhere, for tests
// and for callers that manage file I/O themselves.
func (p *MediaPlaylist) Render() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.targetDurationSet {
		p.targetDuration = uint32(math.Ceil(p.longestSegmentDuration))
	}
	return p.renderLocked()
}

func (p *MediaPlaylist) renderLocked() string {
	var b []byte
	writeLine := func(s string) { b = append(b, s...); b = append(b, '\n') }

	writeLine("#EXTM3U")
	writeLine("#EXT-X-VERSION:6")
	if p.params.PackagerName != "" && p.params.PackagerVersion != "" {
		writeLine(fmt.Sprintf("## Generated with %s version %s", p.params.PackagerName, p.params.PackagerVersion))
	}
	writeLine(fmt.Sprintf("#EXT-X-TARGETDURATION:%d", p.targetDuration))

	switch p.params.PlaylistType {
	case PlaylistVOD:
		writeLine("#EXT-X-PLAYLIST-TYPE:VOD")
	case PlaylistEvent:
		writeLine("#EXT-X-PLAYLIST-TYPE:EVENT")
	case PlaylistLive:
		if p.mediaSequenceNumber > 0 {
			writeLine(fmt.Sprintf("#EXT-X-MEDIA-SEQUENCE:%d", p.mediaSequenceNumber))
		}
		if p.discontinuitySequenceNumber > 0 {
			writeLine(fmt.Sprintf("#EXT-X-DISCONTINUITY-SEQUENCE:%d", p.discontinuitySequenceNumber))
		}
	}

	if p.descriptor.StreamType == StreamVideoIFramesOnly {
		writeLine("#EXT-X-I-FRAMES-ONLY")
	}

	if p.hasInitSegment {
		t := newTag("#EXT-X-MAP").addQuotedString("URI", p.initSegmentURI)
		if p.initSegmentLength > 0 {
			t.addQuotedString("BYTERANGE", fmt.Sprintf("%d@%d", p.initSegmentLength, p.initSegmentOffset))
		}
		writeLine(t.String())
	}

	for e := p.entries.Front(); e != nil; e = e.Next() {
		writeLine(e.Value.(*HlsEntry).Render())
	}

	if p.params.PlaylistType == PlaylistVOD {
		writeLine("#EXT-X-ENDLIST")
	}

	return string(b)
}

// MediaSequenceNumber returns the number of segments removed from the front
// of the playlist by the sliding window over its lifetime.
func (p *MediaPlaylist) MediaSequenceNumber() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mediaSequenceNumber
}

// DiscontinuitySequenceNumber returns the number of discontinuities removed
// from the front of the playlist by the sliding window over its lifetime.
func (p *MediaPlaylist) DiscontinuitySequenceNumber() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.discontinuitySequenceNumber
}

// EntryCount returns the number of entries currently retained in the
// playlist (segments, keys, discontinuities, and ad-signal tags combined).
func (p *MediaPlaylist) EntryCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries.Len()
}

// slideWindow implements the Live sliding-window algorithm. It only applies
// to Live playlists with a positive time-shift buffer depth; VOD and Event
// playlists are never trimmed by this package and grow without bound.
func (p *MediaPlaylist) slideWindow() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.params.PlaylistType != PlaylistLive || p.params.TimeShiftBufferDepth <= 0 {
		return
	}

	currentPlayTime := p.latestSegmentEndTimeLocked()
	if currentPlayTime <= p.params.TimeShiftBufferDepth {
		return
	}
	timeshiftLimit := currentPlayTime - p.params.TimeShiftBufferDepth

	entries := p.entriesSliceLocked()

	var keyBuffer []*HlsEntry
	prevWasKey := false
	cut := len(entries)

	for i, entry := range entries {
		switch entry.Type {
		case EntryExtKey:
			if !prevWasKey {
				keyBuffer = nil
			}
			keyBuffer = append(keyBuffer, entry)
			prevWasKey = true
		case EntryExtDiscontinuity:
			p.discontinuitySequenceNumber++
			prevWasKey = false
		case EntryExtSignalExit, EntryExtSignalSpan, EntryExtSignalReturn:
			prevWasKey = false
		case EntryExtInf:
			prevWasKey = false
			end := entry.ExtInf.StartTime + entry.ExtInf.Duration
			if timeshiftLimit < end {
				cut = i
				goto done
			}
			p.removeOldSegmentLocked(entry.ExtInf.FileName)
			p.mediaSequenceNumber++
		}
	}
done:
	kept := make([]*HlsEntry, 0, len(keyBuffer)+len(entries)-cut)
	kept = append(kept, keyBuffer...)
	kept = append(kept, entries[cut:]...)
	p.rebuildListLocked(kept)
}

func (p *MediaPlaylist) entriesSliceLocked() []*HlsEntry {
	out := make([]*HlsEntry, 0, p.entries.Len())
	for e := p.entries.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*HlsEntry))
	}
	return out
}

func (p *MediaPlaylist) rebuildListLocked(entries []*HlsEntry) {
	p.entries.Init()
	for _, e := range entries {
		p.entries.PushBack(e)
	}
}

func (p *MediaPlaylist) latestSegmentEndTimeLocked() float64 {
	for e := p.entries.Back(); e != nil; e = e.Prev() {
		if entry, ok := e.Value.(*HlsEntry); ok && entry.Type == EntryExtInf {
			return entry.ExtInf.StartTime + entry.ExtInf.Duration
		}
	}
	return 0
}

// removeOldSegmentLocked schedules fileName's underlying media for deletion
// once more than PreservedSegmentsOutsideLiveWindow segments have been
// removed from the playlist, so a client mid-download of a segment that
// just fell off the window still has a grace period. A
// PreservedSegmentsOutsideLiveWindow of 0 or less disables deletion
// entirely. I-frame-only
// renditions share their backing files with the main rendition and never
// own deletion.
func (p *MediaPlaylist) removeOldSegmentLocked(fileName string) {
	if p.params.PreservedSegmentsOutsideLiveWindow <= 0 {
		return
	}
	if p.descriptor.StreamType == StreamVideoIFramesOnly {
		return
	}
	p.segmentsToBeRemoved = append(p.segmentsToBeRemoved, fileName)
	for len(p.segmentsToBeRemoved) > p.params.PreservedSegmentsOutsideLiveWindow {
		old := p.segmentsToBeRemoved[0]
		p.segmentsToBeRemoved = p.segmentsToBeRemoved[1:]
		_ = os.Remove(old)
	}
}

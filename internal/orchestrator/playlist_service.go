package orchestrator

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"hls-packager/internal/playlist"
	"hls-packager/internal/scte35"
	"hls-packager/internal/signal"
)

// ErrRenditionNotInitialized is returned when a caller submits a segment, key
// frame, or SCTE-35 section before InitRendition has established the
// rendition's codec and time scale.
var ErrRenditionNotInitialized = errors.New("orchestrator: rendition not initialized")

// renditionKey identifies one rendition within the playlist service's map.
type renditionKey struct {
	stream    StreamID
	rendition RenditionID
}

// PlaylistService owns one playlist.MediaPlaylist per stream/rendition pair
// and exposes the operations the HTTP handlers translate SCTE-35-aware
// ingestion requests into. It is the bridge between the wire-level packages
// (scte35, signal) and the playlist renderer.
type PlaylistService struct {
	mu        sync.Mutex
	playlists map[renditionKey]*playlist.MediaPlaylist
	params    func() playlist.Params
}

// NewPlaylistService returns a PlaylistService. paramsFor is called once per
// rendition, at InitRendition time, to obtain the Params a new
// playlist.MediaPlaylist should be constructed with (so callers can vary
// live-window depth per deployment without this package knowing about
// configuration).
func NewPlaylistService(paramsFor func() playlist.Params) *PlaylistService {
	return &PlaylistService{
		playlists: make(map[renditionKey]*playlist.MediaPlaylist),
		params:    paramsFor,
	}
}

// InitRendition creates (or replaces) the MediaPlaylist backing one
// stream/rendition pair.
func (s *PlaylistService) InitRendition(streamID StreamID, renditionID RenditionID, descriptor playlist.StreamDescriptor, timeScale uint32, useByteRange bool) error {
	p := playlist.NewMediaPlaylist(s.params())
	if err := p.SetMediaInfo(descriptor, timeScale, useByteRange); err != nil {
		return err
	}

	key := renditionKey{streamID, renditionID}
	s.mu.Lock()
	s.playlists[key] = p
	s.mu.Unlock()
	return nil
}

func (s *PlaylistService) lookup(streamID StreamID, renditionID RenditionID) (*playlist.MediaPlaylist, error) {
	key := renditionKey{streamID, renditionID}
	s.mu.Lock()
	p, ok := s.playlists[key]
	s.mu.Unlock()
	if !ok {
		return nil, ErrRenditionNotInitialized
	}
	return p, nil
}

// AddSegment appends one media segment, in PTS ticks at the rendition's
// configured time scale.
func (s *PlaylistService) AddSegment(streamID StreamID, renditionID RenditionID, fileName string, startTime, duration int64, byteOffset, size uint64) error {
	p, err := s.lookup(streamID, renditionID)
	if err != nil {
		return err
	}
	return p.AddSegment(fileName, startTime, duration, byteOffset, size)
}

// AddKeyFrame records one I-frame for an I-frame-only rendition.
func (s *PlaylistService) AddKeyFrame(streamID StreamID, renditionID RenditionID, timestamp int64, byteOffset, size uint64) error {
	p, err := s.lookup(streamID, renditionID)
	if err != nil {
		return err
	}
	return p.AddKeyFrame(timestamp, byteOffset, size)
}

// IngestScte35 decodes a base64-encoded splice_info_section, turns every
// segmentation descriptor it carries into an ad-signal tag, and appends the
// result to the rendition's playlist: a start-class descriptor opens an ad
// break (EXT-X-SIGNAL-EXIT), an end-class descriptor closes one
// (EXT-X-SIGNAL-RETURN). pcrPTS anchors descriptors whose splice command
// does not carry an explicit splice time.
func (s *PlaylistService) IngestScte35(streamID StreamID, renditionID RenditionID, sectionBase64 string, pcrPTS int64) error {
	p, err := s.lookup(streamID, renditionID)
	if err != nil {
		return err
	}

	raw, err := base64.StdEncoding.DecodeString(sectionBase64)
	if err != nil {
		return fmt.Errorf("orchestrator: decode scte35 section: %w", err)
	}

	section, err := scte35.ParseSpliceInfoSection(raw, true)
	if err != nil {
		return fmt.Errorf("orchestrator: parse scte35 section: %w", err)
	}

	for _, ev := range signal.EventsFromSection(section, pcrPTS) {
		applyScte35Event(p, ev)
	}
	return nil
}

// applyScte35Event translates one signal.Scte35Event into the matching
// playlist call. Descriptor types outside the start/end classes (e.g. a
// bare provider-placement-opportunity) are dropped rather than misrendered.
func applyScte35Event(p *playlist.MediaPlaylist, ev signal.Scte35Event) {
	d := ev.Descriptor
	switch {
	case scte35.IsStartSegmentation(d.TypeID):
		p.AddSignalExit(playlist.SignalExitParams{
			SpliceType:            playlist.SpliceLiveDAI,
			HasDuration:           ev.DurationPTS > 0,
			Duration:              ptsToSeconds(ev.DurationPTS),
			HasEventID:            true,
			EventID:               d.EventID,
			HasSegmentationTypeID: true,
			SegmentationTypeID:    d.TypeID,
			Flags:                 segmentationFlags(d),
			DeviceRestrictions:    d.DeviceRestrictions,
		})
	case scte35.IsEndSegmentation(d.TypeID):
		p.AddSignalReturn(playlist.SpliceLiveDAI, ev.DurationPTS > 0, ptsToSeconds(ev.DurationPTS))
	}
}

// segmentationFlags repacks the three single-bit segmentation_descriptor
// flags into the bitfield playlist.SignalExitParams.Flags expects.
// DeviceRestrictions is a 2-bit value (0-3), carried separately rather than
// packed into this bitfield.
func segmentationFlags(d scte35.SegmentationDescriptor) uint32 {
	var flags uint32
	if d.WebDeliveryAllowed {
		flags |= playlist.FlagWebDeliveryAllowed
	}
	if d.NoRegionalBlackout {
		flags |= playlist.FlagNoRegionalBlackout
	}
	if d.ArchiveAllowed {
		flags |= playlist.FlagArchiveAllowed
	}
	return flags
}

const scte35TimeScale = 90000

func ptsToSeconds(pts int64) float64 {
	return float64(pts) / scte35TimeScale
}

// Render returns the current playlist text for one stream/rendition pair.
func (s *PlaylistService) Render(streamID StreamID, renditionID RenditionID) (string, bool) {
	p, err := s.lookup(streamID, renditionID)
	if err != nil {
		return "", false
	}
	return p.Render(), true
}

// RenditionCount returns the number of initialized stream/rendition pairs,
// for the active-streams gauge.
func (s *PlaylistService) RenditionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.playlists)
}

package orchestrator

import (
	"encoding/base64"
	"strings"
	"testing"

	"hls-packager/internal/playlist"
	"hls-packager/internal/scte35"
)

func newTestPlaylistService() *PlaylistService {
	return NewPlaylistService(func() playlist.Params {
		return playlist.Params{PlaylistType: playlist.PlaylistVOD}
	})
}

func TestPlaylistService_AddSegmentBeforeInit(t *testing.T) {
	s := newTestPlaylistService()
	err := s.AddSegment("s1", "720p", "a.ts", 0, 90000, 0, 1000)
	if err != ErrRenditionNotInitialized {
		t.Fatalf("got %v, want ErrRenditionNotInitialized", err)
	}
}

func TestPlaylistService_InitAndRender(t *testing.T) {
	s := newTestPlaylistService()
	err := s.InitRendition("s1", "720p", playlist.StreamDescriptor{StreamType: playlist.StreamVideo}, 90000, false)
	if err != nil {
		t.Fatalf("InitRendition: %v", err)
	}
	if err := s.AddSegment("s1", "720p", "a.ts", 0, 180000, 0, 1000); err != nil {
		t.Fatalf("AddSegment: %v", err)
	}
	out, ok := s.Render("s1", "720p")
	if !ok {
		t.Fatal("Render: ok false")
	}
	if !strings.Contains(out, "#EXTINF:2.000,") {
		t.Errorf("expected EXTINF 2.000:\n%s", out)
	}
}

func TestPlaylistService_IngestScte35_OpensAndClosesAdBreak(t *testing.T) {
	s := newTestPlaylistService()
	if err := s.InitRendition("s1", "720p", playlist.StreamDescriptor{StreamType: playlist.StreamVideo}, 90000, false); err != nil {
		t.Fatalf("InitRendition: %v", err)
	}

	section := sampleTimeSignalSection(t, 0x30, 123)
	if err := s.IngestScte35("s1", "720p", section, 0); err != nil {
		t.Fatalf("IngestScte35 start: %v", err)
	}

	out, _ := s.Render("s1", "720p")
	if !strings.Contains(out, "#EXT-X-SIGNAL-EXIT") {
		t.Errorf("expected signal exit after start-class descriptor:\n%s", out)
	}

	endSection := sampleTimeSignalSection(t, 0x31, 123)
	if err := s.IngestScte35("s1", "720p", endSection, 0); err != nil {
		t.Fatalf("IngestScte35 end: %v", err)
	}
	out, _ = s.Render("s1", "720p")
	if !strings.Contains(out, "#EXT-X-SIGNAL-RETURN") {
		t.Errorf("expected signal return after end-class descriptor:\n%s", out)
	}
}

// sampleTimeSignalSection builds and base64-encodes a minimal time_signal
// section carrying one segmentation descriptor of the given type, so the
// handler/service tests can exercise ingestion without a hand-built binary
// fixture duplicated from the scte35 package's own tests.
func sampleTimeSignalSection(t *testing.T, typeID uint8, eventID uint32) string {
	t.Helper()
	section := &scte35.SpliceInfoSection{
		TableID:             0xfc,
		SectionSyntaxInd:    false,
		PrivateInd:          true,
		ProtocolVersion:     0,
		EncryptedPacket:     false,
		CWIndex:             0,
		Tier:                0xfff,
		CommandType:         scte35.CommandTimeSignal,
		TimeSignal:          &scte35.TimeSignal{SpliceTime: scte35.SpliceTime{TimeSpecified: false}},
		SegmentationDescriptors: []scte35.SegmentationDescriptor{
			{
				EventID:              eventID,
				ProgramSegmentation:  true,
				WebDeliveryAllowed:   true,
				ArchiveAllowed:       true,
				UPIDType:             0x0C,
				TypeID:               typeID,
				DeliveryNotRestricted: true,
			},
		},
	}
	raw := section.Encode()
	return base64.StdEncoding.EncodeToString(raw)
}

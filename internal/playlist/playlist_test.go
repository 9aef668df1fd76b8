package playlist

import (
	"strings"
	"testing"
)

func newTestPlaylist(t *testing.T, pt PlaylistType, timeShift float64, preserved int) *MediaPlaylist {
	t.Helper()
	p := NewMediaPlaylist(Params{
		PlaylistType:                       pt,
		TimeShiftBufferDepth:               timeShift,
		PreservedSegmentsOutsideLiveWindow: preserved,
	})
	if err := p.SetMediaInfo(StreamDescriptor{Codec: "avc1.4d401f", StreamType: StreamVideo}, 90000, true); err != nil {
		t.Fatalf("SetMediaInfo: %v", err)
	}
	return p
}

func TestVODThreeSegmentsNoAds(t *testing.T) {
	p := newTestPlaylist(t, PlaylistVOD, 0, 0)
	for i := 0; i < 3; i++ {
		if err := p.AddSegment("seg.ts", int64(i)*180000, 180000, uint64(i)*1000, 1000); err != nil {
			t.Fatalf("AddSegment %d: %v", i, err)
		}
	}
	out := p.Render()
	if !strings.Contains(out, "#EXT-X-PLAYLIST-TYPE:VOD") {
		t.Errorf("missing VOD tag:\n%s", out)
	}
	if !strings.Contains(out, "#EXT-X-ENDLIST") {
		t.Errorf("missing ENDLIST:\n%s", out)
	}
	if strings.Count(out, "#EXTINF") != 3 {
		t.Errorf("expected 3 EXTINF entries:\n%s", out)
	}
	if !strings.Contains(out, "#EXT-X-TARGETDURATION:2") {
		t.Errorf("expected target duration 2 (ceil(2.0)):\n%s", out)
	}
}

func TestLiveSlidingWindow_ElevenSegmentsDepthTen(t *testing.T) {
	p := newTestPlaylist(t, PlaylistLive, 10, 3)
	for i := 0; i < 11; i++ {
		if err := p.AddSegment("seg.ts", int64(i)*2*90000, 2*90000, uint64(i)*1000, 1000); err != nil {
			t.Fatalf("AddSegment %d: %v", i, err)
		}
	}
	if got := p.MediaSequenceNumber(); got != 6 {
		t.Errorf("MediaSequenceNumber = %d, want 6", got)
	}
	out := p.Render()
	if !strings.Contains(out, "#EXT-X-MEDIA-SEQUENCE:6") {
		t.Errorf("missing media sequence 6:\n%s", out)
	}
}

func TestDiscontinuityOnEncryption(t *testing.T) {
	p := newTestPlaylist(t, PlaylistVOD, 0, 0)
	if err := p.AddSegment("seg0.ts", 0, 180000, 0, 1000); err != nil {
		t.Fatal(err)
	}
	p.AddEncryptionInfo(EncryptionAES128, "https://key.example/1", "", "", "", "")
	if err := p.AddSegment("seg1.ts", 180000, 180000, 1000, 1000); err != nil {
		t.Fatal(err)
	}
	// A second key change must not re-insert a discontinuity tag.
	p.AddEncryptionInfo(EncryptionAES128, "https://key.example/2", "", "", "", "")

	out := p.Render()
	if strings.Count(out, "#EXT-X-DISCONTINUITY") != 1 {
		t.Errorf("expected exactly 1 discontinuity tag:\n%s", out)
	}
	if strings.Count(out, "#EXT-X-KEY") != 2 {
		t.Errorf("expected 2 key tags:\n%s", out)
	}
}

func TestSignalExitDeviceRestrictionsValue(t *testing.T) {
	p := newTestPlaylist(t, PlaylistVOD, 0, 0)
	p.AddSignalExit(SignalExitParams{
		SpliceType:         SpliceLiveDAI,
		Flags:              FlagWebDeliveryAllowed,
		DeviceRestrictions: 3,
	})
	out := p.Render()
	if !strings.Contains(out, "deviceRestrictions=3") {
		t.Errorf("expected deviceRestrictions=3, got:\n%s", out)
	}
	if !strings.Contains(out, "webDeliveryAllowedFlag=1") {
		t.Errorf("expected webDeliveryAllowedFlag=1, got:\n%s", out)
	}
}

func TestSignalSpanAcrossFiveSegments(t *testing.T) {
	p := newTestPlaylist(t, PlaylistVOD, 0, 0)
	p.AddSignalExit(SignalExitParams{SpliceType: SpliceLiveDAI, HasDuration: true, Duration: 30})
	for i := 0; i < 5; i++ {
		if err := p.AddSegment("ad.ts", int64(i)*6*90000, 6*90000, uint64(i)*1000, 1000); err != nil {
			t.Fatalf("AddSegment %d: %v", i, err)
		}
	}
	p.AddSignalReturn(SpliceLiveDAI, true, 30)

	out := p.Render()
	if !strings.Contains(out, "#EXT-X-SIGNAL-EXIT:30.000,SpliceType=LiveDAI") {
		t.Errorf("missing signal exit:\n%s", out)
	}
	if n := strings.Count(out, "#EXT-X-SIGNAL-SPAN"); n != 4 {
		t.Errorf("expected 4 signal spans (one between each pair of ad segments), got %d:\n%s", n, out)
	}
	if !strings.Contains(out, "#EXT-X-SIGNAL-RETURN:30.000,SpliceType=LiveDAI") {
		t.Errorf("missing signal return:\n%s", out)
	}
}

func TestIFrameOnlyMode(t *testing.T) {
	p := NewMediaPlaylist(Params{PlaylistType: PlaylistVOD})
	if err := p.SetMediaInfo(StreamDescriptor{StreamType: StreamVideo}, 90000, false); err != nil {
		t.Fatal(err)
	}
	if err := p.AddKeyFrame(0, 0, 500); err != nil {
		t.Fatal(err)
	}
	if err := p.AddKeyFrame(90000, 500, 500); err != nil {
		t.Fatal(err)
	}
	if err := p.AddSegment("seg.ts", 0, 180000, 0, 1000); err != nil {
		t.Fatal(err)
	}
	out := p.Render()
	if !strings.Contains(out, "#EXT-X-I-FRAMES-ONLY") {
		t.Errorf("missing I-FRAMES-ONLY tag:\n%s", out)
	}
	if strings.Count(out, "#EXTINF") != 2 {
		t.Errorf("expected 2 EXTINF entries (one per key frame):\n%s", out)
	}
}

func TestAddSegment_BeforeMediaInfo(t *testing.T) {
	p := NewMediaPlaylist(Params{PlaylistType: PlaylistVOD})
	if err := p.AddSegment("x.ts", 0, 1, 0, 1); err != ErrBadMediaInfo {
		t.Fatalf("got %v, want ErrBadMediaInfo", err)
	}
}

func TestByteRangeOffsetOmission(t *testing.T) {
	p := newTestPlaylist(t, PlaylistVOD, 0, 0)
	if err := p.AddSegment("a.ts", 0, 90000, 0, 100); err != nil {
		t.Fatal(err)
	}
	if err := p.AddSegment("a.ts", 90000, 90000, 100, 100); err != nil {
		t.Fatal(err)
	}
	out := p.Render()
	if strings.Contains(out, "@100") {
		t.Errorf("second segment is contiguous with the first; @offset should be omitted:\n%s", out)
	}
}

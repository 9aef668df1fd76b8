package orchestrator

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"hls-packager/internal/playlist"
	"hls-packager/internal/scte35"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	l := zerolog.New(os.Stdout).Level(zerolog.ErrorLevel)
	log := &l
	return NewHandler(func() playlist.Params {
		return playlist.Params{PlaylistType: playlist.PlaylistLive}
	}, log, nil)
}

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/streams/{stream_id}/renditions/{rendition}/hls", func(r chi.Router) {
		r.Post("/init", h.InitHlsRendition)
		r.Post("/segments", h.AddHlsSegment)
		r.Post("/keyframes", h.AddHlsKeyFrame)
		r.Post("/scte35", h.IngestScte35)
		r.Get("/playlist.m3u8", h.GetHlsPlaylist)
	})
	return r
}

func doJSON(t *testing.T, r *chi.Mux, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func initRendition(t *testing.T, r *chi.Mux, stream, rendition string) {
	t.Helper()
	rec := doJSON(t, r, http.MethodPost, "/streams/"+stream+"/renditions/"+rendition+"/hls/init", InitRenditionRequest{
		StreamType: "video",
		TimeScale:  90000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("init rendition: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_InitHlsRendition(t *testing.T) {
	h := newTestHandler(t)
	r := newTestRouter(h)
	initRendition(t, r, "s1", "720p")
	if got := h.ActiveRenditions(); got != 1 {
		t.Fatalf("ActiveRenditions() = %d, want 1", got)
	}
}

func TestHandler_InitHlsRendition_missing_time_scale(t *testing.T) {
	h := newTestHandler(t)
	r := newTestRouter(h)
	rec := doJSON(t, r, http.MethodPost, "/streams/s1/renditions/720p/hls/init", InitRenditionRequest{StreamType: "video"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_AddHlsSegment_not_initialized(t *testing.T) {
	h := newTestHandler(t)
	r := newTestRouter(h)
	rec := doJSON(t, r, http.MethodPost, "/streams/s1/renditions/720p/hls/segments", TimedSegmentRequest{
		FileName: "seg1.ts", StartTime: 0, Duration: 180000,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_AddHlsSegmentAndGetPlaylist(t *testing.T) {
	h := newTestHandler(t)
	r := newTestRouter(h)
	initRendition(t, r, "s1", "720p")

	rec := doJSON(t, r, http.MethodPost, "/streams/s1/renditions/720p/hls/segments", TimedSegmentRequest{
		FileName: "seg1.ts", StartTime: 0, Duration: 180000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add segment: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/streams/s1/renditions/720p/hls/playlist.m3u8", nil)
	playRec := httptest.NewRecorder()
	r.ServeHTTP(playRec, req)
	if playRec.Code != http.StatusOK {
		t.Fatalf("get playlist: expected 200, got %d", playRec.Code)
	}
	if playRec.Header().Get("Content-Type") != playlistContentType {
		t.Fatalf("unexpected content type %q", playRec.Header().Get("Content-Type"))
	}
	body := playRec.Body.String()
	if !bytes.Contains([]byte(body), []byte("#EXTM3U")) {
		t.Errorf("unexpected playlist body: %s", body)
	}
	if !bytes.Contains([]byte(body), []byte("seg1.ts")) {
		t.Errorf("playlist missing segment entry: %s", body)
	}
}

func TestHandler_GetHlsPlaylist_not_found(t *testing.T) {
	h := newTestHandler(t)
	r := newTestRouter(h)
	req := httptest.NewRequest(http.MethodGet, "/streams/missing/renditions/720p/hls/playlist.m3u8", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_IngestScte35(t *testing.T) {
	h := newTestHandler(t)
	r := newTestRouter(h)
	initRendition(t, r, "s1", "720p")

	doJSON(t, r, http.MethodPost, "/streams/s1/renditions/720p/hls/segments", TimedSegmentRequest{
		FileName: "seg1.ts", StartTime: 0, Duration: 180000,
	})

	section := &scte35.SpliceInfoSection{
		TableID:     0xFC,
		Tier:        0xFFF,
		CommandType: scte35.CommandTimeSignal,
		TimeSignal:  &scte35.TimeSignal{SpliceTime: scte35.SpliceTime{TimeSpecified: true, PTSTime: 90000}},
		SegmentationDescriptors: []scte35.SegmentationDescriptor{
			{EventID: 1, ProgramSegmentation: true, TypeID: 0x30},
		},
	}
	encoded := section.Encode()

	rec := doJSON(t, r, http.MethodPost, "/streams/s1/renditions/720p/hls/scte35", Scte35Request{
		Section: base64.StdEncoding.EncodeToString(encoded),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("ingest scte35: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/streams/s1/renditions/720p/hls/playlist.m3u8", nil)
	playRec := httptest.NewRecorder()
	r.ServeHTTP(playRec, req)
	body := playRec.Body.String()
	if !bytes.Contains([]byte(body), []byte("EXT-X-SIGNAL-EXIT")) {
		t.Errorf("expected an ad-signal-exit tag in playlist: %s", body)
	}
}

func TestHandler_IngestScte35_bad_base64(t *testing.T) {
	h := newTestHandler(t)
	r := newTestRouter(h)
	initRendition(t, r, "s1", "720p")

	rec := doJSON(t, r, http.MethodPost, "/streams/s1/renditions/720p/hls/scte35", Scte35Request{Section: "not-base64!!"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for malformed section, got %d", rec.Code)
	}
}

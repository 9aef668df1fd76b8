package orchestrator

import (
	"encoding/json"
	"errors"
	"net/http"

	"hls-packager/internal/platform/metrics"
	"hls-packager/internal/playlist"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const playlistContentType = "application/vnd.apple.mpegurl"

// Handler exposes orchestrator HTTP endpoints using go-chi.
type Handler struct {
	playlist *PlaylistService
	log      *zerolog.Logger
	metrics  *metrics.Metrics
}

// NewHandler returns a Handler backed by a PlaylistService constructed with
// paramsFor, plus the given Logger and optional Metrics. Metrics may be nil
// to disable metric recording (e.g. in tests).
func NewHandler(paramsFor func() playlist.Params, log *zerolog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		playlist: NewPlaylistService(paramsFor),
		log:      log,
		metrics:  m,
	}
}

// InitHlsRendition handles POST /streams/{stream_id}/renditions/{rendition}/hls/init.
// It must be called once, before any hls/segments, hls/keyframes, or
// hls/scte35 request for the same stream/rendition pair.
func (h *Handler) InitHlsRendition(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))
	renditionID := RenditionID(chi.URLParam(r, "rendition"))
	if streamID == "" || renditionID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req InitRenditionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.TimeScale == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	descriptor := playlist.StreamDescriptor{
		Codec:           req.Codec,
		Language:        req.Language,
		Characteristics: req.Characteristics,
		StreamType:      req.streamType(),
	}
	if err := h.playlist.InitRendition(streamID, renditionID, descriptor, req.TimeScale, req.UseByteRange); err != nil {
		h.log.Error().Err(err).Msg("init rendition failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// AddHlsSegment handles POST /streams/{stream_id}/renditions/{rendition}/hls/segments.
func (h *Handler) AddHlsSegment(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))
	renditionID := RenditionID(chi.URLParam(r, "rendition"))
	if streamID == "" || renditionID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req TimedSegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	err := h.playlist.AddSegment(streamID, renditionID, req.FileName, req.StartTime, req.Duration, req.ByteOffset, req.Size)
	if h.writeDomainError(w, err) {
		return
	}
	w.WriteHeader(http.StatusCreated)
	if h.metrics != nil {
		h.metrics.IncSegmentsRegistered()
	}
}

// AddHlsKeyFrame handles POST /streams/{stream_id}/renditions/{rendition}/hls/keyframes.
func (h *Handler) AddHlsKeyFrame(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))
	renditionID := RenditionID(chi.URLParam(r, "rendition"))
	if streamID == "" || renditionID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req KeyFrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	err := h.playlist.AddKeyFrame(streamID, renditionID, req.Timestamp, req.ByteOffset, req.Size)
	if h.writeDomainError(w, err) {
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// IngestScte35 handles POST /streams/{stream_id}/renditions/{rendition}/hls/scte35.
func (h *Handler) IngestScte35(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))
	renditionID := RenditionID(chi.URLParam(r, "rendition"))
	if streamID == "" || renditionID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req Scte35Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	err := h.playlist.IngestScte35(streamID, renditionID, req.Section, req.PcrPTS)
	if h.writeDomainError(w, err) {
		return
	}
	h.log.Info().
		Str("stream_id", string(streamID)).
		Str("rendition", string(renditionID)).
		Msg("scte35 section ingested")
	w.WriteHeader(http.StatusCreated)
	if h.metrics != nil {
		h.metrics.IncScte35SectionsIngested()
	}
}

// GetHlsPlaylist handles GET /streams/{stream_id}/renditions/{rendition}/hls/playlist.m3u8.
func (h *Handler) GetHlsPlaylist(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))
	renditionID := RenditionID(chi.URLParam(r, "rendition"))
	if streamID == "" || renditionID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	m3u8, ok := h.playlist.Render(streamID, renditionID)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", playlistContentType)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(m3u8))
}

// ActiveRenditions returns the number of initialized stream/rendition pairs,
// for the active-streams gauge.
func (h *Handler) ActiveRenditions() int {
	return h.playlist.RenditionCount()
}

// writeDomainError maps a playlist/scte35 domain error to a response status
// and writes it. It returns true if it wrote a response (i.e. err != nil).
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrRenditionNotInitialized):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, playlist.ErrBadMediaInfo):
		w.WriteHeader(http.StatusBadRequest)
	default:
		h.log.Error().Err(err).Msg("hls ingestion failed")
		w.WriteHeader(http.StatusInternalServerError)
	}
	return true
}

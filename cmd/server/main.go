package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hls-packager/internal/orchestrator"
	"hls-packager/internal/platform/config"
	"hls-packager/internal/platform/logger"
	"hls-packager/internal/platform/metrics"
	"hls-packager/internal/playlist"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	timeShiftBufferDepth := config.GetEnvFloat("TIME_SHIFT_BUFFER_DEPTH", 60)
	preservedSegmentsOutsideLiveWindow := config.GetEnvInt("PRESERVED_SEGMENTS_OUTSIDE_LIVE_WINDOW", 0)
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	log := logger.New(logLevel, logFormat)

	met := metrics.New()
	h := orchestrator.NewHandler(func() playlist.Params {
		return playlist.Params{
			PlaylistType:                       playlist.PlaylistLive,
			TimeShiftBufferDepth:               timeShiftBufferDepth,
			PreservedSegmentsOutsideLiveWindow: preservedSegmentsOutsideLiveWindow,
		}
	}, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveStreams(h.ActiveRenditions()) }).ServeHTTP(w, r)
	})
	r.Route("/streams/{stream_id}/renditions/{rendition}/hls", func(r chi.Router) {
		r.Post("/init", h.InitHlsRendition)
		r.Post("/segments", h.AddHlsSegment)
		r.Post("/keyframes", h.AddHlsKeyFrame)
		r.Post("/scte35", h.IngestScte35)
		r.Get("/playlist.m3u8", h.GetHlsPlaylist)
	})

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	log.Info().
		Str("port", port).
		Float64("time_shift_buffer_depth", timeShiftBufferDepth).
		Str("log_level", logLevel).
		Msg("server starting")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

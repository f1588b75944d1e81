package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/audio-transcriber/internal/config"
	"github.com/snarg/audio-transcriber/internal/metrics"
	"github.com/snarg/audio-transcriber/internal/tempfile"
	"github.com/snarg/audio-transcriber/internal/transcribe"
)

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// ServerOptions carries the collaborators the HTTP layer depends on.
type ServerOptions struct {
	Config      *config.Config
	Files       *tempfile.Manager
	Transcriber *transcribe.Transcriber
	Version     string
	StartTime   time.Time
	Log         zerolog.Logger
}

func NewServer(opts ServerOptions) *Server {
	cfg := opts.Config

	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))
	r.Use(metrics.InstrumentHandler)
	r.Use(CORSWithOrigins(cfg.AllowedOrigins()))

	r.Get("/", RootHandler)

	health := NewHealthHandler(opts.Transcriber.Handle(), opts.Transcriber, opts.Files.Dir(), opts.Version, opts.StartTime)
	r.Get("/api/v1/health", health.ServeHTTP)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(MaxBodySize(cfg.MaxUploadBytes))
		NewTranscribeHandler(opts.Files, opts.Transcriber, opts.Log).Routes(r)
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: opts.Log,
	}
}

// RegisterCollector exposes live service gauges on /metrics.
func RegisterCollector(files *tempfile.Manager, tr *transcribe.Transcriber) error {
	return prometheus.Register(metrics.NewCollector(serviceStats{files: files, tr: tr}))
}

type serviceStats struct {
	files *tempfile.Manager
	tr    *transcribe.Transcriber
}

func (s serviceStats) ActiveTempFiles() int { return s.files.Active() }
func (s serviceStats) InFlight() int        { return s.tr.InFlight() }
func (s serviceStats) Waiting() int         { return s.tr.Waiting() }
func (s serviceStats) ModelLoaded() bool    { return s.tr.Handle().Loaded() }

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.http.Handler }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/farhan/hookgate/internal/config"
	"github.com/farhan/hookgate/internal/event"
	"github.com/farhan/hookgate/internal/signing"
	"github.com/farhan/hookgate/internal/storage"
)

// Server accepts webhook traffic on its own goroutine so the process's main
// goroutine — which runs the bot loop — is never blocked by HTTP I/O.
type Server struct {
	cfg    config.ServerConfig
	router *chi.Mux
	log    zerolog.Logger
	http   *http.Server
}

func NewServer(cfg config.ServerConfig, verifier *signing.Verifier, events *event.Router, store storage.Storage, log zerolog.Logger) *Server {
	s := &Server{
		cfg: cfg,
		log: log,
	}
	s.router = s.buildRouter(verifier, events, store)
	return s
}

func (s *Server) buildRouter(verifier *signing.Verifier, events *event.Router, store storage.Storage) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	// Recoverer is the outermost boundary of the request pipeline: a panic
	// anywhere below becomes a 500, never a dead server goroutine.
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(s.log))

	h := NewWebhookHandler(verifier, events, store, s.log)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "hookgate",
		})
	})

	// The platform posts to whatever path it was configured with, so the
	// webhook pipeline owns every remaining route.
	r.Post("/*", h.Receive)
	r.Get("/*", h.Liveness)
	r.Options("/*", h.Preflight)

	return r
}

// Handler exposes the assembled router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info().Str("addr", addr).Msg("starting HTTP server")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

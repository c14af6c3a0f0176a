// Package server exposes the training page over HTTP: a JSON API per
// learner, live progress over WebSocket and the raw course files.
package server

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quantumtrader/academy/internal/app"
	"github.com/quantumtrader/academy/internal/course"
	"github.com/quantumtrader/academy/internal/events"
	"github.com/quantumtrader/academy/internal/markdown"
	"github.com/quantumtrader/academy/internal/notify"
	"github.com/quantumtrader/academy/internal/progress"
)

const apiTimeout = 30 * time.Second

// Config holds dependencies for the HTTP server.
type Config struct {
	Loader      *course.Loader   // required
	Backend     progress.Backend // required
	Content     fs.FS            // served under /content when set
	Renderer    *markdown.Renderer
	Events      events.EventLogger
	Hub         *notify.Hub
	CORSOrigins []string
	MaxSessions int           // DefaultMaxSessions when zero
	SessionIdle time.Duration // DefaultSessionIdle when zero
}

// Server routes HTTP requests to per-learner apps.
type Server struct {
	loader      *course.Loader
	backend     progress.Backend
	content     fs.FS
	renderer    *markdown.Renderer
	hub         *notify.Hub
	corsOrigins []string
	sessions    *Sessions
}

// New creates a server.
func New(cfg Config) *Server {
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = markdown.New()
	}
	hub := cfg.Hub
	if hub == nil {
		hub = notify.NewHub()
	}
	logger := cfg.Events
	if logger == nil {
		logger = events.NopEventLogger{}
	}

	s := &Server{
		loader:      cfg.Loader,
		backend:     cfg.Backend,
		content:     cfg.Content,
		renderer:    renderer,
		hub:         hub,
		corsOrigins: cfg.CORSOrigins,
	}
	s.sessions = NewSessions(func(learnerID string) *app.App {
		return app.New(app.Config{
			LearnerID: learnerID,
			Loader:    cfg.Loader,
			Renderer:  renderer,
			Storage:   cfg.Backend.Storage(learnerID),
			Events:    logger,
			Hub:       hub,
		})
	}, cfg.MaxSessions, cfg.SessionIdle)
	return s
}

// Sessions returns the per-learner app registry.
func (s *Server) Sessions() *Sessions {
	return s.sessions
}

// Handler builds the HTTP router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger, middleware.Recoverer)

	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", learnerHeader},
			ExposedHeaders:   []string{"Content-Length", "ETag"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(apiTimeout))

		r.Get("/manifest", s.handleManifest)
		r.Get("/state", s.withApp(handleState))
		r.Post("/levels/{level}", s.withApp(handleShowLevel))
		r.Post("/topics/{topicID}/toggle", s.withApp(handleShowTopic))
		r.Put("/exercises/{topicID}/text", s.withApp(handleExerciseText))
		r.Post("/exercises/{topicID}/check", s.withApp(handleCheckExercise))
		r.Post("/questions/{questionID}/answer", s.withApp(handleAnswer))
		r.Put("/controls/{controlID}", s.withApp(handleControl))
		r.Get("/progress", s.withApp(handleProgress))
		r.Post("/progress/reset", s.withApp(handleReset))
		r.Get("/progress/export.xlsx", s.withApp(handleExport))
	})

	r.Get("/ws/progress", s.withApp(s.handleProgressStream))
	r.Get("/assets/highlight.css", s.handleHighlightCSS)

	if s.content != nil {
		r.Get("/content/*", contentHandler(s.content))
	}
	return r
}

type appHandler func(w http.ResponseWriter, r *http.Request, a *app.App)

func (s *Server) withApp(h appHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := s.sessions.Get(r.Context(), learnerID(w, r))
		h(w, r, a)
	}
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.backend.HealthCheck(ctx); err != nil {
		slog.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	m, err := s.loader.Manifest(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleHighlightCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	if err := s.renderer.WriteCSS(w); err != nil {
		slog.Error("writing highlight stylesheet", "error", err)
	}
}

func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request, a *app.App) {
	s.hub.ServeWS(w, r, a.LearnerID(), a.Progress(), s.corsOrigins)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

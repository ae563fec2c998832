package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/sessiondb/internal/dto"
	"github.com/aretw0/sessiondb/internal/logging"
	"github.com/aretw0/sessiondb/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Store is the session store served by the admin API.
type Store interface {
	Ready(ctx context.Context) error
	Set(ctx context.Context, id string, sess domain.Session) error
	Get(ctx context.Context, id string) (domain.Session, error)
	Touch(ctx context.Context, id string, sess domain.Session) error
	Destroy(ctx context.Context, id string) error
	Records(ctx context.Context) ([]domain.Record, error)
	Length(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// Server serves the admin API over a Store.
type Server struct {
	Store  Store
	Logger *slog.Logger
}

// NewHandler creates the admin HTTP handler. metrics, when not nil, is
// mounted at /metrics.
func NewHandler(store Store, logger *slog.Logger, metrics http.Handler) http.Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{Store: store, Logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.Health)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.List)
		r.Post("/", s.Create)
		r.Delete("/", s.Clear)
		r.Get("/count", s.Count)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.Get)
			r.Put("/", s.Put)
			r.Delete("/", s.Destroy)
			r.Post("/touch", s.Touch)
		})
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.Store.Ready(ctx); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// List handles GET /sessions.
func (s *Server) List(w http.ResponseWriter, r *http.Request) {
	recs, err := s.Store.Records(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	views := make([]dto.SessionView, len(recs))
	for i, rec := range recs {
		views[i] = dto.NewSessionView(rec)
	}
	s.writeJSON(w, http.StatusOK, views)
}

// Count handles GET /sessions/count.
func (s *Server) Count(w http.ResponseWriter, r *http.Request) {
	n, err := s.Store.Length(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, dto.CountView{Count: n})
}

// Get handles GET /sessions/{id}.
func (s *Server) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.Store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if sess == nil {
		s.writeError(w, &domain.NotFoundError{ID: id})
		return
	}
	s.writeJSON(w, http.StatusOK, dto.SessionView{ID: id, Session: sess})
}

// Put handles PUT /sessions/{id}.
func (s *Server) Put(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.decodeSession(w, r)
	if !ok {
		return
	}
	if err := s.Store.Set(r.Context(), chi.URLParam(r, "id"), sess); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Create handles POST /sessions, storing the body under a new id.
func (s *Server) Create(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.decodeSession(w, r)
	if !ok {
		return
	}
	id := uuid.NewString()
	if err := s.Store.Set(r.Context(), id, sess); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+id)
	s.writeJSON(w, http.StatusCreated, dto.SessionView{ID: id, Session: sess})
}

// Touch handles POST /sessions/{id}/touch. The body is optional.
func (s *Server) Touch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.decodeSession(w, r)
	if !ok {
		return
	}
	if err := s.Store.Touch(r.Context(), chi.URLParam(r, "id"), sess); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Destroy handles DELETE /sessions/{id}.
func (s *Server) Destroy(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Destroy(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /sessions.
func (s *Server) Clear(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Clear(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- Helpers --

func (s *Server) decodeSession(w http.ResponseWriter, r *http.Request) (domain.Session, bool) {
	sess := domain.Session{}
	if err := json.NewDecoder(r.Body).Decode(&sess); err != nil && !errors.Is(err, io.EOF) {
		s.writeJSON(w, http.StatusBadRequest, dto.ErrorView{Error: "Invalid request body"})
		return nil, false
	}
	return sess, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotLoaded):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.Logger.Error("Admin request failed", "err", err)
	}
	s.writeJSON(w, status, dto.ErrorView{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Warn("Failed to encode response", "err", err)
	}
}

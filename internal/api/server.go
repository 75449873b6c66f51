package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/douban-harvester/internal/douban/model"
	"github.com/JakeFAU/douban-harvester/internal/id/uuid"
	"github.com/JakeFAU/douban-harvester/internal/metrics"
)

// DefaultRequestTimeout bounds one API call. Guest throttling can hold a
// lookup for several seconds, so this is generous.
const DefaultRequestTimeout = 60 * time.Second

// Lookup is the subset of douban.Client the API serves.
type Lookup interface {
	Search(ctx context.Context, keyword string) ([]model.Subject, error)
	SearchMovies(ctx context.Context, keyword string) ([]model.Subject, error)
	SearchTV(ctx context.Context, keyword string) ([]model.Subject, error)
	Suggest(ctx context.Context, keyword string) ([]model.Subject, error)
	GetSubject(ctx context.Context, sid string) (model.Subject, bool, error)
	GetCelebrities(ctx context.Context, sid string) ([]model.Celebrity, error)
	GetCelebrity(ctx context.Context, cid string) (model.Celebrity, bool, error)
	GetCelebrityPhotos(ctx context.Context, cid string) ([]model.Photo, error)
	GetSubjectPhotos(ctx context.Context, sid string) ([]model.Photo, error)
	SearchCelebrities(ctx context.Context, keyword string) ([]model.Celebrity, error)
	GetLoginInfo(ctx context.Context) model.LoginInfo
}

// IDGenerator issues request IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Options tune the server.
type Options struct {
	RequestTimeout time.Duration
	IDs            IDGenerator
}

// Server wires HTTP handlers to the lookup client.
type Server struct {
	router chi.Router
	lookup Lookup
	ids    IDGenerator
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(lookup Lookup, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.IDs == nil {
		opts.IDs = uuid.New()
	}
	s := &Server{
		lookup: lookup,
		ids:    opts.IDs,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.healthz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(timeoutMiddleware(opts.RequestTimeout))
		r.Get("/search", s.search)
		r.Get("/suggest", s.suggest)
		r.Get("/login", s.login)
		r.Route("/subjects/{id}", func(r chi.Router) {
			r.Get("/", s.getSubject)
			r.Get("/celebrities", s.getCelebrities)
			r.Get("/photos", s.getSubjectPhotos)
		})
		r.Get("/celebrities/search", s.searchCelebrities)
		r.Route("/celebrities/{id}", func(r chi.Router) {
			r.Get("/", s.getCelebrity)
			r.Get("/photos", s.getCelebrityPhotos)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q, ok := s.requireQuery(w, r, "q")
	if !ok {
		return
	}
	var (
		subjects []model.Subject
		err      error
	)
	switch category := model.Category(r.URL.Query().Get("category")); category {
	case "":
		subjects, err = s.lookup.Search(r.Context(), q)
	case model.CategoryMovie:
		subjects, err = s.lookup.SearchMovies(r.Context(), q)
	case model.CategoryTV:
		subjects, err = s.lookup.SearchTV(r.Context(), q)
	default:
		s.writeError(w, http.StatusBadRequest, "category must be movie or tv")
		return
	}
	s.respond(w, subjects, err)
}

func (s *Server) suggest(w http.ResponseWriter, r *http.Request) {
	q, ok := s.requireQuery(w, r, "q")
	if !ok {
		return
	}
	subjects, err := s.lookup.Suggest(r.Context(), q)
	s.respond(w, subjects, err)
}

func (s *Server) searchCelebrities(w http.ResponseWriter, r *http.Request) {
	q, ok := s.requireQuery(w, r, "q")
	if !ok {
		return
	}
	celebrities, err := s.lookup.SearchCelebrities(r.Context(), q)
	s.respond(w, celebrities, err)
}

func (s *Server) getSubject(w http.ResponseWriter, r *http.Request) {
	subject, found, err := s.lookup.GetSubject(r.Context(), chi.URLParam(r, "id"))
	s.respondFound(w, subject, found, err)
}

func (s *Server) getCelebrities(w http.ResponseWriter, r *http.Request) {
	celebrities, err := s.lookup.GetCelebrities(r.Context(), chi.URLParam(r, "id"))
	s.respond(w, celebrities, err)
}

func (s *Server) getSubjectPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := s.lookup.GetSubjectPhotos(r.Context(), chi.URLParam(r, "id"))
	s.respond(w, photos, err)
}

func (s *Server) getCelebrity(w http.ResponseWriter, r *http.Request) {
	celebrity, found, err := s.lookup.GetCelebrity(r.Context(), chi.URLParam(r, "id"))
	s.respondFound(w, celebrity, found, err)
}

func (s *Server) getCelebrityPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := s.lookup.GetCelebrityPhotos(r.Context(), chi.URLParam(r, "id"))
	s.respond(w, photos, err)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.lookup.GetLoginInfo(r.Context()))
}

func (s *Server) requireQuery(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		s.writeError(w, http.StatusBadRequest, name+" required")
		return "", false
	}
	return v, true
}

func (s *Server) respond(w http.ResponseWriter, payload any, err error) {
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) respondFound(w http.ResponseWriter, payload any, found bool, err error) {
	if err == nil && !found {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.respond(w, payload, err)
}

// statusFor maps lookup errors. Lookups only fail on cancellation or, for
// celebrity details, on an upstream failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

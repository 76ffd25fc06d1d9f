package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/fitness-benefits-platform/internal/checkin-service/checkin"
	"github.com/radieske/fitness-benefits-platform/internal/checkin-service/dto"
	"github.com/radieske/fitness-benefits-platform/internal/checkin-service/repo"
	"github.com/radieske/fitness-benefits-platform/internal/shared/auth"
	"github.com/radieske/fitness-benefits-platform/internal/shared/ratelimit"
)

type Checkins interface {
	Checkin(ctx context.Context, req dto.CheckinRequest) (*dto.CheckinResponse, error)
	ByAcademia(ctx context.Context, academiaID string, from, to time.Time) ([]repo.Checkin, error)
	ByUser(ctx context.Context, userID string) ([]repo.Checkin, error)
}

type Server struct {
	log *zap.Logger
	svc Checkins

	Auth    *auth.Middleware
	Limiter *ratelimit.Limiter
}

func NewServer(log *zap.Logger, svc Checkins) *Server {
	return &Server{log: log, svc: svc}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	authn := s.Auth
	if authn == nil {
		authn = auth.NewMiddleware("")
	}

	r.Group(func(r chi.Router) {
		r.Use(authn.Handler)
		if s.Limiter != nil {
			r.Use(s.Limiter.Handler)
		}
		r.Post("/v1/checkins", s.checkin)
		r.Get("/v1/users/{id}/checkins", s.byUser)

		// relatório de repasse: só backoffice
		r.With(auth.RequirePrivileged).Get("/v1/academias/{id}/checkins", s.byAcademia)
	})
	return r
}

func (s *Server) checkin(w http.ResponseWriter, r *http.Request) {
	var req dto.CheckinRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if !auth.CanActFor(r.Context(), "user", req.UserID) {
		writeError(w, http.StatusForbidden, "cannot check in for another user")
		return
	}
	out, err := s.svc.Checkin(r.Context(), req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) byUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !auth.CanActFor(r.Context(), "user", id) {
		writeError(w, http.StatusForbidden, "cannot act for user")
		return
	}
	list, err := s.svc.ByUser(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// byAcademia aceita from/to em RFC3339 ou YYYY-MM-DD
func (s *Server) byAcademia(w http.ResponseWriter, r *http.Request) {
	from, err := parseTime(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from")
		return
	}
	to, err := parseTime(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to")
		return
	}
	list, err := s.svc.ByAcademia(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkin.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, checkin.ErrAcademiaNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, checkin.ErrAcademiaInactive),
		errors.Is(err, checkin.ErrNoSubscription),
		errors.Is(err, checkin.ErrNotEligible):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, checkin.ErrAlreadyCheckedIn):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}

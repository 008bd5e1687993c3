package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/taru-edu/taru/internal/api"
	"github.com/taru-edu/taru/internal/assessment"
	"github.com/taru-edu/taru/internal/questiongen"
	"github.com/taru-edu/taru/internal/questionstore"
	"github.com/taru-edu/taru/internal/scoring"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.ErrorResponse{Error: message})
}

// fail maps a service error to a status code. Server-side failures are
// logged and reported generically.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verrs validator.ValidationErrors
		gen   *questiongen.ValidationError
	)

	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "invalid request", Fields: s.valid.translate(verrs)})
	case errors.Is(err, errBadRequest), errors.Is(err, questionstore.ErrInvalidAnswer):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, assessment.ErrUnknownType), errors.Is(err, questionstore.ErrNoSession):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, questionstore.ErrCursorMismatch),
		errors.Is(err, questionstore.ErrNotCompleted),
		errors.Is(err, questionstore.ErrCompleted),
		errors.Is(err, questionstore.ErrScored):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &gen), scoring.IsUpstream(err):
		s.logger.Warn("upstream failure", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusBadGateway, "upstream service unavailable")
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

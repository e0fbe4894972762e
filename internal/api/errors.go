package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"wheel-tracker-go/internal/engine"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// respondError maps engine errors onto HTTP status codes. Validation
// problems are the caller's fault (400), conflicts with existing state
// are 409, and anything unrecognized is a 500.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *engine.ValidationError
		quantityErr   *engine.QuantityExceededError
		sharesErr     *engine.InsufficientSharesError
		integrityErr  *engine.ReferentialIntegrityError
	)

	switch {
	case errors.Is(err, engine.ErrNotFound):
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.As(err, &validationErr):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: validationErr.Error()})
	case errors.As(err, &quantityErr):
		respondJSON(w, http.StatusConflict, errorResponse{Error: quantityErr.Error()})
	case errors.As(err, &sharesErr):
		respondJSON(w, http.StatusConflict, errorResponse{Error: sharesErr.Error()})
	case errors.As(err, &integrityErr):
		respondJSON(w, http.StatusConflict, errorResponse{Error: integrityErr.Error()})
	default:
		s.logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

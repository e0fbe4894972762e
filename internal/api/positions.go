package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"wheel-tracker-go/internal/engine"
	"wheel-tracker-go/internal/models"
)

// handleListStockPositions handles GET /api/stock-positions. With
// available=true only positions with uncommitted shares are returned,
// which is what the covered call form needs.
func (s *Server) handleListStockPositions(w http.ResponseWriter, r *http.Request) {
	filter := engine.PositionFilter{
		Symbol:        r.URL.Query().Get("symbol"),
		Status:        models.PositionStatus(r.URL.Query().Get("status")),
		AvailableOnly: r.URL.Query().Get("available") == "true",
	}
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			s.badRequest(w, "invalid account_id")
			return
		}
		filter.AccountID = uint(id)
	}

	positions, err := s.engine.ListStockPositions(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newStockPositionResponses(positions))
}

// handleAvailableStockPositions is shorthand for the available view.
func (s *Server) handleAvailableStockPositions(w http.ResponseWriter, r *http.Request) {
	filter := engine.PositionFilter{
		Symbol:        r.URL.Query().Get("symbol"),
		AvailableOnly: true,
	}
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			s.badRequest(w, "invalid account_id")
			return
		}
		filter.AccountID = uint(id)
	}

	positions, err := s.engine.ListStockPositions(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newStockPositionResponses(positions))
}

func (s *Server) handleGetStockPosition(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.badRequest(w, "invalid stock position id")
		return
	}
	position, err := s.engine.GetStockPosition(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newStockPositionResponse(*position))
}

func (s *Server) handleCreateStockPosition(w http.ResponseWriter, r *http.Request) {
	var req stockPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}

	acquired, err := parseDate(req.AcquiredDate)
	if err != nil {
		s.badRequest(w, "invalid acquired_date, use YYYY-MM-DD")
		return
	}

	spec := engine.StockPositionSpec{
		AccountID:         req.AccountID,
		Symbol:            req.Symbol,
		Shares:            req.Shares,
		CostBasisPerShare: req.CostBasisPerShare,
		Notes:             req.Notes,
	}
	if acquired != nil {
		spec.AcquiredDate = *acquired
	}

	position, err := s.engine.CreateStockPosition(r.Context(), spec)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newStockPositionResponse(*position))
}

func (s *Server) handleUpdateStockPosition(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.badRequest(w, "invalid stock position id")
		return
	}

	var req stockPositionPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}

	patch := engine.StockPositionPatch{
		Symbol:            req.Symbol,
		Shares:            req.Shares,
		CostBasisPerShare: req.CostBasisPerShare,
		Notes:             req.Notes,
	}
	if req.AcquiredDate != nil {
		acquired, err := parseDate(*req.AcquiredDate)
		if err != nil || acquired == nil {
			s.badRequest(w, "invalid acquired_date, use YYYY-MM-DD")
			return
		}
		patch.AcquiredDate = acquired
	}

	position, err := s.engine.UpdateStockPosition(r.Context(), id, patch)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newStockPositionResponse(*position))
}

func (s *Server) handleDeleteStockPosition(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.badRequest(w, "invalid stock position id")
		return
	}
	if err := s.engine.DeleteStockPosition(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"wheel-tracker-go/internal/engine"
	"wheel-tracker-go/internal/models"
)

// handleListTrades handles GET /api/trades. Closing entries are folded
// under their parents unless include_closing=true is given.
func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	filter := engine.TradeFilter{
		Status:                models.TradeStatus(r.URL.Query().Get("status")),
		IncludeClosingEntries: r.URL.Query().Get("include_closing") == "true",
	}
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			s.badRequest(w, "invalid account_id")
			return
		}
		filter.AccountID = uint(id)
	}

	trades, err := s.engine.ListTrades(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newTradeResponses(trades, time.Now()))
}

func (s *Server) handleGetTrade(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.badRequest(w, "invalid trade id")
		return
	}
	trade, err := s.engine.GetTrade(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newTradeResponse(*trade, time.Now()))
}

func (s *Server) handleGetTradeChain(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.badRequest(w, "invalid trade id")
		return
	}
	chain, err := s.engine.GetTradeChain(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, chain)
}

func (s *Server) handleOpenTrade(w http.ResponseWriter, r *http.Request) {
	var req openTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}

	expiration, err := parseDate(req.ExpirationDate)
	if err != nil {
		s.badRequest(w, "invalid expiration_date, use YYYY-MM-DD")
		return
	}
	tradeDate, err := parseDate(req.TradeDate)
	if err != nil {
		s.badRequest(w, "invalid trade_date, use YYYY-MM-DD")
		return
	}

	spec := engine.OpenSpec{
		AccountID:        req.AccountID,
		Symbol:           req.Symbol,
		TradeType:        models.TradeType(req.TradeType),
		TradeAction:      models.TradeAction(req.TradeAction),
		StrikePrice:      toNullDecimal(req.StrikePrice),
		ExpirationDate:   expiration,
		ContractQuantity: req.ContractQuantity,
		TradePrice:       toNullDecimal(req.TradePrice),
		Fees:             req.Fees,
		AssignmentPrice:  toNullDecimal(req.AssignmentPrice),
		ParentTradeID:    req.ParentTradeID,
		StockPositionID:  req.StockPositionID,
		Notes:            req.Notes,
	}
	if tradeDate != nil {
		spec.TradeDate = *tradeDate
	}

	trade, err := s.engine.OpenTrade(r.Context(), spec)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newTradeResponse(*trade, time.Now()))
}

func (s *Server) handleCloseTrade(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.badRequest(w, "invalid trade id")
		return
	}

	var req closeTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}

	closeDate, err := parseDate(req.CloseDate)
	if err != nil {
		s.badRequest(w, "invalid close_date, use YYYY-MM-DD")
		return
	}

	spec := engine.CloseSpec{
		Method:          models.CloseMethod(req.Method),
		Quantity:        req.Quantity,
		Price:           toNullDecimal(req.Price),
		Fees:            req.Fees,
		CloseDate:       closeDate,
		AssignmentPrice: toNullDecimal(req.AssignmentPrice),
		Notes:           req.Notes,
	}

	entry, err := s.engine.CloseTrade(r.Context(), id, spec)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newTradeResponse(*entry, time.Now()))
}

func (s *Server) handleEditTrade(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.badRequest(w, "invalid trade id")
		return
	}

	var req editTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}

	patch := engine.TradePatch{
		Symbol:           req.Symbol,
		StrikePrice:      req.StrikePrice,
		ContractQuantity: req.ContractQuantity,
		TradePrice:       req.TradePrice,
		Fees:             req.Fees,
		Notes:            req.Notes,
	}
	if req.ExpirationDate != nil {
		expiration, err := parseDate(*req.ExpirationDate)
		if err != nil {
			s.badRequest(w, "invalid expiration_date, use YYYY-MM-DD")
			return
		}
		patch.ExpirationDate = expiration
	}
	if req.TradeDate != nil {
		tradeDate, err := parseDate(*req.TradeDate)
		if err != nil || tradeDate == nil {
			s.badRequest(w, "invalid trade_date, use YYYY-MM-DD")
			return
		}
		patch.TradeDate = tradeDate
	}

	trade, err := s.engine.EditTrade(r.Context(), id, patch)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newTradeResponse(*trade, time.Now()))
}

func (s *Server) handleDeleteTrade(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.badRequest(w, "invalid trade id")
		return
	}
	if err := s.engine.DeleteTrade(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

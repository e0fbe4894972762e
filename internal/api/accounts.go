package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"wheel-tracker-go/internal/engine"
)

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	var userID uint
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			s.badRequest(w, "invalid user_id")
			return
		}
		userID = uint(id)
	}

	accounts, err := s.engine.ListAccounts(r.Context(), userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.badRequest(w, "invalid account id")
		return
	}
	account, err := s.engine.GetAccount(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}

	account, err := s.engine.CreateAccount(r.Context(), engine.AccountSpec{
		UserID:         req.UserID,
		Name:           req.Name,
		AccountType:    req.AccountType,
		InitialBalance: req.InitialBalance,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, account)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.badRequest(w, "invalid account id")
		return
	}
	if err := s.engine.DeleteAccount(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDeposits(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.badRequest(w, "invalid account id")
		return
	}
	deposits, err := s.engine.ListDeposits(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, deposits)
}

func (s *Server) handleAddDeposit(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.badRequest(w, "invalid account id")
		return
	}

	spec, ok := s.decodeCashMovement(w, r)
	if !ok {
		return
	}

	deposit, err := s.engine.AddDeposit(r.Context(), id, spec)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, deposit)
}

func (s *Server) handleListWithdrawals(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.badRequest(w, "invalid account id")
		return
	}
	withdrawals, err := s.engine.ListWithdrawals(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, withdrawals)
}

func (s *Server) handleAddWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.badRequest(w, "invalid account id")
		return
	}

	spec, ok := s.decodeCashMovement(w, r)
	if !ok {
		return
	}

	withdrawal, err := s.engine.AddWithdrawal(r.Context(), id, spec)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, withdrawal)
}

func (s *Server) decodeCashMovement(w http.ResponseWriter, r *http.Request) (engine.CashMovementSpec, bool) {
	var req cashMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return engine.CashMovementSpec{}, false
	}

	date, err := parseDate(req.Date)
	if err != nil {
		s.badRequest(w, "invalid date, use YYYY-MM-DD")
		return engine.CashMovementSpec{}, false
	}

	spec := engine.CashMovementSpec{
		Amount: req.Amount,
		Notes:  req.Notes,
	}
	if date != nil {
		spec.Date = *date
	}
	return spec, true
}

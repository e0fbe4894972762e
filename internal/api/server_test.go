package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"wheel-tracker-go/internal/config"
	"wheel-tracker-go/internal/database"
	"wheel-tracker-go/internal/engine"
	"wheel-tracker-go/internal/models"
)

// setupServer wires a server over a fresh in-memory database.
func setupServer(t *testing.T) *Server {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	cfg := &config.Config{}
	cfg.Server.Port = 0

	eng := engine.NewEngine(db, zap.NewNop())
	return NewServer(cfg, zap.NewNop(), eng)
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func createAccount(t *testing.T, s *Server) uint {
	w := doJSON(t, s, "POST", "/api/accounts", `{"user_id": 1, "name": "Taxable"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var account models.Account
	require.NoError(t, json.NewDecoder(w.Body).Decode(&account))
	return account.ID
}

func TestHealth(t *testing.T) {
	s := setupServer(t)

	w := doJSON(t, s, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestOpenAndCloseTradeOverHTTP(t *testing.T) {
	s := setupServer(t)
	accountID := createAccount(t, s)

	// Open a CSP
	body := fmt.Sprintf(`{
		"account_id": %d,
		"symbol": "F",
		"trade_type": "CSP",
		"trade_action": "Sold to Open",
		"strike_price": "50",
		"expiration_date": "2026-03-20",
		"contract_quantity": 1,
		"trade_price": "2.00",
		"fees": "0.65",
		"trade_date": "2026-02-18"
	}`, accountID)
	w := doJSON(t, s, "POST", "/api/trades", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var opened tradeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&opened))
	assert.True(t, opened.Premium.Equal(decimal.RequireFromString("199.35")), "got %s", opened.Premium)
	assert.True(t, opened.CapitalAtRisk.Equal(decimal.RequireFromString("5000")))

	// Buy it back
	w = doJSON(t, s, "POST", fmt.Sprintf("/api/trades/%d/close", opened.ID),
		`{"method": "buy_to_close", "price": "0.50", "fees": "0.65", "close_date": "2026-03-10"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var closed tradeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&closed))
	assert.True(t, closed.RealizedPnL.Decimal.Equal(decimal.RequireFromString("148.70")), "got %s", closed.RealizedPnL.Decimal)
	assert.NotNil(t, closed.SimpleReturnPct)

	// The parent shows up closed
	w = doJSON(t, s, "GET", fmt.Sprintf("/api/trades/%d", opened.ID), "")
	require.Equal(t, http.StatusOK, w.Code)

	var reloaded tradeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&reloaded))
	assert.Equal(t, models.StatusClosed, reloaded.Status)
	assert.Equal(t, 0, reloaded.RemainingOpenQuantity)
}

func TestErrorMapping(t *testing.T) {
	s := setupServer(t)
	accountID := createAccount(t, s)

	// Unknown trade is a 404
	w := doJSON(t, s, "GET", "/api/trades/424242", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Missing symbol is a 400
	body := fmt.Sprintf(`{"account_id": %d, "trade_type": "CSP"}`, accountID)
	w = doJSON(t, s, "POST", "/api/trades", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown account is a 409
	w = doJSON(t, s, "POST", "/api/trades", `{
		"account_id": 9999,
		"symbol": "F",
		"trade_type": "CSP",
		"trade_action": "Sold to Open",
		"strike_price": "50",
		"contract_quantity": 1,
		"trade_price": "2.00"
	}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	// A malformed date is a 400
	body = fmt.Sprintf(`{
		"account_id": %d,
		"symbol": "F",
		"trade_type": "CSP",
		"trade_action": "Sold to Open",
		"strike_price": "50",
		"contract_quantity": 1,
		"trade_price": "2.00",
		"trade_date": "18/02/2026"
	}`, accountID)
	w = doJSON(t, s, "POST", "/api/trades", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCloseQuantityExceededOverHTTP(t *testing.T) {
	s := setupServer(t)
	accountID := createAccount(t, s)

	body := fmt.Sprintf(`{
		"account_id": %d,
		"symbol": "F",
		"trade_type": "CSP",
		"trade_action": "Sold to Open",
		"strike_price": "50",
		"contract_quantity": 2,
		"trade_price": "2.00",
		"fees": "0.65"
	}`, accountID)
	w := doJSON(t, s, "POST", "/api/trades", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var opened tradeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&opened))

	w = doJSON(t, s, "POST", fmt.Sprintf("/api/trades/%d/close", opened.ID),
		`{"method": "expired", "quantity": 3}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStockPositionsOverHTTP(t *testing.T) {
	s := setupServer(t)
	accountID := createAccount(t, s)

	body := fmt.Sprintf(`{
		"account_id": %d,
		"symbol": "aapl",
		"shares": 300,
		"cost_basis_per_share": "150",
		"acquired_date": "2026-01-05"
	}`, accountID)
	w := doJSON(t, s, "POST", "/api/stock-positions", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var pos stockPositionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&pos))
	assert.Equal(t, "AAPL", pos.Symbol)
	assert.Equal(t, 300, pos.AvailableShares)

	// Write a covered call against it, then check the available view
	body = fmt.Sprintf(`{
		"account_id": %d,
		"symbol": "AAPL",
		"trade_type": "Covered Call",
		"trade_action": "Sold to Open",
		"strike_price": "160",
		"contract_quantity": 3,
		"trade_price": "3.00",
		"fees": "0.65",
		"stock_position_id": %d
	}`, accountID, pos.ID)
	w = doJSON(t, s, "POST", "/api/trades", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, s, "GET", "/api/stock-positions?available=true", "")
	require.Equal(t, http.StatusOK, w.Code)

	var available []stockPositionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&available))
	assert.Empty(t, available)
}

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"wheel-tracker-go/internal/models"
	"wheel-tracker-go/internal/pricing"
)

const dateLayout = "2006-01-02"

// openTradeRequest is the JSON body for POST /api/trades.
type openTradeRequest struct {
	AccountID        uint             `json:"account_id"`
	Symbol           string           `json:"symbol"`
	TradeType        string           `json:"trade_type"`
	TradeAction      string           `json:"trade_action"`
	StrikePrice      *decimal.Decimal `json:"strike_price"`
	ExpirationDate   string           `json:"expiration_date"`
	ContractQuantity int              `json:"contract_quantity"`
	TradePrice       *decimal.Decimal `json:"trade_price"`
	Fees             decimal.Decimal  `json:"fees"`
	AssignmentPrice  *decimal.Decimal `json:"assignment_price"`
	TradeDate        string           `json:"trade_date"`
	ParentTradeID    *uint            `json:"parent_trade_id"`
	StockPositionID  *uint            `json:"stock_position_id"`
	Notes            string           `json:"notes"`
}

// closeTradeRequest is the JSON body for POST /api/trades/{id}/close.
type closeTradeRequest struct {
	Method          string           `json:"method"`
	Quantity        int              `json:"quantity"`
	Price           *decimal.Decimal `json:"price"`
	Fees            decimal.Decimal  `json:"fees"`
	CloseDate       string           `json:"close_date"`
	AssignmentPrice *decimal.Decimal `json:"assignment_price"`
	Notes           string           `json:"notes"`
}

// editTradeRequest is the JSON body for PATCH /api/trades/{id}. Absent
// fields leave the trade untouched.
type editTradeRequest struct {
	Symbol           *string          `json:"symbol"`
	StrikePrice      *decimal.Decimal `json:"strike_price"`
	ExpirationDate   *string          `json:"expiration_date"`
	ContractQuantity *int             `json:"contract_quantity"`
	TradePrice       *decimal.Decimal `json:"trade_price"`
	Fees             *decimal.Decimal `json:"fees"`
	TradeDate        *string          `json:"trade_date"`
	Notes            *string          `json:"notes"`
}

type accountRequest struct {
	UserID         uint            `json:"user_id"`
	Name           string          `json:"name"`
	AccountType    string          `json:"account_type"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type cashMovementRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"`
	Notes  string          `json:"notes"`
}

type stockPositionRequest struct {
	AccountID         uint            `json:"account_id"`
	Symbol            string          `json:"symbol"`
	Shares            int             `json:"shares"`
	CostBasisPerShare decimal.Decimal `json:"cost_basis_per_share"`
	AcquiredDate      string          `json:"acquired_date"`
	Notes             string          `json:"notes"`
}

type stockPositionPatchRequest struct {
	Symbol            *string          `json:"symbol"`
	Shares            *int             `json:"shares"`
	CostBasisPerShare *decimal.Decimal `json:"cost_basis_per_share"`
	AcquiredDate      *string          `json:"acquired_date"`
	Notes             *string          `json:"notes"`
}

// tradeResponse augments a stored trade with the derived figures the
// dashboard shows next to it.
type tradeResponse struct {
	models.Trade
	DaysHeld            int              `json:"days_held"`
	CapitalAtRisk       decimal.Decimal  `json:"capital_at_risk"`
	SimpleReturnPct     *decimal.Decimal `json:"simple_return_pct,omitempty"`
	AnnualizedReturnPct *decimal.Decimal `json:"annualized_return_pct,omitempty"`
}

func newTradeResponse(t models.Trade, now time.Time) tradeResponse {
	resp := tradeResponse{
		Trade:         t,
		DaysHeld:      t.DaysHeld(now),
		CapitalAtRisk: t.CapitalAtRisk(),
	}
	if t.RealizedPnL.Valid && resp.CapitalAtRisk.IsPositive() {
		simple := pricing.SimpleReturnPct(t.RealizedPnL.Decimal, resp.CapitalAtRisk)
		annualized := pricing.AnnualizedReturnPct(t.RealizedPnL.Decimal, resp.CapitalAtRisk, resp.DaysHeld)
		resp.SimpleReturnPct = &simple
		resp.AnnualizedReturnPct = &annualized
	}
	return resp
}

func newTradeResponses(trades []models.Trade, now time.Time) []tradeResponse {
	out := make([]tradeResponse, 0, len(trades))
	for _, t := range trades {
		out = append(out, newTradeResponse(t, now))
	}
	return out
}

// stockPositionResponse adds the derived availability figures.
type stockPositionResponse struct {
	models.StockPosition
	AvailableShares int             `json:"available_shares"`
	TotalCostBasis  decimal.Decimal `json:"total_cost_basis"`
}

func newStockPositionResponse(p models.StockPosition) stockPositionResponse {
	return stockPositionResponse{
		StockPosition:   p,
		AvailableShares: p.AvailableShares(),
		TotalCostBasis:  p.TotalCostBasis(),
	}
}

func newStockPositionResponses(positions []models.StockPosition) []stockPositionResponse {
	out := make([]stockPositionResponse, 0, len(positions))
	for _, p := range positions {
		out = append(out, newStockPositionResponse(p))
	}
	return out
}

func idParam(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// parseDate accepts YYYY-MM-DD; an empty string returns nil.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// Package engine implements the position lifecycle and P&L core: the
// trade ledger, the share inventory tracker and the state transitions
// between them. Every operation runs as one database transaction and
// either fully applies or leaves counters, reservations and statuses
// untouched.
package engine

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"wheel-tracker-go/internal/models"
)

// Engine is the request-scoped lifecycle engine over a durable store.
// It holds no state of its own; all state lives in the database.
type Engine struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates a lifecycle engine on top of the given database.
func NewEngine(db *gorm.DB, logger *zap.Logger) *Engine {
	return &Engine{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// OpenSpec describes a new opening trade.
type OpenSpec struct {
	AccountID        uint
	Symbol           string
	TradeType        models.TradeType
	TradeAction      models.TradeAction
	StrikePrice      decimal.NullDecimal
	ExpirationDate   *time.Time
	ContractQuantity int
	TradePrice       decimal.NullDecimal
	Fees             decimal.Decimal
	AssignmentPrice  decimal.NullDecimal
	TradeDate        time.Time
	ParentTradeID    *uint
	StockPositionID  *uint
	Notes            string
}

// CloseSpec describes how open contracts of a trade are resolved.
type CloseSpec struct {
	Method CloseMethodInput

	// Quantity of contracts to close; zero means all remaining.
	Quantity int

	// Price and Fees are per contract, required for buy-to-close and
	// sell-to-close, ignored for resolution methods.
	Price decimal.NullDecimal
	Fees  decimal.Decimal

	// CloseDate defaults to the expiration date for resolution methods
	// and to today otherwise.
	CloseDate *time.Time

	// AssignmentPrice defaults to the strike for assigned/called-away.
	AssignmentPrice decimal.NullDecimal

	Notes string
}

// CloseMethodInput aliases the model close method so callers construct
// specs without importing models alongside engine.
type CloseMethodInput = models.CloseMethod

// TradePatch is a partial update to a trade. Nil fields are left
// unchanged. Changing the economics of an opening trade recomputes its
// premium; changing a closing entry's price or fees recomputes that
// entry's premium and realized P&L. Recorded sibling closes are never
// rewritten.
type TradePatch struct {
	Symbol           *string
	StrikePrice      *decimal.Decimal
	ExpirationDate   *time.Time
	ContractQuantity *int
	TradePrice       *decimal.Decimal
	Fees             *decimal.Decimal
	TradeDate        *time.Time
	Notes            *string
}

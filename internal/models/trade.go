package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Trade is a single options transaction: either an opening entry that
// establishes a position, or a closing entry that resolves part of its
// parent's open quantity. Closing entries always carry ParentTradeID
// and are deleted with their parent.
type Trade struct {
	gorm.Model
	AccountID uint   `gorm:"not null;index" json:"account_id"`
	Symbol    string `gorm:"size:20;not null;index" json:"symbol"`

	TradeType   TradeType   `gorm:"size:30;not null" json:"trade_type"`
	TradeAction TradeAction `gorm:"size:30" json:"trade_action,omitempty"`

	StrikePrice      decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"strike_price"`
	ExpirationDate   *time.Time          `json:"expiration_date,omitempty"`
	ContractQuantity int                 `gorm:"not null;default:1" json:"contract_quantity"`

	TradePrice      decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"trade_price"`
	Fees            decimal.Decimal     `gorm:"type:decimal(10,2)" json:"fees"`
	Premium         decimal.Decimal     `gorm:"type:decimal(15,2)" json:"premium"`
	AssignmentPrice decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"assignment_price"`

	// RealizedPnL is set on closing entries only: the proportional
	// opening premium for the closed slice plus this entry's premium.
	RealizedPnL decimal.NullDecimal `gorm:"type:decimal(15,2)" json:"realized_pnl"`

	TradeDate time.Time  `gorm:"not null;index" json:"trade_date"`
	OpenDate  *time.Time `json:"open_date,omitempty"`
	CloseDate *time.Time `json:"close_date,omitempty"`

	Status      TradeStatus `gorm:"size:20;not null;default:Open" json:"status"`
	CloseMethod CloseMethod `gorm:"size:20" json:"close_method,omitempty"`

	// RemainingOpenQuantity is maintained on opening entries only and
	// is decremented in the same transaction that records each close.
	RemainingOpenQuantity int `json:"remaining_open_quantity"`

	ParentTradeID *uint   `gorm:"index" json:"parent_trade_id,omitempty"`
	ClosingTrades []Trade `gorm:"foreignKey:ParentTradeID;constraint:OnDelete:CASCADE" json:"closing_trades,omitempty"`

	// Covered calls reserve shares from a stock position for their
	// lifetime. SharesUsed is 100 x ContractQuantity while open.
	StockPositionID *uint `gorm:"index" json:"stock_position_id,omitempty"`
	SharesUsed      int   `json:"shares_used,omitempty"`

	Notes string `gorm:"type:text" json:"notes,omitempty"`
}

// IsOpening reports whether the trade establishes a position rather
// than resolving one.
func (t *Trade) IsOpening() bool {
	return t.ParentTradeID == nil
}

// EffectiveOpenDate is the date the position was originally opened.
func (t *Trade) EffectiveOpenDate() time.Time {
	if t.OpenDate != nil {
		return *t.OpenDate
	}
	return t.TradeDate
}

// DaysHeld returns the number of days between the open date and the
// close date, or between the open date and now for open positions.
func (t *Trade) DaysHeld(now time.Time) int {
	end := now
	if t.CloseDate != nil {
		end = *t.CloseDate
	}
	days := int(end.Sub(t.EffectiveOpenDate()).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// CapitalAtRisk is strike x quantity x 100, the denominator for
// return percentages. Assignment entries use the assignment price
// since that is the capital tied up in the stock.
func (t *Trade) CapitalAtRisk() decimal.Decimal {
	price := t.StrikePrice
	if t.TradeType == TradeTypeAssignment && t.AssignmentPrice.Valid {
		price = t.AssignmentPrice
	}
	if !price.Valid {
		return decimal.Zero
	}
	qty := decimal.NewFromInt(int64(t.ContractQuantity * 100))
	return price.Decimal.Mul(qty).Round(2)
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockPosition is a lot of shares held in an account, tracked so
// covered calls can reserve shares against it. SharesUsed is the sum
// of 100 x contract quantity across open covered calls referencing the
// position; available shares are always derived, never stored.
type StockPosition struct {
	gorm.Model
	AccountID         uint            `gorm:"not null;index" json:"account_id"`
	Symbol            string          `gorm:"size:20;not null;index" json:"symbol"`
	Shares            int             `gorm:"not null" json:"shares"`
	SharesUsed        int             `gorm:"not null;default:0" json:"shares_used"`
	CostBasisPerShare decimal.Decimal `gorm:"type:decimal(10,2)" json:"cost_basis_per_share"`
	AcquiredDate      time.Time       `gorm:"not null" json:"acquired_date"`
	Status            PositionStatus  `gorm:"size:20;not null;default:Open" json:"status"`

	// SourceTradeID links back to the assignment or exercise that
	// created the position, when it was not entered manually.
	SourceTradeID *uint  `json:"source_trade_id,omitempty"`
	Notes         string `gorm:"type:text" json:"notes,omitempty"`
}

// AvailableShares is the count not reserved by open covered calls.
func (p *StockPosition) AvailableShares() int {
	return p.Shares - p.SharesUsed
}

// TotalCostBasis is cost basis per share times shares held.
func (p *StockPosition) TotalCostBasis() decimal.Decimal {
	return p.CostBasisPerShare.Mul(decimal.NewFromInt(int64(p.Shares))).Round(2)
}

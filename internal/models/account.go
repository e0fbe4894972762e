package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Account owns trades, stock positions and cash movements. Deleting an
// account cascades to everything it owns.
type Account struct {
	gorm.Model
	UserID         uint            `gorm:"not null;index" json:"user_id"`
	Name           string          `gorm:"size:100;not null" json:"name"`
	AccountType    string          `gorm:"size:50" json:"account_type,omitempty"`
	InitialBalance decimal.Decimal `gorm:"type:decimal(15,2)" json:"initial_balance"`

	Trades         []Trade         `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	StockPositions []StockPosition `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Deposits       []Deposit       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Withdrawals    []Withdrawal    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Deposit is cash added to an account.
type Deposit struct {
	gorm.Model
	AccountID   uint            `gorm:"not null;index" json:"account_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	DepositDate time.Time       `gorm:"not null" json:"deposit_date"`
	Notes       string          `gorm:"type:text" json:"notes,omitempty"`
}

// Withdrawal is cash taken out of an account.
type Withdrawal struct {
	gorm.Model
	AccountID      uint            `gorm:"not null;index" json:"account_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	WithdrawalDate time.Time       `gorm:"not null" json:"withdrawal_date"`
	Notes          string          `gorm:"type:text" json:"notes,omitempty"`
}

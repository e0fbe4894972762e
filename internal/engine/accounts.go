package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"wheel-tracker-go/internal/models"
)

// AccountSpec describes a new account.
type AccountSpec struct {
	UserID         uint
	Name           string
	AccountType    string
	InitialBalance decimal.Decimal
}

// CreateAccount records a new account.
func (e *Engine) CreateAccount(ctx context.Context, spec AccountSpec) (*models.Account, error) {
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Name == "" {
		return nil, validationf("account name is required")
	}
	if spec.InitialBalance.IsNegative() {
		return nil, validationf("initial balance cannot be negative")
	}

	account := &models.Account{
		UserID:         spec.UserID,
		Name:           spec.Name,
		AccountType:    spec.AccountType,
		InitialBalance: spec.InitialBalance,
	}
	if err := e.db.WithContext(ctx).Create(account).Error; err != nil {
		return nil, err
	}

	e.logger.Info("Created account", zap.Uint("account_id", account.ID), zap.String("name", account.Name))
	return account, nil
}

// GetAccount loads a single account.
func (e *Engine) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	err := e.db.WithContext(ctx).First(&account, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// ListAccounts returns all accounts in a user's scope.
func (e *Engine) ListAccounts(ctx context.Context, userID uint) ([]models.Account, error) {
	var accounts []models.Account
	q := e.db.WithContext(ctx).Order("id")
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// DeleteAccount removes an account and everything it owns: trades,
// stock positions, deposits and withdrawals.
func (e *Engine) DeleteAccount(ctx context.Context, id uint) error {
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account models.Account
		if err := tx.First(&account, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Where("account_id = ?", id).Delete(&models.Trade{}).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", id).Delete(&models.StockPosition{}).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", id).Delete(&models.Deposit{}).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", id).Delete(&models.Withdrawal{}).Error; err != nil {
			return err
		}
		return tx.Delete(&account).Error
	})
	if err != nil {
		return err
	}

	e.logger.Info("Deleted account", zap.Uint("account_id", id))
	return nil
}

// CashMovementSpec describes a deposit or withdrawal.
type CashMovementSpec struct {
	Amount decimal.Decimal
	Date   time.Time
	Notes  string
}

// AddDeposit records cash added to an account.
func (e *Engine) AddDeposit(ctx context.Context, accountID uint, spec CashMovementSpec) (*models.Deposit, error) {
	if err := e.validateCashMovement(ctx, accountID, &spec); err != nil {
		return nil, err
	}
	deposit := &models.Deposit{
		AccountID:   accountID,
		Amount:      spec.Amount,
		DepositDate: spec.Date,
		Notes:       spec.Notes,
	}
	if err := e.db.WithContext(ctx).Create(deposit).Error; err != nil {
		return nil, err
	}
	return deposit, nil
}

// AddWithdrawal records cash taken out of an account.
func (e *Engine) AddWithdrawal(ctx context.Context, accountID uint, spec CashMovementSpec) (*models.Withdrawal, error) {
	if err := e.validateCashMovement(ctx, accountID, &spec); err != nil {
		return nil, err
	}
	withdrawal := &models.Withdrawal{
		AccountID:      accountID,
		Amount:         spec.Amount,
		WithdrawalDate: spec.Date,
		Notes:          spec.Notes,
	}
	if err := e.db.WithContext(ctx).Create(withdrawal).Error; err != nil {
		return nil, err
	}
	return withdrawal, nil
}

func (e *Engine) validateCashMovement(ctx context.Context, accountID uint, spec *CashMovementSpec) error {
	if !spec.Amount.IsPositive() {
		return validationf("amount must be greater than 0")
	}
	if spec.Date.IsZero() {
		spec.Date = e.now()
	}
	if err := e.db.WithContext(ctx).First(&models.Account{}, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return integrityf("account %d does not exist", accountID)
		}
		return err
	}
	return nil
}

// ListDeposits returns an account's deposits newest first.
func (e *Engine) ListDeposits(ctx context.Context, accountID uint) ([]models.Deposit, error) {
	var deposits []models.Deposit
	err := e.db.WithContext(ctx).Where("account_id = ?", accountID).
		Order("deposit_date DESC, id DESC").Find(&deposits).Error
	if err != nil {
		return nil, err
	}
	return deposits, nil
}

// ListWithdrawals returns an account's withdrawals newest first.
func (e *Engine) ListWithdrawals(ctx context.Context, accountID uint) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	err := e.db.WithContext(ctx).Where("account_id = ?", accountID).
		Order("withdrawal_date DESC, id DESC").Find(&withdrawals).Error
	if err != nil {
		return nil, err
	}
	return withdrawals, nil
}

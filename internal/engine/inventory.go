package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"wheel-tracker-go/internal/models"
)

// StockPositionSpec describes a manually entered stock position.
type StockPositionSpec struct {
	AccountID         uint
	Symbol            string
	Shares            int
	CostBasisPerShare decimal.Decimal
	AcquiredDate      time.Time
	Notes             string
}

// StockPositionPatch is a partial update to a stock position.
type StockPositionPatch struct {
	Symbol            *string
	Shares            *int
	CostBasisPerShare *decimal.Decimal
	AcquiredDate      *time.Time
	Notes             *string
}

// CreateStockPosition records shares entered by the user.
func (e *Engine) CreateStockPosition(ctx context.Context, spec StockPositionSpec) (*models.StockPosition, error) {
	spec.Symbol = strings.ToUpper(strings.TrimSpace(spec.Symbol))
	if spec.Symbol == "" {
		return nil, validationf("symbol is required")
	}
	if spec.Shares <= 0 {
		return nil, validationf("shares must be a positive integer")
	}
	if !spec.CostBasisPerShare.IsPositive() {
		return nil, validationf("cost basis per share must be greater than 0")
	}
	if spec.AcquiredDate.IsZero() {
		spec.AcquiredDate = e.now()
	}

	pos := &models.StockPosition{
		AccountID:         spec.AccountID,
		Symbol:            spec.Symbol,
		Shares:            spec.Shares,
		CostBasisPerShare: spec.CostBasisPerShare,
		AcquiredDate:      spec.AcquiredDate,
		Status:            models.PositionOpen,
		Notes:             spec.Notes,
	}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Account{}, spec.AccountID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return integrityf("account %d does not exist", spec.AccountID)
			}
			return err
		}
		return tx.Create(pos).Error
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Created stock position",
		zap.Uint("position_id", pos.ID),
		zap.String("symbol", pos.Symbol),
		zap.Int("shares", pos.Shares))
	return pos, nil
}

// UpdateStockPosition applies a partial update. Shares can never be
// reduced below what open covered calls have reserved.
func (e *Engine) UpdateStockPosition(ctx context.Context, id uint, patch StockPositionPatch) (*models.StockPosition, error) {
	var pos models.StockPosition
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&pos, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if patch.Symbol != nil {
			symbol := strings.ToUpper(strings.TrimSpace(*patch.Symbol))
			if symbol == "" {
				return validationf("symbol is required")
			}
			if symbol != pos.Symbol && pos.SharesUsed > 0 {
				return integrityf("cannot change symbol while %d shares are reserved by open covered calls", pos.SharesUsed)
			}
			pos.Symbol = symbol
		}
		if patch.Shares != nil {
			if *patch.Shares < 0 {
				return validationf("shares cannot be negative")
			}
			if *patch.Shares < pos.SharesUsed {
				return validationf("cannot reduce shares to %d, %d are reserved by open covered calls", *patch.Shares, pos.SharesUsed)
			}
			pos.Shares = *patch.Shares
		}
		if patch.CostBasisPerShare != nil {
			if !patch.CostBasisPerShare.IsPositive() {
				return validationf("cost basis per share must be greater than 0")
			}
			pos.CostBasisPerShare = *patch.CostBasisPerShare
		}
		if patch.AcquiredDate != nil {
			pos.AcquiredDate = *patch.AcquiredDate
		}
		if patch.Notes != nil {
			pos.Notes = *patch.Notes
		}
		return tx.Save(&pos).Error
	})
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// DeleteStockPosition removes a position. It is rejected while any
// open covered call still reserves shares from it.
func (e *Engine) DeleteStockPosition(ctx context.Context, id uint) error {
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pos models.StockPosition
		if err := tx.First(&pos, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if pos.SharesUsed > 0 {
			return integrityf("cannot delete position, %d shares are reserved by open covered calls", pos.SharesUsed)
		}
		return tx.Delete(&pos).Error
	})
	if err != nil {
		return err
	}

	e.logger.Info("Deleted stock position", zap.Uint("position_id", id))
	return nil
}

// GetStockPosition loads a single stock position.
func (e *Engine) GetStockPosition(ctx context.Context, id uint) (*models.StockPosition, error) {
	var pos models.StockPosition
	err := e.db.WithContext(ctx).First(&pos, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// PositionFilter narrows ListStockPositions.
type PositionFilter struct {
	AccountID uint
	Symbol    string
	Status    models.PositionStatus

	// AvailableOnly keeps positions with unreserved shares, the set a
	// new covered call can be written against.
	AvailableOnly bool
}

// ListStockPositions returns positions newest first.
func (e *Engine) ListStockPositions(ctx context.Context, filter PositionFilter) ([]models.StockPosition, error) {
	q := e.db.WithContext(ctx).Model(&models.StockPosition{}).Order("acquired_date DESC, id DESC")
	if filter.AccountID != 0 {
		q = q.Where("account_id = ?", filter.AccountID)
	}
	if filter.Symbol != "" {
		q = q.Where("symbol = ?", strings.ToUpper(filter.Symbol))
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.AvailableOnly {
		q = q.Where("status = ? AND shares > shares_used", models.PositionOpen)
	}

	var positions []models.StockPosition
	if err := q.Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

// reserveShares marks shares as backing an open covered call. It
// validates against the derived available count at call time.
func (e *Engine) reserveShares(tx *gorm.DB, positionID uint, shares int) (*models.StockPosition, error) {
	var pos models.StockPosition
	if err := tx.First(&pos, positionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integrityf("stock position %d does not exist", positionID)
		}
		return nil, err
	}
	if pos.Status != models.PositionOpen {
		return nil, validationf("stock position is not open (status: %s)", pos.Status)
	}
	if shares > pos.AvailableShares() {
		return nil, &InsufficientSharesError{Needed: shares, Available: pos.AvailableShares()}
	}
	pos.SharesUsed += shares
	return &pos, tx.Save(&pos).Error
}

// releaseShares returns reserved shares without changing shares owned.
func (e *Engine) releaseShares(tx *gorm.DB, positionID uint, shares int) error {
	var pos models.StockPosition
	if err := tx.First(&pos, positionID).Error; err != nil {
		return fmt.Errorf("release shares: %w", err)
	}
	pos.SharesUsed -= shares
	if pos.SharesUsed < 0 {
		pos.SharesUsed = 0
	}
	return tx.Save(&pos).Error
}

// consumeShares permanently removes shares that were called away at
// the given price, along with their reservation. A position emptied
// this way becomes terminal.
func (e *Engine) consumeShares(tx *gorm.DB, positionID uint, shares int, atPrice decimal.Decimal) error {
	var pos models.StockPosition
	if err := tx.First(&pos, positionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return integrityf("stock position %d does not exist", positionID)
		}
		return err
	}
	if shares > pos.Shares {
		return &InsufficientSharesError{Needed: shares, Available: pos.Shares}
	}

	pos.Shares -= shares
	pos.SharesUsed -= shares
	if pos.SharesUsed < 0 {
		pos.SharesUsed = 0
	}
	if pos.Shares == 0 {
		pos.Status = models.PositionCalledAway
	}
	if err := tx.Save(&pos).Error; err != nil {
		return err
	}

	e.logger.Info("Shares called away",
		zap.Uint("position_id", pos.ID),
		zap.String("symbol", pos.Symbol),
		zap.Int("shares", shares),
		zap.String("at_price", atPrice.String()),
		zap.Int("shares_left", pos.Shares))
	return nil
}

// createFromAssignment records the stock position produced by a CSP
// assignment or LEAPS exercise.
func (e *Engine) createFromAssignment(tx *gorm.DB, accountID uint, symbol string, shares int, costBasis decimal.Decimal, date time.Time, sourceTradeID uint) (*models.StockPosition, error) {
	pos := &models.StockPosition{
		AccountID:         accountID,
		Symbol:            symbol,
		Shares:            shares,
		CostBasisPerShare: costBasis,
		AcquiredDate:      date,
		Status:            models.PositionOpen,
		SourceTradeID:     &sourceTradeID,
		Notes:             fmt.Sprintf("Assigned from trade #%d", sourceTradeID),
	}
	if err := tx.Create(pos).Error; err != nil {
		return nil, err
	}

	e.logger.Info("Created stock position from assignment",
		zap.Uint("position_id", pos.ID),
		zap.String("symbol", symbol),
		zap.Int("shares", shares),
		zap.String("cost_basis", costBasis.String()))
	return pos, nil
}

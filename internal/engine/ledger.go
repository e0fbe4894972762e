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
	"wheel-tracker-go/internal/pricing"
)

// OpenTrade validates and records a new opening trade. Covered calls
// reserve shares from their stock position in the same transaction;
// assignment entries are applied against their parent CSP or LEAPS.
func (e *Engine) OpenTrade(ctx context.Context, spec OpenSpec) (*models.Trade, error) {
	spec.Symbol = strings.ToUpper(strings.TrimSpace(spec.Symbol))
	if spec.Symbol == "" {
		return nil, validationf("symbol is required")
	}
	if !spec.TradeType.Valid() {
		return nil, validationf("unknown trade type %q", spec.TradeType)
	}
	if spec.ContractQuantity <= 0 {
		return nil, validationf("contract quantity must be a positive integer")
	}
	if spec.Fees.IsNegative() {
		return nil, validationf("fees cannot be negative")
	}
	if spec.TradeDate.IsZero() {
		spec.TradeDate = e.now()
	}

	var trade *models.Trade
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Account{}, spec.AccountID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return integrityf("account %d does not exist", spec.AccountID)
			}
			return err
		}

		var err error
		if spec.TradeType == models.TradeTypeAssignment {
			trade, err = e.openAssignment(tx, spec)
		} else {
			trade, err = e.openOption(tx, spec)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Opened trade",
		zap.Uint("trade_id", trade.ID),
		zap.String("symbol", trade.Symbol),
		zap.String("trade_type", string(trade.TradeType)),
		zap.Int("contracts", trade.ContractQuantity),
		zap.String("premium", trade.Premium.String()))
	return trade, nil
}

// openOption records a CSP, covered call, LEAPS or rollover entry.
func (e *Engine) openOption(tx *gorm.DB, spec OpenSpec) (*models.Trade, error) {
	if !spec.TradePrice.Valid || !spec.TradePrice.Decimal.IsPositive() {
		return nil, validationf("trade price must be greater than 0")
	}
	if !spec.StrikePrice.Valid || !spec.StrikePrice.Decimal.IsPositive() {
		return nil, validationf("strike price must be greater than 0")
	}

	switch spec.TradeType {
	case models.TradeTypeCSP, models.TradeTypeCoveredCall:
		if spec.TradeAction != models.ActionSoldToOpen {
			return nil, validationf("%s trades open with %q", spec.TradeType, models.ActionSoldToOpen)
		}
	case models.TradeTypeLeaps:
		if spec.TradeAction != models.ActionBoughtToOpen {
			return nil, validationf("LEAPS trades open with %q", models.ActionBoughtToOpen)
		}
	default:
		if !spec.TradeAction.IsOpening() {
			return nil, validationf("trade action %q does not open a position", spec.TradeAction)
		}
	}

	trade := &models.Trade{
		AccountID:             spec.AccountID,
		Symbol:                spec.Symbol,
		TradeType:             spec.TradeType,
		TradeAction:           spec.TradeAction,
		StrikePrice:           spec.StrikePrice,
		ExpirationDate:        spec.ExpirationDate,
		ContractQuantity:      spec.ContractQuantity,
		TradePrice:            spec.TradePrice,
		Fees:                  spec.Fees,
		Premium:               pricing.Premium(spec.TradePrice.Decimal, spec.TradeAction, spec.ContractQuantity, spec.Fees),
		TradeDate:             spec.TradeDate,
		OpenDate:              &spec.TradeDate,
		Status:                models.StatusOpen,
		RemainingOpenQuantity: spec.ContractQuantity,
		Notes:                 spec.Notes,
	}

	if spec.TradeType == models.TradeTypeCoveredCall {
		if spec.StockPositionID == nil {
			return nil, validationf("covered calls require a stock position; you need to own shares to write one")
		}
		shares := spec.ContractQuantity * pricing.SharesPerContract
		pos, err := e.reserveShares(tx, *spec.StockPositionID, shares)
		if err != nil {
			return nil, err
		}
		if pos.AccountID != spec.AccountID {
			return nil, integrityf("stock position %d belongs to a different account", pos.ID)
		}
		if pos.Symbol != spec.Symbol {
			return nil, validationf("stock position symbol (%s) does not match trade symbol (%s)", pos.Symbol, spec.Symbol)
		}
		trade.StockPositionID = spec.StockPositionID
		trade.SharesUsed = shares
	}

	if err := tx.Create(trade).Error; err != nil {
		return nil, err
	}
	return trade, nil
}

// openAssignment records a manually entered assignment. It behaves
// like an assigned close of the parent: it counts against the parent's
// remaining quantity and creates the resulting stock position.
func (e *Engine) openAssignment(tx *gorm.DB, spec OpenSpec) (*models.Trade, error) {
	if !spec.AssignmentPrice.Valid || !spec.AssignmentPrice.Decimal.IsPositive() {
		return nil, validationf("assignment price must be greater than 0")
	}
	if spec.ParentTradeID == nil {
		return nil, validationf("assignment entries require a parent CSP or LEAPS trade")
	}

	var parent models.Trade
	if err := tx.First(&parent, *spec.ParentTradeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integrityf("parent trade %d does not exist", *spec.ParentTradeID)
		}
		return nil, err
	}
	if parent.TradeType != models.TradeTypeCSP && parent.TradeType != models.TradeTypeLeaps {
		return nil, validationf("assignment entries require a CSP or LEAPS parent, got %s", parent.TradeType)
	}
	if parent.AccountID != spec.AccountID {
		return nil, integrityf("parent trade %d belongs to a different account", parent.ID)
	}

	remaining, err := e.remainingOpen(tx, &parent)
	if err != nil {
		return nil, err
	}
	if spec.ContractQuantity > remaining {
		return nil, &QuantityExceededError{Requested: spec.ContractQuantity, Remaining: remaining}
	}

	return e.recordAssignment(tx, &parent, remaining, assignmentSpec{
		quantity:        spec.ContractQuantity,
		assignmentPrice: spec.AssignmentPrice.Decimal,
		date:            spec.TradeDate,
		notes:           spec.Notes,
	})
}

// CloseTrade resolves some or all of a trade's remaining open
// contracts. It records a closing entry carrying the realized P&L for
// the closed slice, decrements the parent's counter, and applies the
// method's share-inventory side effects, all in one transaction.
func (e *Engine) CloseTrade(ctx context.Context, parentID uint, spec CloseSpec) (*models.Trade, error) {
	if spec.Quantity < 0 {
		return nil, validationf("contract quantity must be a positive integer")
	}
	if spec.Fees.IsNegative() {
		return nil, validationf("fees cannot be negative")
	}

	var closing *models.Trade
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent models.Trade
		if err := tx.First(&parent, parentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if parent.ParentTradeID != nil && parent.TradeType != models.TradeTypeAssignment {
			return integrityf("trade %d is a closing entry and cannot be closed", parent.ID)
		}

		method := spec.Method
		// A covered call being assigned and its shares being called
		// away are the same event.
		if parent.TradeType == models.TradeTypeCoveredCall && method == models.CloseAssigned {
			method = models.CloseCalledAway
		}
		if !parent.TradeType.AllowsClose(method) {
			return validationf("close method %q is not valid for %s trades", method, parent.TradeType)
		}

		remaining, err := e.remainingOpen(tx, &parent)
		if err != nil {
			return err
		}
		if remaining <= 0 {
			return validationf("no contracts remaining to close")
		}
		qty := spec.Quantity
		if qty == 0 {
			qty = remaining
		}
		if qty > remaining {
			return &QuantityExceededError{Requested: qty, Remaining: remaining}
		}

		closeDate := e.resolveCloseDate(spec.CloseDate, &parent, method)

		switch method {
		case models.CloseBuyToClose:
			if parent.TradeAction != models.ActionSoldToOpen {
				return validationf("buy to close is only for trades opened with %q", models.ActionSoldToOpen)
			}
			closing, err = e.recordPricedClose(tx, &parent, remaining, method, qty, spec, closeDate)
		case models.CloseSellToClose:
			if parent.TradeType != models.TradeTypeAssignment && parent.TradeAction != models.ActionBoughtToOpen {
				return validationf("sell to close is only for trades opened with %q", models.ActionBoughtToOpen)
			}
			closing, err = e.recordPricedClose(tx, &parent, remaining, method, qty, spec, closeDate)
		case models.CloseExpired:
			closing, err = e.recordExpiration(tx, &parent, remaining, qty, closeDate, spec.Notes)
		case models.CloseAssigned:
			price, perr := e.resolveAssignmentPrice(spec.AssignmentPrice, &parent)
			if perr != nil {
				return perr
			}
			closing, err = e.recordAssignment(tx, &parent, remaining, assignmentSpec{
				quantity:        qty,
				assignmentPrice: price,
				date:            closeDate,
				notes:           spec.Notes,
			})
		case models.CloseCalledAway:
			price, perr := e.resolveAssignmentPrice(spec.AssignmentPrice, &parent)
			if perr != nil {
				return perr
			}
			closing, err = e.recordCalledAway(tx, &parent, remaining, qty, price, closeDate, spec.Notes)
		case models.CloseExercise:
			closing, err = e.recordExercise(tx, &parent, remaining, qty, closeDate, spec.Notes)
		default:
			return validationf("unknown close method %q", method)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Closed contracts",
		zap.Uint("parent_trade_id", parentID),
		zap.Uint("closing_trade_id", closing.ID),
		zap.String("method", string(closing.CloseMethod)),
		zap.Int("contracts", closing.ContractQuantity),
		zap.String("realized_pnl", closing.RealizedPnL.Decimal.String()))
	return closing, nil
}

// remainingOpen re-derives the open contract count from the recorded
// closing entries and reconciles the stored counter. Running inside
// the caller's transaction makes concurrent closes serialize on the
// parent row.
func (e *Engine) remainingOpen(tx *gorm.DB, parent *models.Trade) (int, error) {
	var closed int64
	err := tx.Model(&models.Trade{}).
		Where("parent_trade_id = ?", parent.ID).
		Select("COALESCE(SUM(contract_quantity), 0)").
		Scan(&closed).Error
	if err != nil {
		return 0, err
	}
	remaining := parent.ContractQuantity - int(closed)
	if remaining < 0 {
		remaining = 0
	}
	parent.RemainingOpenQuantity = remaining
	return remaining, nil
}

func (e *Engine) resolveCloseDate(given *time.Time, parent *models.Trade, method models.CloseMethod) time.Time {
	if given != nil {
		return *given
	}
	if !method.RequiresPrice() && parent.ExpirationDate != nil {
		return *parent.ExpirationDate
	}
	return e.now()
}

func (e *Engine) resolveAssignmentPrice(given decimal.NullDecimal, parent *models.Trade) (decimal.Decimal, error) {
	if given.Valid {
		if !given.Decimal.IsPositive() {
			return decimal.Zero, validationf("assignment price must be greater than 0")
		}
		return given.Decimal, nil
	}
	if parent.StrikePrice.Valid {
		return parent.StrikePrice.Decimal, nil
	}
	return decimal.Zero, validationf("assignment price is required")
}

// openingSliceFor apportions the parent's opening premium to a close
// of qty contracts. For assignment entries the cost basis of the
// assigned shares stands in for the opening premium, so that selling
// the shares nets out against what was paid for them.
func openingSliceFor(parent *models.Trade, qty int) decimal.Decimal {
	if parent.TradeType == models.TradeTypeAssignment && parent.AssignmentPrice.Valid {
		cost := parent.AssignmentPrice.Decimal.
			Mul(decimal.NewFromInt(int64(qty * pricing.SharesPerContract)))
		return cost.Neg().Round(2)
	}
	return pricing.ProportionalShare(parent.Premium, qty, parent.ContractQuantity)
}

// newClosingEntry builds the common shape of a closing entry.
func newClosingEntry(parent *models.Trade, method models.CloseMethod, qty int, closeDate time.Time, notes string) *models.Trade {
	openDate := parent.EffectiveOpenDate()
	cd := closeDate
	return &models.Trade{
		AccountID:        parent.AccountID,
		Symbol:           parent.Symbol,
		TradeType:        parent.TradeType,
		TradeAction:      method.Action(),
		StrikePrice:      parent.StrikePrice,
		ExpirationDate:   parent.ExpirationDate,
		ContractQuantity: qty,
		TradeDate:        closeDate,
		OpenDate:         &openDate,
		CloseDate:        &cd,
		Status:           method.TerminalStatus(),
		CloseMethod:      method,
		ParentTradeID:    &parent.ID,
		Notes:            notes,
	}
}

// applyCounter decrements the parent's counter for a close of qty
// contracts and advances its status to the method's terminal state
// only when nothing remains open.
func applyCounter(tx *gorm.DB, parent *models.Trade, remaining, qty int, method models.CloseMethod, closeDate time.Time) error {
	parent.RemainingOpenQuantity = remaining - qty
	if parent.RemainingOpenQuantity == 0 {
		parent.Status = method.TerminalStatus()
		parent.CloseDate = &closeDate
		parent.CloseMethod = method
	} else {
		parent.Status = models.StatusOpen
		parent.CloseDate = nil
	}
	return tx.Save(parent).Error
}

// recordPricedClose handles buy-to-close and sell-to-close.
func (e *Engine) recordPricedClose(tx *gorm.DB, parent *models.Trade, remaining int, method models.CloseMethod, qty int, spec CloseSpec, closeDate time.Time) (*models.Trade, error) {
	if !spec.Price.Valid || !spec.Price.Decimal.IsPositive() {
		return nil, validationf("trade price must be greater than 0")
	}

	closingPremium := pricing.Premium(spec.Price.Decimal, method.Action(), qty, spec.Fees)
	realized := openingSliceFor(parent, qty).Add(closingPremium)

	closing := newClosingEntry(parent, method, qty, closeDate, spec.Notes)
	closing.TradePrice = spec.Price
	closing.Fees = spec.Fees
	closing.Premium = closingPremium
	closing.RealizedPnL = decimal.NewNullDecimal(realized)
	if err := tx.Create(closing).Error; err != nil {
		return nil, err
	}

	// Covered calls bought back release their reservation.
	if parent.TradeType == models.TradeTypeCoveredCall {
		if err := e.releaseParentReservation(tx, parent, qty); err != nil {
			return nil, err
		}
	}
	return closing, applyCounter(tx, parent, remaining, qty, method, closeDate)
}

// recordExpiration handles contracts expiring worthless. The closing
// entry has no premium; the gain was captured when the position was
// opened.
func (e *Engine) recordExpiration(tx *gorm.DB, parent *models.Trade, remaining, qty int, closeDate time.Time, notes string) (*models.Trade, error) {
	closing := newClosingEntry(parent, models.CloseExpired, qty, closeDate, notes)
	closing.RealizedPnL = decimal.NewNullDecimal(openingSliceFor(parent, qty))
	if err := tx.Create(closing).Error; err != nil {
		return nil, err
	}

	if parent.TradeType == models.TradeTypeCoveredCall {
		if err := e.releaseParentReservation(tx, parent, qty); err != nil {
			return nil, err
		}
	}
	return closing, applyCounter(tx, parent, remaining, qty, models.CloseExpired, closeDate)
}

type assignmentSpec struct {
	quantity        int
	assignmentPrice decimal.Decimal
	date            time.Time
	notes           string
}

// recordAssignment handles a CSP (or LEAPS) being assigned: the
// closing entry is an assignment trade holding the shares, and a stock
// position is created at the assignment price.
func (e *Engine) recordAssignment(tx *gorm.DB, parent *models.Trade, remaining int, spec assignmentSpec) (*models.Trade, error) {
	closing := newClosingEntry(parent, models.CloseAssigned, spec.quantity, spec.date, spec.notes)
	closing.TradeType = models.TradeTypeAssignment
	closing.TradeAction = ""
	closing.AssignmentPrice = decimal.NewNullDecimal(spec.assignmentPrice)
	closing.RealizedPnL = decimal.NewNullDecimal(openingSliceFor(parent, spec.quantity))
	// The assignment entry holds the shares; it stays open until the
	// stock side is sold.
	closing.Status = models.StatusAssigned
	closing.CloseDate = nil
	closing.RemainingOpenQuantity = spec.quantity
	if err := tx.Create(closing).Error; err != nil {
		return nil, err
	}

	shares := spec.quantity * pricing.SharesPerContract
	if _, err := e.createFromAssignment(tx, parent.AccountID, parent.Symbol, shares, spec.assignmentPrice, spec.date, closing.ID); err != nil {
		return nil, err
	}

	parent.AssignmentPrice = decimal.NewNullDecimal(spec.assignmentPrice)
	return closing, applyCounter(tx, parent, remaining, spec.quantity, models.CloseAssigned, spec.date)
}

// recordCalledAway handles a covered call's shares being called away:
// the referenced stock position permanently loses the shares.
func (e *Engine) recordCalledAway(tx *gorm.DB, parent *models.Trade, remaining, qty int, assignmentPrice decimal.Decimal, closeDate time.Time, notes string) (*models.Trade, error) {
	if parent.StockPositionID == nil {
		return nil, integrityf("covered call %d is not linked to a stock position", parent.ID)
	}

	closing := newClosingEntry(parent, models.CloseCalledAway, qty, closeDate, notes)
	closing.AssignmentPrice = decimal.NewNullDecimal(assignmentPrice)
	closing.RealizedPnL = decimal.NewNullDecimal(openingSliceFor(parent, qty))
	closing.StockPositionID = parent.StockPositionID
	closing.SharesUsed = qty * pricing.SharesPerContract
	if err := tx.Create(closing).Error; err != nil {
		return nil, err
	}

	shares := qty * pricing.SharesPerContract
	if err := e.consumeShares(tx, *parent.StockPositionID, shares, assignmentPrice); err != nil {
		return nil, err
	}
	parent.SharesUsed -= shares
	if parent.SharesUsed < 0 {
		parent.SharesUsed = 0
	}
	parent.AssignmentPrice = decimal.NewNullDecimal(assignmentPrice)
	return closing, applyCounter(tx, parent, remaining, qty, models.CloseCalledAway, closeDate)
}

// recordExercise handles a LEAPS exercise: the contracts convert into
// shares at the strike.
func (e *Engine) recordExercise(tx *gorm.DB, parent *models.Trade, remaining, qty int, closeDate time.Time, notes string) (*models.Trade, error) {
	if !parent.StrikePrice.Valid || !parent.StrikePrice.Decimal.IsPositive() {
		return nil, validationf("strike price is required for exercise")
	}

	closing := newClosingEntry(parent, models.CloseExercise, qty, closeDate, notes)
	closing.RealizedPnL = decimal.NewNullDecimal(openingSliceFor(parent, qty))
	if err := tx.Create(closing).Error; err != nil {
		return nil, err
	}

	shares := qty * pricing.SharesPerContract
	if _, err := e.createFromAssignment(tx, parent.AccountID, parent.Symbol, shares, parent.StrikePrice.Decimal, closeDate, closing.ID); err != nil {
		return nil, err
	}
	return closing, applyCounter(tx, parent, remaining, qty, models.CloseExercise, closeDate)
}

// releaseParentReservation returns qty contracts' worth of shares to
// the covered call's stock position without changing shares owned.
func (e *Engine) releaseParentReservation(tx *gorm.DB, parent *models.Trade, qty int) error {
	if parent.StockPositionID == nil {
		return nil
	}
	shares := qty * pricing.SharesPerContract
	if err := e.releaseShares(tx, *parent.StockPositionID, shares); err != nil {
		return err
	}
	parent.SharesUsed -= shares
	if parent.SharesUsed < 0 {
		parent.SharesUsed = 0
	}
	return nil
}

// EditTrade applies a partial update. Changing an opening trade's own
// economics recomputes its premium; changing a priced closing entry
// recomputes that entry's premium and realized P&L. Recorded sibling
// closes are left as written.
func (e *Engine) EditTrade(ctx context.Context, id uint, patch TradePatch) (*models.Trade, error) {
	var trade models.Trade
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&trade, id).Error; err != nil {
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
			trade.Symbol = symbol
		}
		if patch.StrikePrice != nil {
			if !patch.StrikePrice.IsPositive() {
				return validationf("strike price must be greater than 0")
			}
			trade.StrikePrice = decimal.NewNullDecimal(*patch.StrikePrice)
		}
		if patch.ExpirationDate != nil {
			trade.ExpirationDate = patch.ExpirationDate
		}
		if patch.TradeDate != nil {
			trade.TradeDate = *patch.TradeDate
		}
		if patch.Notes != nil {
			trade.Notes = *patch.Notes
		}

		economicsChanged := false
		if patch.TradePrice != nil {
			if !patch.TradePrice.IsPositive() {
				return validationf("trade price must be greater than 0")
			}
			trade.TradePrice = decimal.NewNullDecimal(*patch.TradePrice)
			economicsChanged = true
		}
		if patch.Fees != nil {
			if patch.Fees.IsNegative() {
				return validationf("fees cannot be negative")
			}
			trade.Fees = *patch.Fees
			economicsChanged = true
		}
		if patch.ContractQuantity != nil {
			if err := e.applyQuantityEdit(tx, &trade, *patch.ContractQuantity); err != nil {
				return err
			}
			economicsChanged = true
		}

		if economicsChanged && trade.TradePrice.Valid && trade.TradeAction != "" {
			trade.Premium = pricing.Premium(trade.TradePrice.Decimal, trade.TradeAction, trade.ContractQuantity, trade.Fees)
			if !trade.IsOpening() && trade.CloseMethod.RequiresPrice() {
				var parent models.Trade
				if err := tx.First(&parent, *trade.ParentTradeID).Error; err != nil {
					return err
				}
				realized := openingSliceFor(&parent, trade.ContractQuantity).Add(trade.Premium)
				trade.RealizedPnL = decimal.NewNullDecimal(realized)
			}
		}

		return tx.Save(&trade).Error
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Edited trade", zap.Uint("trade_id", trade.ID))
	return &trade, nil
}

// applyQuantityEdit changes an opening trade's contract quantity,
// keeping the counter invariant intact. Quantity edits on closing
// entries are rejected; delete the entry and close again instead.
func (e *Engine) applyQuantityEdit(tx *gorm.DB, trade *models.Trade, quantity int) error {
	if quantity <= 0 {
		return validationf("contract quantity must be a positive integer")
	}
	if !trade.IsOpening() {
		return validationf("contract quantity of a closing entry cannot be edited; delete it and close again")
	}

	var closed int64
	err := tx.Model(&models.Trade{}).
		Where("parent_trade_id = ?", trade.ID).
		Select("COALESCE(SUM(contract_quantity), 0)").
		Scan(&closed).Error
	if err != nil {
		return err
	}
	if int64(quantity) < closed {
		return validationf("cannot reduce quantity to %d, %d contracts are already closed", quantity, closed)
	}

	if trade.TradeType == models.TradeTypeCoveredCall && trade.StockPositionID != nil {
		delta := (quantity - trade.ContractQuantity) * pricing.SharesPerContract
		if delta > 0 {
			if _, err := e.reserveShares(tx, *trade.StockPositionID, delta); err != nil {
				return err
			}
		} else if delta < 0 {
			if err := e.releaseShares(tx, *trade.StockPositionID, -delta); err != nil {
				return err
			}
		}
		trade.SharesUsed += delta
	}

	trade.ContractQuantity = quantity
	trade.RemainingOpenQuantity = quantity - int(closed)
	if trade.RemainingOpenQuantity == 0 {
		// Shrinking to exactly the closed count fully resolves the
		// trade; advance it the way the last recorded close would have.
		var last models.Trade
		if err := tx.Where("parent_trade_id = ?", trade.ID).Order("id DESC").First(&last).Error; err != nil {
			return err
		}
		trade.Status = last.CloseMethod.TerminalStatus()
		trade.CloseMethod = last.CloseMethod
		if last.CloseDate != nil {
			trade.CloseDate = last.CloseDate
		} else {
			closeDate := last.TradeDate
			trade.CloseDate = &closeDate
		}
	} else if trade.Status != models.StatusAssigned {
		trade.Status = models.StatusOpen
		trade.CloseDate = nil
	}
	return nil
}

// DeleteTrade removes a trade. Deleting an opening trade releases any
// shares it still reserves and cascades to its closing entries.
// Deleting a priced or expired closing entry restores the parent's
// counter; closes with permanent share effects cannot be deleted.
func (e *Engine) DeleteTrade(ctx context.Context, id uint) error {
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var trade models.Trade
		if err := tx.First(&trade, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if trade.IsOpening() {
			return e.deleteOpeningTrade(tx, &trade)
		}
		return e.deleteClosingEntry(tx, &trade)
	})
	if err != nil {
		return err
	}

	e.logger.Info("Deleted trade", zap.Uint("trade_id", id))
	return nil
}

func (e *Engine) deleteOpeningTrade(tx *gorm.DB, trade *models.Trade) error {
	// Release the reservation still held by an open covered call.
	if trade.TradeType == models.TradeTypeCoveredCall && trade.StockPositionID != nil && trade.SharesUsed > 0 {
		if err := e.releaseShares(tx, *trade.StockPositionID, trade.SharesUsed); err != nil {
			return err
		}
	}
	if err := tx.Where("parent_trade_id = ?", trade.ID).Delete(&models.Trade{}).Error; err != nil {
		return err
	}
	return tx.Delete(trade).Error
}

func (e *Engine) deleteClosingEntry(tx *gorm.DB, trade *models.Trade) error {
	switch trade.CloseMethod {
	case models.CloseAssigned, models.CloseCalledAway, models.CloseExercise:
		return integrityf("closing entry %d permanently moved shares and cannot be deleted", trade.ID)
	}

	var parent models.Trade
	if err := tx.First(&parent, *trade.ParentTradeID).Error; err != nil {
		return err
	}

	// A covered call close released its reservation; put it back.
	if parent.TradeType == models.TradeTypeCoveredCall && parent.StockPositionID != nil {
		shares := trade.ContractQuantity * pricing.SharesPerContract
		if _, err := e.reserveShares(tx, *parent.StockPositionID, shares); err != nil {
			return err
		}
		parent.SharesUsed += shares
	}

	if err := tx.Delete(trade).Error; err != nil {
		return err
	}

	parent.RemainingOpenQuantity += trade.ContractQuantity
	parent.Status = models.StatusOpen
	parent.CloseDate = nil
	parent.CloseMethod = ""
	return tx.Save(&parent).Error
}

// GetTrade loads a trade with its closing entries.
func (e *Engine) GetTrade(ctx context.Context, id uint) (*models.Trade, error) {
	var trade models.Trade
	err := e.db.WithContext(ctx).Preload("ClosingTrades").First(&trade, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

// TradeFilter narrows ListTrades.
type TradeFilter struct {
	AccountID uint
	Status    models.TradeStatus

	// IncludeClosingEntries also returns child entries; by default
	// only position-establishing trades are listed.
	IncludeClosingEntries bool
}

// ListTrades returns trades newest first.
func (e *Engine) ListTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error) {
	q := e.db.WithContext(ctx).Model(&models.Trade{}).Order("trade_date DESC, id DESC")
	if filter.AccountID != 0 {
		q = q.Where("account_id = ?", filter.AccountID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if !filter.IncludeClosingEntries {
		q = q.Where("parent_trade_id IS NULL OR trade_type = ?", models.TradeTypeAssignment)
	}

	var trades []models.Trade
	if err := q.Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

// TradeChain is the full lifecycle view of a trade: the entry it
// closes (if any), the trade itself, and the entries closing it.
type TradeChain struct {
	Parent   *models.Trade  `json:"parent,omitempty"`
	Current  *models.Trade  `json:"current"`
	Children []models.Trade `json:"children"`
}

// GetTradeChain loads the parent/current/children view for a trade.
func (e *Engine) GetTradeChain(ctx context.Context, id uint) (*TradeChain, error) {
	trade, err := e.GetTrade(ctx, id)
	if err != nil {
		return nil, err
	}

	chain := &TradeChain{Current: trade, Children: trade.ClosingTrades}
	if chain.Children == nil {
		chain.Children = []models.Trade{}
	}
	if trade.ParentTradeID != nil {
		var parent models.Trade
		if err := e.db.WithContext(ctx).First(&parent, *trade.ParentTradeID).Error; err == nil {
			chain.Parent = &parent
		}
	}
	return chain, nil
}

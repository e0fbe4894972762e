package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"wheel-tracker-go/internal/models"
)

func createTestPosition(t *testing.T, e *Engine, accountID uint, shares int) *models.StockPosition {
	pos, err := e.CreateStockPosition(context.Background(), StockPositionSpec{
		AccountID:         accountID,
		Symbol:            "AAPL",
		Shares:            shares,
		CostBasisPerShare: dec("150"),
		AcquiredDate:      date(2026, time.January, 5),
	})
	assert.NoError(t, err)
	return pos
}

func openCoveredCall(t *testing.T, e *Engine, accountID, positionID uint, qty int) (*models.Trade, error) {
	exp := date(2026, time.March, 20)
	return e.OpenTrade(context.Background(), OpenSpec{
		AccountID:        accountID,
		Symbol:           "AAPL",
		TradeType:        models.TradeTypeCoveredCall,
		TradeAction:      models.ActionSoldToOpen,
		StrikePrice:      nd("160"),
		ExpirationDate:   &exp,
		ContractQuantity: qty,
		TradePrice:       nd("3.00"),
		Fees:             dec("0.65"),
		TradeDate:        date(2026, time.February, 18),
		StockPositionID:  &positionID,
	})
}

func TestCoveredCall_ReservesShares(t *testing.T) {
	// Arrange: 300 shares available
	e := setupTest(t)
	accountID := createTestAccount(t, e)
	pos := createTestPosition(t, e, accountID, 300)

	// Act: write 2 contracts against them
	cc, err := openCoveredCall(t, e, accountID, pos.ID, 2)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 200, cc.SharesUsed)

	reloaded, err := e.GetStockPosition(context.Background(), pos.ID)
	assert.NoError(t, err)
	assert.Equal(t, 200, reloaded.SharesUsed)
	assert.Equal(t, 100, reloaded.AvailableShares())

	// A further 2 contracts would need 200 shares; only 100 are left.
	_, err = openCoveredCall(t, e, accountID, pos.ID, 2)
	var sharesErr *InsufficientSharesError
	assert.ErrorAs(t, err, &sharesErr)
	assert.Equal(t, 200, sharesErr.Needed)
	assert.Equal(t, 100, sharesErr.Available)

	// Nothing was reserved by the failed open.
	reloaded, err = e.GetStockPosition(context.Background(), pos.ID)
	assert.NoError(t, err)
	assert.Equal(t, 200, reloaded.SharesUsed)
}

func TestCoveredCall_RequiresPosition(t *testing.T) {
	e := setupTest(t)
	accountID := createTestAccount(t, e)

	exp := date(2026, time.March, 20)
	_, err := e.OpenTrade(context.Background(), OpenSpec{
		AccountID:        accountID,
		Symbol:           "AAPL",
		TradeType:        models.TradeTypeCoveredCall,
		TradeAction:      models.ActionSoldToOpen,
		StrikePrice:      nd("160"),
		ExpirationDate:   &exp,
		ContractQuantity: 1,
		TradePrice:       nd("3.00"),
	})
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestCoveredCall_SymbolMustMatchPosition(t *testing.T) {
	e := setupTest(t)
	accountID := createTestAccount(t, e)
	pos := createTestPosition(t, e, accountID, 100)

	_, err := e.OpenTrade(context.Background(), OpenSpec{
		AccountID:        accountID,
		Symbol:           "MSFT",
		TradeType:        models.TradeTypeCoveredCall,
		TradeAction:      models.ActionSoldToOpen,
		StrikePrice:      nd("160"),
		ContractQuantity: 1,
		TradePrice:       nd("3.00"),
		StockPositionID:  &pos.ID,
	})
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	// The rolled-back reservation leaves the position untouched.
	reloaded, err := e.GetStockPosition(context.Background(), pos.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, reloaded.SharesUsed)
}

func TestCoveredCall_BuyToCloseReleasesReservation(t *testing.T) {
	e := setupTest(t)
	accountID := createTestAccount(t, e)
	pos := createTestPosition(t, e, accountID, 200)
	cc, err := openCoveredCall(t, e, accountID, pos.ID, 2)
	assert.NoError(t, err)

	_, err = e.CloseTrade(context.Background(), cc.ID, CloseSpec{
		Method:   models.CloseBuyToClose,
		Quantity: 1,
		Price:    nd("1.00"),
		Fees:     dec("0.65"),
	})
	assert.NoError(t, err)

	// Shares come back but are still owned.
	reloaded, err := e.GetStockPosition(context.Background(), pos.ID)
	assert.NoError(t, err)
	assert.Equal(t, 200, reloaded.Shares)
	assert.Equal(t, 100, reloaded.SharesUsed)
	assert.Equal(t, 100, reloaded.AvailableShares())
}

func TestCoveredCall_ExpirationReleasesReservation(t *testing.T) {
	e := setupTest(t)
	accountID := createTestAccount(t, e)
	pos := createTestPosition(t, e, accountID, 100)
	cc, err := openCoveredCall(t, e, accountID, pos.ID, 1)
	assert.NoError(t, err)

	_, err = e.CloseTrade(context.Background(), cc.ID, CloseSpec{Method: models.CloseExpired})
	assert.NoError(t, err)

	reloaded, err := e.GetStockPosition(context.Background(), pos.ID)
	assert.NoError(t, err)
	assert.Equal(t, 100, reloaded.Shares)
	assert.Equal(t, 0, reloaded.SharesUsed)
}

func TestCoveredCall_CalledAwayConsumesShares(t *testing.T) {
	// Arrange: 200 shares, 2 contracts written
	e := setupTest(t)
	accountID := createTestAccount(t, e)
	pos := createTestPosition(t, e, accountID, 200)
	cc, err := openCoveredCall(t, e, accountID, pos.ID, 2)
	assert.NoError(t, err)

	// Act: 1 contract's shares are called away at the strike
	_, err = e.CloseTrade(context.Background(), cc.ID, CloseSpec{
		Method:   models.CloseCalledAway,
		Quantity: 1,
	})
	assert.NoError(t, err)

	// Assert: 100 shares permanently gone, the rest still reserved
	reloaded, err := e.GetStockPosition(context.Background(), pos.ID)
	assert.NoError(t, err)
	assert.Equal(t, 100, reloaded.Shares)
	assert.Equal(t, 100, reloaded.SharesUsed)
	assert.Equal(t, 0, reloaded.AvailableShares())
	assert.Equal(t, models.PositionOpen, reloaded.Status)

	parent, err := e.GetTrade(context.Background(), cc.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, parent.RemainingOpenQuantity)
	assert.Equal(t, 100, parent.SharesUsed)

	// Act: the last contract is also called away
	_, err = e.CloseTrade(context.Background(), cc.ID, CloseSpec{
		Method:   models.CloseCalledAway,
		Quantity: 1,
	})
	assert.NoError(t, err)

	reloaded, err = e.GetStockPosition(context.Background(), pos.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, reloaded.Shares)
	assert.Equal(t, models.PositionCalledAway, reloaded.Status)

	parent, err = e.GetTrade(context.Background(), cc.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusCalledAway, parent.Status)
}

func TestCoveredCall_AssignedMeansCalledAway(t *testing.T) {
	e := setupTest(t)
	accountID := createTestAccount(t, e)
	pos := createTestPosition(t, e, accountID, 100)
	cc, err := openCoveredCall(t, e, accountID, pos.ID, 1)
	assert.NoError(t, err)

	closing, err := e.CloseTrade(context.Background(), cc.ID, CloseSpec{
		Method: models.CloseAssigned,
	})
	assert.NoError(t, err)
	assert.Equal(t, models.CloseCalledAway, closing.CloseMethod)

	reloaded, err := e.GetStockPosition(context.Background(), pos.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, reloaded.Shares)
}

func TestCoveredCall_DeleteReleasesReservation(t *testing.T) {
	e := setupTest(t)
	accountID := createTestAccount(t, e)
	pos := createTestPosition(t, e, accountID, 100)
	cc, err := openCoveredCall(t, e, accountID, pos.ID, 1)
	assert.NoError(t, err)

	err = e.DeleteTrade(context.Background(), cc.ID)
	assert.NoError(t, err)

	reloaded, err := e.GetStockPosition(context.Background(), pos.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, reloaded.SharesUsed)
}

func TestCoveredCall_QuantityEditAdjustsReservation(t *testing.T) {
	e := setupTest(t)
	accountID := createTestAccount(t, e)
	pos := createTestPosition(t, e, accountID, 300)
	cc, err := openCoveredCall(t, e, accountID, pos.ID, 1)
	assert.NoError(t, err)

	two := 2
	edited, err := e.EditTrade(context.Background(), cc.ID, TradePatch{ContractQuantity: &two})
	assert.NoError(t, err)
	assert.Equal(t, 200, edited.SharesUsed)

	reloaded, err := e.GetStockPosition(context.Background(), pos.ID)
	assert.NoError(t, err)
	assert.Equal(t, 200, reloaded.SharesUsed)

	one := 1
	edited, err = e.EditTrade(context.Background(), cc.ID, TradePatch{ContractQuantity: &one})
	assert.NoError(t, err)
	assert.Equal(t, 100, edited.SharesUsed)

	reloaded, err = e.GetStockPosition(context.Background(), pos.ID)
	assert.NoError(t, err)
	assert.Equal(t, 100, reloaded.SharesUsed)

	// More contracts than the position can cover is rejected.
	four := 4
	_, err = e.EditTrade(context.Background(), cc.ID, TradePatch{ContractQuantity: &four})
	var sharesErr *InsufficientSharesError
	assert.ErrorAs(t, err, &sharesErr)
}

func TestCreateStockPosition_Validation(t *testing.T) {
	e := setupTest(t)
	accountID := createTestAccount(t, e)

	var validationErr *ValidationError

	_, err := e.CreateStockPosition(context.Background(), StockPositionSpec{
		AccountID:         accountID,
		Symbol:            "",
		Shares:            100,
		CostBasisPerShare: dec("150"),
	})
	assert.ErrorAs(t, err, &validationErr)

	_, err = e.CreateStockPosition(context.Background(), StockPositionSpec{
		AccountID:         accountID,
		Symbol:            "AAPL",
		Shares:            0,
		CostBasisPerShare: dec("150"),
	})
	assert.ErrorAs(t, err, &validationErr)

	var integrityErr *ReferentialIntegrityError
	_, err = e.CreateStockPosition(context.Background(), StockPositionSpec{
		AccountID:         9999,
		Symbol:            "AAPL",
		Shares:            100,
		CostBasisPerShare: dec("150"),
	})
	assert.ErrorAs(t, err, &integrityErr)
}

func TestUpdateStockPosition_GuardsReservedShares(t *testing.T) {
	e := setupTest(t)
	accountID := createTestAccount(t, e)
	pos := createTestPosition(t, e, accountID, 200)
	_, err := openCoveredCall(t, e, accountID, pos.ID, 1)
	assert.NoError(t, err)

	// Cannot shrink below what covered calls hold.
	fifty := 50
	_, err = e.UpdateStockPosition(context.Background(), pos.ID, StockPositionPatch{Shares: &fifty})
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	// Cannot change symbol while shares are committed.
	msft := "MSFT"
	var integrityErr *ReferentialIntegrityError
	_, err = e.UpdateStockPosition(context.Background(), pos.ID, StockPositionPatch{Symbol: &msft})
	assert.ErrorAs(t, err, &integrityErr)

	// Shrinking to exactly the reserved amount is allowed.
	hundred := 100
	updated, err := e.UpdateStockPosition(context.Background(), pos.ID, StockPositionPatch{Shares: &hundred})
	assert.NoError(t, err)
	assert.Equal(t, 0, updated.AvailableShares())
}

func TestDeleteStockPosition_GuardsReservedShares(t *testing.T) {
	e := setupTest(t)
	accountID := createTestAccount(t, e)
	pos := createTestPosition(t, e, accountID, 100)
	cc, err := openCoveredCall(t, e, accountID, pos.ID, 1)
	assert.NoError(t, err)

	err = e.DeleteStockPosition(context.Background(), pos.ID)
	var integrityErr *ReferentialIntegrityError
	assert.ErrorAs(t, err, &integrityErr)

	// Once the call is gone the position can be removed.
	err = e.DeleteTrade(context.Background(), cc.ID)
	assert.NoError(t, err)
	err = e.DeleteStockPosition(context.Background(), pos.ID)
	assert.NoError(t, err)
}

func TestListStockPositions_AvailableOnly(t *testing.T) {
	e := setupTest(t)
	accountID := createTestAccount(t, e)
	pos := createTestPosition(t, e, accountID, 100)
	_, err := openCoveredCall(t, e, accountID, pos.ID, 1)
	assert.NoError(t, err)

	// Fully committed positions drop out of the available view.
	available, err := e.ListStockPositions(context.Background(), PositionFilter{AccountID: accountID, AvailableOnly: true})
	assert.NoError(t, err)
	assert.Empty(t, available)

	all, err := e.ListStockPositions(context.Background(), PositionFilter{AccountID: accountID})
	assert.NoError(t, err)
	assert.Len(t, all, 1)
}

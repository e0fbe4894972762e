package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCreateAccount(t *testing.T) {
	e := setupTest(t)

	account, err := e.CreateAccount(context.Background(), AccountSpec{
		UserID:         1,
		Name:           "  Roth IRA ",
		AccountType:    "retirement",
		InitialBalance: dec("10000"),
	})
	assert.NoError(t, err)
	assert.Equal(t, "Roth IRA", account.Name)

	var validationErr *ValidationError
	_, err = e.CreateAccount(context.Background(), AccountSpec{UserID: 1, Name: "   "})
	assert.ErrorAs(t, err, &validationErr)

	_, err = e.CreateAccount(context.Background(), AccountSpec{
		UserID:         1,
		Name:           "Margin",
		InitialBalance: dec("-5"),
	})
	assert.ErrorAs(t, err, &validationErr)
}

func TestListAccounts_ScopedToUser(t *testing.T) {
	e := setupTest(t)

	_, err := e.CreateAccount(context.Background(), AccountSpec{UserID: 1, Name: "Taxable"})
	assert.NoError(t, err)
	_, err = e.CreateAccount(context.Background(), AccountSpec{UserID: 2, Name: "Other"})
	assert.NoError(t, err)

	accounts, err := e.ListAccounts(context.Background(), 1)
	assert.NoError(t, err)
	assert.Len(t, accounts, 1)
	assert.Equal(t, "Taxable", accounts[0].Name)
}

func TestDeleteAccount_Cascades(t *testing.T) {
	// Arrange: an account with a trade and a stock position
	e := setupTest(t)
	accountID := createTestAccount(t, e)
	trade := openCSP(t, e, accountID, 1)
	pos := createTestPosition(t, e, accountID, 100)
	_, err := e.AddDeposit(context.Background(), accountID, CashMovementSpec{
		Amount: dec("5000"),
		Date:   date(2026, time.January, 2),
	})
	assert.NoError(t, err)

	// Act
	err = e.DeleteAccount(context.Background(), accountID)
	assert.NoError(t, err)

	// Assert: everything owned by the account is gone
	_, err = e.GetAccount(context.Background(), accountID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.GetTrade(context.Background(), trade.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.GetStockPosition(context.Background(), pos.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCashMovements(t *testing.T) {
	e := setupTest(t)
	accountID := createTestAccount(t, e)

	_, err := e.AddDeposit(context.Background(), accountID, CashMovementSpec{
		Amount: dec("1000"),
		Date:   date(2026, time.January, 2),
	})
	assert.NoError(t, err)
	_, err = e.AddWithdrawal(context.Background(), accountID, CashMovementSpec{
		Amount: dec("250"),
		Date:   date(2026, time.February, 2),
	})
	assert.NoError(t, err)

	deposits, err := e.ListDeposits(context.Background(), accountID)
	assert.NoError(t, err)
	assert.Len(t, deposits, 1)
	assert.True(t, deposits[0].Amount.Equal(dec("1000")))

	withdrawals, err := e.ListWithdrawals(context.Background(), accountID)
	assert.NoError(t, err)
	assert.Len(t, withdrawals, 1)

	// Amounts must be positive.
	var validationErr *ValidationError
	_, err = e.AddDeposit(context.Background(), accountID, CashMovementSpec{Amount: dec("0")})
	assert.ErrorAs(t, err, &validationErr)

	// The account must exist.
	var integrityErr *ReferentialIntegrityError
	_, err = e.AddDeposit(context.Background(), 9999, CashMovementSpec{Amount: dec("100")})
	assert.ErrorAs(t, err, &integrityErr)
}

package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"wheel-tracker-go/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPremium_SoldToOpen(t *testing.T) {
	// 1 contract at 2.00 with 0.65 fees: 200.00 - 0.65
	premium := Premium(dec("2.00"), models.ActionSoldToOpen, 1, dec("0.65"))
	assert.True(t, premium.Equal(dec("199.35")), "got %s", premium)
}

func TestPremium_BoughtToClose(t *testing.T) {
	// Buying back costs the premium plus fees, as a negative amount.
	premium := Premium(dec("0.50"), models.ActionBoughtToClose, 1, dec("0.65"))
	assert.True(t, premium.Equal(dec("-50.65")), "got %s", premium)
}

func TestPremium_MultipleContracts(t *testing.T) {
	// Fees scale per contract: 3 x 1.50 x 100 - 3 x 0.65
	premium := Premium(dec("1.50"), models.ActionSoldToOpen, 3, dec("0.65"))
	assert.True(t, premium.Equal(dec("448.05")), "got %s", premium)

	premium = Premium(dec("1.50"), models.ActionBoughtToOpen, 3, dec("0.65"))
	assert.True(t, premium.Equal(dec("-451.95")), "got %s", premium)
}

func TestPremium_RoundsAtComputation(t *testing.T) {
	premium := Premium(dec("1.12345"), models.ActionSoldToOpen, 1, dec("0"))
	assert.True(t, premium.Equal(dec("112.35")), "got %s", premium)
}

func TestProportionalShare(t *testing.T) {
	total := dec("448.05")

	part := ProportionalShare(total, 1, 3)
	assert.True(t, part.Equal(dec("149.35")), "got %s", part)

	// Whole position returns the full premium.
	assert.True(t, ProportionalShare(total, 3, 3).Equal(total))

	// Degenerate denominators yield zero instead of dividing by it.
	assert.True(t, ProportionalShare(total, 1, 0).IsZero())
}

func TestSimpleReturnPct(t *testing.T) {
	pct := SimpleReturnPct(dec("148.70"), dec("5000"))
	assert.True(t, pct.Equal(dec("2.97")), "got %s", pct)

	assert.True(t, SimpleReturnPct(dec("100"), decimal.Zero).IsZero())
}

func TestAnnualizedReturnPct(t *testing.T) {
	// 2% over 30 days compounds to roughly 27.24% a year.
	pct := AnnualizedReturnPct(dec("100"), dec("5000"), 30)
	assert.True(t, pct.Equal(dec("27.24")), "got %s", pct)

	// Same-day closes and free positions have no meaningful rate.
	assert.True(t, AnnualizedReturnPct(dec("100"), dec("5000"), 0).IsZero())
	assert.True(t, AnnualizedReturnPct(dec("100"), decimal.Zero, 30).IsZero())
}

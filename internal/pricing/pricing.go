// Package pricing holds the pure monetary derivations of the engine:
// signed premiums, proportional premium apportionment and return
// percentages. Nothing here touches the database.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"

	"wheel-tracker-go/internal/models"
)

// SharesPerContract is the underlying share count of one options
// contract.
const SharesPerContract = 100

// Premium computes the signed cash amount for a transaction. Sold
// actions receive the premium net of fees; bought actions pay the
// premium plus fees. price and feesPerContract are per contract. The
// result is rounded to 2 places here, not after accumulation.
func Premium(price decimal.Decimal, action models.TradeAction, quantity int, feesPerContract decimal.Decimal) decimal.Decimal {
	qty := decimal.NewFromInt(int64(quantity))
	base := price.Mul(qty).Mul(decimal.NewFromInt(SharesPerContract))
	totalFees := feesPerContract.Mul(qty)

	if action.IsSell() {
		return base.Sub(totalFees).Round(2)
	}
	return base.Add(totalFees).Neg().Round(2)
}

// ProportionalShare apportions an opening premium across a partial
// close: total x (part / whole), rounded to 2 places.
func ProportionalShare(total decimal.Decimal, part, whole int) decimal.Decimal {
	if whole <= 0 {
		return decimal.Zero
	}
	return total.Mul(decimal.NewFromInt(int64(part))).
		Div(decimal.NewFromInt(int64(whole))).Round(2)
}

// SimpleReturnPct is realized P&L over capital at risk, in percent.
func SimpleReturnPct(pnl, capital decimal.Decimal) decimal.Decimal {
	if capital.IsZero() {
		return decimal.Zero
	}
	return pnl.Div(capital).Mul(decimal.NewFromInt(100)).Round(2)
}

// AnnualizedReturnPct compounds the simple return over a year:
// ((1 + pnl/capital)^(365/daysHeld) - 1) x 100.
func AnnualizedReturnPct(pnl, capital decimal.Decimal, daysHeld int) decimal.Decimal {
	if capital.IsZero() || daysHeld <= 0 {
		return decimal.Zero
	}
	ratio, _ := pnl.Div(capital).Float64()
	annualized := (math.Pow(1+ratio, 365/float64(daysHeld)) - 1) * 100
	if math.IsInf(annualized, 0) || math.IsNaN(annualized) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(annualized).Round(2)
}

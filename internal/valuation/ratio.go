package valuation

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MaintenanceRatio returns collateral market value over the loan balance
// as a percentage. The ratio is undefined when there is no loan; ok is
// false and callers must render "no loan" rather than a number.
func MaintenanceRatio(totalMarketValue, loanAmount decimal.Decimal) (decimal.Decimal, bool) {
	if loanAmount.Sign() <= 0 {
		return decimal.Zero, false
	}
	return totalMarketValue.Div(loanAmount).Mul(hundred), true
}

// BelowAlert reports whether the ratio breaches the alert threshold.
// Sitting exactly on the threshold is safe.
func BelowAlert(ratio decimal.Decimal, alertPct float64) bool {
	return ratio.LessThan(decimal.NewFromFloat(alertPct))
}

// Shortfall is the additional collateral value needed to restore the
// alert threshold exactly. Only meaningful when the ratio is below the
// threshold.
func Shortfall(totalMarketValue, loanAmount decimal.Decimal, alertPct float64) decimal.Decimal {
	required := loanAmount.Mul(decimal.NewFromFloat(alertPct)).Div(hundred)
	return required.Sub(totalMarketValue)
}

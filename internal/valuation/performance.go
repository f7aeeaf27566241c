package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/khliao/invest-command/internal/models"
)

// NetTradeFlow is sale proceeds minus purchase cost over the whole trade
// log. Pledge rows move collateral, not cash, and are ignored.
func NetTradeFlow(trades []models.TradeRecord) decimal.Decimal {
	flow := decimal.Zero
	for _, t := range trades {
		switch t.Action {
		case models.ActionSell:
			flow = flow.Add(t.TotalAmount)
		case models.ActionBuy:
			flow = flow.Sub(t.TotalAmount)
		}
	}
	return flow
}

// CumulativePrincipal sums every capital-log contribution.
func CumulativePrincipal(records []models.CapitalRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	return total
}

// ROI is the canonical return-on-investment figure:
//
//	totalProfit = liveMarketValue + netTradeFlow - loanAmount - principal
//	roi         = totalProfit / cumulativePrincipal
//
// Earlier dashboard iterations disagreed on this formula; this form nets
// trading cash flow against live market value, the outstanding loan and
// the contributed principal, then divides by that principal, so a
// portfolio worth exactly its contributions reads 0. It is the single
// point of change for the formula. ok is false when principal is zero or
// negative, in which case ROI must be rendered as not applicable.
func ROI(liveMarketValue, netTradeFlow, loanAmount, principal decimal.Decimal) (decimal.Decimal, bool) {
	if principal.Sign() <= 0 {
		return decimal.Zero, false
	}
	totalProfit := liveMarketValue.Add(netTradeFlow).Sub(loanAmount).Sub(principal)
	return totalProfit.Div(principal), true
}

// NetEquity is market value plus idle cash minus the outstanding loan,
// the figure the performance tab shows next to ROI.
func NetEquity(marketValue, cash, loanAmount decimal.Decimal) decimal.Decimal {
	return marketValue.Add(cash).Sub(loanAmount)
}

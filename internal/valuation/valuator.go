package valuation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/khliao/invest-command/internal/models"
)

// QuoteSource provides the latest closing price for a symbol.
type QuoteSource interface {
	LastClose(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Detail is one priced position.
type Detail struct {
	Symbol   string          `json:"symbol"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Value    decimal.Decimal `json:"value"`
}

// Valuation is the result of pricing a portfolio. Warnings carries one
// message per position whose price lookup failed; those positions
// contribute zero to Total.
type Valuation struct {
	Total    decimal.Decimal `json:"total"`
	Details  []Detail        `json:"details"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Valuator prices portfolios against a quote source.
type Valuator struct {
	quotes      QuoteSource
	maxParallel int
}

// NewValuator creates a Valuator. maxParallel bounds concurrent price
// lookups; values below 1 mean sequential.
func NewValuator(quotes QuoteSource, maxParallel int) *Valuator {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Valuator{quotes: quotes, maxParallel: maxParallel}
}

type pricedPosition struct {
	detail Detail
	err    error
	priced bool
}

// Value prices every position with quantity > 0. Lookups run in parallel
// but detail rows come back in portfolio order. A failed lookup skips the
// position and attaches a warning; valuation never aborts on a bad symbol.
func (v *Valuator) Value(ctx context.Context, portfolio []models.Position) (*Valuation, error) {
	results := make([]pricedPosition, len(portfolio))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.maxParallel)

	for i, pos := range portfolio {
		if pos.Quantity.Sign() <= 0 {
			continue
		}
		i, pos := i, pos
		g.Go(func() error {
			price, err := v.quotes.LastClose(gctx, pos.Symbol)
			if err != nil {
				results[i] = pricedPosition{err: err}
				return nil
			}
			results[i] = pricedPosition{
				detail: Detail{
					Symbol:   pos.Symbol,
					Price:    price,
					Quantity: pos.Quantity,
					Value:    price.Mul(pos.Quantity),
				},
				priced: true,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Valuation{Total: decimal.Zero}
	for i, res := range results {
		if res.err != nil {
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("%s: price unavailable: %v", portfolio[i].Symbol, res.err))
			continue
		}
		if !res.priced {
			continue
		}
		out.Details = append(out.Details, res.detail)
		out.Total = out.Total.Add(res.detail.Value)
	}

	return out, nil
}

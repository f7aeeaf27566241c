package valuation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khliao/invest-command/internal/models"
)

type fakeQuotes struct {
	prices map[string]float64
	delays map[string]time.Duration
}

func (f *fakeQuotes) LastClose(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if d, ok := f.delays[symbol]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return decimal.Zero, ctx.Err()
		}
	}
	price, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, errors.New("quote not found")
	}
	return decimal.NewFromFloat(price), nil
}

func pos(symbol string, qty int64) models.Position {
	return models.Position{Symbol: symbol, Quantity: decimal.NewFromInt(qty)}
}

func TestValue_SumsSuccessesAndWarnsOnFailures(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]float64{"A": 10}}
	v := NewValuator(quotes, 2)

	got, err := v.Value(context.Background(), []models.Position{pos("A", 100), pos("B", 50)})
	require.NoError(t, err)

	assert.True(t, got.Total.Equal(decimal.NewFromInt(1000)), "total = %s", got.Total)
	require.Len(t, got.Details, 1)
	assert.Equal(t, "A", got.Details[0].Symbol)
	require.Len(t, got.Warnings, 1)
	assert.Contains(t, got.Warnings[0], "B")
}

func TestValue_SkipsZeroQuantityWithoutWarning(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]float64{"A": 10}}
	v := NewValuator(quotes, 2)

	got, err := v.Value(context.Background(), []models.Position{pos("A", 100), pos("EMPTY", 0)})
	require.NoError(t, err)

	assert.True(t, got.Total.Equal(decimal.NewFromInt(1000)))
	assert.Len(t, got.Details, 1)
	assert.Empty(t, got.Warnings)
}

func TestValue_EmptyPortfolio(t *testing.T) {
	v := NewValuator(&fakeQuotes{}, 2)

	got, err := v.Value(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, got.Total.IsZero())
	assert.Empty(t, got.Details)
	assert.Empty(t, got.Warnings)
}

func TestValue_DetailOrderMatchesPortfolioOrder(t *testing.T) {
	// Later symbols resolve faster than earlier ones; output order must
	// still follow input order.
	quotes := &fakeQuotes{
		prices: map[string]float64{"S0": 1, "S1": 2, "S2": 3, "S3": 4},
		delays: map[string]time.Duration{
			"S0": 40 * time.Millisecond,
			"S1": 30 * time.Millisecond,
			"S2": 20 * time.Millisecond,
			"S3": 0,
		},
	}
	v := NewValuator(quotes, 4)

	portfolio := []models.Position{pos("S0", 1), pos("S1", 1), pos("S2", 1), pos("S3", 1)}
	got, err := v.Value(context.Background(), portfolio)
	require.NoError(t, err)

	require.Len(t, got.Details, 4)
	for i, d := range got.Details {
		assert.Equal(t, fmt.Sprintf("S%d", i), d.Symbol)
	}
	assert.True(t, got.Total.Equal(decimal.NewFromInt(10)))
}

func TestValue_FractionalQuantities(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]float64{"A": 12.5}}
	v := NewValuator(quotes, 1)

	portfolio := []models.Position{{Symbol: "A", Quantity: decimal.RequireFromString("2.4")}}
	got, err := v.Value(context.Background(), portfolio)
	require.NoError(t, err)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("30")), "total = %s", got.Total)
}

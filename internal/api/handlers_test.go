package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khliao/invest-command/internal/config"
	"github.com/khliao/invest-command/internal/models"
	"github.com/khliao/invest-command/internal/quote"
	"github.com/khliao/invest-command/internal/store"
	"github.com/khliao/invest-command/internal/valuation"
)

type fakeQuotes struct {
	prices map[string]decimal.Decimal
	err    error
}

func (f *fakeQuotes) LastClose(_ context.Context, symbol string) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Decimal{}, f.err
	}
	price, ok := f.prices[symbol]
	if !ok {
		return decimal.Decimal{}, quote.ErrNotFound
	}
	return price, nil
}

func newTestRouter(t *testing.T, quotes valuation.QuoteSource) (http.Handler, store.Store) {
	t.Helper()

	st, err := store.NewCSVStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	thresholds := config.Thresholds{
		MaintenanceAlertPct: 140,
		CNNCutoff:           0.62,
		CBOECutoff:          0.50,
	}
	handler := NewHandler(
		st,
		quotes,
		valuation.NewValuator(quotes, 4),
		valuation.NewContextHolder(nil),
		nil, // producer
		nil, // cache
		thresholds,
		"^VIX",
	)
	return SetupRoutes(handler), st
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}

func TestGetRules_ServesSeededDefaults(t *testing.T) {
	router, _ := newTestRouter(t, &fakeQuotes{})

	rec := doJSON(t, router, "GET", "/api/v1/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Rules   []models.Rule `json:"rules"`
		Warning string        `json:"warning"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, store.DefaultRules(), resp.Rules)
	assert.Empty(t, resp.Warning)
}

func TestPutRules_ReplacesWholeTable(t *testing.T) {
	router, _ := newTestRouter(t, &fakeQuotes{})

	edited := []models.Rule{{Threshold: 55, Action: "go all in"}}
	rec := doJSON(t, router, "PUT", "/api/v1/rules", map[string]interface{}{"rules": edited})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "GET", "/api/v1/rules", nil)
	var resp struct {
		Rules []models.Rule `json:"rules"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, edited, resp.Rules)
}

func TestPutPositions_RejectsInvalidRows(t *testing.T) {
	router, _ := newTestRouter(t, &fakeQuotes{})

	rec := doJSON(t, router, "PUT", "/api/v1/positions", map[string]interface{}{
		"positions": []models.Position{{Symbol: "", Quantity: decimal.NewFromInt(1)}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, "PUT", "/api/v1/positions", map[string]interface{}{
		"positions": []models.Position{{Symbol: "0052.TW", Quantity: decimal.NewFromInt(-5)}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAdvisory_RuleTableMatch(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]decimal.Decimal{
		"^VIX": decimal.NewFromFloat(45),
	}}
	router, _ := newTestRouter(t, quotes)

	rec := doJSON(t, router, "GET", "/api/v1/advisory?cnn=0.71&cboe=0.66", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp advisoryResponse
	decodeBody(t, rec, &resp)
	assert.False(t, resp.VIXFetchFailed)
	assert.InDelta(t, 45.0, resp.VIX, 1e-9)
	// 45 clears 40 but not 60; the highest cleared threshold wins.
	require.True(t, resp.RuleAdvisory.Triggered)
	assert.InDelta(t, 40.0, resp.RuleAdvisory.Threshold, 1e-9)
	assert.False(t, resp.SentimentAdvisory.Triggered)
	assert.Equal(t, "no action", resp.SentimentAdvisory.Message)
}

func TestGetAdvisory_CNNTakesPriorityOverCBOE(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]decimal.Decimal{
		"^VIX": decimal.NewFromFloat(12),
	}}
	router, _ := newTestRouter(t, quotes)

	// Both cutoffs crossed; only the CNN advisory may fire.
	rec := doJSON(t, router, "GET", "/api/v1/advisory?cnn=0.50&cboe=0.40", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp advisoryResponse
	decodeBody(t, rec, &resp)
	assert.False(t, resp.RuleAdvisory.Triggered)
	require.True(t, resp.SentimentAdvisory.Triggered)
	assert.Contains(t, resp.SentimentAdvisory.Message, "principal")
}

func TestGetAdvisory_FetchFailureIsNotNoAction(t *testing.T) {
	router, _ := newTestRouter(t, &fakeQuotes{err: quote.ErrNotFound})

	rec := doJSON(t, router, "GET", "/api/v1/advisory", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp advisoryResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.VIXFetchFailed)
	assert.Zero(t, resp.VIX)
	assert.False(t, resp.RuleAdvisory.Triggered)
	assert.Equal(t, "no action", resp.RuleAdvisory.Message)
}

func TestGetAdvisory_FetchFailureStillScansRuleTable(t *testing.T) {
	// The sentinel 0 reading goes through the table: a rule with a
	// threshold at or below zero triggers even when the fetch failed.
	router, _ := newTestRouter(t, &fakeQuotes{err: quote.ErrNotFound})

	rec := doJSON(t, router, "PUT", "/api/v1/rules", map[string]interface{}{
		"rules": []models.Rule{{Threshold: 0, Action: "always hedge"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "GET", "/api/v1/advisory", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp advisoryResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.VIXFetchFailed)
	require.True(t, resp.RuleAdvisory.Triggered)
	assert.Equal(t, "always hedge", resp.RuleAdvisory.Message)
}

func TestGetAdvisory_RejectsBadSentimentParam(t *testing.T) {
	router, _ := newTestRouter(t, &fakeQuotes{})

	rec := doJSON(t, router, "GET", "/api/v1/advisory?cnn=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunValuation_AlertWithShortfall(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]decimal.Decimal{
		"0052.TW": decimal.NewFromInt(100),
	}}
	router, _ := newTestRouter(t, quotes)

	rec := doJSON(t, router, "PUT", "/api/v1/positions", map[string]interface{}{
		"positions": []models.Position{
			{Symbol: "0052.TW", Quantity: decimal.NewFromInt(10)},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "POST", "/api/v1/valuation", map[string]interface{}{
		"loan_amount": "1000",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp valuationResponse
	decodeBody(t, rec, &resp)
	// 1000 / 1000 = 100% < 140%; topping up to 140% needs another 400.
	assert.Equal(t, "alert", resp.Status)
	require.NotNil(t, resp.RatioPct)
	assert.True(t, resp.RatioPct.Equal(decimal.NewFromInt(100)))
	require.NotNil(t, resp.Shortfall)
	assert.True(t, resp.Shortfall.Equal(decimal.NewFromInt(400)))
	assert.True(t, resp.TotalMarketValue.Equal(decimal.NewFromInt(1000)))
}

func TestRunValuation_NoLoanSkipsRatio(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]decimal.Decimal{
		"0052.TW": decimal.NewFromInt(100),
	}}
	router, _ := newTestRouter(t, quotes)

	rec := doJSON(t, router, "POST", "/api/v1/valuation", map[string]interface{}{
		"loan_amount": "0",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp valuationResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "no_loan", resp.Status)
	assert.Nil(t, resp.RatioPct)
	assert.Nil(t, resp.Shortfall)
}

func TestRunValuation_RejectsNegativeLoan(t *testing.T) {
	router, _ := newTestRouter(t, &fakeQuotes{})

	rec := doJSON(t, router, "POST", "/api/v1/valuation", map[string]interface{}{
		"loan_amount": "-1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunValuation_PriceFailureBecomesWarning(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]decimal.Decimal{
		"0052.TW": decimal.NewFromInt(100),
	}}
	router, _ := newTestRouter(t, quotes)

	rec := doJSON(t, router, "PUT", "/api/v1/positions", map[string]interface{}{
		"positions": []models.Position{
			{Symbol: "0052.TW", Quantity: decimal.NewFromInt(5)},
			{Symbol: "NOPE.TW", Quantity: decimal.NewFromInt(5)},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "POST", "/api/v1/valuation", map[string]interface{}{
		"loan_amount": "0",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp valuationResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.TotalMarketValue.Equal(decimal.NewFromInt(500)))
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "NOPE.TW")
}

func TestAddTrade_RejectsUnknownAction(t *testing.T) {
	router, _ := newTestRouter(t, &fakeQuotes{})

	rec := doJSON(t, router, "POST", "/api/v1/trades", models.TradeRecord{
		Symbol: "0052.TW",
		Action: "Short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddTrade_DefaultsDateAndPersists(t *testing.T) {
	router, _ := newTestRouter(t, &fakeQuotes{})

	rec := doJSON(t, router, "POST", "/api/v1/trades", models.TradeRecord{
		Symbol:      "0052.TW",
		Action:      models.ActionBuy,
		TotalAmount: decimal.NewFromInt(50000),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.TradeRecord
	decodeBody(t, rec, &created)
	assert.NotEmpty(t, created.Date)

	rec = doJSON(t, router, "GET", "/api/v1/trades", nil)
	var resp struct {
		Trades []models.TradeRecord `json:"trades"`
	}
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Trades, 1)
	assert.Equal(t, created, resp.Trades[0])
}

func TestPutCapital_ReportsTotalPrincipal(t *testing.T) {
	router, _ := newTestRouter(t, &fakeQuotes{})

	rec := doJSON(t, router, "PUT", "/api/v1/capital", map[string]interface{}{
		"records": []models.CapitalRecord{
			{Date: "2025-01-02", Type: "deposit", Amount: decimal.NewFromInt(300000)},
			{Date: "2025-03-15", Type: "deposit", Amount: decimal.NewFromInt(200000)},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		TotalPrincipal decimal.Decimal `json:"total_principal"`
	}
	decodeBody(t, rec, &resp)
	assert.True(t, resp.TotalPrincipal.Equal(decimal.NewFromInt(500000)))
}

func TestGetPerformance_UsesValuationSnapshotThenManualOverride(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]decimal.Decimal{
		"0052.TW": decimal.NewFromInt(200),
	}}
	router, _ := newTestRouter(t, quotes)

	rec := doJSON(t, router, "PUT", "/api/v1/positions", map[string]interface{}{
		"positions": []models.Position{
			{Symbol: "0052.TW", Quantity: decimal.NewFromInt(10)},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "PUT", "/api/v1/capital", map[string]interface{}{
		"records": []models.CapitalRecord{
			{Date: "2025-01-02", Type: "deposit", Amount: decimal.NewFromInt(1000)},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "POST", "/api/v1/valuation", map[string]interface{}{
		"loan_amount": "500",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "GET", "/api/v1/performance", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp performanceResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "valuation", resp.Source)
	assert.NotNil(t, resp.MarketValueAt)
	assert.True(t, resp.MarketValue.Equal(decimal.NewFromInt(2000)))
	assert.True(t, resp.LoanAmount.Equal(decimal.NewFromInt(500)))
	// (2000 + 0 - 500 - 1000) / 1000
	require.True(t, resp.ROIDefined)
	assert.True(t, resp.ROI.Equal(decimal.NewFromFloat(0.5)), "roi = %s", resp.ROI)

	rec = doJSON(t, router, "GET", "/api/v1/performance?market_value=900&cash=100", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var manual performanceResponse
	decodeBody(t, rec, &manual)
	assert.Equal(t, "manual", manual.Source)
	assert.Nil(t, manual.MarketValueAt)
	assert.True(t, manual.MarketValue.Equal(decimal.NewFromInt(900)))
	assert.True(t, manual.Cash.Equal(decimal.NewFromInt(100)))
	assert.True(t, manual.NetEquity.Equal(decimal.NewFromInt(500)))
}

func TestGetPerformance_ZeroPrincipalLeavesROIUndefined(t *testing.T) {
	router, _ := newTestRouter(t, &fakeQuotes{})

	rec := doJSON(t, router, "GET", "/api/v1/performance", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp performanceResponse
	decodeBody(t, rec, &resp)
	assert.False(t, resp.ROIDefined)
	assert.Nil(t, resp.ROI)
}

func TestHealthCheck_ReportsDegradedPieces(t *testing.T) {
	router, _ := newTestRouter(t, &fakeQuotes{})

	rec := doJSON(t, router, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Services["store"])
	assert.Equal(t, "not configured", resp.Services["redis"])
	assert.Equal(t, "not configured", resp.Services["kafka"])
}

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/khliao/invest-command/internal/metrics"
	"github.com/khliao/invest-command/internal/models"
	"github.com/khliao/invest-command/internal/rules"
	"github.com/khliao/invest-command/internal/store"
	"github.com/khliao/invest-command/internal/valuation"
)

var errInvalidAction = errors.New("trade action must be Buy, Sell or Pledge")

// Sentiment readings are manual inputs; these are the form defaults
// when the operator has not typed anything yet.
const (
	defaultCNNReading  = 0.71
	defaultCBOEReading = 0.66
)

type advisoryResponse struct {
	VIX               float64         `json:"vix"`
	VIXFetchFailed    bool            `json:"vix_fetch_failed"`
	CNN               float64         `json:"cnn"`
	CBOE              float64         `json:"cboe"`
	RuleAdvisory      models.Advisory `json:"rule_advisory"`
	SentimentAdvisory models.Advisory `json:"sentiment_advisory"`
	Warning           string          `json:"warning,omitempty"`
}

// GetAdvisory handles GET /api/v1/advisory. It fetches the volatility
// index, evaluates the rule table and the sentiment cutoffs, and
// returns both advisories. A failed VIX fetch is reported as its own
// flag: "fetch failed" and "no action" are different answers.
func (h *Handler) GetAdvisory(w http.ResponseWriter, r *http.Request) {
	cnn, err := queryFloat(r, "cnn", defaultCNNReading)
	if err != nil {
		http.Error(w, "invalid cnn parameter", http.StatusBadRequest)
		return
	}
	cboe, err := queryFloat(r, "cboe", defaultCBOEReading)
	if err != nil {
		http.Error(w, "invalid cboe parameter", http.StatusBadRequest)
		return
	}

	resp := advisoryResponse{CNN: cnn, CBOE: cboe}

	table, err := h.store.LoadRules()
	if err != nil {
		log.Printf("Error loading rules for advisory, using defaults: %v", err)
		table = store.DefaultRules()
		resp.Warning = "persistence unavailable, evaluated default rules: " + err.Error()
	}

	vix := 0.0
	if price, err := h.quotes.LastClose(r.Context(), h.vixSymbol); err != nil {
		// Degrade: sentinel 0, flag set, no fabricated reading.
		log.Printf("Error fetching %s: %v", h.vixSymbol, err)
		resp.VIXFetchFailed = true
	} else {
		vix, _ = price.Float64()
		resp.VIX = vix
	}

	// A failed fetch still scans the table with the sentinel 0, so a rule
	// with a threshold at or below zero keeps working; the flag tells the
	// operator the reading is not real.
	resp.RuleAdvisory = models.Advisory{Message: "no action"}
	if matched := rules.Evaluate(vix, table); matched != nil {
		resp.RuleAdvisory = models.Advisory{
			Triggered: true,
			Threshold: matched.Threshold,
			Message:   matched.Action,
		}
	}

	resp.SentimentAdvisory = rules.EvaluateSentiment(cnn, cboe, h.thresholds)

	switch {
	case resp.RuleAdvisory.Triggered:
		metrics.AdvisoryEvaluations.WithLabelValues("rule").Inc()
	case resp.SentimentAdvisory.Triggered:
		metrics.AdvisoryEvaluations.WithLabelValues("sentiment").Inc()
	default:
		metrics.AdvisoryEvaluations.WithLabelValues("none").Inc()
	}

	if h.producer != nil && (resp.RuleAdvisory.Triggered || resp.SentimentAdvisory.Triggered) {
		triggered := resp.RuleAdvisory
		if !triggered.Triggered {
			triggered = resp.SentimentAdvisory
		}
		if err := h.producer.PublishAdvisoryTriggered(r.Context(), &triggered); err != nil {
			log.Printf("Error publishing advisory event: %v", err)
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

type valuationResponse struct {
	TotalMarketValue  decimal.Decimal    `json:"total_market_value"`
	Details           []valuation.Detail `json:"details"`
	Warnings          []string           `json:"warnings,omitempty"`
	LoanAmount        decimal.Decimal    `json:"loan_amount"`
	RatioPct          *decimal.Decimal   `json:"ratio_pct,omitempty"`
	Status            string             `json:"status"`
	Shortfall         *decimal.Decimal   `json:"shortfall,omitempty"`
	AlertThresholdPct float64            `json:"alert_threshold_pct"`
	AsOf              time.Time          `json:"as_of"`
}

// RunValuation handles POST /api/v1/valuation. It prices the stored
// portfolio, derives the maintenance ratio against the submitted loan
// balance, and records the snapshot for the performance endpoint.
func (h *Handler) RunValuation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LoanAmount decimal.Decimal `json:"loan_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.LoanAmount.Sign() < 0 {
		http.Error(w, "loan_amount must not be negative", http.StatusBadRequest)
		return
	}

	positions, err := h.store.LoadPositions()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	started := time.Now()
	result, err := h.valuator.Value(r.Context(), positions)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.ValuationDuration.Observe(time.Since(started).Seconds())

	resp := valuationResponse{
		TotalMarketValue:  result.Total,
		Details:           result.Details,
		Warnings:          result.Warnings,
		LoanAmount:        req.LoanAmount,
		AlertThresholdPct: h.thresholds.MaintenanceAlertPct,
		AsOf:              time.Now().UTC(),
	}

	snap := &valuation.Context{
		TotalMarketValue: result.Total,
		LoanAmount:       req.LoanAmount,
		AsOf:             resp.AsOf,
	}

	ratio, defined := valuation.MaintenanceRatio(result.Total, req.LoanAmount)
	if !defined {
		// Never divide by a zero loan; render "no loan" instead.
		resp.Status = "no_loan"
	} else {
		resp.RatioPct = &ratio
		snap.RatioPct = ratio
		snap.RatioDefined = true
		if valuation.BelowAlert(ratio, h.thresholds.MaintenanceAlertPct) {
			resp.Status = "alert"
			shortfall := valuation.Shortfall(result.Total, req.LoanAmount, h.thresholds.MaintenanceAlertPct)
			resp.Shortfall = &shortfall
		} else {
			resp.Status = "safe"
		}
	}

	h.holder.Set(r.Context(), snap)

	if h.producer != nil {
		if err := h.producer.PublishValuationCompleted(r.Context(), snap); err != nil {
			log.Printf("Error publishing valuation event: %v", err)
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

type performanceResponse struct {
	MarketValue   decimal.Decimal  `json:"market_value"`
	Cash          decimal.Decimal  `json:"cash"`
	LoanAmount    decimal.Decimal  `json:"loan_amount"`
	Principal     decimal.Decimal  `json:"principal"`
	NetTradeFlow  decimal.Decimal  `json:"net_trade_flow"`
	NetEquity     decimal.Decimal  `json:"net_equity"`
	Profit        decimal.Decimal  `json:"profit"`
	ROI           *decimal.Decimal `json:"roi,omitempty"`
	ROIDefined    bool             `json:"roi_defined"`
	MarketValueAt *time.Time       `json:"market_value_as_of,omitempty"`
	Source        string           `json:"market_value_source"`
}

// GetPerformance handles GET /api/v1/performance. Market value and
// loan come from the last valuation snapshot; market_value and cash
// query parameters allow the manual entry the dashboard's performance
// tab always supported.
func (h *Handler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	trades, err := h.store.LoadTrades()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	capitalLog, err := h.store.LoadCapital()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := performanceResponse{
		Principal:    valuation.CumulativePrincipal(capitalLog),
		NetTradeFlow: valuation.NetTradeFlow(trades),
		Source:       "none",
	}

	if snap := h.holder.Get(r.Context()); snap != nil {
		resp.MarketValue = snap.TotalMarketValue
		resp.LoanAmount = snap.LoanAmount
		asOf := snap.AsOf
		resp.MarketValueAt = &asOf
		resp.Source = "valuation"
	}

	if v, ok, err := queryDecimal(r, "market_value"); err != nil {
		http.Error(w, "invalid market_value parameter", http.StatusBadRequest)
		return
	} else if ok {
		resp.MarketValue = v
		resp.MarketValueAt = nil
		resp.Source = "manual"
	}

	if v, ok, err := queryDecimal(r, "cash"); err != nil {
		http.Error(w, "invalid cash parameter", http.StatusBadRequest)
		return
	} else if ok {
		resp.Cash = v
	}

	resp.NetEquity = valuation.NetEquity(resp.MarketValue, resp.Cash, resp.LoanAmount)
	resp.Profit = resp.NetEquity.Sub(resp.Principal)

	if roi, ok := valuation.ROI(resp.MarketValue, resp.NetTradeFlow, resp.LoanAmount, resp.Principal); ok {
		resp.ROI = &roi
		resp.ROIDefined = true
	}

	respondJSON(w, http.StatusOK, resp)
}

func queryFloat(r *http.Request, name string, defaultValue float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func queryDecimal(r *http.Request, name string) (decimal.Decimal, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return decimal.Zero, false, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, err
	}
	return v, true, nil
}

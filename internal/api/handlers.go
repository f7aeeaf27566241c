package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/khliao/invest-command/internal/config"
	"github.com/khliao/invest-command/internal/kafka"
	"github.com/khliao/invest-command/internal/models"
	"github.com/khliao/invest-command/internal/store"
	"github.com/khliao/invest-command/internal/valuation"
)

// CachePinger is the optional cache health probe.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store      store.Store
	quotes     valuation.QuoteSource
	valuator   *valuation.Valuator
	holder     *valuation.ContextHolder
	producer   *kafka.Producer
	cache      CachePinger
	thresholds config.Thresholds
	vixSymbol  string
}

// NewHandler creates a new Handler. producer and cache may be nil; the
// service degrades rather than refusing to start.
func NewHandler(
	st store.Store,
	quotes valuation.QuoteSource,
	valuator *valuation.Valuator,
	holder *valuation.ContextHolder,
	producer *kafka.Producer,
	cache CachePinger,
	thresholds config.Thresholds,
	vixSymbol string,
) *Handler {
	return &Handler{
		store:      st,
		quotes:     quotes,
		valuator:   valuator,
		holder:     holder,
		producer:   producer,
		cache:      cache,
		thresholds: thresholds,
		vixSymbol:  vixSymbol,
	}
}

// GetRules handles GET /api/v1/rules
func (h *Handler) GetRules(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Rules   []models.Rule `json:"rules"`
		Warning string        `json:"warning,omitempty"`
	}{}

	rules, err := h.store.LoadRules()
	if err != nil {
		// Keep the session usable on a dead backend: serve the seeded
		// defaults and say so.
		log.Printf("Error loading rules, falling back to defaults: %v", err)
		resp.Rules = store.DefaultRules()
		resp.Warning = "persistence unavailable, showing default rules: " + err.Error()
	} else {
		resp.Rules = rules
	}

	respondJSON(w, http.StatusOK, resp)
}

// PutRules handles PUT /api/v1/rules
func (h *Handler) PutRules(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rules []models.Rule `json:"rules"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.SaveRules(req.Rules); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"rules": req.Rules})
}

// GetPositions handles GET /api/v1/positions
func (h *Handler) GetPositions(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Positions []models.Position `json:"positions"`
		Warning   string            `json:"warning,omitempty"`
	}{}

	positions, err := h.store.LoadPositions()
	if err != nil {
		log.Printf("Error loading positions, falling back to defaults: %v", err)
		resp.Positions = store.DefaultPositions()
		resp.Warning = "persistence unavailable, showing default portfolio: " + err.Error()
	} else {
		resp.Positions = positions
	}

	respondJSON(w, http.StatusOK, resp)
}

// PutPositions handles PUT /api/v1/positions
func (h *Handler) PutPositions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Positions []models.Position `json:"positions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	for _, p := range req.Positions {
		if p.Symbol == "" {
			http.Error(w, "position symbol is required", http.StatusBadRequest)
			return
		}
		if p.Quantity.Sign() < 0 {
			http.Error(w, "position quantity must not be negative: "+p.Symbol, http.StatusBadRequest)
			return
		}
	}

	if err := h.store.SavePositions(req.Positions); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"positions": req.Positions})
}

// GetTrades handles GET /api/v1/trades
func (h *Handler) GetTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.store.LoadTrades()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"trades": trades})
}

// AddTrade handles POST /api/v1/trades
func (h *Handler) AddTrade(w http.ResponseWriter, r *http.Request) {
	var trade models.TradeRecord
	if err := json.NewDecoder(r.Body).Decode(&trade); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validateTrade(&trade); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.AppendTrade(trade); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, trade)
}

// PutTrades handles PUT /api/v1/trades (edited copy replaces the log)
func (h *Handler) PutTrades(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Trades []models.TradeRecord `json:"trades"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	for i := range req.Trades {
		if err := validateTrade(&req.Trades[i]); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := h.store.SaveTrades(req.Trades); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"trades": req.Trades})
}

func validateTrade(t *models.TradeRecord) error {
	switch t.Action {
	case models.ActionBuy, models.ActionSell, models.ActionPledge:
	default:
		return errInvalidAction
	}
	if t.Date == "" {
		t.Date = time.Now().Format("2006-01-02")
	}
	return nil
}

// GetCapital handles GET /api/v1/capital
func (h *Handler) GetCapital(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.LoadCapital()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"records":         records,
		"total_principal": valuation.CumulativePrincipal(records),
	})
}

// PutCapital handles PUT /api/v1/capital
func (h *Handler) PutCapital(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Records []models.CapitalRecord `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.SaveCapital(req.Records); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"records":         req.Records,
		"total_principal": valuation.CumulativePrincipal(req.Records),
	})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  map[string]string{},
	}
	services := health["services"].(map[string]string)
	allHealthy := true

	// Check table store
	if h.store != nil {
		if err := h.store.Ping(); err != nil {
			services["store"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			services["store"] = "healthy"
		}
	} else {
		services["store"] = "not configured"
		allHealthy = false
	}

	// Check cache
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "not configured"
	}

	// Check Kafka producer
	if h.producer != nil {
		services["kafka"] = "configured"
	} else {
		services["kafka"] = "not configured"
	}

	if !allHealthy {
		health["status"] = "degraded"
	}

	respondJSON(w, http.StatusOK, health)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

package valuation

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Context is the snapshot the valuation step hands to the performance
// step. Carrying it explicitly, timestamp included, keeps staleness
// visible: the ROI display shows "as of" instead of silently reusing
// data of arbitrary age.
type Context struct {
	TotalMarketValue decimal.Decimal `json:"total_market_value"`
	LoanAmount       decimal.Decimal `json:"loan_amount"`
	RatioPct         decimal.Decimal `json:"ratio_pct"`
	RatioDefined     bool            `json:"ratio_defined"`
	AsOf             time.Time       `json:"as_of"`
}

// ContextMirror persists the latest snapshot outside the process, so a
// restart does not lose the "as of" figure. Mirror failures are not
// fatal; the in-memory copy stays authoritative.
type ContextMirror interface {
	SaveValuationContext(ctx context.Context, snap *Context) error
	LoadValuationContext(ctx context.Context) (*Context, error)
}

// ContextHolder keeps the latest valuation snapshot for one operator
// session. Last write wins.
type ContextHolder struct {
	mu     sync.RWMutex
	latest *Context
	mirror ContextMirror
}

// NewContextHolder creates a holder. mirror may be nil.
func NewContextHolder(mirror ContextMirror) *ContextHolder {
	return &ContextHolder{mirror: mirror}
}

// Set stores the snapshot and best-effort mirrors it.
func (h *ContextHolder) Set(ctx context.Context, snap *Context) {
	h.mu.Lock()
	h.latest = snap
	h.mu.Unlock()

	if h.mirror != nil && snap != nil {
		_ = h.mirror.SaveValuationContext(ctx, snap)
	}
}

// Get returns the latest snapshot, falling back to the mirror when the
// process has not run a valuation yet. Returns nil when none exists.
func (h *ContextHolder) Get(ctx context.Context) *Context {
	h.mu.RLock()
	snap := h.latest
	h.mu.RUnlock()
	if snap != nil {
		return snap
	}

	if h.mirror != nil {
		if restored, err := h.mirror.LoadValuationContext(ctx); err == nil && restored != nil {
			h.mu.Lock()
			if h.latest == nil {
				h.latest = restored
			}
			snap = h.latest
			h.mu.Unlock()
			return snap
		}
	}
	return nil
}

package rules

import (
	"fmt"
	"sort"

	"github.com/khliao/invest-command/internal/config"
	"github.com/khliao/invest-command/internal/models"
)

// Evaluate scans the rule table against a volatility reading and returns
// the matched rule, or nil when no rule triggers.
//
// Rules are stable-sorted by threshold descending and the first rule whose
// threshold <= signal wins, i.e. the triggered rule with the greatest
// threshold. When two rules share a threshold the one earlier in the table
// wins; that tie-break is implementation-defined and operators should not
// rely on it.
//
// Evaluate never fetches anything: if the volatility quote failed, the
// caller must surface that failure itself rather than pass a made-up
// signal and report "no action".
func Evaluate(signal float64, table []models.Rule) *models.Rule {
	sorted := make([]models.Rule, len(table))
	copy(sorted, table)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Threshold > sorted[j].Threshold
	})

	for i := range sorted {
		if signal >= sorted[i].Threshold {
			return &sorted[i]
		}
	}
	return nil
}

// EvaluateSentiment applies the two fixed put/call cutoffs in strict
// priority order: the CNN reading is checked first and, when triggered,
// the CBOE branch is never evaluated. The priority is a business rule,
// not an ordering derived from the cutoff values.
func EvaluateSentiment(cnn, cboe float64, t config.Thresholds) models.Advisory {
	if cnn <= t.CNNCutoff {
		return models.Advisory{
			Triggered: true,
			Threshold: t.CNNCutoff,
			Message:   fmt.Sprintf("CNN P/C at %.2f: reduce principal by 10%% or clear pledged positions", cnn),
		}
	}
	if cboe <= t.CBOECutoff {
		return models.Advisory{
			Triggered: true,
			Threshold: t.CBOECutoff,
			Message:   fmt.Sprintf("CBOE P/C at %.2f: reduce today's market value by 5%%", cboe),
		}
	}
	return models.Advisory{Message: "no action"}
}

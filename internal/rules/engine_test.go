package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khliao/invest-command/internal/config"
	"github.com/khliao/invest-command/internal/models"
)

func defaultThresholds() config.Thresholds {
	return config.Thresholds{
		MaintenanceAlertPct: 140,
		CNNCutoff:           0.62,
		CBOECutoff:          0.50,
	}
}

func TestEvaluate_PicksGreatestTriggeredThreshold(t *testing.T) {
	table := []models.Rule{
		{Threshold: 20, Action: "A"},
		{Threshold: 30, Action: "B"},
		{Threshold: 40, Action: "C"},
	}

	got := Evaluate(35, table)
	require.NotNil(t, got)
	assert.Equal(t, "B", got.Action)
	assert.Equal(t, 30.0, got.Threshold)
}

func TestEvaluate_NoRuleTriggers(t *testing.T) {
	table := []models.Rule{
		{Threshold: 30, Action: "B"},
		{Threshold: 40, Action: "C"},
	}

	assert.Nil(t, Evaluate(12.5, table))
}

func TestEvaluate_SignalEqualsThreshold(t *testing.T) {
	table := []models.Rule{
		{Threshold: 30, Action: "B"},
		{Threshold: 40, Action: "C"},
	}

	got := Evaluate(40, table)
	require.NotNil(t, got)
	assert.Equal(t, "C", got.Action)
}

func TestEvaluate_EmptyTable(t *testing.T) {
	assert.Nil(t, Evaluate(99, nil))
	assert.Nil(t, Evaluate(99, []models.Rule{}))
}

func TestEvaluate_UnsortedTable(t *testing.T) {
	table := []models.Rule{
		{Threshold: 60, Action: "all-in QLD"},
		{Threshold: 30, Action: "buy QQQ"},
		{Threshold: 40, Action: "buy 9815"},
	}

	got := Evaluate(45, table)
	require.NotNil(t, got)
	assert.Equal(t, "buy 9815", got.Action)
}

func TestEvaluate_DuplicateThresholds_SourceOrderWins(t *testing.T) {
	table := []models.Rule{
		{Threshold: 30, Action: "first"},
		{Threshold: 30, Action: "second"},
	}

	got := Evaluate(31, table)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Action)
}

func TestEvaluate_DoesNotMutateInput(t *testing.T) {
	table := []models.Rule{
		{Threshold: 20, Action: "A"},
		{Threshold: 60, Action: "C"},
	}

	Evaluate(70, table)
	assert.Equal(t, 20.0, table[0].Threshold)
	assert.Equal(t, 60.0, table[1].Threshold)
}

func TestEvaluateSentiment_CNNTakesPriority(t *testing.T) {
	// cboe would also trigger, but cnn is checked first and short-circuits.
	adv := EvaluateSentiment(0.5, 0.9, defaultThresholds())
	assert.True(t, adv.Triggered)
	assert.Contains(t, adv.Message, "reduce principal by 10%")
	assert.NotContains(t, adv.Message, "market value")
}

func TestEvaluateSentiment_CNNPriorityEvenWhenCBOEExtreme(t *testing.T) {
	adv := EvaluateSentiment(0.5, 0.01, defaultThresholds())
	assert.Contains(t, adv.Message, "reduce principal by 10%")
}

func TestEvaluateSentiment_CBOEBranch(t *testing.T) {
	adv := EvaluateSentiment(0.71, 0.45, defaultThresholds())
	assert.True(t, adv.Triggered)
	assert.Contains(t, adv.Message, "reduce today's market value by 5%")
}

func TestEvaluateSentiment_NoAction(t *testing.T) {
	adv := EvaluateSentiment(0.71, 0.66, defaultThresholds())
	assert.False(t, adv.Triggered)
	assert.Equal(t, "no action", adv.Message)
}

func TestEvaluateSentiment_BoundaryValuesTrigger(t *testing.T) {
	adv := EvaluateSentiment(0.62, 0.9, defaultThresholds())
	assert.True(t, adv.Triggered)

	adv = EvaluateSentiment(0.9, 0.50, defaultThresholds())
	assert.True(t, adv.Triggered)
	assert.Contains(t, adv.Message, "market value")
}

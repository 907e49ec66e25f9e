package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalRecord(id string, decision Decision, top, runnerUp float64, leader string) *CurationRecord {
	r := &CurationRecord{
		EntityID:      id,
		Decision:      decision,
		MatchScore:    top,
		RunnerUpScore: runnerUp,
		RankedAliases: []RankedAlias{{Text: leader, CanonicalizedText: leader, Score: top}},
	}
	if decision != DecisionNeedApproval {
		r.FinalCanonicalName = stringPtr(leader)
	}
	return r
}

func TestCalculateMetrics(t *testing.T) {
	m := CalculateMetrics(ConfusionMatrix{TruePositive: 8, FalsePositive: 2, FalseNegative: 2, TrueNegative: 8})

	assert.InDelta(t, 0.8, m.Precision, 1e-9)
	assert.InDelta(t, 0.8, m.Recall, 1e-9)
	assert.InDelta(t, 0.8, m.F1Score, 1e-9)
	assert.InDelta(t, 0.8, m.Accuracy, 1e-9)
	assert.InDelta(t, 0.2, m.FalsePositiveRate, 1e-9)
}

func TestCalculateMetrics_Empty(t *testing.T) {
	m := CalculateMetrics(ConfusionMatrix{})
	assert.Zero(t, m.Precision)
	assert.Zero(t, m.Recall)
	assert.Zero(t, m.F1Score)
	assert.Zero(t, m.Accuracy)
}

func TestEvaluator_Evaluate(t *testing.T) {
	reference := []SeedRow{
		{EntityID: "SKU1", CanonicalName: "Wireless Keyboard"},
		{EntityID: "SKU2", CanonicalName: "USB Hub"},
		{EntityID: "SKU3", CanonicalName: "USB-C Cable"},
		{EntityID: "SKU4", CanonicalName: "Laptop Stand"},
	}
	records := []*CurationRecord{
		evalRecord("SKU1", DecisionAuto, 100, 60, "wireless  keyboard"), // TP
		evalRecord("SKU2", DecisionAuto, 100, 50, "USB Hubb"),           // FP
		evalRecord("SKU3", DecisionNeedApproval, 90, 90, "USB-C Cable"), // FN
		evalRecord("SKU4", DecisionNeedApproval, 70, 60, "Laptop"),      // TN
		evalRecord("SKU9", DecisionAuto, 100, 0, "Mouse"),               // нет эталона
	}

	m := NewEvaluator(reference).Evaluate(records)
	assert.Equal(t, ConfusionMatrix{TruePositive: 1, FalsePositive: 1, FalseNegative: 1, TrueNegative: 1}, m.ConfusionMatrix)
	assert.Equal(t, 4, m.Evaluated)
	assert.Equal(t, 1, m.Unmatched)
	assert.InDelta(t, 0.5, m.Precision, 1e-9)
	assert.Contains(t, m.String(), "TP: 1")
}

func TestEvaluator_ApprovedCountsAsPositive(t *testing.T) {
	reference := []SeedRow{{EntityID: "SKU1", CanonicalName: "USB-C Cable"}}
	record := evalRecord("SKU1", DecisionApproved, 90, 90, "usb c cable")
	record.FinalCanonicalName = stringPtr("USB-C Cable")

	m := NewEvaluator(reference).Evaluate([]*CurationRecord{record})
	assert.Equal(t, 1, m.ConfusionMatrix.TruePositive)
}

func TestEvaluator_EvaluateWithThresholds(t *testing.T) {
	reference := []SeedRow{
		{EntityID: "SKU1", CanonicalName: "Wireless Keyboard"},
		{EntityID: "SKU2", CanonicalName: "USB Hub"},
	}
	records := []*CurationRecord{
		evalRecord("SKU1", DecisionAuto, 100, 60, "Wireless Keyboard"),
		evalRecord("SKU2", DecisionNeedApproval, 75, 40, "USB Hub"),
	}

	results := NewEvaluator(reference).EvaluateWithThresholds(records, []float64{70, 80, 100})
	require.Len(t, results, 3)

	// 75 > 70: обе сущности проходят автоматически
	assert.Equal(t, 2, results[0].Metrics.ConfusionMatrix.TruePositive)
	// 75 <= 80: вторая уходит на проверку при верном лидере
	assert.Equal(t, 1, results[1].Metrics.ConfusionMatrix.TruePositive)
	assert.Equal(t, 1, results[1].Metrics.ConfusionMatrix.FalseNegative)
	// порог строгий: 100 > 100 ложно
	assert.Equal(t, 0, results[2].Metrics.ConfusionMatrix.TruePositive)
	assert.Equal(t, 2, results[2].Metrics.ConfusionMatrix.FalseNegative)
}

package aggregate

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwerk/planwerk/confidence"
	"github.com/planwerk/planwerk/coordination"
	"github.com/planwerk/planwerk/model"
)

func finding(id string, trade model.Trade, severity model.Severity, norm, doc string, conf float64) model.Finding {
	return model.Finding{
		ID:          id,
		Trade:       trade,
		Category:    model.CategoryTechnical,
		Severity:    severity,
		Title:       "Finding " + id,
		NormRef:     norm,
		DocumentRef: doc,
		Confidence:  conf,
	}
}

func TestAggregateDeduplicates(t *testing.T) {
	a := New(confidence.Default())

	// Two metadata extractions of the same plan trip the same rule: same
	// rule, trade, norm and document reference.
	batches := []Batch{
		{Source: "expert.kg420_heating", Findings: []model.Finding{
			finding("r1/d1", model.TradeHeating, model.SeverityMedium, "DIN EN 12831-1", "plan.pdf", 0.8),
		}},
		{Source: "expert.kg420_heating", Findings: []model.Finding{
			finding("r1/d2", model.TradeHeating, model.SeverityHigh, "DIN EN 12831-1", "plan.pdf", 0.7),
		}},
	}

	result := a.Aggregate(batches)
	require.Len(t, result.Findings, 1)

	f := result.Findings[0]
	// Severity never drops on merge.
	assert.Equal(t, model.SeverityHigh, f.Severity)
	// Higher confidence of the pair plus the corroboration bonus.
	assert.InDelta(t, 0.85, f.Confidence, 1e-9)
}

func TestAggregateBonusCapped(t *testing.T) {
	a := New(confidence.Default())

	batches := []Batch{
		{Findings: []model.Finding{
			finding("r1/d1", model.TradeHeating, model.SeverityMedium, "N", "d", 0.98),
			finding("r1/d2", model.TradeHeating, model.SeverityMedium, "N", "d", 0.97),
		}},
	}

	result := a.Aggregate(batches)
	require.Len(t, result.Findings, 1)
	assert.LessOrEqual(t, result.Findings[0].Confidence, 1.0)
}

func TestAggregateKeepsDistinctFindings(t *testing.T) {
	a := New(confidence.Default())

	batches := []Batch{
		{Findings: []model.Finding{
			finding("r1/d1", model.TradeHeating, model.SeverityMedium, "DIN EN 12831-1", "plan.pdf", 0.8),
			finding("r1/d2", model.TradeHeating, model.SeverityMedium, "DIN EN 12831-1", "other.pdf", 0.8),
			finding("r3/d1", model.TradeVentilation, model.SeverityMedium, "VDI 6022", "rlt.pdf", 0.8),
		}},
	}

	result := a.Aggregate(batches)
	assert.Len(t, result.Findings, 3)
}

func TestAggregateKeepsDistinctRulesCitingSameNorm(t *testing.T) {
	a := New(confidence.Default())

	// Different rules can cite the same norm on the same document. They
	// report different conditions and must both survive.
	batches := []Batch{
		{Source: "expert.kg430_ventilation", Findings: []model.Finding{
			finding("kg430-air-change-min/d1", model.TradeVentilation, model.SeverityMedium, "DIN EN 16798-1", "rlt.pdf", 0.8),
			finding("kg430-co2/d1", model.TradeVentilation, model.SeverityMedium, "DIN EN 16798-1", "rlt.pdf", 0.7),
		}},
	}

	result := a.Aggregate(batches)
	require.Len(t, result.Findings, 2)
	assert.InDelta(t, 0.8, result.Findings[0].Confidence, 1e-9)
	assert.InDelta(t, 0.7, result.Findings[1].Confidence, 1e-9)
}

func TestAggregateKeepsInsufficientDataFindings(t *testing.T) {
	a := New(confidence.Default())

	// A heating-only document set leaves every cross-trade rule without a
	// required counterpart. Each rule explains its own skip; none of the
	// explanations may be merged away, and none gets a corroboration
	// bonus.
	c := coordination.New(coordination.NewRegistry(coordination.DefaultRules()...))
	docs := map[model.Trade][]model.DocumentMetadata{
		model.TradeHeating: {{ID: "h1", DocumentRef: "heizung.pdf", Trade: model.TradeHeating, Values: map[string]any{}}},
	}
	skipped := c.Evaluate(model.Project{ID: "p1", BuildingType: model.BuildingOffice, Phase: 3}, docs)
	require.Len(t, skipped, len(coordination.DefaultRules()))

	result := a.Aggregate([]Batch{{Source: coordination.Source, Findings: skipped}})
	require.Len(t, result.Findings, len(skipped))
	for _, f := range result.Findings {
		assert.Equal(t, model.SeverityLow, f.Severity)
		assert.InDelta(t, confidence.Default().InsufficientData, f.Confidence, 1e-9)
	}
}

func TestAggregateOrderIndependent(t *testing.T) {
	a := New(confidence.Default())

	batches := []Batch{
		{Source: "expert.kg420_heating", Findings: []model.Finding{
			finding("r1/d1", model.TradeHeating, model.SeverityMedium, "DIN EN 12831-1", "plan.pdf", 0.8),
			finding("r2/d1", model.TradeHeating, model.SeverityLow, "DVGW W 551", "plan.pdf", 0.6),
		}},
		{Source: "expert.kg430_ventilation", Findings: []model.Finding{
			finding("r3/d2", model.TradeVentilation, model.SeverityHigh, "VDI 6022", "rlt.pdf", 0.9),
		}},
		{Source: "coordinator", Findings: []model.Finding{
			finding("c1", model.TradeCoordination, model.SeverityHigh, "DIN 18015-1", "", 0.9),
		}},
	}

	want := a.Aggregate(batches)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := make([]Batch, len(batches))
		copy(shuffled, batches)
		rng.Shuffle(len(shuffled), func(x, y int) { shuffled[x], shuffled[y] = shuffled[y], shuffled[x] })

		got := a.Aggregate(shuffled)
		if !reflect.DeepEqual(want.Findings, got.Findings) {
			t.Fatalf("aggregation depends on batch order:\nwant %+v\ngot  %+v", want.Findings, got.Findings)
		}
	}
}

func TestAggregateSortsBySeverityThenTrade(t *testing.T) {
	a := New(confidence.Default())

	batches := []Batch{
		{Findings: []model.Finding{
			finding("r1/d1", model.TradeVentilation, model.SeverityMedium, "A", "d1", 0.8),
			finding("r2/d1", model.TradeHeating, model.SeverityHigh, "B", "d1", 0.8),
			finding("c1", model.TradeCoordination, model.SeverityHigh, "C", "", 0.8),
			finding("r3/d1", model.TradeSanitary, model.SeverityLow, "D", "d1", 0.8),
		}},
	}

	result := a.Aggregate(batches)
	require.Len(t, result.Findings, 4)

	// High first; within high, single-trade codes before coordination.
	assert.Equal(t, "r2/d1", result.Findings[0].ID)
	assert.Equal(t, "c1", result.Findings[1].ID)
	assert.Equal(t, "r1/d1", result.Findings[2].ID)
	assert.Equal(t, "r3/d1", result.Findings[3].ID)
}

func TestAggregatePartialFailure(t *testing.T) {
	a := New(confidence.Default())

	batches := []Batch{
		{Source: "expert.kg420_heating", Findings: []model.Finding{
			finding("r1/d1", model.TradeHeating, model.SeverityMedium, "N", "d1", 0.8),
		}},
		{Source: "expert.kg430_ventilation", Err: errors.New("context deadline exceeded")},
	}

	result := a.Aggregate(batches)
	assert.Len(t, result.Findings, 1)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, "expert.kg430_ventilation", result.Diagnostics[0].Source)
	assert.Contains(t, result.Diagnostics[0].Reason, "deadline")
}

func TestAggregateSummary(t *testing.T) {
	a := New(confidence.Default())

	batches := []Batch{
		{Findings: []model.Finding{
			finding("r1/d1", model.TradeHeating, model.SeverityHigh, "A", "d1", 0.8),
			finding("r2/d1", model.TradeHeating, model.SeverityMedium, "B", "d1", 0.8),
			finding("r3/d2", model.TradeVentilation, model.SeverityMedium, "C", "d2", 0.8),
		}},
	}

	result := a.Aggregate(batches)
	assert.Equal(t, 3, result.Summary.Total)
	assert.Equal(t, 1, result.Summary.BySeverity[model.SeverityHigh])
	assert.Equal(t, 2, result.Summary.BySeverity[model.SeverityMedium])
	assert.Equal(t, 2, result.Summary.ByTrade[model.TradeHeating])
	assert.Equal(t, 1, result.Summary.ByTrade[model.TradeVentilation])
}

func TestAggregateFillsBatchSource(t *testing.T) {
	a := New(confidence.Default())

	f := finding("r1/d1", model.TradeHeating, model.SeverityMedium, "N", "d1", 0.8)
	f.Source = ""
	result := a.Aggregate([]Batch{{Source: "expert.kg420_heating", Findings: []model.Finding{f}}})

	require.Len(t, result.Findings, 1)
	assert.Equal(t, "expert.kg420_heating", result.Findings[0].Source)
}

func TestAggregateEmpty(t *testing.T) {
	a := New(confidence.Default())

	result := a.Aggregate(nil)
	assert.Empty(t, result.Findings)
	assert.Equal(t, 0, result.Summary.Total)
	assert.Empty(t, result.Diagnostics)
}

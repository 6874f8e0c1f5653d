package evaluator

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwerk/planwerk/confidence"
	"github.com/planwerk/planwerk/model"
	"github.com/planwerk/planwerk/rules"
)

func heatingLoadRule() rules.RuleDefinition {
	return rules.RuleDefinition{
		ID:             "kg420-specific-load",
		Trade:          model.TradeHeating,
		Category:       model.CategoryTechnical,
		Severity:       model.SeverityMedium,
		Title:          "Specific heating load above limit",
		Description:    "Specific load {value} W/m² exceeds the limit of {limit} W/m².",
		Recommendation: "Review the heat load calculation.",
		NormRef:        "DIN EN 12831-1",
		BaseConfidence: 0.85,
		When: []rules.Condition{{
			Field:     "heating_load_w",
			DividedBy: "area_m2",
			Op:        rules.OpGreater,
			Value:     100,
			Limits: map[model.BuildingType]float64{
				model.BuildingOffice: 120,
			},
		}},
	}
}

func balancingRule() rules.RuleDefinition {
	return rules.RuleDefinition{
		ID:             "kg420-balancing",
		Trade:          model.TradeHeating,
		Category:       model.CategoryTechnical,
		Severity:       model.SeverityMedium,
		Title:          "Hydraulic balancing not documented",
		Description:    "No hydraulic balancing is documented for the heating system.",
		BaseConfidence: 0.9,
		When:           []rules.Condition{{Field: "hydraulic_balancing", Op: rules.OpFlag}},
	}
}

func TestEvaluateViolation(t *testing.T) {
	e := New()
	meta := model.DocumentMetadata{
		ID:          "d1",
		DocumentRef: "heizlast.pdf",
		Trade:       model.TradeHeating,
		Values: map[string]any{
			"heating_load_w":      70000.0, // 140 W/m² over 500 m²
			"area_m2":             500.0,
			"hydraulic_balancing": true,
		},
	}

	findings := e.Evaluate(meta, model.BuildingOffice, 3, []rules.RuleDefinition{heatingLoadRule(), balancingRule()})
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, "kg420-specific-load/d1", f.ID)
	assert.Equal(t, model.TradeHeating, f.Trade)
	assert.Equal(t, model.SeverityMedium, f.Severity)
	assert.Equal(t, "heizlast.pdf", f.DocumentRef)
	assert.Equal(t, "DIN EN 12831-1", f.NormRef)
	assert.Equal(t, "expert.kg420_heating", f.Source)
	assert.Contains(t, f.Description, "140")
	assert.Contains(t, f.Description, "120")
	// All required fields present: confidence equals the base.
	assert.InDelta(t, 0.85, f.Confidence, 1e-9)
}

func TestEvaluateOfficeLoadLimit(t *testing.T) {
	def := rules.RuleDefinition{
		ID:             "kg420-office-specific-load",
		Trade:          model.TradeHeating,
		Category:       model.CategoryTechnical,
		Severity:       model.SeverityHigh,
		Title:          "Office specific heating load above limit",
		Description:    "The specific load of {value} W/m² exceeds the office limit of {limit} W/m².",
		NormRef:        "DIN EN 12831-1",
		BaseConfidence: 0.9,
		BuildingTypes:  []model.BuildingType{model.BuildingOffice},
		When:           []rules.Condition{{Field: "specific_load_w_per_m2", Op: rules.OpGreater, Value: 120}},
	}

	e := New()
	meta := model.DocumentMetadata{
		ID:          "d1",
		DocumentRef: "heizlast.pdf",
		Trade:       model.TradeHeating,
		Values: map[string]any{
			"gross_heating_load_kw":  6316.0,
			"specific_load_w_per_m2": 140.0,
		},
	}

	findings := e.Evaluate(meta, model.BuildingOffice, 3, []rules.RuleDefinition{def})
	require.Len(t, findings, 1)
	assert.Equal(t, model.SeverityHigh, findings[0].Severity)
	assert.Equal(t, "DIN EN 12831-1", findings[0].NormRef)
	// All required fields present: full base confidence.
	assert.InDelta(t, 0.9, findings[0].Confidence, 1e-9)
}

func TestEvaluateCompliantDocument(t *testing.T) {
	e := New()
	meta := model.DocumentMetadata{
		ID:    "d1",
		Trade: model.TradeHeating,
		Values: map[string]any{
			"heating_load_w":      50000.0, // 100 W/m², below the office limit
			"area_m2":             500.0,
			"hydraulic_balancing": true,
		},
	}

	findings := e.Evaluate(meta, model.BuildingOffice, 3, []rules.RuleDefinition{heatingLoadRule(), balancingRule()})
	assert.Empty(t, findings)
}

func TestEvaluateInsufficientData(t *testing.T) {
	e := New()
	meta := model.DocumentMetadata{
		ID:          "d1",
		DocumentRef: "heizlast.pdf",
		Trade:       model.TradeHeating,
		Values: map[string]any{
			"hydraulic_balancing": false,
		},
	}

	findings := e.Evaluate(meta, model.BuildingOffice, 3, []rules.RuleDefinition{heatingLoadRule(), balancingRule()})
	require.Len(t, findings, 2)

	var insufficient, violation *model.Finding
	for i := range findings {
		if findings[i].ID == "kg420-specific-load/d1/insufficient-data" {
			insufficient = &findings[i]
		}
		if findings[i].ID == "kg420-balancing/d1" {
			violation = &findings[i]
		}
	}
	require.NotNil(t, insufficient, "missing fields must yield an insufficient-data finding")
	require.NotNil(t, violation)

	assert.Equal(t, model.SeverityLow, insufficient.Severity)
	assert.InDelta(t, confidence.DefaultInsufficientData, insufficient.Confidence, 1e-9)
	assert.Contains(t, insufficient.Description, "heating_load_w")
}

func TestEvaluateConfidenceCappedByCompleteness(t *testing.T) {
	e := New()
	// 1 of 3 distinct required fields present.
	meta := model.DocumentMetadata{
		ID:    "d1",
		Trade: model.TradeHeating,
		Values: map[string]any{
			"hydraulic_balancing": false,
		},
	}

	findings := e.Evaluate(meta, model.BuildingOffice, 3, []rules.RuleDefinition{heatingLoadRule(), balancingRule()})

	for _, f := range findings {
		if f.ID == "kg420-balancing/d1" {
			assert.InDelta(t, 0.9*(1.0/3.0), f.Confidence, 1e-9)
			return
		}
	}
	t.Fatal("balancing violation not found")
}

func TestEvaluateSkipsInapplicableRules(t *testing.T) {
	e := New()
	def := heatingLoadRule()
	def.BuildingTypes = []model.BuildingType{model.BuildingHospital}

	meta := model.DocumentMetadata{
		ID:    "d1",
		Trade: model.TradeHeating,
		Values: map[string]any{
			"heating_load_w": 70000.0,
			"area_m2":        500.0,
		},
	}

	findings := e.Evaluate(meta, model.BuildingOffice, 3, []rules.RuleDefinition{def})
	assert.Empty(t, findings)
}

func TestEvaluateDeterministic(t *testing.T) {
	e := New()
	defs := []rules.RuleDefinition{heatingLoadRule(), balancingRule()}
	meta := model.DocumentMetadata{
		ID:          "d1",
		DocumentRef: "heizlast.pdf",
		Trade:       model.TradeHeating,
		Values: map[string]any{
			"heating_load_w":      70000.0,
			"area_m2":             500.0,
			"hydraulic_balancing": false,
		},
	}

	first := e.Evaluate(meta, model.BuildingOffice, 3, defs)
	for i := 0; i < 5; i++ {
		again := e.Evaluate(meta, model.BuildingOffice, 3, defs)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("evaluation not deterministic:\nfirst: %+v\nagain: %+v", first, again)
		}
	}
}

package coordination

import (
	"fmt"
	"sort"
	"strings"

	"github.com/planwerk/planwerk/model"
)

// DefaultRules returns the built-in cross-discipline rule set.
func DefaultRules() []Rule {
	return []Rule{
		&PowerBalanceRule{},
		&PenetrationRule{},
		&BACSCoverageRule{},
		&FireAlarmLinkRule{},
	}
}

// PowerBalanceRule compares the electrical connection load declared by the
// heating trade (heat pumps) against the capacity declared by the
// electrical trade.
type PowerBalanceRule struct{}

// ID returns the rule identifier.
func (r *PowerBalanceRule) ID() string { return "coord-power-balance" }

// Trades returns the trades the rule needs.
func (r *PowerBalanceRule) Trades() []model.Trade {
	return []model.Trade{model.TradeHeating, model.TradeElectrical}
}

// Evaluate checks declared heat-pump draw against available capacity.
func (r *PowerBalanceRule) Evaluate(project model.Project, docs map[model.Trade][]model.DocumentMetadata) []model.Finding {
	draw, drawDeclared := sumField(docs[model.TradeHeating], "heat_pump_draw_kw")
	capacity, capDeclared := sumField(docs[model.TradeElectrical], "available_capacity_kw")

	if !drawDeclared {
		// No heat pump declared: nothing to reconcile.
		return nil
	}
	if !capDeclared {
		return []model.Finding{{
			ID:             r.ID() + "/capacity-unknown",
			Trade:          model.TradeCoordination,
			Category:       model.CategoryCoordination,
			Severity:       model.SeverityMedium,
			Title:          "Electrical capacity for heat pump not documented",
			Description:    fmt.Sprintf("The heating trade declares a heat-pump connection load of %.1f kW but the electrical trade documents no available capacity for it.", draw),
			Recommendation: "Add the supply circuit capacity to the electrical planning.",
			Confidence:     0.7,
			Source:         Source,
		}}
	}
	if draw <= capacity {
		return nil
	}
	return []model.Finding{{
		ID:             r.ID() + "/undersized",
		Trade:          model.TradeCoordination,
		Category:       model.CategoryCoordination,
		Severity:       model.SeverityHigh,
		Title:          "Electrical capacity insufficient for heat pump",
		Description:    fmt.Sprintf("The electrical trade provides %.1f kW but the heating trade requires %.1f kW for the heat pump. Shortfall: %.1f kW.", capacity, draw, draw-capacity),
		Recommendation: "Increase the supply circuit capacity or provide an additional circuit.",
		NormRef:        "DIN 18015-1",
		Confidence:     0.9,
		Source:         Source,
	}}
}

// PenetrationRule compares wall/slab penetration requests from the
// air- and water-carrying trades against the confirmed penetration plan.
type PenetrationRule struct{}

// ID returns the rule identifier.
func (r *PenetrationRule) ID() string { return "coord-penetrations" }

// Trades returns the trades the rule needs.
func (r *PenetrationRule) Trades() []model.Trade {
	return []model.Trade{model.TradeVentilation}
}

// Evaluate checks that every requested penetration is confirmed.
func (r *PenetrationRule) Evaluate(project model.Project, docs map[model.Trade][]model.DocumentMetadata) []model.Finding {
	requested, reqDeclared := 0.0, false
	for _, trade := range []model.Trade{model.TradeVentilation, model.TradeSanitary} {
		if sum, ok := sumField(docs[trade], "penetrations_requested"); ok {
			requested += sum
			reqDeclared = true
		}
	}
	if !reqDeclared {
		return nil
	}

	confirmed := 0.0
	for _, tradeDocs := range docs {
		if sum, ok := sumField(tradeDocs, "penetrations_confirmed"); ok {
			confirmed += sum
		}
	}
	if confirmed >= requested {
		return nil
	}
	return []model.Finding{{
		ID:             r.ID() + "/unconfirmed",
		Trade:          model.TradeCoordination,
		Category:       model.CategoryCoordination,
		Severity:       model.SeverityMedium,
		Title:          "Penetrations not confirmed in coordination plan",
		Description:    fmt.Sprintf("%.0f penetrations are requested but only %.0f are confirmed in the penetration plan.", requested, confirmed),
		Recommendation: "Align the penetration plan with structural engineering.",
		Confidence:     0.8,
		Source:         Source,
	}}
}

// BACSCoverageRule verifies that trades present in the project are covered
// by the building automation system.
type BACSCoverageRule struct{}

// ID returns the rule identifier.
func (r *BACSCoverageRule) ID() string { return "coord-bacs-coverage" }

// Trades returns the trades the rule needs.
func (r *BACSCoverageRule) Trades() []model.Trade {
	return []model.Trade{model.TradeAutomation}
}

// Evaluate reports trades that the automation planning does not control.
func (r *BACSCoverageRule) Evaluate(project model.Project, docs map[model.Trade][]model.DocumentMetadata) []model.Finding {
	controlled := make(map[string]bool)
	declared := false
	for _, doc := range docs[model.TradeAutomation] {
		if trades, ok := doc.Strings("bacs_controlled_trades"); ok {
			declared = true
			for _, t := range trades {
				controlled[strings.ToLower(strings.TrimSpace(t))] = true
			}
		}
	}
	if !declared {
		return nil
	}

	var uncovered []string
	for _, trade := range []model.Trade{model.TradeHeating, model.TradeVentilation, model.TradeElectrical} {
		if len(docs[trade]) > 0 && !controlled[string(trade)] {
			uncovered = append(uncovered, string(trade))
		}
	}
	if len(uncovered) == 0 {
		return nil
	}
	sort.Strings(uncovered)
	return []model.Finding{{
		ID:             r.ID() + "/uncovered",
		Trade:          model.TradeCoordination,
		Category:       model.CategoryCoordination,
		Severity:       model.SeverityMedium,
		Title:          "Trades not covered by building automation",
		Description:    fmt.Sprintf("The following trades are planned but not controlled by the building automation system: %s.", strings.Join(uncovered, ", ")),
		Recommendation: "Extend the BACS function list to the uncovered trades.",
		NormRef:        "DIN EN ISO 52120-1",
		Confidence:     0.75,
		Source:         Source,
	}}
}

// FireAlarmLinkRule verifies that sprinkler systems are interconnected
// with a fire alarm system in the communication trade.
type FireAlarmLinkRule struct{}

// ID returns the rule identifier.
func (r *FireAlarmLinkRule) ID() string { return "coord-fire-alarm-link" }

// Trades returns the trades the rule needs.
func (r *FireAlarmLinkRule) Trades() []model.Trade {
	return []model.Trade{model.TradeFireSuppression, model.TradeCommunication}
}

// Evaluate checks for a documented fire alarm system next to sprinklers.
func (r *FireAlarmLinkRule) Evaluate(project model.Project, docs map[model.Trade][]model.DocumentMetadata) []model.Finding {
	for _, doc := range docs[model.TradeCommunication] {
		if present, ok := doc.Bool("fire_alarm_present"); ok && present {
			return nil
		}
	}
	return []model.Finding{{
		ID:             r.ID() + "/missing-alarm",
		Trade:          model.TradeCoordination,
		Category:       model.CategoryCoordination,
		Severity:       model.SeverityHigh,
		Title:          "Sprinkler system without fire alarm interconnection",
		Description:    "Fire suppression systems are planned but the communication trade documents no fire alarm system to interconnect with.",
		Recommendation: "Document the fire alarm system and its sprinkler interconnection.",
		NormRef:        "DIN 14675",
		Confidence:     0.78,
		Source:         Source,
	}}
}

// sumField sums a numeric field across documents. The second return is
// false when no document declares the field.
func sumField(docs []model.DocumentMetadata, field string) (float64, bool) {
	total, declared := 0.0, false
	for i := range docs {
		if v, ok := docs[i].Float(field); ok {
			total += v
			declared = true
		}
	}
	return total, declared
}

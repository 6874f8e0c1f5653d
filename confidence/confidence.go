// Package confidence implements the combined-confidence formula applied
// to findings: base confidence scaled by metadata completeness, with a
// bounded bonus when an independent evaluator corroborates the same
// underlying condition.
package confidence

// Defaults. The exact constants are configuration, not load-bearing.
const (
	DefaultCorroborationBonus = 0.05
	DefaultInsufficientData   = 0.3
)

// Model holds the confidence parameters for one check run.
type Model struct {
	// CorroborationBonus is added once when a duplicate finding from an
	// independent evaluator corroborates the same condition.
	CorroborationBonus float64

	// InsufficientData is the confidence assigned to insufficient-data
	// findings.
	InsufficientData float64
}

// Default returns the model with default parameters.
func Default() Model {
	return Model{
		CorroborationBonus: DefaultCorroborationBonus,
		InsufficientData:   DefaultInsufficientData,
	}
}

// Combined computes base confidence scaled by the metadata completeness
// ratio. Low field coverage caps the result: an evaluator never reports
// above the completeness ceiling.
func (m Model) Combined(base, completeness float64) float64 {
	return Clamp01(base * Clamp01(completeness))
}

// Corroborate raises a confidence score by the corroboration bonus,
// capped at 1.0.
func (m Model) Corroborate(c float64) float64 {
	return Clamp01(c + m.CorroborationBonus)
}

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

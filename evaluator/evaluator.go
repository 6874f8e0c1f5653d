// Package evaluator applies a trade's rule set to one document's
// metadata. Evaluation is deterministic and side-effect free: the same
// metadata against the same rules always yields the same findings, a hard
// contract since automated checks must be reproducible for audit.
package evaluator

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/planwerk/planwerk/confidence"
	"github.com/planwerk/planwerk/model"
	"github.com/planwerk/planwerk/rules"
)

// Evaluator runs rule definitions against document metadata.
type Evaluator struct {
	conf   confidence.Model
	logger *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithConfidenceModel overrides the confidence parameters.
func WithConfidenceModel(m confidence.Model) Option {
	return func(e *Evaluator) { e.conf = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = logger }
}

// New creates an evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		conf:   confidence.Default(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate applies the given rules, in order, to one document's metadata
// for the given building type and phase. Rules whose required fields are
// absent are skipped and reported as insufficient-data findings so missing
// data is never silently treated as compliance.
func (e *Evaluator) Evaluate(meta model.DocumentMetadata, bt model.BuildingType, phase model.Phase, defs []rules.RuleDefinition) []model.Finding {
	completeness := completenessRatio(&meta, defs)

	var findings []model.Finding
	for i := range defs {
		def := &defs[i]
		if !def.AppliesTo(bt, phase) {
			continue
		}

		violated := true
		var missing []string
		var lastObs rules.Observation
		for c := range def.When {
			obs := def.When[c].Evaluate(&meta, bt)
			if len(obs.Missing) > 0 {
				missing = append(missing, obs.Missing...)
				continue
			}
			if !obs.Violated {
				violated = false
				break
			}
			lastObs = obs
		}

		if len(missing) > 0 {
			findings = append(findings, e.insufficientData(def, &meta, missing))
			continue
		}
		if !violated {
			continue
		}

		findings = append(findings, model.Finding{
			ID:             def.ID + "/" + meta.ID,
			Trade:          def.Trade,
			Category:       def.Category,
			Severity:       def.Severity,
			Title:          def.Title,
			Description:    renderDescription(def.Description, lastObs),
			NormRef:        def.NormRef,
			DocumentRef:    meta.DocumentRef,
			Recommendation: def.Recommendation,
			Confidence:     e.conf.Combined(def.BaseConfidence, completeness),
			Source:         sourceName(def.Trade),
		})
	}

	e.logger.Debug("Evaluated document",
		slog.String("document", meta.ID),
		slog.String("trade", string(meta.Trade)),
		slog.Int("rules", len(defs)),
		slog.Int("findings", len(findings)))

	return findings
}

// insufficientData builds the low-severity finding emitted when a rule's
// required fields are missing from the metadata.
func (e *Evaluator) insufficientData(def *rules.RuleDefinition, meta *model.DocumentMetadata, missing []string) model.Finding {
	return model.Finding{
		ID:          def.ID + "/" + meta.ID + "/insufficient-data",
		Trade:       def.Trade,
		Category:    def.Category,
		Severity:    model.SeverityLow,
		Title:       "Insufficient data: " + def.Title,
		Description: fmt.Sprintf("The check %q could not be evaluated: missing metadata fields %s.", def.Title, strings.Join(missing, ", ")),
		DocumentRef: meta.DocumentRef,
		Confidence:  e.conf.InsufficientData,
		Source:      sourceName(def.Trade),
	}
}

// completenessRatio is the fraction of distinct fields required by the
// rule set that are present in the metadata. It caps the confidence of
// every finding from this document.
func completenessRatio(meta *model.DocumentMetadata, defs []rules.RuleDefinition) float64 {
	seen := make(map[string]bool)
	total, present := 0, 0
	for i := range defs {
		for _, field := range defs[i].RequiredFields() {
			if seen[field] {
				continue
			}
			seen[field] = true
			total++
			if meta.Has(field) {
				present++
			}
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(present) / float64(total)
}

// renderDescription substitutes the observed value and applied limit into
// a rule's description template.
func renderDescription(template string, obs rules.Observation) string {
	r := strings.NewReplacer(
		"{value}", trimFloat(obs.Value),
		"{limit}", trimFloat(obs.Threshold),
	)
	return r.Replace(template)
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sourceName(trade model.Trade) string {
	return "expert." + string(trade)
}

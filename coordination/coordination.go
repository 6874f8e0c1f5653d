// Package coordination detects issues that only appear when metadata from
// two or more trades is compared, e.g. a heat-pump connection load against
// the declared electrical capacity. Cross-discipline rules declare the
// trades they need; a rule whose required trade has no metadata is skipped
// with a scoped insufficient-data finding.
package coordination

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/planwerk/planwerk/confidence"
	"github.com/planwerk/planwerk/model"
)

// Source identifies coordination findings in aggregation diagnostics.
const Source = "coordinator"

// Rule is one cross-discipline consistency check.
// Implementations must be pure functions of the supplied metadata.
type Rule interface {
	// ID uniquely identifies the rule; evaluation order follows IDs.
	ID() string

	// Trades lists the trades the rule needs metadata for.
	Trades() []model.Trade

	// Evaluate runs the rule against the project's per-trade metadata.
	Evaluate(project model.Project, docs map[model.Trade][]model.DocumentMetadata) []model.Finding
}

// Registry holds named cross-discipline rules.
type Registry struct {
	rules map[string]Rule
}

// NewRegistry creates a registry seeded with the given rules.
func NewRegistry(rules ...Rule) *Registry {
	r := &Registry{rules: make(map[string]Rule)}
	for _, rule := range rules {
		r.Register(rule)
	}
	return r
}

// Register adds or replaces a rule by ID.
func (r *Registry) Register(rule Rule) {
	r.rules[rule.ID()] = rule
}

// Rules returns the registered rules in stable ID order.
func (r *Registry) Rules() []Rule {
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Coordinator evaluates the registered cross-discipline rules.
type Coordinator struct {
	registry *Registry
	conf     confidence.Model
	logger   *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConfidenceModel overrides the confidence parameters.
func WithConfidenceModel(m confidence.Model) Option {
	return func(c *Coordinator) { c.conf = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// New creates a coordinator over a rule registry.
func New(registry *Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry: registry,
		conf:     confidence.Default(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the rule registry the coordinator evaluates.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Evaluate runs every registered rule against the project's metadata,
// grouped by trade. Rules missing a required trade yield one
// insufficient-data finding each instead of being silently dropped.
func (c *Coordinator) Evaluate(project model.Project, docs map[model.Trade][]model.DocumentMetadata) []model.Finding {
	var findings []model.Finding
	for _, rule := range c.registry.Rules() {
		if missing := missingTrades(rule, docs); len(missing) > 0 {
			findings = append(findings, c.insufficientData(rule, missing))
			continue
		}
		findings = append(findings, rule.Evaluate(project, docs)...)
	}

	c.logger.Debug("Coordination evaluation complete",
		slog.String("project", project.ID),
		slog.Int("rules", len(c.registry.Rules())),
		slog.Int("findings", len(findings)))

	return findings
}

func missingTrades(rule Rule, docs map[model.Trade][]model.DocumentMetadata) []model.Trade {
	var missing []model.Trade
	for _, trade := range rule.Trades() {
		if len(docs[trade]) == 0 {
			missing = append(missing, trade)
		}
	}
	return missing
}

func (c *Coordinator) insufficientData(rule Rule, missing []model.Trade) model.Finding {
	names := make([]string, len(missing))
	for i, trade := range missing {
		names[i] = string(trade)
	}
	return model.Finding{
		ID:          rule.ID() + "/insufficient-data",
		Trade:       model.TradeCoordination,
		Category:    model.CategoryCoordination,
		Severity:    model.SeverityLow,
		Title:       "Insufficient data for cross-trade check",
		Description: fmt.Sprintf("The cross-trade check %q could not be evaluated: no metadata for %s.", rule.ID(), strings.Join(names, ", ")),
		Confidence:  c.conf.InsufficientData,
		Source:      Source,
	}
}

// Package rules holds the versioned rule registry and the declarative
// condition language that rule definitions are written in.
//
// Rules are data, not code: each definition declares the metadata fields
// it reads and the thresholds it enforces, so trades gain and lose rules
// without evaluator changes.
package rules

import (
	"fmt"
	"sort"

	"github.com/planwerk/planwerk/model"
)

// Op is a comparison operator in a rule condition.
type Op string

// Supported condition operators. A condition describes the violating
// state: "gt 3.0" means the rule fires when the observed value exceeds 3.0.
const (
	OpGreater   Op = "gt"
	OpGreaterEq Op = "ge"
	OpLess      Op = "lt"
	OpLessEq    Op = "le"
	OpEquals    Op = "eq"
	OpNotEquals Op = "ne"
	// OpFlag fires when a boolean field is present and false, used for
	// required-evidence checks (hydraulic balancing, emergency lighting).
	OpFlag Op = "flag"
)

// Condition is one clause of a rule predicate, evaluated against a single
// document's metadata.
type Condition struct {
	// Field is the metadata key the condition reads.
	Field string `yaml:"field" json:"field"`

	// DividedBy optionally names a denominator field; the comparison then
	// applies to Field/DividedBy (power density, generator margin, balance).
	DividedBy string `yaml:"divided_by,omitempty" json:"divided_by,omitempty"`

	Op Op `yaml:"op" json:"op"`

	// Value is the numeric threshold when no building-type limit matches.
	Value float64 `yaml:"value,omitempty" json:"value,omitempty"`

	// ValueString is compared instead of Value for eq/ne on string fields.
	ValueString string `yaml:"value_string,omitempty" json:"value_string,omitempty"`

	// Limits overrides Value per building type. A missing entry falls back
	// to Value.
	Limits map[model.BuildingType]float64 `yaml:"limits,omitempty" json:"limits,omitempty"`
}

// Observation is the outcome of evaluating a condition.
type Observation struct {
	// Violated is true when the condition describes the observed state.
	Violated bool

	// Missing lists referenced fields absent from the metadata. When
	// non-empty the condition was not evaluated.
	Missing []string

	// Value and Threshold carry the observed value and applied limit for
	// description rendering. Meaningful only for numeric conditions.
	Value     float64
	Threshold float64
}

// Fields returns the metadata keys the condition reads.
func (c *Condition) Fields() []string {
	if c.DividedBy != "" {
		return []string{c.Field, c.DividedBy}
	}
	return []string{c.Field}
}

// Threshold resolves the numeric limit for a building type.
func (c *Condition) Threshold(bt model.BuildingType) float64 {
	if limit, ok := c.Limits[bt]; ok {
		return limit
	}
	return c.Value
}

// Evaluate applies the condition to one document's metadata.
// Evaluation is pure: identical inputs always produce identical results.
func (c *Condition) Evaluate(meta *model.DocumentMetadata, bt model.BuildingType) Observation {
	switch c.Op {
	case OpFlag:
		v, ok := meta.Bool(c.Field)
		if !ok {
			return Observation{Missing: []string{c.Field}}
		}
		return Observation{Violated: !v}
	case OpEquals, OpNotEquals:
		if c.ValueString != "" {
			s, ok := meta.String(c.Field)
			if !ok {
				return Observation{Missing: []string{c.Field}}
			}
			violated := s == c.ValueString
			if c.Op == OpNotEquals {
				violated = !violated
			}
			return Observation{Violated: violated}
		}
	}

	observed, ok := meta.Float(c.Field)
	if !ok {
		return Observation{Missing: []string{c.Field}}
	}
	if c.DividedBy != "" {
		den, ok := meta.Float(c.DividedBy)
		if !ok || den == 0 {
			return Observation{Missing: []string{c.DividedBy}}
		}
		observed = observed / den
	}

	threshold := c.Threshold(bt)
	obs := Observation{Value: observed, Threshold: threshold}
	switch c.Op {
	case OpGreater:
		obs.Violated = observed > threshold
	case OpGreaterEq:
		obs.Violated = observed >= threshold
	case OpLess:
		obs.Violated = observed < threshold
	case OpLessEq:
		obs.Violated = observed <= threshold
	case OpEquals:
		obs.Violated = observed == threshold
	case OpNotEquals:
		obs.Violated = observed != threshold
	}
	return obs
}

// Validate checks the condition is well formed.
func (c *Condition) Validate() error {
	if c.Field == "" {
		return fmt.Errorf("condition field is required")
	}
	switch c.Op {
	case OpGreater, OpGreaterEq, OpLess, OpLessEq, OpEquals, OpNotEquals, OpFlag:
	default:
		return fmt.Errorf("unknown condition op %q", c.Op)
	}
	return nil
}

// RuleDefinition is one versioned compliance rule for a single trade.
// Predicates are pure functions of document metadata.
type RuleDefinition struct {
	ID             string         `yaml:"id" json:"id"`
	Trade          model.Trade    `yaml:"trade" json:"trade"`
	Category       model.Category `yaml:"category" json:"category"`
	Severity       model.Severity `yaml:"severity" json:"severity"`
	Title          string         `yaml:"title" json:"title"`
	Description    string         `yaml:"description" json:"description"`
	Recommendation string         `yaml:"recommendation,omitempty" json:"recommendation,omitempty"`
	NormRef        string         `yaml:"norm_ref,omitempty" json:"norm_ref,omitempty"`
	BaseConfidence float64        `yaml:"base_confidence" json:"base_confidence"`

	// BuildingTypes restricts applicability; empty means all.
	BuildingTypes []model.BuildingType `yaml:"building_types,omitempty" json:"building_types,omitempty"`

	// Phases restricts applicability; empty means all.
	Phases []model.Phase `yaml:"phases,omitempty" json:"phases,omitempty"`

	// When lists the conditions that together mean a violation. All must
	// hold for the rule to fire.
	When []Condition `yaml:"when" json:"when"`
}

// AppliesTo reports whether the rule is applicable for a building type
// and phase.
func (r *RuleDefinition) AppliesTo(bt model.BuildingType, phase model.Phase) bool {
	if len(r.BuildingTypes) > 0 {
		found := false
		for _, allowed := range r.BuildingTypes {
			if allowed == bt {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(r.Phases) > 0 {
		found := false
		for _, allowed := range r.Phases {
			if allowed == phase {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// RequiredFields returns the distinct metadata keys the rule reads,
// sorted lexically.
func (r *RuleDefinition) RequiredFields() []string {
	seen := make(map[string]bool)
	var fields []string
	for i := range r.When {
		for _, f := range r.When[i].Fields() {
			if !seen[f] {
				seen[f] = true
				fields = append(fields, f)
			}
		}
	}
	sort.Strings(fields)
	return fields
}

// Validate checks the definition is well formed.
func (r *RuleDefinition) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if !r.Trade.Valid() {
		return fmt.Errorf("rule %s: unknown trade %q", r.ID, r.Trade)
	}
	switch r.Category {
	case model.CategoryFormal, model.CategoryTechnical:
	default:
		return fmt.Errorf("rule %s: category must be formal or technical, got %q", r.ID, r.Category)
	}
	if model.SeverityRank(r.Severity) == 0 {
		return fmt.Errorf("rule %s: unknown severity %q", r.ID, r.Severity)
	}
	if r.BaseConfidence < 0 || r.BaseConfidence > 1 {
		return fmt.Errorf("rule %s: base confidence %.2f outside [0,1]", r.ID, r.BaseConfidence)
	}
	if r.Title == "" {
		return fmt.Errorf("rule %s: title is required", r.ID)
	}
	if len(r.When) == 0 {
		return fmt.Errorf("rule %s: at least one condition is required", r.ID)
	}
	for i := range r.When {
		if err := r.When[i].Validate(); err != nil {
			return fmt.Errorf("rule %s: %w", r.ID, err)
		}
	}
	return nil
}

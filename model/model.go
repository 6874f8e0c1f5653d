// Package model defines the domain types shared by the checking core:
// projects, document metadata, findings and check orders.
//
// All types marshal to a stable JSON form so frozen result sets can be
// consumed by external reporting collaborators without re-running a check.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BuildingType classifies the project building.
type BuildingType string

// Known building types.
const (
	BuildingOffice      BuildingType = "office"
	BuildingSchool      BuildingType = "school"
	BuildingHospital    BuildingType = "hospital"
	BuildingIndustrial  BuildingType = "industrial"
	BuildingResidential BuildingType = "residential"
	BuildingOther       BuildingType = "other"
)

// ParseBuildingType parses a building type string.
func ParseBuildingType(s string) (BuildingType, error) {
	bt := BuildingType(strings.ToLower(strings.TrimSpace(s)))
	switch bt {
	case BuildingOffice, BuildingSchool, BuildingHospital,
		BuildingIndustrial, BuildingResidential, BuildingOther:
		return bt, nil
	}
	return "", &ValidationError{Field: "building_type", Message: fmt.Sprintf("unknown building type %q", s)}
}

// Phase is an HOAI-style project phase, 1 through 9.
type Phase int

// Valid reports whether the phase is in the defined range.
func (p Phase) Valid() bool {
	return p >= 1 && p <= 9
}

// Trade identifies a building-services discipline (KG400 cost groups).
type Trade string

// Trade codes. TradeCoordination tags findings that span multiple trades.
const (
	TradeSanitary        Trade = "kg410_sanitary"
	TradeHeating         Trade = "kg420_heating"
	TradeVentilation     Trade = "kg430_ventilation"
	TradeElectrical      Trade = "kg440_electrical"
	TradeCommunication   Trade = "kg450_communication"
	TradeFireSuppression Trade = "kg474_fire_suppression"
	TradeAutomation      Trade = "kg480_automation"
	TradeCoordination    Trade = "coordination"
)

// KnownTrades returns the single-discipline trade codes in lexical order.
func KnownTrades() []Trade {
	return []Trade{
		TradeSanitary,
		TradeHeating,
		TradeVentilation,
		TradeElectrical,
		TradeCommunication,
		TradeFireSuppression,
		TradeAutomation,
	}
}

// Valid reports whether t is a known single-trade code.
func (t Trade) Valid() bool {
	for _, known := range KnownTrades() {
		if t == known {
			return true
		}
	}
	return false
}

// Category classifies a finding.
type Category string

// Finding categories.
const (
	CategoryFormal       Category = "formal"
	CategoryTechnical    Category = "technical"
	CategoryCoordination Category = "coordination"
)

// Severity ranks a finding.
type Severity string

// Finding severities.
const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// SeverityRank maps a severity to a sortable rank. Unknown values rank lowest.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// MaxSeverity returns the higher-ranked of two severities.
func MaxSeverity(a, b Severity) Severity {
	if SeverityRank(b) > SeverityRank(a) {
		return b
	}
	return a
}

// Project describes the building project a check runs against.
// Immutable for the duration of a check run.
type Project struct {
	ID           string       `json:"id"`
	Name         string       `json:"name,omitempty"`
	BuildingType BuildingType `json:"building_type"`
	Phase        Phase        `json:"phase"`
}

// Validate checks the project fields.
func (p *Project) Validate() error {
	if p.ID == "" {
		return &ValidationError{Field: "id", Message: "project id is required"}
	}
	if _, err := ParseBuildingType(string(p.BuildingType)); err != nil {
		return err
	}
	if !p.Phase.Valid() {
		return &ValidationError{Field: "phase", Message: fmt.Sprintf("phase %d outside 1..9", p.Phase)}
	}
	return nil
}

// DocumentMetadata is the structured extraction result for one document.
// The checking core treats it as read-only input.
type DocumentMetadata struct {
	ID          string         `json:"id"`
	DocumentRef string         `json:"document_ref"`
	Trade       Trade          `json:"trade"`
	Values      map[string]any `json:"values"`
}

// Has reports whether a value is present for key.
func (d *DocumentMetadata) Has(key string) bool {
	_, ok := d.Values[key]
	return ok
}

// Float returns the value for key as a float64. Strings with a German
// decimal comma are accepted, matching the upstream extraction output.
func (d *DocumentMetadata) Float(key string) (float64, bool) {
	return ToFloat(d.Values[key])
}

// Bool returns the value for key as a bool.
func (d *DocumentMetadata) Bool(key string) (bool, bool) {
	switch v := d.Values[key].(type) {
	case bool:
		return v, true
	case string:
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return false, false
		}
		return parsed, true
	default:
		return false, false
	}
}

// String returns the value for key as a string.
func (d *DocumentMetadata) String(key string) (string, bool) {
	s, ok := d.Values[key].(string)
	return s, ok
}

// Strings returns the value for key as a string slice.
func (d *DocumentMetadata) Strings(key string) ([]string, bool) {
	switch v := d.Values[key].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// ToFloat converts extraction values to float64. It tolerates numeric
// strings with a decimal comma.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		normalized := strings.ReplaceAll(strings.TrimSpace(n), ",", ".")
		parsed, err := strconv.ParseFloat(normalized, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// Finding is one detected candidate issue. Findings are immutable after
// creation; only the aggregator's deduplication merge may raise confidence
// and severity.
type Finding struct {
	ID             string   `json:"id"`
	Trade          Trade    `json:"trade"`
	Category       Category `json:"category"`
	Severity       Severity `json:"severity"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	NormRef        string   `json:"norm_ref,omitempty"`
	DocumentRef    string   `json:"document_ref,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	Confidence     float64  `json:"confidence"`
	Source         string   `json:"source,omitempty"`
}

// Summary holds aggregate counts over a finding set.
type Summary struct {
	Total      int              `json:"total"`
	BySeverity map[Severity]int `json:"by_severity"`
	ByTrade    map[Trade]int    `json:"by_trade"`
}

// Diagnostic records a non-fatal evaluator failure for a check order.
type Diagnostic struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// CheckState is the workflow state of a check order.
type CheckState string

// Workflow states. Completed and Failed are terminal.
const (
	StateCreated        CheckState = "created"
	StateDocumentsReady CheckState = "documents_ready"
	StateRunning        CheckState = "running"
	StateAggregating    CheckState = "aggregating"
	StateCompleted      CheckState = "completed"
	StateFailed         CheckState = "failed"
)

// Terminal reports whether no transition leaves the state.
func (s CheckState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransition reports whether from -> to is a legal workflow transition.
func CanTransition(from, to CheckState) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	switch from {
	case StateCreated:
		return to == StateDocumentsReady
	case StateDocumentsReady:
		return to == StateRunning
	case StateRunning:
		return to == StateAggregating
	case StateAggregating:
		return to == StateCompleted
	default:
		return false
	}
}

// CheckOrder is one run of the checking workflow for a project's
// document set. Terminal orders carry a frozen finding set.
type CheckOrder struct {
	ID          string             `json:"id"`
	Project     Project            `json:"project"`
	Documents   []DocumentMetadata `json:"documents"`
	State       CheckState         `json:"state"`
	CreatedAt   time.Time          `json:"created_at"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	Findings    []Finding          `json:"findings,omitempty"`
	Summary     Summary            `json:"summary"`
	Diagnostics []Diagnostic       `json:"diagnostics,omitempty"`
	FailReason  string             `json:"fail_reason,omitempty"`
}

// Trades returns the distinct trades present in the order's documents,
// in lexical order.
func (o *CheckOrder) Trades() []Trade {
	seen := make(map[Trade]bool)
	var out []Trade
	for _, known := range KnownTrades() {
		for _, doc := range o.Documents {
			if doc.Trade == known && !seen[known] {
				seen[known] = true
				out = append(out, known)
			}
		}
	}
	return out
}

// ValidationError reports an invalid caller-supplied value.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// Package aggregate merges the finding batches produced by concurrent
// evaluators into one deduplicated, deterministically ordered result set.
package aggregate

import (
	"sort"
	"strings"

	"github.com/planwerk/planwerk/confidence"
	"github.com/planwerk/planwerk/model"
)

// Batch is the output of one evaluator. Err marks an evaluator that
// failed instead of returning findings; its batch is excluded from the
// result but recorded as a diagnostic — partial success is a valid
// output state, one trade's data problem must not block the others.
type Batch struct {
	Source   string
	Findings []model.Finding
	Err      error
}

// Result is the aggregated output of a check run.
type Result struct {
	Findings    []model.Finding
	Summary     model.Summary
	Diagnostics []model.Diagnostic
}

// Aggregator deduplicates, corroborates and orders findings.
type Aggregator struct {
	conf confidence.Model
}

// New creates an aggregator with the given confidence model.
func New(conf confidence.Model) *Aggregator {
	return &Aggregator{conf: conf}
}

// dedupeKey identifies findings that report the same underlying
// condition: same rule, trade (or coordination tag), norm reference and
// source document. A finding without a norm reference names no shared
// condition, so it keys on its own ID and is never merged; merging such
// findings would collapse distinct insufficient-data explanations into
// one.
type dedupeKey struct {
	trade model.Trade
	rule  string
	norm  string
	doc   string
}

func keyFor(f model.Finding) dedupeKey {
	if f.NormRef == "" {
		return dedupeKey{trade: f.Trade, rule: f.ID}
	}
	return dedupeKey{trade: f.Trade, rule: ruleComponent(f.ID), norm: f.NormRef, doc: f.DocumentRef}
}

// ruleComponent extracts the rule part of a finding ID of the form
// "<rule>/<suffix>".
func ruleComponent(id string) string {
	if i := strings.Index(id, "/"); i >= 0 {
		return id[:i]
	}
	return id
}

// Aggregate flattens the batches, deduplicates findings, applies the
// corroboration bonus and sorts the result. The output order depends only
// on the finding contents, never on the completion order of the batches.
func (a *Aggregator) Aggregate(batches []Batch) Result {
	var result Result
	var flat []model.Finding

	for _, batch := range batches {
		if batch.Err != nil {
			result.Diagnostics = append(result.Diagnostics, model.Diagnostic{
				Source: batch.Source,
				Reason: batch.Err.Error(),
			})
			continue
		}
		for _, f := range batch.Findings {
			if f.Source == "" {
				f.Source = batch.Source
			}
			flat = append(flat, f)
		}
	}
	sort.Slice(result.Diagnostics, func(i, j int) bool {
		return result.Diagnostics[i].Source < result.Diagnostics[j].Source
	})

	// Sort before merging so the surviving finding of each duplicate
	// group is independent of batch arrival order.
	sort.Slice(flat, func(i, j int) bool { return flat[i].ID < flat[j].ID })

	merged := make(map[dedupeKey]*model.Finding)
	var order []dedupeKey
	for i := range flat {
		f := flat[i]
		key := keyFor(f)
		existing, ok := merged[key]
		if !ok {
			copied := f
			merged[key] = &copied
			order = append(order, key)
			continue
		}
		// Duplicate: an independent evaluator corroborates the same
		// condition. Severity never drops; confidence gets the bonus.
		existing.Severity = model.MaxSeverity(existing.Severity, f.Severity)
		higher := existing.Confidence
		if f.Confidence > higher {
			higher = f.Confidence
		}
		existing.Confidence = a.conf.Corroborate(higher)
	}

	findings := make([]model.Finding, 0, len(order))
	for _, key := range order {
		findings = append(findings, *merged[key])
	}
	sortFindings(findings)

	result.Findings = findings
	result.Summary = summarize(findings)
	return result
}

// sortFindings orders findings by severity (high first), then trade code
// with coordination after all single-trade codes, then title.
func sortFindings(findings []model.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if ra, rb := model.SeverityRank(a.Severity), model.SeverityRank(b.Severity); ra != rb {
			return ra > rb
		}
		if ta, tb := tradeSortKey(a.Trade), tradeSortKey(b.Trade); ta != tb {
			return ta < tb
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID < b.ID
	})
}

// tradeSortKey sorts coordination after every single-trade code.
func tradeSortKey(t model.Trade) string {
	if t == model.TradeCoordination {
		return "zz-coordination"
	}
	return string(t)
}

func summarize(findings []model.Finding) model.Summary {
	summary := model.Summary{
		Total:      len(findings),
		BySeverity: make(map[model.Severity]int),
		ByTrade:    make(map[model.Trade]int),
	}
	for _, f := range findings {
		summary.BySeverity[f.Severity]++
		summary.ByTrade[f.Trade]++
	}
	return summary
}

package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/planwerk/planwerk/model"
)

// Registry holds the active rule definitions, keyed by trade.
//
// Reads go through immutable snapshots: mutation builds a fresh snapshot
// and swaps it in, so checks that captured the previous snapshot never
// observe a half-applied rule change.
type Registry struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// Snapshot is an immutable view of the rule set at one version.
type Snapshot struct {
	version uint64
	byTrade map[model.Trade][]RuleDefinition
}

// NewRegistry creates a registry seeded with the given definitions.
func NewRegistry(defs ...RuleDefinition) (*Registry, error) {
	r := &Registry{snap: &Snapshot{version: 1, byTrade: map[model.Trade][]RuleDefinition{}}}
	if err := r.ReplaceAll(defs); err != nil {
		return nil, err
	}
	return r, nil
}

// Snapshot returns the current immutable rule set view.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// RulesFor filters the current snapshot. See Snapshot.RulesFor.
func (r *Registry) RulesFor(trade model.Trade, bt model.BuildingType, phase model.Phase) []RuleDefinition {
	return r.Snapshot().RulesFor(trade, bt, phase)
}

// Version returns the current snapshot version.
func (r *Registry) Version() uint64 {
	return r.Snapshot().version
}

// All returns every definition in the current snapshot, sorted by ID.
func (r *Registry) All() []RuleDefinition {
	snap := r.Snapshot()
	var out []RuleDefinition
	for _, defs := range snap.byTrade {
		out = append(out, defs...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the definition with the given ID.
func (r *Registry) Get(id string) (RuleDefinition, bool) {
	for _, def := range r.All() {
		if def.ID == id {
			return def, true
		}
	}
	return RuleDefinition{}, false
}

// Replace adds or replaces a single definition by ID and publishes a new
// snapshot. In-flight checks keep the snapshot they started with.
func (r *Registry) Replace(def RuleDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.copyLocked()
	for trade, defs := range next.byTrade {
		kept := defs[:0]
		for _, existing := range defs {
			if existing.ID != def.ID {
				kept = append(kept, existing)
			}
		}
		next.byTrade[trade] = kept
	}
	next.byTrade[def.Trade] = sortedInsert(next.byTrade[def.Trade], def)
	r.snap = next
	return nil
}

// Remove deletes a definition by ID. It reports whether a rule was removed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.copyLocked()
	removed := false
	for trade, defs := range next.byTrade {
		kept := defs[:0]
		for _, existing := range defs {
			if existing.ID == id {
				removed = true
				continue
			}
			kept = append(kept, existing)
		}
		next.byTrade[trade] = kept
	}
	if removed {
		r.snap = next
	}
	return removed
}

// ReplaceAll swaps in an entirely new rule set.
func (r *Registry) ReplaceAll(defs []RuleDefinition) error {
	byTrade := make(map[model.Trade][]RuleDefinition)
	seen := make(map[string]bool)
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return err
		}
		if seen[def.ID] {
			return fmt.Errorf("duplicate rule id %q", def.ID)
		}
		seen[def.ID] = true
		byTrade[def.Trade] = append(byTrade[def.Trade], def)
	}
	for trade := range byTrade {
		sort.Slice(byTrade[trade], func(i, j int) bool {
			return byTrade[trade][i].ID < byTrade[trade][j].ID
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap = &Snapshot{version: r.snap.version + 1, byTrade: byTrade}
	return nil
}

// copyLocked clones the current snapshot with a bumped version.
// Callers must hold r.mu.
func (r *Registry) copyLocked() *Snapshot {
	next := &Snapshot{
		version: r.snap.version + 1,
		byTrade: make(map[model.Trade][]RuleDefinition, len(r.snap.byTrade)),
	}
	for trade, defs := range r.snap.byTrade {
		copied := make([]RuleDefinition, len(defs))
		copy(copied, defs)
		next.byTrade[trade] = copied
	}
	return next
}

func sortedInsert(defs []RuleDefinition, def RuleDefinition) []RuleDefinition {
	defs = append(defs, def)
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// Version returns the snapshot's version.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// RulesFor returns the applicable definitions for a trade, building type
// and phase, in stable ID order. An unknown trade yields an empty slice,
// never an error: a trade without rules is a valid configuration state.
func (s *Snapshot) RulesFor(trade model.Trade, bt model.BuildingType, phase model.Phase) []RuleDefinition {
	var out []RuleDefinition
	for _, def := range s.byTrade[trade] {
		if def.AppliesTo(bt, phase) {
			out = append(out, def)
		}
	}
	return out
}

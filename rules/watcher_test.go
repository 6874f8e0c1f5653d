package rules

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/planwerk/planwerk/model"
)

func TestWatcherReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(sampleRulesYAML), 0644); err != nil {
		t.Fatal(err)
	}

	registry, err := NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(WatcherConfig{Path: path, Logger: slog.Default()}, registry)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.reload()
	if got := len(registry.All()); got != 2 {
		t.Fatalf("expected 2 rules after reload, got %d", got)
	}
	version := registry.Version()

	// A broken file keeps the previous rule set.
	if err := os.WriteFile(path, []byte("rules:\n  - id: broken\n"), 0644); err != nil {
		t.Fatal(err)
	}
	w.reload()
	if got := len(registry.All()); got != 2 {
		t.Errorf("broken reload replaced the rule set, got %d rules", got)
	}
	if registry.Version() != version {
		t.Errorf("broken reload bumped the version to %d", registry.Version())
	}

	// A repaired file applies again.
	single := &File{Version: "1", Rules: []RuleDefinition{testRule("r9", model.TradeHeating)}}
	data, err := single.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	w.reload()
	if got := len(registry.All()); got != 1 {
		t.Errorf("expected 1 rule after repaired reload, got %d", got)
	}
}

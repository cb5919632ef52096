package config_test

import (
	"testing"

	"github.com/fieldops/netdiscover/internal/config"
	"github.com/fieldops/netdiscover/internal/testutil"
)

// This lives in an external test package (config_test, not config) so it
// can import internal/testutil without creating an import cycle, since
// testutil itself depends on config.
func TestLoad_ExplicitPathOverridesDefaults(t *testing.T) {
	dir := testutil.TempDir(t)
	path := testutil.WriteFile(t, dir, "discovery.toml", `
targets = ["10.1.1.0/24"]

[scan_budget]
enabled = true
daily_limit = 500
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Targets) != 1 || cfg.Targets[0] != "10.1.1.0/24" {
		t.Errorf("Targets = %v, want [10.1.1.0/24]", cfg.Targets)
	}
	if !cfg.ScanBudget.Enabled || cfg.ScanBudget.DailyLimit != 500 {
		t.Errorf("ScanBudget = %+v, want enabled with daily_limit 500", cfg.ScanBudget)
	}
}

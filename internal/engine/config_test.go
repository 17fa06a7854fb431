package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Rows != 37 || cfg.Cols != 50 {
		t.Errorf("default map %dx%d, want 37x50", cfg.Rows, cfg.Cols)
	}
	if p := cfg.AgentParams(); p.WorkTicks != 480 || p.IdleTicks != 240 || p.CommuteDistance != 15 {
		t.Errorf("agent params %+v", p)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "city.yaml")
	raw := "rows: 12\ncols: 20\nseed: 9\ncosts:\n  road: 3\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Rows != 12 || cfg.Cols != 20 || cfg.Seed != 9 || cfg.Costs.Road != 3 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Costs.House != 25 || cfg.TaxRate != 0.10 {
		t.Errorf("unset keys should keep defaults: %+v", cfg)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad yaml", "rows: [", "parse config"},
		{"tiny map", "rows: 1\n", "at least 2x2"},
		{"bad probability", "growth_probability: 2\n", "growth_probability"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(test.name, " ", "_")+".yaml")
			if err := os.WriteFile(path, []byte(test.body), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadConfig(path)
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("err = %v, want mention of %q", err, test.want)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

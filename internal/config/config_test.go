package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	if cfg.Server.Port == 0 {
		t.Error("default port is zero")
	}
	if cfg.Rates.BillingRatePerHour != 75 || cfg.Rates.ActualCostRatePerHour != 55 {
		t.Errorf("default rates = %+v", cfg.Rates)
	}
	if cfg.Oracle.BaseURL == "" || cfg.Oracle.Model == "" {
		t.Errorf("oracle defaults = %+v", cfg.Oracle)
	}
}

func TestIsPortSpecifiedInToml(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		toml string
		want bool
	}{
		{"specified", "[server]\nport = 9000\n", true},
		{"section without port", "[server]\ndev_mode = true\n", false},
		{"no section", "[data]\ndata_dir = \"data\"\n", false},
		{"invalid toml", "not toml at all {{", false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := isPortSpecifiedInToml([]byte(tc.toml)); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestGetDataPathAbsoluteDataDir(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Data.DataDir = t.TempDir()

	got := GetDataPath(cfg, "uploads", "costs.xlsx")
	want := filepath.Join(cfg.Data.DataDir, "uploads", "costs.xlsx")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEnsureDataDirCreatesUploads(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Data.DataDir = filepath.Join(t.TempDir(), "data")

	dataDir, err := EnsureDataDir(cfg)
	if err != nil {
		t.Fatalf("EnsureDataDir: %v", err)
	}
	if dataDir != cfg.Data.DataDir {
		t.Errorf("dataDir = %q, want %q", dataDir, cfg.Data.DataDir)
	}
	info, err := os.Stat(filepath.Join(dataDir, "uploads"))
	if err != nil || !info.IsDir() {
		t.Errorf("uploads dir missing: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COSTIMPORT_ORACLE_MODEL", "gpt-4o")
	t.Setenv("COSTIMPORT_BILLING_RATE", "90")
	t.Setenv("COSTIMPORT_ACTUAL_COST_RATE", "not a number")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Oracle.Model != "gpt-4o" {
		t.Errorf("model = %q", cfg.Oracle.Model)
	}
	if cfg.Rates.BillingRatePerHour != 90 {
		t.Errorf("billing rate = %v", cfg.Rates.BillingRatePerHour)
	}
	// bad values keep the default
	if cfg.Rates.ActualCostRatePerHour != 55 {
		t.Errorf("actual cost rate = %v", cfg.Rates.ActualCostRatePerHour)
	}
}

package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("POOL_ACCOUNTS", "KennDunk")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BaseURL != "https://antpool.com" {
		t.Errorf("BaseURL = %q, want default", cfg.BaseURL)
	}
	if cfg.CallBudget != 600 {
		t.Errorf("CallBudget = %d, want 600", cfg.CallBudget)
	}
	if cfg.BudgetWindow != 10*time.Minute {
		t.Errorf("BudgetWindow = %v, want 10m", cfg.BudgetWindow)
	}
	if cfg.WorkerPoolSize != 4 {
		t.Errorf("WorkerPoolSize = %d, want 4", cfg.WorkerPoolSize)
	}
	if cfg.OfflineAfter != 15*time.Minute {
		t.Errorf("OfflineAfter = %v, want 15m", cfg.OfflineAfter)
	}
	if cfg.LowHashrateRatio != 0.5 {
		t.Errorf("LowHashrateRatio = %v, want 0.5", cfg.LowHashrateRatio)
	}
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POOL_ACCOUNTS", "KennDunk")

	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want error for missing DATABASE_URL")
	}
}

func TestLoad_MissingAccounts(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("POOL_ACCOUNTS", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want error for missing POOL_ACCOUNTS")
	}
}

func TestParseAccounts(t *testing.T) {
	accounts, err := parseAccounts("KennDunk, YZMining:fleet-a ,Soltero:fleet-b")
	if err != nil {
		t.Fatalf("parseAccounts() error = %v", err)
	}
	if len(accounts) != 3 {
		t.Fatalf("len(accounts) = %d, want 3", len(accounts))
	}
	if accounts[0].Name != "KennDunk" || accounts[0].Group != "" {
		t.Errorf("accounts[0] = %+v, want KennDunk with no group", accounts[0])
	}
	if accounts[1].Name != "YZMining" || accounts[1].Group != "fleet-a" {
		t.Errorf("accounts[1] = %+v, want YZMining:fleet-a", accounts[1])
	}
}

func TestParseAccounts_EmptyName(t *testing.T) {
	if _, err := parseAccounts(":group"); err == nil {
		t.Error("parseAccounts(\":group\") error = nil, want error")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://custom/db")
	t.Setenv("POOL_ACCOUNTS", "A,B")
	t.Setenv("API_CALL_BUDGET", "100")
	t.Setenv("API_BUDGET_WINDOW", "5m")
	t.Setenv("WORKER_POOL_SIZE", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CallBudget != 100 {
		t.Errorf("CallBudget = %d, want 100", cfg.CallBudget)
	}
	if cfg.BudgetWindow != 5*time.Minute {
		t.Errorf("BudgetWindow = %v, want 5m", cfg.BudgetWindow)
	}
	if cfg.WorkerPoolSize != 8 {
		t.Errorf("WorkerPoolSize = %d, want 8", cfg.WorkerPoolSize)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("POOL_ACCOUNTS", "A")
	t.Setenv("API_CALL_BUDGET", "not-a-number")
	t.Setenv("OFFLINE_AFTER", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CallBudget != 600 {
		t.Errorf("CallBudget = %d, want fallback 600", cfg.CallBudget)
	}
	if cfg.OfflineAfter != 15*time.Minute {
		t.Errorf("OfflineAfter = %v, want fallback 15m", cfg.OfflineAfter)
	}
}

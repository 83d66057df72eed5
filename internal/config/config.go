package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AccountConfig names one pool sub-account to collect. Credentials are
// resolved separately, per account, from the secret store.
type AccountConfig struct {
	Name  string
	Group string
}

type Config struct {
	DatabaseURL string
	BaseURL     string
	Coin        string
	Accounts    []AccountConfig

	// Shared API budget: CallBudget calls per rolling BudgetWindow.
	CallBudget   int
	BudgetWindow time.Duration

	// Per-run behavior.
	WorkerPoolSize int
	MaxCallRetries int
	RetryBaseDelay time.Duration
	RunTimeout     time.Duration

	// Deferred parser.
	ParseBatchSize int
	MaxParseRetry  int

	// Problem detector thresholds.
	OfflineAfter     time.Duration
	LowHashrateRatio float64
	RejectRateLimit  float64

	// Maintenance retention horizons.
	CaptureRetention time.Duration
	AlertRetention   time.Duration

	// Status server / daemon mode.
	ServerPort       string
	CronEssentials   string
	CronOverview     string
	CronDeepAnalysis string
	CronMaintenance  string
	CronParse        string
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present, matching how the
// collector is run outside the scheduler.
func Load() (*Config, error) {
	godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	accounts, err := parseAccounts(os.Getenv("POOL_ACCOUNTS"))
	if err != nil {
		return nil, err
	}

	return &Config{
		DatabaseURL: databaseURL,
		BaseURL:     getEnv("ANTPOOL_BASE_URL", "https://antpool.com"),
		Coin:        getEnv("POOL_COIN", "BTC"),
		Accounts:    accounts,

		CallBudget:   getInt("API_CALL_BUDGET", 600),
		BudgetWindow: getDuration("API_BUDGET_WINDOW", 10*time.Minute),

		WorkerPoolSize: getInt("WORKER_POOL_SIZE", 4),
		MaxCallRetries: getInt("MAX_CALL_RETRIES", 3),
		RetryBaseDelay: getDuration("RETRY_BASE_DELAY", time.Second),
		RunTimeout:     getDuration("RUN_TIMEOUT", 8*time.Minute),

		ParseBatchSize: getInt("PARSE_BATCH_SIZE", 100),
		MaxParseRetry:  getInt("MAX_PARSE_RETRY", 3),

		OfflineAfter:     getDuration("OFFLINE_AFTER", 15*time.Minute),
		LowHashrateRatio: getFloat("LOW_HASHRATE_RATIO", 0.5),
		RejectRateLimit:  getFloat("REJECT_RATE_LIMIT", 5.0),

		CaptureRetention: getDuration("CAPTURE_RETENTION", 72*time.Hour),
		AlertRetention:   getDuration("ALERT_RETENTION", 30*24*time.Hour),

		ServerPort:       getEnv("SERVER_PORT", "8080"),
		CronEssentials:   getEnv("CRON_ESSENTIALS", "*/10 * * * *"),
		CronOverview:     getEnv("CRON_OVERVIEW", "0 * * * *"),
		CronDeepAnalysis: getEnv("CRON_DEEP_ANALYSIS", "30 * * * *"),
		CronMaintenance:  getEnv("CRON_MAINTENANCE", "0 2 * * *"),
		CronParse:        getEnv("CRON_PARSE", "5,15,25,35,45,55 * * * *"),
	}, nil
}

// parseAccounts decodes POOL_ACCOUNTS, a comma-separated list of
// "name" or "name:group" entries.
func parseAccounts(raw string) ([]AccountConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("POOL_ACCOUNTS environment variable is required")
	}

	var accounts []AccountConfig
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, group, _ := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("POOL_ACCOUNTS contains an entry with no account name: %q", entry)
		}
		accounts = append(accounts, AccountConfig{Name: name, Group: strings.TrimSpace(group)})
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("POOL_ACCOUNTS is set but contains no accounts")
	}
	return accounts, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration for env var, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer for env var, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid float for env var, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return f
}

package election

import (
	"os"
	"strconv"

	"golang.org/x/time/rate"
)

// ModuleConfig holds the election module's tunables.
type ModuleConfig struct {
	// Requests per second allowed per client on the dashboard feed; the UI
	// polls every 1-2s, so the default leaves headroom for a refresh burst.
	DashboardRate  rate.Limit
	DashboardBurst int

	// Default nominations each voter may cast per position.
	DefaultMaxNominations int

	// Path to the position catalog YAML; empty means the built-in catalog.
	CatalogPath string
}

// LoadFromEnv loads module configuration from environment variables.
//
//   - ELECTION_DASHBOARD_RPS: per-client dashboard requests/second (default 2)
//   - ELECTION_DASHBOARD_BURST: burst size (default 5)
//   - ELECTION_MAX_NOMINATIONS: default nominations per voter (default 1)
//   - ELECTION_CATALOG: path to the position catalog YAML
func LoadFromEnv() ModuleConfig {
	cfg := ModuleConfig{
		DashboardRate:         2,
		DashboardBurst:        5,
		DefaultMaxNominations: 1,
		CatalogPath:           os.Getenv("ELECTION_CATALOG"),
	}

	if v, err := strconv.ParseFloat(os.Getenv("ELECTION_DASHBOARD_RPS"), 64); err == nil && v > 0 {
		cfg.DashboardRate = rate.Limit(v)
	}
	if v, err := strconv.Atoi(os.Getenv("ELECTION_DASHBOARD_BURST")); err == nil && v > 0 {
		cfg.DashboardBurst = v
	}
	if v, err := strconv.Atoi(os.Getenv("ELECTION_MAX_NOMINATIONS")); err == nil && v >= 1 {
		cfg.DefaultMaxNominations = v
	}

	return cfg
}

func (c ModuleConfig) Validate() error {
	if c.DashboardRate <= 0 || c.DashboardBurst <= 0 {
		return validationf("dashboard rate limit must be positive")
	}
	if c.DefaultMaxNominations < 1 {
		return validationf("default max nominations must be at least 1")
	}
	return nil
}

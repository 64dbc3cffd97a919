package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	InfuraKey     string `envconfig:"TOKENMETA_INFURA_KEY"`
	DBPath        string `envconfig:"TOKENMETA_DB_PATH" default:"./data/tokenmeta.sqlite"`
	Port          int    `envconfig:"TOKENMETA_PORT" default:"8080"`
	LogLevel      string `envconfig:"TOKENMETA_LOG_LEVEL" default:"info"`
	LogDir        string `envconfig:"TOKENMETA_LOG_DIR" default:"./logs"`
	OverridesFile string `envconfig:"TOKENMETA_OVERRIDES_FILE"`

	RateLimitRPS  int  `envconfig:"TOKENMETA_RATE_LIMIT_RPS" default:"10"`
	VerifyChainID bool `envconfig:"TOKENMETA_VERIFY_CHAIN_ID" default:"false"`

	// Per-network endpoint overrides. Empty means the built-in endpoint.
	RPCURLHomestead  string `envconfig:"TOKENMETA_RPC_URL_HOMESTEAD"`
	RPCURLKovan      string `envconfig:"TOKENMETA_RPC_URL_KOVAN"`
	RPCURLPolygon    string `envconfig:"TOKENMETA_RPC_URL_POLYGON"`
	RPCURLArbitrum   string `envconfig:"TOKENMETA_RPC_URL_ARBITRUM"`
	RPCURLAurora     string `envconfig:"TOKENMETA_RPC_URL_AURORA"`
	RPCURLAuroraTest string `envconfig:"TOKENMETA_RPC_URL_AURORATEST"`
}

// Load reads configuration from .env file (if present) then from environment variables.
// Environment variables override .env values.
func Load() (*Config, error) {
	// godotenv does NOT override already-set env vars.
	envFiles := []string{".env"}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				slog.Warn("failed to load .env file", "file", f, "error", err)
			} else {
				slog.Info("loaded .env file", "file", f)
			}
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be 1-65535, got %d", ErrInvalidConfig, c.Port)
	}
	if c.RateLimitRPS < 1 {
		return fmt.Errorf("%w: rate limit must be at least 1 rps, got %d", ErrInvalidConfig, c.RateLimitRPS)
	}
	return nil
}

// EndpointOverrides returns the non-empty per-network RPC URL overrides keyed by
// network name.
func (c *Config) EndpointOverrides() map[string]string {
	all := map[string]string{
		"homestead":  c.RPCURLHomestead,
		"kovan":      c.RPCURLKovan,
		"polygon":    c.RPCURLPolygon,
		"arbitrum":   c.RPCURLArbitrum,
		"aurora":     c.RPCURLAurora,
		"auroratest": c.RPCURLAuroraTest,
	}

	overrides := make(map[string]string)
	for name, url := range all {
		if url != "" {
			overrides[name] = url
		}
	}
	return overrides
}

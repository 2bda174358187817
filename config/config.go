// Package config loads the configuration of the x402 resource server.
//
// Settings come from a TOML file and may be overridden by X402_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	x402core "github.com/vitwit/x402core"
	"github.com/vitwit/x402core/types"
	"github.com/vitwit/x402core/utils"
)

// Config holds all configuration for the server
type Config struct {
	Listen   string `toml:"listen" validate:"required"`
	LogLevel string `toml:"log_level" validate:"oneof=debug info warn error"`

	// Metrics exposes Prometheus metrics at /metrics.
	Metrics bool `toml:"metrics"`

	// Decimals of the payment asset, used for human-readable amounts.
	Decimals int `toml:"decimals" validate:"gte=0,lte=77"`

	ExemptPaths []string `toml:"exempt_paths"`
	Routes      []Route  `toml:"routes" validate:"required,min=1,dive"`
}

// Route is one paid endpoint.
type Route struct {
	Path        string `toml:"path" validate:"required,startswith=/"`
	Amount      string `toml:"amount" validate:"required,x402amount"`
	Recipient   string `toml:"recipient" validate:"required,eth_addr"`
	Network     string `toml:"network" validate:"required,x402network"`
	Token       string `toml:"token" validate:"omitempty,eth_addr"`
	Description string `toml:"description"`

	// Resource defaults to the request path.
	Resource string `toml:"resource"`

	// Body is served to paying clients.
	Body string `toml:"body"`
}

// Default returns the configuration used for settings absent from the file.
func Default() Config {
	return Config{
		Listen:   ":8402",
		LogLevel: "info",
	}
}

// Load reads the TOML file at path, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// Parse is Load for an in-memory document.
func Parse(doc string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(doc, &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	applyEnv(&cfg)

	if _, err := utils.ValidateStruct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Requirements builds the payment requirements of the route.
func (r Route) Requirements() (*types.PaymentRequirements, error) {
	return x402core.New().NewRequirements(x402core.RequirementsParams{
		Amount:      r.Amount,
		Recipient:   r.Recipient,
		Network:     r.Network,
		Token:       r.Token,
		Description: r.Description,
		Resource:    r.Resource,
	})
}

func applyEnv(cfg *Config) {
	cfg.Listen = getEnv("X402_LISTEN", cfg.Listen)
	cfg.LogLevel = getEnv("X402_LOG_LEVEL", cfg.LogLevel)
	cfg.Metrics = getEnvBool("X402_METRICS", cfg.Metrics)
	cfg.Decimals = getEnvInt("X402_DECIMALS", cfg.Decimals)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

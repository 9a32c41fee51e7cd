// Package config defines service configuration and loading.
package config

import (
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config contains process configuration.
type Config struct {
	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// DBPath is the sqlite database file.
	DBPath string `koanf:"db_path"`

	// CacheDir holds the rendered summary image.
	CacheDir string `koanf:"cache_dir"`

	// LogDir holds the rotated log files.
	LogDir string `koanf:"log_dir"`

	// CountriesAPI is the country-catalog endpoint.
	CountriesAPI string `koanf:"countries_api"`

	// ExchangeAPI is the exchange-rate endpoint.
	ExchangeAPI string `koanf:"exchange_api"`

	// FetchTimeoutSeconds bounds each upstream read.
	FetchTimeoutSeconds int `koanf:"fetch_timeout_seconds"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Addr:                ":8000",
		DBPath:              "countrypulse.db",
		CacheDir:            "cache",
		LogDir:              "./logs",
		CountriesAPI:        "https://restcountries.com/v3.1/all",
		ExchangeAPI:         "https://api.exchangerate-api.com/v4/latest/USD",
		FetchTimeoutSeconds: 30,
	}
}

// Load builds a Config by layering defaults, an optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if COUNTRYPULSE_CONFIG is set
//  3. env (prefix COUNTRYPULSE_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("COUNTRYPULSE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Environment variables: COUNTRYPULSE_ADDR, COUNTRYPULSE_DB_PATH, ...
	// Underscores are preserved to match the koanf tags on the struct.
	envProvider := env.Provider("COUNTRYPULSE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "countrypulse_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if cfg.Addr == "" {
		return nil, errors.New("addr must not be empty")
	}
	if cfg.CountriesAPI == "" || cfg.ExchangeAPI == "" {
		return nil, errors.New("upstream endpoint URLs must not be empty")
	}
	if cfg.FetchTimeoutSeconds <= 0 {
		return nil, errors.New("fetch_timeout_seconds must be positive")
	}
	return &cfg, nil
}

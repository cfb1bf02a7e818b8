// Package common provides shared utilities for haulbid CLI commands:
// YAML configuration loading, key handling, and logger setup.
package common

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haulbid/haulbid/crypto"
	"github.com/haulbid/haulbid/engine"
	"github.com/haulbid/haulbid/services"
)

// MarketConfig carries the engine policy knobs as they appear in the YAML
// config file. Zero values fall back to the engine defaults.
type MarketConfig struct {
	Admin  string `yaml:"admin"`
	Pauser string `yaml:"pauser"`
	Oracle string `yaml:"oracle"`

	MinBiddingWindow time.Duration `yaml:"min_bidding_window"`
	MaxBiddingWindow time.Duration `yaml:"max_bidding_window"`
	DeliveryWindow   time.Duration `yaml:"delivery_window"`
	RevealTTL        time.Duration `yaml:"reveal_ttl"`

	MaxBidsPerJob         int    `yaml:"max_bids_per_job"`
	MaxOpenJobsPerShipper int    `yaml:"max_open_jobs_per_shipper"`
	MinReliability        uint64 `yaml:"min_reliability"`
}

// Config is the top-level daemon configuration.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	EnablePprof bool   `yaml:"enable_pprof"`
	LogJSON     bool   `yaml:"log_json"`
	LogDebug    bool   `yaml:"log_debug"`

	// SigningKey is the daemon's Ed25519 private key in hex. Generated if
	// empty.
	SigningKey string `yaml:"signing_key"`

	Market   MarketConfig             `yaml:"market"`
	Postgres *services.PostgresConfig `yaml:"postgres"`

	// DevOracle runs an in-process decryption oracle that answers reveal
	// requests immediately. Development only.
	DevOracle bool `yaml:"dev_oracle"`
	// DevEncrypt exposes the plaintext sealing endpoint. Development only.
	DevEncrypt bool `yaml:"dev_encrypt"`
}

// DefaultConfig returns a config suitable for a local dev run.
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:   ":8080",
		DevOracle:  true,
		DevEncrypt: true,
	}
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(body, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// EngineConfig converts the YAML market section into the engine's config.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		Admin:                 crypto.Account(c.Market.Admin),
		Pauser:                crypto.Account(c.Market.Pauser),
		Oracle:                crypto.Account(c.Market.Oracle),
		MinBiddingWindow:      c.Market.MinBiddingWindow,
		MaxBiddingWindow:      c.Market.MaxBiddingWindow,
		DeliveryWindow:        c.Market.DeliveryWindow,
		RevealTTL:             c.Market.RevealTTL,
		MaxBidsPerJob:         c.Market.MaxBidsPerJob,
		MaxOpenJobsPerShipper: c.Market.MaxOpenJobsPerShipper,
		MinReliability:        c.Market.MinReliability,
	}
}

// LoadOrGenerateSigningKey loads an Ed25519 private key from a hex string,
// or generates a new key pair if hexKey is empty.
func LoadOrGenerateSigningKey(hexKey string) (crypto.PrivateKey, error) {
	if hexKey != "" {
		keyBytes, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
		return crypto.NewPrivateKeyFromBytes(keyBytes), nil
	}
	_, privKey, err := crypto.GenerateKeyPair()
	return privKey, err
}

// NewLogger builds the daemon's structured logger.
func NewLogger(json, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// Package config loads the pipeline's YAML configuration file and applies
// the documented defaults for every recognized option.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds every option the core pipeline and its cold-path
// collaborators (discovery, the query server) recognize.
type Config struct {
	MinVolume24h         float64  `yaml:"min_volume_24h"`
	OpportunityThreshold int64    `yaml:"opportunity_threshold"`
	WindowSeconds        int      `yaml:"window_seconds"`
	QueueCapacity        int      `yaml:"queue_capacity"`
	MaxInstruments       int      `yaml:"max_instruments"`
	MaxSubscriptionBatch int      `yaml:"max_subscription_batch"`
	ReconnectInitial     Duration `yaml:"reconnect_initial"`
	ReconnectMax         Duration `yaml:"reconnect_max"`
	KeepaliveSilence     Duration `yaml:"keepalive_silence"`
	ConnectTimeout       Duration `yaml:"connect_timeout"`

	// BinanceWSURL/BybitWSURL are the WS stream endpoints the venue clients
	// dial; the REST variants feed the discovery collaborator.
	BinanceWSURL   string `yaml:"binance.ws_url"`
	BybitWSURL     string `yaml:"bybit.ws_url"`
	BinanceRESTURL string `yaml:"binance.rest_url"`
	BybitRESTURL   string `yaml:"bybit.rest_url"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns a Config populated with every documented default.
func Default() Config {
	return Config{
		MinVolume24h:         1_000_000,
		OpportunityThreshold: 250_000,
		WindowSeconds:        120,
		QueueCapacity:        1024,
		MaxInstruments:       5000,
		MaxSubscriptionBatch: 200,
		ReconnectInitial:     Duration(time.Second),
		ReconnectMax:         Duration(60 * time.Second),
		KeepaliveSilence:     Duration(20 * time.Second),
		ConnectTimeout:       Duration(10 * time.Second),

		BinanceWSURL:   "wss://fstream.binance.com/ws",
		BybitWSURL:     "wss://stream.bybit.com/v5/public/linear",
		BinanceRESTURL: "https://fapi.binance.com/fapi/v1/ticker/24hr",
		BybitRESTURL:   "https://api.bybit.com/v5/market/tickers",

		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Load reads and parses the YAML file at path, then fills in any field
// left at its zero value with the documented default. A missing or
// unparseable file is a fatal, cold-path error (spec.md §7 kind 6).
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// setDefaults restores the documented default for any field the YAML file
// left unset (zero value), so a partial config file is valid.
func (c *Config) setDefaults() {
	d := Default()
	if c.MinVolume24h == 0 {
		c.MinVolume24h = d.MinVolume24h
	}
	if c.OpportunityThreshold == 0 {
		c.OpportunityThreshold = d.OpportunityThreshold
	}
	if c.WindowSeconds == 0 {
		c.WindowSeconds = d.WindowSeconds
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = d.QueueCapacity
	}
	if c.MaxInstruments == 0 {
		c.MaxInstruments = d.MaxInstruments
	}
	if c.MaxSubscriptionBatch == 0 {
		c.MaxSubscriptionBatch = d.MaxSubscriptionBatch
	}
	if c.ReconnectInitial == 0 {
		c.ReconnectInitial = d.ReconnectInitial
	}
	if c.ReconnectMax == 0 {
		c.ReconnectMax = d.ReconnectMax
	}
	if c.KeepaliveSilence == 0 {
		c.KeepaliveSilence = d.KeepaliveSilence
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.BinanceWSURL == "" {
		c.BinanceWSURL = d.BinanceWSURL
	}
	if c.BybitWSURL == "" {
		c.BybitWSURL = d.BybitWSURL
	}
	if c.BinanceRESTURL == "" {
		c.BinanceRESTURL = d.BinanceRESTURL
	}
	if c.BybitRESTURL == "" {
		c.BybitRESTURL = d.BybitRESTURL
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
}

// validate rejects configuration values that would violate a core
// invariant (spec.md §7 kind 6: fatal at startup, not a hot-path failure).
func (c Config) validate() error {
	if c.MaxInstruments <= 0 {
		return fmt.Errorf("max_instruments must be positive, got %d", c.MaxInstruments)
	}
	if c.MaxSubscriptionBatch <= 0 {
		return fmt.Errorf("max_subscription_batch must be positive, got %d", c.MaxSubscriptionBatch)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queue_capacity must be positive, got %d", c.QueueCapacity)
	}
	if c.OpportunityThreshold <= 0 {
		return fmt.Errorf("opportunity_threshold must be positive, got %d", c.OpportunityThreshold)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("log_format must be \"console\" or \"json\", got %q", c.LogFormat)
	}
	return nil
}

// WindowDuration converts WindowSeconds to a time.Duration.
func (c Config) WindowDuration() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// Package config loads service configuration from a TOML file, with
// defaults suitable for local development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Cache     CacheConfig     `toml:"cache"`
	Store     StoreConfig     `toml:"store"`
	Upstream  UpstreamConfig  `toml:"upstream"`
	Narrative NarrativeConfig `toml:"narrative"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `toml:"addr"`
	// RequestTimeout bounds one API request end to end.
	RequestTimeout duration `toml:"request_timeout"`
}

type CacheConfig struct {
	// Backend selects the upstream-response cache: "file", "memory",
	// "redis", or "none".
	Backend string `toml:"backend"`
	// Dir overrides the file cache location.
	Dir string `toml:"dir"`
	// TTL for cached upstream responses.
	TTL duration `toml:"ttl"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

type StoreConfig struct {
	// Backend selects record persistence: "memory" or "mongo".
	Backend string `toml:"backend"`

	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

type UpstreamConfig struct {
	// RegistryURL overrides the crates.io API root. Empty uses the
	// public registry.
	RegistryURL string `toml:"registry_url"`
	// DocsURL overrides the docs.rs root. Empty uses the public host.
	DocsURL string `toml:"docs_url"`
	// FetchDelay throttles consecutive crawl fetches.
	FetchDelay duration `toml:"fetch_delay"`
}

type NarrativeConfig struct {
	// BaseURL of an OpenAI-compatible completions API. Empty disables
	// LLM synthesis and uses the deterministic template.
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Model   string   `toml:"model"`
	Timeout duration `toml:"timeout"`
}

type RateLimitConfig struct {
	// Backend selects the sliding-window store: "memory" or "redis".
	Backend string `toml:"backend"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// duration wraps time.Duration with TOML string decoding ("30s", "6h").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the development configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: duration{60 * time.Second},
		},
		Cache: CacheConfig{
			Backend: "file",
			TTL:     duration{time.Hour},
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Upstream: UpstreamConfig{
			FetchDelay: duration{150 * time.Millisecond},
		},
		Narrative: NarrativeConfig{
			Model:   "gpt-4o-mini",
			Timeout: duration{60 * time.Second},
		},
		RateLimit: RateLimitConfig{
			Backend: "memory",
		},
	}
}

// Load reads a TOML file over the defaults. An empty path returns the
// defaults untouched.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Package config loads agent configuration from the environment.
package config

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server ServerConfig
	Origin OriginConfig
	Cache  CacheConfig
	Push   PushConfig
}

type ServerConfig struct {
	Port                   int    `env:"AGENT_PORT, default=8080"`
	ShutdownTimeoutSeconds int    `env:"AGENT_SHUTDOWN_TIMEOUT_SECS, default=15"`
	Scope                  string `env:"AGENT_SCOPE, default=/"`
}

type OriginConfig struct {
	// URL of the application origin server that requests are relayed to.
	URL string `env:"AGENT_ORIGIN_URL, required"`
	// APIPrefix is the path namespace that is never intercepted or cached.
	APIPrefix string `env:"AGENT_API_PREFIX, default=/api/"`
	// RootDocument is the offline fallback for navigations.
	RootDocument string `env:"AGENT_ROOT_DOCUMENT, default=/index.html"`
}

type CacheConfig struct {
	// Provider selects the cache backend: "sqlite" (default) or "memory".
	Provider string `env:"AGENT_CACHE_PROVIDER, default=sqlite"`
	// DBFile is the sqlite database file for the sqlite provider.
	DBFile string `env:"AGENT_CACHE_DB, default=cache.db"`
	// Generation names the current cache generation. Changing it on a
	// deploy makes the next install/activate cycle drop all previously
	// cached responses.
	Generation string `env:"AGENT_CACHE_GENERATION, default=rooster-v2"`
	// MaxEntries bounds each store of the memory provider.
	MaxEntries int `env:"AGENT_CACHE_MAX_ENTRIES, default=4096"`
	// Manifest optionally points to a YAML precache manifest produced by
	// the application build.
	Manifest string `env:"AGENT_PRECACHE_MANIFEST"`
}

type PushConfig struct {
	DefaultTitle string `env:"AGENT_PUSH_DEFAULT_TITLE, default=Rooster"`
	DefaultBody  string `env:"AGENT_PUSH_DEFAULT_BODY, default=You have a new notification"`
	Icon         string `env:"AGENT_PUSH_ICON, default=/icons/Icon-192.png"`
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the env tags cannot express.
func (c *Config) Validate() error {
	if c.Cache.Provider != "sqlite" && c.Cache.Provider != "memory" {
		return fmt.Errorf("unsupported cache provider: %s", c.Cache.Provider)
	}
	u, err := url.Parse(c.Origin.URL)
	if err != nil {
		return fmt.Errorf("invalid origin URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("origin URL must be absolute: %s", c.Origin.URL)
	}
	if u.Path != "" && u.Path != "/" {
		return fmt.Errorf("origins with paths are not supported: %s", c.Origin.URL)
	}
	return nil
}

// OriginURL returns the parsed origin URL. Call after Validate.
func (c *Config) OriginURL() (*url.URL, error) {
	u, err := url.Parse(c.Origin.URL)
	if err != nil {
		return nil, err
	}
	u.Path = ""
	return u, nil
}

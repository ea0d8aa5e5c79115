// Package config loads the demo server settings from the environment
// and per-route cache policies from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/ericselin/outputcache"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config holds the server configuration
type Config struct {
	Port          int           `env:"PORT" envDefault:"8080"`
	Store         string        `env:"OUTPUTCACHE_STORE" envDefault:"memory"`
	SQLitePath    string        `env:"OUTPUTCACHE_SQLITE_PATH" envDefault:"outputcache.db"`
	RedisAddr     string        `env:"OUTPUTCACHE_REDIS_ADDR" envDefault:"localhost:6379"`
	SweepInterval time.Duration `env:"OUTPUTCACHE_SWEEP_INTERVAL" envDefault:"1m"`
	// Optional YAML file overriding the built-in route policies.
	PoliciesFile string `env:"OUTPUTCACHE_POLICIES"`
	KeyPrefix    string `env:"OUTPUTCACHE_KEY_PREFIX"`
	// Emit Cache-Status response headers.
	CacheStatus bool   `env:"OUTPUTCACHE_CACHE_STATUS" envDefault:"true"`
	LogFile     string `env:"OUTPUTCACHE_LOG_FILE"`
}

// Load reads configuration from environment variables
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("unknown store %q (want memory, sqlite or redis)", c.Store)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("negative sweep interval %s", c.SweepInterval)
	}
	return nil
}

// Policies maps route names to cache policies.
type Policies map[string]outputcache.Policy

// LoadPolicies reads and validates a policy file.
func LoadPolicies(filename string) (Policies, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var policies Policies
	if err := yaml.Unmarshal(b, &policies); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	for route, p := range policies {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("policy %s: %w", route, err)
		}
	}
	return policies, nil
}

// Get returns the policy configured for route, or fallback.
func (p Policies) Get(route string, fallback outputcache.Policy) outputcache.Policy {
	if policy, ok := p[route]; ok {
		return policy
	}
	return fallback
}

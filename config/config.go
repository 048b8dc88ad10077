// Package config loads gatewatch configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the gatewatch service.
type Config struct {
	Server struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	API struct {
		// BaseURL is the firewall MSP API endpoint.
		BaseURL string        `mapstructure:"base_url"`
		Token   string        `mapstructure:"token"`
		Timeout time.Duration `mapstructure:"timeout"`
		// Retry budget for a single tool invocation.
		RetryBudget     time.Duration `mapstructure:"retry_budget"`
		MaxAttempts     int           `mapstructure:"max_attempts"`
		MinAttemptFloor time.Duration `mapstructure:"min_attempt_floor"`
	} `mapstructure:"api"`

	Limits struct {
		// SearchMax is the limit ceiling for search tools.
		SearchMax int `mapstructure:"search_max"`
		// AlarmsMax is the higher ceiling for the alarms search tool.
		AlarmsMax int `mapstructure:"alarms_max"`
	} `mapstructure:"limits"`

	RateLimit struct {
		RequestsPerSecond int `mapstructure:"requests_per_second"`
		Burst             int `mapstructure:"burst"`
	} `mapstructure:"rate_limit"`

	Cache struct {
		// Backend selects "memory" or "redis".
		Backend    string        `mapstructure:"backend"`
		MaxEntries int           `mapstructure:"max_entries"`
		DefaultTTL time.Duration `mapstructure:"default_ttl"`
		Redis      struct {
			Addr     string `mapstructure:"addr"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
			Prefix   string `mapstructure:"prefix"`
		} `mapstructure:"redis"`
	} `mapstructure:"cache"`

	Geo struct {
		Enabled           bool          `mapstructure:"enabled"`
		RolloutPercentage int           `mapstructure:"rollout_percentage"`
		CacheTTL          time.Duration `mapstructure:"cache_ttl"`
		SoftBudget        time.Duration `mapstructure:"soft_budget"`
		TargetSuccessRate float64       `mapstructure:"target_success_rate"`
		Providers         struct {
			PrimaryURL    string `mapstructure:"primary_url"`
			SecondaryURL  string `mapstructure:"secondary_url"`
			TertiaryURL   string `mapstructure:"tertiary_url"`
			TertiaryToken string `mapstructure:"tertiary_token"`
		} `mapstructure:"providers"`
	} `mapstructure:"geo"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)

	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("api.retry_budget", 30*time.Second)
	v.SetDefault("api.max_attempts", 3)
	v.SetDefault("api.min_attempt_floor", 2*time.Second)

	v.SetDefault("limits.search_max", 1000)
	v.SetDefault("limits.alarms_max", 10000)

	v.SetDefault("rate_limit.requests_per_second", 50)
	v.SetDefault("rate_limit.burst", 100)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.max_entries", 10000)
	v.SetDefault("cache.default_ttl", time.Hour)
	v.SetDefault("cache.redis.prefix", "gatewatch:")

	v.SetDefault("geo.enabled", true)
	v.SetDefault("geo.rollout_percentage", 100)
	v.SetDefault("geo.cache_ttl", 24*time.Hour)
	v.SetDefault("geo.soft_budget", 5*time.Second)
	v.SetDefault("geo.target_success_rate", 0.9)

	v.SetDefault("log.level", "info")
}

// Load reads configuration from the given file (optional) and the
// environment. Environment variables use the GATEWATCH_ prefix with
// underscores, e.g. GATEWATCH_API_TOKEN.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GATEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Geo.RolloutPercentage < 0 || c.Geo.RolloutPercentage > 100 {
		return fmt.Errorf("geo rollout percentage must be 0-100, got %d", c.Geo.RolloutPercentage)
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q: must be memory or redis", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache backend redis requires cache.redis.addr")
	}
	if c.Limits.SearchMax <= 0 || c.Limits.AlarmsMax <= 0 {
		return fmt.Errorf("limit ceilings must be positive")
	}
	return nil
}

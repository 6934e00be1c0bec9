// Package config loads namescreen configuration from file, environment
// and defaults, in that order of increasing precedence for env overrides.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/veridex/namescreen/internal/cache"
	"github.com/veridex/namescreen/internal/screening"
	"github.com/veridex/namescreen/internal/source"
)

// OpsConfig configures the optional operational HTTP listener (health and
// metrics only; the platform's request API lives elsewhere).
type OpsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// Config is the full configuration surface of the screening engine.
type Config struct {
	LogLevel  string           `yaml:"log_level" json:"log_level"`
	Screening screening.Config `yaml:"screening" json:"screening"`
	Source    source.Config    `yaml:"source" json:"source"`
	Cache     cache.Config     `yaml:"cache" json:"cache"`
	Ops       OpsConfig        `yaml:"ops" json:"ops"`
}

// Load reads configuration from the optional file at path (or the default
// search locations when path is empty), layered over .env and environment
// variables with the NAMESCREEN_ prefix.
func Load(path string) (*Config, error) {
	// Local development convenience; absence of a .env file is fine.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("NAMESCREEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("namescreen")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/namescreen")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	cfg.LogLevel = v.GetString("log_level")

	cfg.Screening = screening.Config{
		Match: screening.MatchConfig{
			ExactMatchThreshold: v.GetFloat64("screening.exact_match_threshold"),
			PhoneticThreshold:   v.GetFloat64("screening.phonetic_threshold"),
			MinScoreThreshold:   v.GetFloat64("screening.min_score_threshold"),
		},
		GroupSize:   v.GetInt("screening.group_size"),
		SearchLimit: v.GetInt("screening.search_limit"),
		CallTimeout: v.GetDuration("screening.call_timeout"),
	}

	cfg.Source = source.Config{
		Kind:       source.Kind(v.GetString("source.kind")),
		Endpoint:   v.GetString("source.endpoint"),
		APIKey:     v.GetString("source.api_key"),
		Dataset:    v.GetString("source.dataset"),
		MaxRetries: v.GetInt("source.max_retries"),
		UserAgent:  v.GetString("source.user_agent"),
	}

	cfg.Cache = cache.Config{
		Enabled:       v.GetBool("cache.enabled"),
		Backend:       v.GetString("cache.backend"),
		TTL:           v.GetDuration("cache.ttl"),
		RedisAddr:     v.GetString("cache.redis_addr"),
		RedisPassword: v.GetString("cache.redis_password"),
		RedisDB:       v.GetInt("cache.redis_db"),
	}

	cfg.Ops = OpsConfig{
		Enabled: v.GetBool("ops.enabled"),
		Addr:    v.GetString("ops.addr"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Source.Endpoint == "" {
		return fmt.Errorf("source.endpoint is required")
	}
	m := c.Screening.Match
	for name, threshold := range map[string]float64{
		"screening.exact_match_threshold": m.ExactMatchThreshold,
		"screening.phonetic_threshold":    m.PhoneticThreshold,
		"screening.min_score_threshold":   m.MinScoreThreshold,
	} {
		if threshold < 0 || threshold > 100 {
			return fmt.Errorf("%s must be in [0,100], got %v", name, threshold)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	defaults := screening.DefaultConfig()
	v.SetDefault("screening.exact_match_threshold", defaults.Match.ExactMatchThreshold)
	v.SetDefault("screening.phonetic_threshold", defaults.Match.PhoneticThreshold)
	v.SetDefault("screening.min_score_threshold", defaults.Match.MinScoreThreshold)
	v.SetDefault("screening.group_size", defaults.GroupSize)
	v.SetDefault("screening.search_limit", defaults.SearchLimit)
	v.SetDefault("screening.call_timeout", defaults.CallTimeout)

	v.SetDefault("source.kind", string(source.KindOpenSanctions))
	v.SetDefault("source.endpoint", "")
	v.SetDefault("source.dataset", "default")
	v.SetDefault("source.max_retries", 2)
	v.SetDefault("source.user_agent", "")

	cacheDefaults := cache.DefaultConfig()
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.backend", cacheDefaults.Backend)
	v.SetDefault("cache.ttl", cacheDefaults.TTL)
	v.SetDefault("cache.redis_addr", cacheDefaults.RedisAddr)
	v.SetDefault("cache.redis_db", 0)

	v.SetDefault("ops.enabled", false)
	v.SetDefault("ops.addr", ":9402")
}

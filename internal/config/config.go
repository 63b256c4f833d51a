// Package config loads raid finder settings: built-in defaults, then an
// optional YAML file, then RAIDFINDER_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates levels: RAIDFINDER_TWITCH__CLIENT_ID sets twitch.client_id.
const EnvPrefix = "RAIDFINDER_"

// ServerConfig configures the HTTP listener and the files it serves.
type ServerConfig struct {
	Addr         string   `koanf:"addr"`
	Assets       string   `koanf:"assets"`
	Templates    string   `koanf:"templates"`
	AllowOrigins []string `koanf:"allow_origins"`
}

// TwitchConfig holds Helix credentials and endpoints.
type TwitchConfig struct {
	ClientID          string  `koanf:"client_id"`
	ClientSecret      string  `koanf:"client_secret"`
	APIBase           string  `koanf:"api_base"`
	TokenURL          string  `koanf:"token_url"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// RecommendConfig tunes the follower-network walk.
type RecommendConfig struct {
	SampleSize    int           `koanf:"sample_size"`
	MaxFollowings int           `koanf:"max_followings"`
	MinMutual     int           `koanf:"min_mutual"`
	MaxResults    int           `koanf:"max_results"`
	Workers       int           `koanf:"workers"`
	Language      string        `koanf:"language"`
	WalkTimeout   time.Duration `koanf:"walk_timeout"`
}

// CacheConfig selects the result cache. An empty RedisURL keeps results in memory.
type CacheConfig struct {
	RedisURL string        `koanf:"redis_url"`
	TTL      time.Duration `koanf:"ttl"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level string `koanf:"level"`
	// Dir enables a rotating log file when set.
	Dir string `koanf:"dir"`
}

// Config is the full runtime configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Twitch    TwitchConfig    `koanf:"twitch"`
	Recommend RecommendConfig `koanf:"recommend"`
	Cache     CacheConfig     `koanf:"cache"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:      "127.0.0.1:5000",
			Assets:    "web",
			Templates: "web/templates",
		},
		Twitch: TwitchConfig{
			APIBase:           "https://api.twitch.tv/helix",
			TokenURL:          "https://id.twitch.tv/oauth2/token",
			RequestsPerSecond: 12,
			Burst:             20,
		},
		Recommend: RecommendConfig{
			SampleSize:    300,
			MaxFollowings: 150,
			MinMutual:     2,
			MaxResults:    10,
			Workers:       100,
			WalkTimeout:   2 * time.Minute,
		},
		Cache: CacheConfig{
			TTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration. A missing path (or "") is not an error; a
// .env file in the working directory is read first when present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("access config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyEnvFallbacks()
	return cfg, cfg.Validate()
}

func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// applyEnvFallbacks fills Twitch credentials from the conventional variables
// when the config leaves them empty or as placeholders.
func (c *Config) applyEnvFallbacks() {
	if isPlaceholder(c.Twitch.ClientID) {
		c.Twitch.ClientID = strings.TrimSpace(os.Getenv("TWITCH_CLIENT_ID"))
	}
	if isPlaceholder(c.Twitch.ClientSecret) {
		c.Twitch.ClientSecret = strings.TrimSpace(os.Getenv("TWITCH_CLIENT_SECRET"))
	}
}

func isPlaceholder(value string) bool {
	v := strings.TrimSpace(value)
	return v == "" || strings.HasPrefix(v, "YOUR_")
}

// Validate checks values that would otherwise fail later and less clearly.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr is required")
	}
	if c.Twitch.RequestsPerSecond < 0 {
		return errors.New("twitch.requests_per_second must be non-negative")
	}
	if c.Recommend.SampleSize < 0 || c.Recommend.MaxFollowings < 0 || c.Recommend.MinMutual < 0 ||
		c.Recommend.MaxResults < 0 || c.Recommend.Workers < 0 {
		return errors.New("recommend settings must be non-negative")
	}
	if c.Recommend.WalkTimeout < 0 {
		return errors.New("recommend.walk_timeout must be non-negative")
	}
	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl must be non-negative")
	}
	return nil
}

// HasTwitchCredentials reports whether both Helix credentials are set.
func (c Config) HasTwitchCredentials() bool {
	return c.Twitch.ClientID != "" && c.Twitch.ClientSecret != ""
}

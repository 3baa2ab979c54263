// Package config loads crawler settings from a JSON settings file, the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings file locations tried when no explicit path is given.
const (
	DefaultSettingsPath = "config/settings.json"
	ExampleSettingsPath = "config/settings.example.json"
)

// EnvPrefix prefixes environment overrides, e.g. CRAWLER_MAXRETRIES=5 or
// CRAWLER_REDIS_ADDR=localhost:6379.
const EnvPrefix = "CRAWLER"

// ErrMissingCredentials is returned by Validate when the client id or access
// token is empty.
var ErrMissingCredentials = errors.New("twitch clientId or accessToken missing")

// Config is the complete crawler configuration.
type Config struct {
	BaseURL     string `mapstructure:"baseUrl"`
	ClientID    string `mapstructure:"clientId"`
	AccessToken string `mapstructure:"accessToken"`

	// MaxRetries is the attempt ceiling per Helix call, initial request included.
	MaxRetries        int           `mapstructure:"maxRetries"`
	TimeoutSeconds    float64       `mapstructure:"timeoutSeconds"`
	InitialBackoff    time.Duration `mapstructure:"initialBackoff"`
	RequestsPerSecond float64       `mapstructure:"requestsPerSecond"`

	MaxChannelsPerKeyword int `mapstructure:"maxChannelsPerKeyword"`
	EnrichConcurrency     int `mapstructure:"enrichConcurrency"`

	KeywordsFile string `mapstructure:"keywordsFile"`
	OutputFile   string `mapstructure:"outputFile"`

	LogLevel  string `mapstructure:"logLevel"`
	LogPretty bool   `mapstructure:"logPretty"`

	Redis   RedisConfig   `mapstructure:"redis"`
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Path is the settings file that was read, empty when none was found.
	Path string `mapstructure:"-"`
}

// RedisConfig enables the Redis sink and shared rate-limit state.
// An empty Addr disables Redis entirely.
type RedisConfig struct {
	Addr           string        `mapstructure:"addr"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	KeyPrefix      string        `mapstructure:"keyPrefix"`
	TTL            time.Duration `mapstructure:"ttl"`
	ShareRateLimit bool          `mapstructure:"shareRateLimit"`
}

// MetricsConfig controls the end-of-run Pushgateway push.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgatewayUrl"`
	Job            string `mapstructure:"job"`
}

// Timeout returns the per-attempt HTTP timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("baseUrl", "https://api.twitch.tv/helix")
	v.SetDefault("clientId", "")
	v.SetDefault("accessToken", "")
	v.SetDefault("maxRetries", 3)
	v.SetDefault("timeoutSeconds", 15)
	v.SetDefault("initialBackoff", "1s")
	v.SetDefault("requestsPerSecond", 0)
	v.SetDefault("maxChannelsPerKeyword", 50)
	v.SetDefault("enrichConcurrency", 1)
	v.SetDefault("keywordsFile", "data/keywords.sample.txt")
	v.SetDefault("outputFile", "data/sample_output.json")
	v.SetDefault("logLevel", "info")
	v.SetDefault("logPretty", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.keyPrefix", "helix:crawl")
	v.SetDefault("redis.ttl", "0s")
	v.SetDefault("redis.shareRateLimit", false)

	v.SetDefault("metrics.pushgatewayUrl", "")
	v.SetDefault("metrics.job", "helix_channel_crawler")
}

// ResolvePath picks the settings file: explicit if set, else the first of
// DefaultSettingsPath and ExampleSettingsPath that exists, else "".
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, candidate := range []string{DefaultSettingsPath, ExampleSettingsPath} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// LoadDotEnv loads .env files into the process environment. Missing files are
// not an error; the returned bool reports whether anything was loaded.
func LoadDotEnv(paths ...string) bool {
	return godotenv.Load(paths...) == nil
}

// Load builds a Config from defaults, the settings file at path (see
// ResolvePath) and environment overrides. TWITCH_CLIENT_ID and
// TWITCH_ACCESS_TOKEN take precedence over everything else for credentials.
// Load does not validate.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.BindEnv("clientId", "TWITCH_CLIENT_ID", EnvPrefix+"_CLIENTID"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}
	if err := v.BindEnv("accessToken", "TWITCH_ACCESS_TOKEN", EnvPrefix+"_ACCESSTOKEN"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	path = ResolvePath(path)
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Path = path
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.AccessToken = strings.TrimSpace(cfg.AccessToken)

	return cfg, nil
}

// Validate checks the settings needed for a crawl.
func (c Config) Validate() error {
	if c.ClientID == "" || c.AccessToken == "" {
		return ErrMissingCredentials
	}
	if c.BaseURL == "" {
		return fmt.Errorf("baseUrl is required")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("maxRetries must be >= 1 (got %d)", c.MaxRetries)
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeoutSeconds must be > 0 (got %v)", c.TimeoutSeconds)
	}
	if c.InitialBackoff < 0 {
		return fmt.Errorf("initialBackoff must be >= 0 (got %v)", c.InitialBackoff)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requestsPerSecond must be >= 0 (got %v)", c.RequestsPerSecond)
	}
	if c.MaxChannelsPerKeyword < 1 {
		return fmt.Errorf("maxChannelsPerKeyword must be >= 1 (got %d)", c.MaxChannelsPerKeyword)
	}
	if c.EnrichConcurrency < 1 {
		return fmt.Errorf("enrichConcurrency must be >= 1 (got %d)", c.EnrichConcurrency)
	}
	if c.Redis.ShareRateLimit && c.Redis.Addr == "" {
		return fmt.Errorf("redis.shareRateLimit requires redis.addr")
	}
	return nil
}

// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/douban-harvester/internal/douban"
)

// EnvPrefix namespaces environment overrides, e.g. DOUBAN_DOUBAN_COOKIE.
const EnvPrefix = "DOUBAN"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Douban   DoubanConfig   `mapstructure:"douban"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Detector DetectorConfig `mapstructure:"detector"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the HTTP facade.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DoubanConfig holds the session and endpoint settings.
type DoubanConfig struct {
	Cookie           string `mapstructure:"cookie"`
	AvoidRiskControl bool   `mapstructure:"avoid_risk_control"`
	CookieDomain     string `mapstructure:"cookie_domain"`
	BaseURL          string `mapstructure:"base_url"`
	MovieBaseURL     string `mapstructure:"movie_base_url"`
}

// HTTPConfig configures the outbound client.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// DetectorConfig lists the risk-control signals.
type DetectorConfig struct {
	BlockHosts     []string `mapstructure:"block_hosts"`
	BlockMarkers   []string `mapstructure:"block_markers"`
	BlockSelectors []string `mapstructure:"block_selectors"`
}

// CacheConfig sets result lifetimes.
type CacheConfig struct {
	SearchTTL          time.Duration `mapstructure:"search_ttl"`
	CelebritySearchTTL time.Duration `mapstructure:"celebrity_search_ttl"`
	DetailTTL          time.Duration `mapstructure:"detail_ttl"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment. An empty path searches the
// usual locations and tolerates a missing file.
func Load(path string) (Config, error) {
	_, cfg, err := load(path)
	return cfg, err
}

func load(path string) (*viper.Viper, Config, error) {
	v := newViper(path)
	if err := readConfig(v, path); err != nil {
		return nil, Config{}, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, Config{}, err
	}
	return v, cfg, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/douban-harvester/")
		v.AddConfigPath("$HOME/.douban-harvester")
	}
	return v
}

func readConfig(v *viper.Viper, path string) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if path == "" && errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("read config: %w", err)
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("douban.cookie", "")
	v.SetDefault("douban.avoid_risk_control", false)
	v.SetDefault("douban.cookie_domain", "douban.com")
	v.SetDefault("douban.base_url", douban.DefaultBaseURL)
	v.SetDefault("douban.movie_base_url", douban.DefaultMovieBaseURL)
	v.SetDefault("http.timeout_seconds", 20)
	v.SetDefault("http.user_agent", "")
	v.SetDefault("detector.block_hosts", []string{"sec.douban.com"})
	v.SetDefault("detector.block_markers", []string{"sec.douban.com"})
	v.SetDefault("detector.block_selectors", []string{})
	v.SetDefault("cache.search_ttl", douban.DefaultSearchTTL)
	v.SetDefault("cache.celebrity_search_ttl", douban.DefaultCelebritySearchTTL)
	v.SetDefault("cache.detail_ttl", douban.DefaultDetailTTL)
	v.SetDefault("cache.sweep_interval", 10*time.Minute)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Douban.BaseURL == "" || c.Douban.MovieBaseURL == "" {
		return fmt.Errorf("douban.base_url and douban.movie_base_url must be set")
	}
	if c.Cache.SearchTTL <= 0 || c.Cache.CelebritySearchTTL <= 0 || c.Cache.DetailTTL <= 0 {
		return fmt.Errorf("cache ttls must be > 0")
	}
	if c.Cache.SweepInterval < 0 {
		return fmt.Errorf("cache.sweep_interval must be >= 0")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// Timeout converts the HTTP timeout into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Settings extracts the live session settings.
func (c Config) Settings() douban.Settings {
	return douban.Settings{
		Cookie:           c.Douban.Cookie,
		AvoidRiskControl: c.Douban.AvoidRiskControl,
	}
}

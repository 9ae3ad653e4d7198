// Package config loads service settings from an optional file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. WEATHER_SERVER_PORT.
const EnvPrefix = "WEATHER"

type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

type RateLimitConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	WeatherRPS  float64 `mapstructure:"weather_rps"`
	ForecastRPS float64 `mapstructure:"forecast_rps"`
	Burst       int     `mapstructure:"burst"`
}

type OpenWeatherMapConfig struct {
	APIKey    string          `mapstructure:"api_key"`
	BaseURL   string          `mapstructure:"base_url"`
	Timeout   time.Duration   `mapstructure:"timeout"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	TTL           time.Duration `mapstructure:"ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"` // empty keeps the cache in memory
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

type MQTTConfig struct {
	BrokerURL   string `mapstructure:"broker_url"` // empty disables publishing
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

type RefreshConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Schedule    string `mapstructure:"schedule"`
	DefaultCity string `mapstructure:"default_city"`
}

// Config holds every setting of the service
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Log            LogConfig            `mapstructure:"log"`
	OpenWeatherMap OpenWeatherMapConfig `mapstructure:"openweathermap"`
	Cache          CacheConfig          `mapstructure:"cache"`
	History        HistoryConfig        `mapstructure:"history"`
	MQTT           MQTTConfig           `mapstructure:"mqtt"`
	Refresh        RefreshConfig        `mapstructure:"refresh"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("openweathermap.api_key", "")
	v.SetDefault("openweathermap.base_url", "https://api.openweathermap.org/data/2.5")
	v.SetDefault("openweathermap.timeout", 10*time.Second)
	// free tier allows 60 calls/minute
	v.SetDefault("openweathermap.rate_limit.enabled", true)
	v.SetDefault("openweathermap.rate_limit.weather_rps", 1.0)
	v.SetDefault("openweathermap.rate_limit.forecast_rps", 1.0)
	v.SetDefault("openweathermap.rate_limit.burst", 5)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.dsn", "weather-history.db")

	v.SetDefault("mqtt.broker_url", "")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.topic_prefix", "weather-insight")

	v.SetDefault("refresh.enabled", true)
	v.SetDefault("refresh.schedule", "@every 10m")
	v.SetDefault("refresh.default_city", "Pristina")
}

// Load reads configuration from path (json, yaml or toml, chosen by
// extension) when path is non-empty, then applies WEATHER_* environment
// overrides. OPENWEATHER_API_KEY is accepted for the credential as well.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("openweathermap.api_key", EnvPrefix+"_OPENWEATHERMAP_API_KEY", "OPENWEATHER_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.OpenWeatherMap.APIKey = strings.TrimSpace(cfg.OpenWeatherMap.APIKey)
	return &cfg, nil
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.OpenWeatherMap.APIKey == "" {
		errs = append(errs, errors.New("no OpenWeatherMap API key provided (set OPENWEATHER_API_KEY)"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port %d", c.Server.Port))
	}
	if c.OpenWeatherMap.RateLimit.Enabled && (c.OpenWeatherMap.RateLimit.WeatherRPS <= 0 || c.OpenWeatherMap.RateLimit.ForecastRPS <= 0) {
		errs = append(errs, errors.New("rate limit rps must be positive"))
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache ttl must be positive"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

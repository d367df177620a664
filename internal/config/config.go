// Package config loads application configuration from file and
// environment and bootstraps the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Redis   RedisConfig   `yaml:"redis" mapstructure:"redis"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	OSRM    OSRMConfig    `yaml:"osrm" mapstructure:"osrm"`
	Plan    PlanConfig    `yaml:"plan" mapstructure:"plan"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the Postgres backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RedisConfig configures the route cache backend.
type RedisConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// GeocodeConfig holds geocoding provider settings.
type GeocodeConfig struct {
	GoogleAPIKey     string `yaml:"google_api_key" mapstructure:"google_api_key"`
	CensusRetries    int    `yaml:"census_retries" mapstructure:"census_retries"`
	NominatimAgent   string `yaml:"nominatim_agent" mapstructure:"nominatim_agent"`
	ProviderPriority string `yaml:"provider_priority" mapstructure:"provider_priority"`
}

// OSRMConfig configures the external routing engine.
type OSRMConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PlanConfig configures planning endpoint behavior.
type PlanConfig struct {
	// BoundsCheck controls the contiguous-US sanity check on resolved
	// endpoints: "warn" logs out-of-bounds coordinates, "off" skips it.
	BoundsCheck string `yaml:"bounds_check" mapstructure:"bounds_check"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int    `yaml:"port" mapstructure:"port"`
	InternalAPIKey string `yaml:"internal_api_key" mapstructure:"internal_api_key"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FUELROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Deployment environment uses unprefixed names for these four.
	_ = v.BindEnv("store.database_url", "DATABASE_URL")
	_ = v.BindEnv("redis.url", "REDIS_URL")
	_ = v.BindEnv("geocode.google_api_key", "GOOGLE_MAPS_API_KEY")
	_ = v.BindEnv("server.internal_api_key", "INTERNAL_API_KEY")

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("osrm.base_url", "http://router.project-osrm.org/route/v1/driving")
	v.SetDefault("geocode.census_retries", 2)
	v.SetDefault("geocode.nominatim_agent", "fuel-router/1.0")
	v.SetDefault("geocode.provider_priority", "smart")
	v.SetDefault("plan.bounds_check", "warn")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

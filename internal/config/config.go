package config

import (
	"strings"

	"github.com/joho/godotenv"
	ierr "github.com/rebillhq/rebill/internal/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
)

type DeploymentMode string

const (
	ModeLocal DeploymentMode = "local"
	ModeProd  DeploymentMode = "prod"
)

// Configuration is the root application configuration
type Configuration struct {
	Deployment DeploymentConfig `mapstructure:"deployment"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Store      StoreConfig      `mapstructure:"store"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
}

type DeploymentConfig struct {
	Mode DeploymentMode `mapstructure:"mode"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type LoggingConfig struct {
	Level LogLevel `mapstructure:"level"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

type StoreConfig struct {
	// SeedFile is the JSON snapshot loaded at startup; the process starts
	// with an empty store when the file is absent
	SeedFile string `mapstructure:"seed_file"`
}

// PricingConfig carries the pricing feature flags and defaults injected into
// the calculation engine. Modeled as configuration instead of process wide
// state so calculations stay idempotent for a given snapshot.
type PricingConfig struct {
	// VolumeDiscountEnabled gates the volume discount feature
	VolumeDiscountEnabled bool `mapstructure:"volume_discount_enabled"`

	// VolumeDiscountExcludeNonRecurring excludes non recurring line items from
	// the eligible unit count when enabled
	VolumeDiscountExcludeNonRecurring bool `mapstructure:"volume_discount_exclude_non_recurring"`

	// RebillDiscountPercent is the blanket rebill incentive percentage
	RebillDiscountPercent decimal.Decimal `mapstructure:"rebill_discount_percent"`

	// RetryDiscountPercent is the discount applied on retry recovered payments
	RetryDiscountPercent decimal.Decimal `mapstructure:"retry_discount_percent"`
}

// NewConfig loads configuration from environment and config files
func NewConfig() (*Configuration, error) {
	// Load .env if present, ignore when absent
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("REBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, ierr.WithError(err).
				WithHint("Failed to read config file").
				Mark(ierr.ErrSystem)
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decimalDecodeHook())); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to unmarshal configuration").
			Mark(ierr.ErrSystem)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(ModeLocal))
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", string(LogLevelInfo))
	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.sample_rate", 1.0)
	v.SetDefault("cache.ttl_seconds", 300)
	v.SetDefault("store.seed_file", "seed.json")
	v.SetDefault("pricing.volume_discount_enabled", true)
	v.SetDefault("pricing.volume_discount_exclude_non_recurring", true)
	v.SetDefault("pricing.rebill_discount_percent", "0")
	v.SetDefault("pricing.retry_discount_percent", "0")
}

// GetDefaultConfig returns a configuration with defaults only, used by the
// global logger fallback and tests
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: LogLevelInfo},
		Cache:      CacheConfig{TTLSeconds: 300},
		Store:      StoreConfig{SeedFile: "seed.json"},
		Pricing: PricingConfig{
			VolumeDiscountEnabled:             true,
			VolumeDiscountExcludeNonRecurring: true,
			RebillDiscountPercent:             decimal.Zero,
			RetryDiscountPercent:              decimal.Zero,
		},
	}
}

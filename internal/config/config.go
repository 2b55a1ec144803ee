// Package config loads service configuration from an optional YAML file
// overlaid with PAWSHOP_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/pawshop-checkout/internal/pricing"
)

const EnvPrefix = "PAWSHOP_"

type Config struct {
	HTTP struct {
		Addr            string        `koanf:"addr"`
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"http"`

	Log struct {
		Level      string `koanf:"level"`
		File       string `koanf:"file"`
		MaxSizeMB  int    `koanf:"max_size_mb"`
		MaxBackups int    `koanf:"max_backups"`
		MaxAgeDays int    `koanf:"max_age_days"`
	} `koanf:"log"`

	Pricing struct {
		ShippingFee string `koanf:"shipping_fee"`
		TaxRate     string `koanf:"tax_rate"`
	} `koanf:"pricing"`

	ShopAPI struct {
		BaseURL            string        `koanf:"base_url"`
		Timeout            time.Duration `koanf:"timeout"`
		AccessToken        string        `koanf:"access_token"`
		RefreshToken       string        `koanf:"refresh_token"`
		BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
		BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
	} `koanf:"shop_api"`

	Session struct {
		TTL           time.Duration `koanf:"ttl"`
		SweepInterval time.Duration `koanf:"sweep_interval"`
	} `koanf:"session"`

	Postgres struct {
		URL          string `koanf:"url"`
		Schema       string `koanf:"schema"`
		MaxOpenConns int    `koanf:"max_open_conns"`
	} `koanf:"postgres"`

	Redis struct {
		Addr           string        `koanf:"addr"`
		Password       string        `koanf:"password"`
		DB             int           `koanf:"db"`
		IdempotencyTTL time.Duration `koanf:"idempotency_ttl"`
	} `koanf:"redis"`

	Kafka struct {
		Brokers []string `koanf:"brokers"`
		GroupID string   `koanf:"group_id"`
	} `koanf:"kafka"`

	OTel struct {
		Enabled        bool   `koanf:"enabled"`
		Endpoint       string `koanf:"endpoint"`
		Insecure       bool   `koanf:"insecure"`
		ServiceVersion string `koanf:"service_version"`
	} `koanf:"otel"`
}

// Default returns the values used when neither the file nor the environment
// set a key.
func Default() Config {
	var c Config
	c.HTTP.Addr = ":8080"
	c.HTTP.ReadTimeout = 10 * time.Second
	c.HTTP.WriteTimeout = 10 * time.Second
	c.HTTP.ShutdownTimeout = 10 * time.Second
	c.Log.Level = "info"
	c.Log.MaxSizeMB = 50
	c.Log.MaxBackups = 3
	c.Log.MaxAgeDays = 7
	c.Pricing.ShippingFee = pricing.DefaultShippingFee.String()
	c.Pricing.TaxRate = pricing.DefaultTaxRate.String()
	c.ShopAPI.Timeout = 10 * time.Second
	c.ShopAPI.BreakerMaxFailures = 5
	c.ShopAPI.BreakerTimeout = 30 * time.Second
	c.Session.TTL = 2 * time.Hour
	c.Session.SweepInterval = time.Minute
	c.Postgres.MaxOpenConns = 10
	c.Redis.IdempotencyTTL = 24 * time.Hour
	c.OTel.Enabled = true
	c.OTel.Endpoint = "localhost:4317"
	c.OTel.Insecure = true
	c.OTel.ServiceVersion = "0.1.0"
	return c
}

// Load reads path when it is not empty, then applies environment overrides:
// PAWSHOP_SHOP_API__BASE_URL sets shop_api.base_url.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ReplaceAll(s, "__", ".")
	return strings.ToLower(s)
}

// Calculator builds the pricing calculator from the pricing section.
func (c Config) Calculator() (pricing.Calculator, error) {
	fee, err := decimal.NewFromString(c.Pricing.ShippingFee)
	if err != nil {
		return pricing.Calculator{}, fmt.Errorf("pricing.shipping_fee: %w", err)
	}
	rate, err := decimal.NewFromString(c.Pricing.TaxRate)
	if err != nil {
		return pricing.Calculator{}, fmt.Errorf("pricing.tax_rate: %w", err)
	}
	if fee.IsNegative() {
		return pricing.Calculator{}, errors.New("pricing.shipping_fee must not be negative")
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return pricing.Calculator{}, errors.New("pricing.tax_rate must be between 0 and 1")
	}
	return pricing.NewCalculator(fee, rate), nil
}

// Validate checks the keys the named service cannot start without.
func (c Config) Validate(service string) error {
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr required"))
	}

	switch service {
	case "storefront":
		if c.ShopAPI.BaseURL == "" {
			errs = append(errs, errors.New("shop_api.base_url required"))
		}
		if c.Session.TTL <= 0 {
			errs = append(errs, errors.New("session.ttl must be positive"))
		}
		if c.Session.SweepInterval <= 0 {
			errs = append(errs, errors.New("session.sweep_interval must be positive"))
		}
		if _, err := c.Calculator(); err != nil {
			errs = append(errs, err)
		}
	case "orders":
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("postgres.url required"))
		}
		if c.Redis.Addr != "" && c.Redis.IdempotencyTTL <= 0 {
			errs = append(errs, errors.New("redis.idempotency_ttl must be positive"))
		}
	case "coupons":
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("postgres.url required"))
		}
		if len(c.Kafka.Brokers) > 0 && c.Kafka.GroupID == "" {
			errs = append(errs, errors.New("kafka.group_id required when kafka.brokers is set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown service %q", service))
	}

	return errors.Join(errs...)
}

package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"tienda-cloud/internal/money"
	settlement "tienda-cloud/internal/settlement/domain"
)

// GiftLimits bounds the gratuity a cashier may hand out as change the
// client declines to take back.
type GiftLimits struct {
	MaxBs  float64 `yaml:"max_bs"`
	MaxUSD float64 `yaml:"max_usd"`
}

// Config defines service configuration.
type Config struct {
	HTTPAddr     string            `yaml:"http_addr"`
	DatabaseURL  string            `yaml:"database_url"`
	JWTSecret    string            `yaml:"jwt_secret"`
	StoreID      string            `yaml:"store_id"`
	FixedRate    float64           `yaml:"fixed_rate"`
	GiftLimits   GiftLimits        `yaml:"gift_limits"`
	Methods      map[string]string `yaml:"methods"`
	ReadTimeout  time.Duration     `yaml:"read_timeout"`
	WriteTimeout time.Duration     `yaml:"write_timeout"`
}

// Load reads configuration from an optional yaml file plus environment
// overrides. TIENDA_CONFIG names the yaml file; env wins for secrets.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr: getenvDefault("HTTP_ADDR", ":8080"),
		StoreID:  getenvDefault("STORE_ID", "store-demo"),
		GiftLimits: GiftLimits{
			MaxBs:  getenvFloatDefault("GIFT_MAX_BS", 50),
			MaxUSD: getenvFloatDefault("GIFT_MAX_USD", 2),
		},
		FixedRate:    getenvFloatDefault("EXCHANGE_RATE", 0),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streams stay open
	}

	if path := os.Getenv("TIENDA_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if value := getenvDefault("DATABASE_URL", os.Getenv("PG_DSN")); value != "" {
		cfg.DatabaseURL = value
	}
	if value := getenvDefault("AUTH_JWT_SECRET", os.Getenv("JWT_SECRET")); value != "" {
		cfg.JWTSecret = value
	}
	if cfg.JWTSecret == "" {
		return cfg, errors.New("config: jwt secret required")
	}
	if cfg.FixedRate != 0 && !money.IsPositiveRate(cfg.FixedRate) {
		return cfg, money.ErrInvalidExchangeRate
	}
	return cfg, nil
}

// MethodTable builds the payment method table, applying yaml overrides on
// top of the defaults. The table is validated for completeness at startup.
func (c Config) MethodTable() (settlement.MethodTable, error) {
	table := settlement.DefaultMethodTable()
	for method, currency := range c.Methods {
		normalized, ok := money.NormalizeCurrency(currency)
		if !ok {
			return nil, settlement.ErrUnresolvedCurrency
		}
		table[settlement.Method(method)] = normalized
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const envPrefix = "SHOPLYFT"

type App struct {
	Name        string `envconfig:"APP_NAME" default:"shoplyft-backend"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	HTTPPort    string `envconfig:"HTTP_PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}

type DB struct {
	DSN string `envconfig:"DB_DSN"`

	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"shoplyft"`
	Password string `envconfig:"DB_PASSWORD" default:""`
	Name     string `envconfig:"DB_NAME" default:"shoplyft"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	MaxOpenConns    int `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime int `envconfig:"DB_CONN_MAX_LIFETIME_MINUTES" default:"30"`
}

// ResolveDSN prefers the explicit DSN and otherwise assembles one from
// the discrete fields.
func (d DB) ResolveDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type FeatureFlags struct {
	UseSQLite   bool `envconfig:"USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"AUTO_MIGRATE" default:"false"`
}

// Settlement carries the pricing constants applied at checkout. Rates
// are percentages, the delivery fee is a flat per-order charge.
type Settlement struct {
	DeliveryFee  decimal.Decimal `envconfig:"DELIVERY_FEE" default:"1000.00"`
	VATRatePct   decimal.Decimal `envconfig:"VAT_RATE_PCT" default:"20"`
	IncomeTaxPct decimal.Decimal `envconfig:"INCOME_TAX_PCT" default:"13"`
}

type Config struct {
	App        App
	DB         DB
	Flags      FeatureFlags
	Settlement Settlement
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	return &cfg, nil
}

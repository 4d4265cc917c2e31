package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
)

type Config struct {
	Primary  Primary        `koanf:"primary"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Gateway  GatewayConfig  `koanf:"gateway"`
	Ledger   LedgerConfig   `koanf:"ledger"`
	Logger   LoggerConfig   `koanf:"logger"`
	Worker   WorkerConfig   `koanf:"worker"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

// GatewayConfig holds the external payment gateway settings. CallbackURL is
// validated here, at startup: initiating a payment without a callback
// destination would strand the transaction once the gateway answers.
type GatewayConfig struct {
	BaseURL     string        `koanf:"base_url" validate:"required"`
	MerchantKey string        `koanf:"merchant_key" validate:"required"`
	CallbackURL string        `koanf:"callback_url" validate:"required,url"`
	ConnTimeout time.Duration `koanf:"conn_timeout" validate:"required"`
}

// LedgerConfig identifies the platform escrow wallet and the currency all
// balances are kept in (minor units).
type LedgerConfig struct {
	EscrowOwnerID string `koanf:"escrow_owner_id" validate:"required"`
	Currency      string `koanf:"currency" validate:"required,len=3"`
}

type WorkerConfig struct {
	SettleInterval   time.Duration `koanf:"settle_interval" validate:"required"`
	EscalateInterval time.Duration `koanf:"escalate_interval" validate:"required"`
	BatchSize        int           `koanf:"batch_size" validate:"required"`
	SettleAfter      time.Duration `koanf:"settle_after" validate:"required"`
	StaleTicketAfter time.Duration `koanf:"stale_ticket_after" validate:"required"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	err := k.Load(env.Provider("SETTLEMENT_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "SETTLEMENT_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}

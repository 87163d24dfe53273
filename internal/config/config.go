package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL,required"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"memberbot.db"`

	LINEChannelAccessToken string `env:"LINE_CHANNEL_ACCESS_TOKEN"`
	LINEAPIBaseURL         string `env:"LINE_API_BASE_URL" envDefault:"https://api.line.me"`
	LINEDataAPIBaseURL     string `env:"LINE_DATA_API_BASE_URL" envDefault:"https://api-data.line.me"`
	TelegramBotToken       string `env:"TELEGRAM_BOT_TOKEN"`

	CloudinaryURL string `env:"CLOUDINARY_URL"`
	MediaDir      string `env:"MEDIA_DIR" envDefault:"media"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	ScannerJWTSecret string        `env:"SCANNER_JWT_SECRET"`
	ScannerTokenTTL  time.Duration `env:"SCANNER_TOKEN_TTL" envDefault:"720h"`

	StaleAfter          time.Duration `env:"STALE_AFTER" envDefault:"24h"`
	SweepInterval       time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
	CollaboratorTimeout time.Duration `env:"COLLABORATOR_TIMEOUT" envDefault:"15s"`
	LockTTL             time.Duration `env:"LOCK_TTL" envDefault:"2m"`
	QRSize              int           `env:"QR_SIZE" envDefault:"256"`

	SkipPhotoStep    bool `env:"SKIP_PHOTO_STEP" envDefault:"false"`
	SkipPhoneConfirm bool `env:"SKIP_PHONE_CONFIRM" envDefault:"false"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa combinaciones que las etiquetas env no pueden expresar.
func (c *Config) Validate() error {
	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
	if c.PublicBaseURL == "" {
		return errors.New("PUBLIC_BASE_URL is empty")
	}
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case StoreDriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.LINEChannelAccessToken == "" && c.TelegramBotToken == "" {
		return errors.New("at least one of LINE_CHANNEL_ACCESS_TOKEN or TELEGRAM_BOT_TOKEN is required")
	}
	if c.StaleAfter <= 0 || c.SweepInterval <= 0 {
		return errors.New("STALE_AFTER and SWEEP_INTERVAL must be positive")
	}
	if c.QRSize <= 0 {
		c.QRSize = 256
	}
	return nil
}

package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/authify/internal/auth/domain"
	"github.com/caarlos0/env/v11"
)

// Key storage modes.
const (
	KeyStoragePersistent = "persistent"
	KeyStorageEphemeral  = "ephemeral"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Issuer  string `env:"AUTH_ISSUER"   envDefault:"authify"` // iss claim of every access token
	AppName string `env:"AUTH_APP_NAME" envDefault:"Authify"` // TOTP issuer and email subject prefix

	Algorithm      string `env:"AUTH_ALGORITHM"        envDefault:"EdDSA"`      // EdDSA or ES256
	KeyStorageMode string `env:"AUTH_KEY_STORAGE_MODE" envDefault:"persistent"` // persistent or ephemeral
	NumKeys        int    `env:"AUTH_NUM_KEYS"         envDefault:"1"`          // signing keys kept available (1-10)
	MasterKeyFile  string `env:"AUTH_MASTER_KEY_FILE"  envDefault:"master.key"` // seals signing keys at rest

	StoreDriver  string `env:"AUTH_STORE_DRIVER"  envDefault:"sqlite"`
	DatabaseFile string `env:"AUTH_DATABASE_FILE" envDefault:"auth.db"` // sqlite only
	DatabaseURL  string `env:"AUTH_DATABASE_URL"`                       // postgres only
	PepperFile   string `env:"AUTH_PEPPER_FILE"   envDefault:"pepper"`

	FrontendURL         string   `env:"AUTH_FRONTEND_URL"          envDefault:"http://localhost:3000"` // base of emailed links
	CookieSecure        bool     `env:"AUTH_COOKIE_SECURE"         envDefault:"false"`
	RotateRefreshTokens bool     `env:"AUTH_ROTATE_REFRESH_TOKENS" envDefault:"false"`
	AdminEmails         []string `env:"AUTH_ADMIN_EMAILS"          envSeparator:","`

	SMTP        SMTPConfig    `envPrefix:"AUTH_SMTP_"`
	MailTimeout time.Duration `env:"AUTH_MAIL_TIMEOUT" envDefault:"10s"`

	Env                  string        `env:"ENV"                        envDefault:"dev"`
	LogLevel             string        `env:"LOG_LEVEL"                  envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT"                 envDefault:"json"`
	Port                 int           `env:"PORT"                       envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD"      envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"AUTH_HOUSEKEEPING_INTERVAL" envDefault:"1h"`

	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
}

// SMTPConfig is only used when Host is set; otherwise emails are logged.
type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"Authify <no-reply@localhost>"`
}

// LoadConfig reads the configuration from the environment and checks it.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.AdminEmails = normalizeEmails(cfg.AdminEmails)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalizeEmails lowercases and trims each entry and drops empty ones, so
// "Root@Example.com, ops@example.com" matches what registration stores.
func normalizeEmails(emails []string) []string {
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		if e = domain.NormalizeEmail(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// Validate rejects combinations the service can't start with.
func (c Config) Validate() error {
	var errs []error

	switch c.KeyStorageMode {
	case KeyStoragePersistent, KeyStorageEphemeral:
	default:
		errs = append(errs, fmt.Errorf("AUTH_KEY_STORAGE_MODE: unknown mode %q", c.KeyStorageMode))
	}

	switch c.StoreDriver {
	case DriverSQLite:
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_FILE is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_STORE_DRIVER: unknown driver %q", c.StoreDriver))
	}

	if c.Issuer == "" {
		errs = append(errs, errors.New("AUTH_ISSUER must not be empty"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT: %d is out of range", c.Port))
	}

	return errors.Join(errs...)
}

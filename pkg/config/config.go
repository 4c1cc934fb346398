package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "SAASBASE"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvDBDSN  = "SAASBASE_DB_DSN"
	EnvDBHost = "SAASBASE_DB_HOST"
	EnvDBUser = "SAASBASE_DB_USER"
	EnvDBName = "SAASBASE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Stripe  StripeConfig
	Webhook WebhookConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SAASBASE_APP_ENV" required:"true"`
	Port         string `envconfig:"SAASBASE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SAASBASE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SAASBASE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SAASBASE_DB_DSN"`
	Driver string `envconfig:"SAASBASE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SAASBASE_DB_HOST"`
	LegacyPort     int    `envconfig:"SAASBASE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SAASBASE_DB_USER"`
	LegacyPassword string `envconfig:"SAASBASE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SAASBASE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SAASBASE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SAASBASE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SAASBASE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SAASBASE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SAASBASE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	RetryMaxAttempts    int           `envconfig:"SAASBASE_DB_RETRY_MAX_ATTEMPTS" default:"4"`
	RetryInitialBackoff time.Duration `envconfig:"SAASBASE_DB_RETRY_INITIAL_BACKOFF" default:"250ms"`
	RetryMaximumBackoff time.Duration `envconfig:"SAASBASE_DB_RETRY_MAXIMUM_BACKOFF" default:"2s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SAASBASE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SAASBASE_REDIS_ADDR"`
	Password     string        `envconfig:"SAASBASE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SAASBASE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SAASBASE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SAASBASE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SAASBASE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SAASBASE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SAASBASE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey string `envconfig:"SAASBASE_STRIPE_API_KEY"`
	Secret string `envconfig:"SAASBASE_STRIPE_WEBHOOK_SECRET"`
	Env    string `envconfig:"SAASBASE_STRIPE_ENV" default:"test"`
}

// WebhookConfig tunes the reconciliation engine's business-level retries.
type WebhookConfig struct {
	IdempotencyTTL  time.Duration `envconfig:"SAASBASE_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
	FKRetryAttempts int           `envconfig:"SAASBASE_WEBHOOK_FK_RETRY_ATTEMPTS" default:"3"`
	FKRetryDelay    time.Duration `envconfig:"SAASBASE_WEBHOOK_FK_RETRY_DELAY" default:"2s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	HTTP         HTTPConfig
	FeatureFlags FeatureFlagsConfig
	Processor    ProcessorConfig
	Stripe       StripeConfig
	Square       SquareConfig
	Booking      BookingConfig
	Currency     CurrencyConfig
	Refund       RefundConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Processor.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Currency.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RESORTPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"RESORTPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RESORTPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RESORTPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"RESORTPAY_DB_DSN"`
	Driver string `envconfig:"RESORTPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RESORTPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"RESORTPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RESORTPAY_DB_USER"`
	LegacyPassword string `envconfig:"RESORTPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"RESORTPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"RESORTPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RESORTPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RESORTPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RESORTPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RESORTPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RESORTPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RESORTPAY_REDIS_ADDR"`
	Password     string        `envconfig:"RESORTPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"RESORTPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RESORTPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RESORTPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RESORTPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RESORTPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RESORTPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"RESORTPAY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"RESORTPAY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"RESORTPAY_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// RateLimitConfig bounds public checkout initiation per client IP and refund
// requests per actor.
type RateLimitConfig struct {
	Window            time.Duration `envconfig:"RESORTPAY_RATE_LIMIT_WINDOW" default:"1m"`
	CheckoutPerWindow int64         `envconfig:"RESORTPAY_RATE_LIMIT_CHECKOUT" default:"20"`
	RefundPerWindow   int64         `envconfig:"RESORTPAY_RATE_LIMIT_REFUND" default:"5"`
}

// HTTPConfig covers the browser facing surface and webhook replay window.
type HTTPConfig struct {
	CORSOrigins     []string      `envconfig:"RESORTPAY_CORS_ORIGINS"`
	WebhookDedupTTL time.Duration `envconfig:"RESORTPAY_WEBHOOK_DEDUP_TTL" default:"72h"`
	ShutdownTimeout time.Duration `envconfig:"RESORTPAY_SHUTDOWN_TIMEOUT" default:"15s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"RESORTPAY_AUTO_MIGRATE" default:"false"`
}

// ProcessorConfig selects the hosted checkout provider and bounds outbound calls.
type ProcessorConfig struct {
	Provider   string        `envconfig:"RESORTPAY_PROCESSOR_PROVIDER" default:"stripe"`
	Timeout    time.Duration `envconfig:"RESORTPAY_PROCESSOR_TIMEOUT" default:"15s"`
	SuccessURL string        `envconfig:"RESORTPAY_PROCESSOR_SUCCESS_URL" required:"true"`
	CancelURL  string        `envconfig:"RESORTPAY_PROCESSOR_CANCEL_URL" required:"true"`
}

func (p ProcessorConfig) ProviderName() string {
	return strings.TrimSpace(strings.ToLower(p.Provider))
}

func (p ProcessorConfig) validate() error {
	switch p.ProviderName() {
	case ProcessorStripe, ProcessorSquare:
	default:
		return fmt.Errorf("%s must be one of %s, %s", EnvProcessorProvider, ProcessorStripe, ProcessorSquare)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvProcessorTimeout)
	}
	return nil
}

type StripeConfig struct {
	APIKey string `envconfig:"RESORTPAY_STRIPE_API_KEY"`
	Secret string `envconfig:"RESORTPAY_STRIPE_SECRET"`
	Env    string `envconfig:"RESORTPAY_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SquareConfig struct {
	AccessToken   string `envconfig:"RESORTPAY_SQUARE_ACCESS_TOKEN"`
	WebhookSecret string `envconfig:"RESORTPAY_SQUARE_WEBHOOK_SECRET"`
	Env           string `envconfig:"RESORTPAY_SQUARE_ENV" default:"sandbox"`
	LocationID    string `envconfig:"RESORTPAY_SQUARE_LOCATION_ID"`
	// WebhookURL is the notification URL registered with Square. It is part
	// of the signed payload.
	WebhookURL    string `envconfig:"RESORTPAY_SQUARE_WEBHOOK_URL"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type BookingConfig struct {
	BaseURL string        `envconfig:"RESORTPAY_BOOKING_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"RESORTPAY_BOOKING_TIMEOUT" default:"10s"`
}

// CurrencyConfig describes the settlement currency and the fallback rate used
// for carts priced in the secondary currency.
type CurrencyConfig struct {
	Settlement          string `envconfig:"RESORTPAY_SETTLEMENT_CURRENCY" default:"usd"`
	DefaultExchangeRate string `envconfig:"RESORTPAY_DEFAULT_EXCHANGE_RATE" default:"0.0033"`
}

// ExchangeRate parses the configured default rate.
func (c CurrencyConfig) ExchangeRate() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.DefaultExchangeRate))
	if err != nil {
		return decimal.Zero
	}
	return rate
}

func (c CurrencyConfig) validate() error {
	if !c.ExchangeRate().IsPositive() {
		return fmt.Errorf("%s must be a positive decimal", EnvDefaultExchangeRate)
	}
	return nil
}

type RefundConfig struct {
	PolicyWindowDays int `envconfig:"RESORTPAY_REFUND_WINDOW_DAYS" default:"30"`
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

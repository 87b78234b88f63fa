package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Stripe        StripeConfig
	Sendgrid      SendgridConfig
	Billing       BillingConfig
	Risk          RiskConfig
	Cron          CronConfig
	Accounting    AccountingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Risk.validate(); err != nil {
		return nil, err
	}
	if cfg.Billing.DefaultGracePeriodDays < 0 {
		return nil, fmt.Errorf("%s must not be negative, got %d", EnvBillingGraceDays, cfg.Billing.DefaultGracePeriodDays)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PROPPILOT_APP_ENV" required:"true"`
	Port         string `envconfig:"PROPPILOT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PROPPILOT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PROPPILOT_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"PROPPILOT_LOG_FORMAT" default:"json"`
	PublicURL    string `envconfig:"PROPPILOT_PUBLIC_URL" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PROPPILOT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PROPPILOT_DB_DSN"`
	Driver string `envconfig:"PROPPILOT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PROPPILOT_DB_HOST"`
	LegacyPort     int    `envconfig:"PROPPILOT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PROPPILOT_DB_USER"`
	LegacyPassword string `envconfig:"PROPPILOT_DB_PASSWORD"`
	LegacyName     string `envconfig:"PROPPILOT_DB_NAME"`
	LegacySSLMode  string `envconfig:"PROPPILOT_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"PROPPILOT_SQLITE_PATH" default:"proppilot.db"`

	MaxOpenConns    int           `envconfig:"PROPPILOT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PROPPILOT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PROPPILOT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PROPPILOT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"PROPPILOT_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PROPPILOT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PROPPILOT_REDIS_ADDR"`
	Password     string        `envconfig:"PROPPILOT_REDIS_PASSWORD"`
	DB           int           `envconfig:"PROPPILOT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PROPPILOT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PROPPILOT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PROPPILOT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PROPPILOT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PROPPILOT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PROPPILOT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PROPPILOT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PROPPILOT_JWT_EXPIRATION_MINUTES" default:"60"`
}

type AuthRateLimitConfig struct {
	RegisterWindow     time.Duration `envconfig:"PROPPILOT_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"PROPPILOT_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"PROPPILOT_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PROPPILOT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PROPPILOT_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey   string `envconfig:"PROPPILOT_STRIPE_API_KEY"`
	Secret   string `envconfig:"PROPPILOT_STRIPE_WEBHOOK_SECRET"`
	Env      string `envconfig:"PROPPILOT_STRIPE_ENV" default:"test"`
	Currency string `envconfig:"PROPPILOT_STRIPE_CURRENCY" default:"usd"`

	// WebhookTolerance bounds the age of a signed webhook timestamp.
	WebhookTolerance time.Duration `envconfig:"PROPPILOT_STRIPE_WEBHOOK_TOLERANCE" default:"5m"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SendgridConfig struct {
	APIKey      string `envconfig:"PROPPILOT_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"PROPPILOT_SENDGRID_FROM_EMAIL" default:"billing@proppilot.app"`
	FromName    string `envconfig:"PROPPILOT_SENDGRID_FROM_NAME" default:"PropPilot Billing"`
}

type BillingConfig struct {
	DefaultGracePeriodDays int           `envconfig:"PROPPILOT_BILLING_DEFAULT_GRACE_DAYS" default:"14"`
	WebhookIdempotencyTTL  time.Duration `envconfig:"PROPPILOT_BILLING_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

// RiskConfig holds the verification gate thresholds.
type RiskConfig struct {
	FraudPassThreshold int `envconfig:"PROPPILOT_RISK_FRAUD_PASS_THRESHOLD" default:"50"`
	ApproveThreshold   int `envconfig:"PROPPILOT_RISK_APPROVE_THRESHOLD" default:"85"`
	ReviewThreshold    int `envconfig:"PROPPILOT_RISK_REVIEW_THRESHOLD" default:"50"`
}

func (r RiskConfig) validate() error {
	for name, v := range map[string]int{
		EnvRiskFraudPass: r.FraudPassThreshold,
		EnvRiskApprove:   r.ApproveThreshold,
		EnvRiskReview:    r.ReviewThreshold,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s must be within 0-100, got %d", name, v)
		}
	}
	if r.ReviewThreshold > r.ApproveThreshold {
		return fmt.Errorf("%s (%d) must not exceed %s (%d)", EnvRiskReview, r.ReviewThreshold, EnvRiskApprove, r.ApproveThreshold)
	}
	return nil
}

type CronConfig struct {
	GraceSweepEnabled  bool          `envconfig:"PROPPILOT_CRON_GRACE_SWEEP_ENABLED" default:"true"`
	GraceSweepSchedule string        `envconfig:"PROPPILOT_CRON_GRACE_SWEEP_SCHEDULE"`
	Interval           time.Duration `envconfig:"PROPPILOT_CRON_INTERVAL" default:"6h"`
	LockTTL            time.Duration `envconfig:"PROPPILOT_CRON_LOCK_TTL" default:"1h"`
}

type AccountingConfig struct {
	Provider      string        `envconfig:"PROPPILOT_ACCOUNTING_PROVIDER" default:"quickbooks"`
	ClientID      string        `envconfig:"PROPPILOT_ACCOUNTING_CLIENT_ID"`
	ClientSecret  string        `envconfig:"PROPPILOT_ACCOUNTING_CLIENT_SECRET"`
	AuthURL       string        `envconfig:"PROPPILOT_ACCOUNTING_AUTH_URL" default:"https://appcenter.intuit.com/connect/oauth2"`
	TokenURL      string        `envconfig:"PROPPILOT_ACCOUNTING_TOKEN_URL" default:"https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"`
	RedirectURL   string        `envconfig:"PROPPILOT_ACCOUNTING_REDIRECT_URL"`
	Scopes        []string      `envconfig:"PROPPILOT_ACCOUNTING_SCOPES" default:"com.intuit.quickbooks.accounting"`
	StateTTL      time.Duration `envconfig:"PROPPILOT_ACCOUNTING_STATE_TTL" default:"10m"`
	EncryptionKey string        `envconfig:"PROPPILOT_ACCOUNTING_ENCRYPTION_KEY"`
}

// Enabled reports whether the accounting OAuth flow has enough configuration to run.
func (a AccountingConfig) Enabled() bool {
	return a.ClientID != "" && a.ClientSecret != "" && a.RedirectURL != "" && a.EncryptionKey != ""
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
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

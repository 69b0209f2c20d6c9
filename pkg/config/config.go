package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Pricing      PricingConfig
	Telegram     TelegramConfig
	YooKassa     YooKassaConfig
	Chat         ChatConfig
	Cron         CronConfig
	Webhooks     WebhooksConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.Pricing.Model() {
	case PricingModelPerBag:
		if c.Pricing.BagPrice <= 0 {
			return fmt.Errorf("%s must be positive", EnvBagPrice)
		}
	case PricingModelFlat:
		if c.Pricing.FlatPrice <= 0 {
			return fmt.Errorf("%s must be positive", EnvFlatPrice)
		}
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", EnvPricingModel, PricingModelPerBag, PricingModelFlat, c.Pricing.RawModel)
	}
	if _, err := c.App.Location(); err != nil {
		return fmt.Errorf("%s: %w", EnvTimezone, err)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"COURIER_APP_ENV" required:"true"`
	Port         string `envconfig:"COURIER_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"COURIER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COURIER_LOG_WARN_STACK" default:"false"`
	Timezone     string `envconfig:"COURIER_TIMEZONE" default:"Europe/Moscow"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// Location resolves the business timezone used for "today" in quota accounting.
func (a AppConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(a.Timezone) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(a.Timezone)
}

type ServiceConfig struct {
	Kind string `envconfig:"COURIER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"COURIER_DB_DSN"`
	Driver string `envconfig:"COURIER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COURIER_DB_HOST"`
	LegacyPort     int    `envconfig:"COURIER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COURIER_DB_USER"`
	LegacyPassword string `envconfig:"COURIER_DB_PASSWORD"`
	LegacyName     string `envconfig:"COURIER_DB_NAME"`
	LegacySSLMode  string `envconfig:"COURIER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COURIER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COURIER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COURIER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COURIER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the local single-file driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"COURIER_REDIS_URL"`
	Address      string        `envconfig:"COURIER_REDIS_ADDR"`
	Password     string        `envconfig:"COURIER_REDIS_PASSWORD"`
	DB           int           `envconfig:"COURIER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COURIER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COURIER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COURIER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COURIER_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"COURIER_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"COURIER_AUTO_MIGRATE" default:"false"`
}

type PricingConfig struct {
	RawModel              string `envconfig:"COURIER_PRICING_MODEL" default:"per_bag"`
	BagPrice              int64  `envconfig:"COURIER_BAG_PRICE" default:"50"`
	FlatPrice             int64  `envconfig:"COURIER_FLAT_PRICE" default:"300"`
	SubscriptionDaily     int64  `envconfig:"COURIER_SUB_DAILY_PRICE" default:"2499"`
	SubscriptionAlternate int64  `envconfig:"COURIER_SUB_ALTERNATE_PRICE" default:"1399"`
	SubscriptionDays      int    `envconfig:"COURIER_SUB_DURATION_DAYS" default:"30"`
}

// Model returns the normalized pricing model name.
func (p PricingConfig) Model() string {
	model := strings.ToLower(strings.TrimSpace(p.RawModel))
	if model == "" {
		return PricingModelPerBag
	}
	return model
}

type TelegramConfig struct {
	BotToken      string        `envconfig:"COURIER_TELEGRAM_BOT_TOKEN" required:"true"`
	WebhookSecret string        `envconfig:"COURIER_TELEGRAM_WEBHOOK_SECRET"`
	APIEndpoint   string        `envconfig:"COURIER_TELEGRAM_API_ENDPOINT" default:"https://api.telegram.org/bot%s/%s"`
	Timeout       time.Duration `envconfig:"COURIER_TELEGRAM_TIMEOUT" default:"10s"`
	RateLimit     int64         `envconfig:"COURIER_TELEGRAM_RATE_LIMIT" default:"30"`
	SupportURL    string        `envconfig:"COURIER_TELEGRAM_SUPPORT_URL" default:"https://t.me/support"`
}

type YooKassaConfig struct {
	ShopID    string        `envconfig:"COURIER_YOOKASSA_SHOP_ID"`
	SecretKey string        `envconfig:"COURIER_YOOKASSA_SECRET_KEY"`
	ReturnURL string        `envconfig:"COURIER_YOOKASSA_RETURN_URL" default:"https://t.me"`
	BaseURL   string        `envconfig:"COURIER_YOOKASSA_BASE_URL" default:"https://api.yookassa.ru/v3"`
	Timeout   time.Duration `envconfig:"COURIER_YOOKASSA_TIMEOUT" default:"10s"`
}

// Enabled reports whether payment credentials are configured.
func (y YooKassaConfig) Enabled() bool {
	return strings.TrimSpace(y.ShopID) != "" && strings.TrimSpace(y.SecretKey) != ""
}

type ChatConfig struct {
	Retention        time.Duration `envconfig:"COURIER_CHAT_RETENTION" default:"168h"`
	MaxMessageLength int           `envconfig:"COURIER_CHAT_MAX_MESSAGE_LENGTH" default:"4000"`
	DraftTTL         time.Duration `envconfig:"COURIER_DRAFT_TTL" default:"24h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"COURIER_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"COURIER_CRON_LOCK_TTL" default:"55m"`
}

type WebhooksConfig struct {
	IdempotencyTTL time.Duration `envconfig:"COURIER_WEBHOOK_IDEMPOTENCY_TTL" default:"48h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required when %s=%s", EnvDBDSN, EnvDBDriver, DBDriverSQLite)
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

package config

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "COURIER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	PricingModelPerBag = "per_bag"
	PricingModelFlat   = "flat"
)

const (
	EnvAppEnv   = "COURIER_APP_ENV"
	EnvPort     = "COURIER_APP_PORT"
	EnvLogLevel = "COURIER_LOG_LEVEL"
	EnvTimezone = "COURIER_TIMEZONE"

	EnvDBDSN    = "COURIER_DB_DSN"
	EnvDBDriver = "COURIER_DB_DRIVER"
	EnvDBHost   = "COURIER_DB_HOST"
	EnvDBUser   = "COURIER_DB_USER"
	EnvDBName   = "COURIER_DB_NAME"

	EnvRedisURL = "COURIER_REDIS_URL"

	EnvPricingModel = "COURIER_PRICING_MODEL"
	EnvBagPrice     = "COURIER_BAG_PRICE"
	EnvFlatPrice    = "COURIER_FLAT_PRICE"

	EnvTelegramToken  = "COURIER_TELEGRAM_BOT_TOKEN"
	EnvTelegramSecret = "COURIER_TELEGRAM_WEBHOOK_SECRET"

	EnvYooKassaShopID = "COURIER_YOOKASSA_SHOP_ID"
	EnvYooKassaSecret = "COURIER_YOOKASSA_SECRET_KEY"

	EnvChatRetention = "COURIER_CHAT_RETENTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

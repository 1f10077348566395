package config

const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	ProcessorStripe = "stripe"
	ProcessorSquare = "square"
)

const (
	EnvAppEnv   = "RESORTPAY_APP_ENV"
	EnvPort     = "RESORTPAY_APP_PORT"
	EnvLogLevel = "RESORTPAY_LOG_LEVEL"

	EnvDBDSN  = "RESORTPAY_DB_DSN"
	EnvDBHost = "RESORTPAY_DB_HOST"
	EnvDBUser = "RESORTPAY_DB_USER"
	EnvDBName = "RESORTPAY_DB_NAME"

	EnvRedisURL = "RESORTPAY_REDIS_URL"

	EnvJWTSecret  = "RESORTPAY_JWT_SECRET"
	EnvJWTIssuer  = "RESORTPAY_JWT_ISSUER"
	EnvJWTExpMins = "RESORTPAY_JWT_EXPIRATION_MINUTES"

	EnvProcessorProvider   = "RESORTPAY_PROCESSOR_PROVIDER"
	EnvProcessorTimeout    = "RESORTPAY_PROCESSOR_TIMEOUT"
	EnvProcessorSuccessURL = "RESORTPAY_PROCESSOR_SUCCESS_URL"
	EnvProcessorCancelURL  = "RESORTPAY_PROCESSOR_CANCEL_URL"

	EnvBookingBaseURL = "RESORTPAY_BOOKING_BASE_URL"

	EnvDefaultExchangeRate = "RESORTPAY_DEFAULT_EXCHANGE_RATE"
	EnvRefundWindowDays    = "RESORTPAY_REFUND_WINDOW_DAYS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

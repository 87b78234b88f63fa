package config

// EnvPrefix is passed to envconfig; every field carries its full name so the prefix is informational.
const EnvPrefix = "PROPPILOT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "PROPPILOT_APP_ENV"
	EnvPort     = "PROPPILOT_APP_PORT"
	EnvLogLevel = "PROPPILOT_LOG_LEVEL"

	EnvDBDSN  = "PROPPILOT_DB_DSN"
	EnvDBHost = "PROPPILOT_DB_HOST"
	EnvDBUser = "PROPPILOT_DB_USER"
	EnvDBName = "PROPPILOT_DB_NAME"

	EnvRedisURL = "PROPPILOT_REDIS_URL"

	EnvJWTSecret = "PROPPILOT_JWT_SECRET"
	EnvJWTIssuer = "PROPPILOT_JWT_ISSUER"

	EnvUseSQLite = "PROPPILOT_USE_SQLITE"

	EnvStripeAPIKey = "PROPPILOT_STRIPE_API_KEY"
	EnvStripeSecret = "PROPPILOT_STRIPE_WEBHOOK_SECRET"

	EnvRiskFraudPass = "PROPPILOT_RISK_FRAUD_PASS_THRESHOLD"
	EnvRiskApprove   = "PROPPILOT_RISK_APPROVE_THRESHOLD"
	EnvRiskReview    = "PROPPILOT_RISK_REVIEW_THRESHOLD"

	EnvGraceSweepSchedule = "PROPPILOT_CRON_GRACE_SWEEP_SCHEDULE"

	EnvBillingGraceDays = "PROPPILOT_BILLING_DEFAULT_GRACE_DAYS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

package config

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv           = "STOREFRONT_APP_ENV"
	EnvPort             = "STOREFRONT_APP_PORT"
	EnvDBDSN            = "STOREFRONT_DB_DSN"
	EnvDBHost           = "STOREFRONT_DB_HOST"
	EnvDBUser           = "STOREFRONT_DB_USER"
	EnvDBName           = "STOREFRONT_DB_NAME"
	EnvDBPassword       = "STOREFRONT_DB_PASSWORD"
	EnvRedisURL         = "STOREFRONT_REDIS_URL"
	EnvJWTSecret        = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer        = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins       = "STOREFRONT_JWT_EXPIRATION_MINUTES"
	EnvCheckoutShipping = "STOREFRONT_CHECKOUT_SHIPPING_FLAT"
	EnvCheckoutTaxRate  = "STOREFRONT_CHECKOUT_TAX_RATE"
	EnvCheckoutCurrency = "STOREFRONT_CHECKOUT_CURRENCY"
	EnvCheckoutIntent   = "STOREFRONT_CHECKOUT_INTENT_TTL"
	EnvCartTTL          = "STOREFRONT_CART_TTL"
	EnvUserDirectory    = "STOREFRONT_FEATURE_USER_DIRECTORY"
	EnvCORSOrigins      = "STOREFRONT_CORS_ORIGINS"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

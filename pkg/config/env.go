package config

// EnvPrefix is handed to envconfig; every field carries its full name explicitly.
const EnvPrefix = "COURSESHARE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StorageDriverLocal = "local"
	StorageDriverGCS   = "gcs"
	StorageDriverS3    = "s3"
)

const (
	EnvAppEnv   = "COURSESHARE_APP_ENV"
	EnvPort     = "COURSESHARE_APP_PORT"
	EnvLogLevel = "COURSESHARE_LOG_LEVEL"

	EnvDBDSN  = "COURSESHARE_DB_DSN"
	EnvDBHost = "COURSESHARE_DB_HOST"
	EnvDBUser = "COURSESHARE_DB_USER"
	EnvDBName = "COURSESHARE_DB_NAME"

	EnvRedisURL = "COURSESHARE_REDIS_URL"

	EnvJWTSecret  = "COURSESHARE_JWT_SECRET"
	EnvJWTIssuer  = "COURSESHARE_JWT_ISSUER"
	EnvJWTExpMins = "COURSESHARE_JWT_EXPIRATION_MINUTES"

	EnvUseSQLite = "COURSESHARE_USE_SQLITE"

	EnvStorageDriver    = "COURSESHARE_STORAGE_DRIVER"
	EnvStorageLocalPath = "COURSESHARE_STORAGE_LOCAL_PATH"
	EnvGCSBucket        = "COURSESHARE_GCS_BUCKET_NAME"
	EnvS3Bucket         = "COURSESHARE_S3_BUCKET_NAME"

	EnvFreePlanRideLimit = "COURSESHARE_FREE_PLAN_RIDE_LIMIT"
	EnvQuotaTimezone     = "COURSESHARE_QUOTA_TIMEZONE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

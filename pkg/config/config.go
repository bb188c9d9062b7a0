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
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Storage       StorageConfig
	GCP           GCPConfig
	GCS           GCSConfig
	S3            S3Config
	PubSub        PubSubConfig
	Stripe        StripeConfig
	Quota         QuotaConfig
	Async         AsyncConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.Quota.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"COURSESHARE_APP_ENV" required:"true"`
	Port         string `envconfig:"COURSESHARE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"COURSESHARE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COURSESHARE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"COURSESHARE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma-separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	origins := []string{}
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

type ServiceConfig struct {
	Kind string `envconfig:"COURSESHARE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"COURSESHARE_DB_DSN"`
	Driver string `envconfig:"COURSESHARE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COURSESHARE_DB_HOST"`
	LegacyPort     int    `envconfig:"COURSESHARE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COURSESHARE_DB_USER"`
	LegacyPassword string `envconfig:"COURSESHARE_DB_PASSWORD"`
	LegacyName     string `envconfig:"COURSESHARE_DB_NAME"`
	LegacySSLMode  string `envconfig:"COURSESHARE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COURSESHARE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COURSESHARE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COURSESHARE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COURSESHARE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"COURSESHARE_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COURSESHARE_REDIS_URL"`
	Address      string        `envconfig:"COURSESHARE_REDIS_ADDR"`
	Password     string        `envconfig:"COURSESHARE_REDIS_PASSWORD"`
	DB           int           `envconfig:"COURSESHARE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COURSESHARE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COURSESHARE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COURSESHARE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COURSESHARE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COURSESHARE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string        `envconfig:"COURSESHARE_JWT_SECRET" required:"true"`
	Issuer            string        `envconfig:"COURSESHARE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int           `envconfig:"COURSESHARE_JWT_EXPIRATION_MINUTES" default:"1440"`
	Audience          string        `envconfig:"COURSESHARE_JWT_AUDIENCE" default:"courseshare-app"`
	Leeway            time.Duration `envconfig:"COURSESHARE_JWT_LEEWAY" default:"30s"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"COURSESHARE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"COURSESHARE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"COURSESHARE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"COURSESHARE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"COURSESHARE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"COURSESHARE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"COURSESHARE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"COURSESHARE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"COURSESHARE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"COURSESHARE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"COURSESHARE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	AcceptWindow       time.Duration `envconfig:"COURSESHARE_RATE_LIMIT_ACCEPT_WINDOW" default:"1m"`
	AcceptUserLimit    int           `envconfig:"COURSESHARE_RATE_LIMIT_ACCEPT_USER_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"COURSESHARE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"COURSESHARE_AUTO_MIGRATE" default:"false"`
	PushEnabled bool `envconfig:"COURSESHARE_FEATURE_PUSH" default:"false"`
}

type StorageConfig struct {
	Driver    string `envconfig:"COURSESHARE_STORAGE_DRIVER" default:"local"`
	LocalPath string `envconfig:"COURSESHARE_STORAGE_LOCAL_PATH" default:"./uploads"`
	KeyPrefix string `envconfig:"COURSESHARE_STORAGE_KEY_PREFIX" default:"rides"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"COURSESHARE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"COURSESHARE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"COURSESHARE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"COURSESHARE_GCS_BUCKET_NAME"`
}

type S3Config struct {
	Region     string `envconfig:"COURSESHARE_S3_REGION" default:"eu-west-3"`
	BucketName string `envconfig:"COURSESHARE_S3_BUCKET_NAME"`
	Endpoint   string `envconfig:"COURSESHARE_S3_ENDPOINT"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"COURSESHARE_PUBSUB_NOTIFICATION_TOPIC" default:"cs-notification-events"`
}

type StripeConfig struct {
	APIKey     string `envconfig:"COURSESHARE_STRIPE_API_KEY"`
	Secret     string `envconfig:"COURSESHARE_STRIPE_SECRET"`
	Env        string `envconfig:"COURSESHARE_STRIPE_ENV" default:"test"`
	SuccessURL string `envconfig:"COURSESHARE_STRIPE_SUCCESS_URL" default:"http://localhost:3000/abonnement/succes"`
	CancelURL  string `envconfig:"COURSESHARE_STRIPE_CANCEL_URL" default:"http://localhost:3000/abonnement"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Enabled reports whether Stripe credentials were supplied.
func (s StripeConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != "" && strings.TrimSpace(s.Secret) != ""
}

type QuotaConfig struct {
	FreePlanRideLimit  int    `envconfig:"COURSESHARE_FREE_PLAN_RIDE_LIMIT" default:"5"`
	ReferralBonusRides int    `envconfig:"COURSESHARE_REFERRAL_BONUS_RIDES" default:"3"`
	Timezone           string `envconfig:"COURSESHARE_QUOTA_TIMEZONE" default:"Europe/Paris"`
}

// Location resolves the timezone used to compute month keys.
func (q QuotaConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(q.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading quota timezone %q: %w", name, err)
	}
	return loc, nil
}

type AsyncConfig struct {
	Workers     int           `envconfig:"COURSESHARE_ASYNC_WORKERS" default:"4"`
	QueueSize   int           `envconfig:"COURSESHARE_ASYNC_QUEUE_SIZE" default:"256"`
	TaskTimeout time.Duration `envconfig:"COURSESHARE_ASYNC_TASK_TIMEOUT" default:"15s"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"COURSESHARE_CRON_INTERVAL" default:"1h"`
	NotificationRetention time.Duration `envconfig:"COURSESHARE_NOTIFICATION_RETENTION" default:"720h"`
}

func (db *DBConfig) ensureDSN(sqlite bool) error {
	if db.DSN != "" {
		return nil
	}
	if sqlite {
		db.DSN = "file:courseshare.db?cache=shared"
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

func (s StorageConfig) validate(cfg Config) error {
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case StorageDriverLocal:
		if strings.TrimSpace(s.LocalPath) == "" {
			return fmt.Errorf("%s is required for the local storage driver", EnvStorageLocalPath)
		}
	case StorageDriverGCS:
		if cfg.GCS.BucketName == "" {
			return fmt.Errorf("%s is required for the gcs storage driver", EnvGCSBucket)
		}
	case StorageDriverS3:
		if cfg.S3.BucketName == "" {
			return fmt.Errorf("%s is required for the s3 storage driver", EnvS3Bucket)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", s.Driver)
	}
	return nil
}

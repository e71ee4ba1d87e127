package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	Env               string `mapstructure:"ENV"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	AdminToken        string `mapstructure:"ADMIN_TOKEN"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisLockDB   int    `mapstructure:"REDIS_LOCK_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Payment and messaging providers.
	StripeSecretKey         string `mapstructure:"STRIPE_SECRET_KEY"`
	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`

	// Business calendar. All reservation windows are interpreted in this
	// timezone; probing for alternative slots stays inside the day bounds.
	BusinessTimezone string `mapstructure:"BUSINESS_TIMEZONE"`
	BusinessDayStart string `mapstructure:"BUSINESS_DAY_START"`
	BusinessDayEnd   string `mapstructure:"BUSINESS_DAY_END"`

	// Reservation policy knobs.
	MinNoticeMinutes      int `mapstructure:"MIN_NOTICE_MINUTES"`
	ProbeIncrementMinutes int `mapstructure:"PROBE_INCREMENT_MINUTES"`
	MinSplitMinutes       int `mapstructure:"MIN_SPLIT_MINUTES"`
	AlternativeLimit      int `mapstructure:"ALTERNATIVE_LIMIT"`

	// Grace window defaults. Per-service overrides are managed at runtime
	// through the admin API.
	GraceConfirmationExpiryHours int `mapstructure:"GRACE_CONFIRMATION_EXPIRY_HOURS"`
	GraceCompletionMinutes       int `mapstructure:"GRACE_COMPLETION_MINUTES"`
	GraceNoShowMinutes           int `mapstructure:"GRACE_NO_SHOW_MINUTES"`

	// Refund notice ladder, measured against reservation start.
	RefundFullNoticeHours int `mapstructure:"REFUND_FULL_NOTICE_HOURS"`
	RefundHalfNoticeHours int `mapstructure:"REFUND_HALF_NOTICE_HOURS"`

	// Lifecycle scheduler.
	SchedulerEnabled          bool `mapstructure:"SCHEDULER_ENABLED"`
	SchedulerIntervalMinutes  int  `mapstructure:"SCHEDULER_INTERVAL_MINUTES"`
	SchedulerBatchSize        int  `mapstructure:"SCHEDULER_BATCH_SIZE"`
	SchedulerMaxRetries       int  `mapstructure:"SCHEDULER_MAX_RETRIES"`
	SchedulerRetryDelayMs     int  `mapstructure:"SCHEDULER_RETRY_DELAY_MS"`
	SchedulerRunBudgetSeconds int  `mapstructure:"SCHEDULER_RUN_BUDGET_SECONDS"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_LOCK_DB", 1)
	viper.SetDefault("REDIS_QUEUE_DB", 2)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("BUSINESS_TIMEZONE", "Asia/Seoul")
	viper.SetDefault("BUSINESS_DAY_START", "09:00")
	viper.SetDefault("BUSINESS_DAY_END", "21:00")
	viper.SetDefault("MIN_NOTICE_MINUTES", 120)
	viper.SetDefault("PROBE_INCREMENT_MINUTES", 15)
	viper.SetDefault("MIN_SPLIT_MINUTES", 30)
	viper.SetDefault("ALTERNATIVE_LIMIT", 3)
	viper.SetDefault("GRACE_CONFIRMATION_EXPIRY_HOURS", 24)
	viper.SetDefault("GRACE_COMPLETION_MINUTES", 30)
	viper.SetDefault("GRACE_NO_SHOW_MINUTES", 15)
	viper.SetDefault("REFUND_FULL_NOTICE_HOURS", 24)
	viper.SetDefault("REFUND_HALF_NOTICE_HOURS", 2)
	viper.SetDefault("SCHEDULER_ENABLED", true)
	viper.SetDefault("SCHEDULER_INTERVAL_MINUTES", 5)
	viper.SetDefault("SCHEDULER_BATCH_SIZE", 200)
	viper.SetDefault("SCHEDULER_MAX_RETRIES", 3)
	viper.SetDefault("SCHEDULER_RETRY_DELAY_MS", 2000)
	viper.SetDefault("SCHEDULER_RUN_BUDGET_SECONDS", 240)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

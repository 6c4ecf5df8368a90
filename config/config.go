package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds infrastructure configuration values.
// Response-window minutes are not here; see TimeoutSettings.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	DatabaseName string `mapstructure:"DATABASE_NAME"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	StripeKey               string `mapstructure:"STRIPE_KEY"`
	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`

	PublicBaseURL        string `mapstructure:"PUBLIC_BASE_URL"`
	OpsNotificationTopic string `mapstructure:"OPS_NOTIFICATION_TOPIC"`
	AdminToken           string `mapstructure:"ADMIN_TOKEN"`
	DefaultTimezone      string `mapstructure:"DEFAULT_TIMEZONE"`

	// Timeout sweep.
	SweepSchedule                 string `mapstructure:"SWEEP_SCHEDULE"`
	SweepGraceMinutes             int    `mapstructure:"SWEEP_GRACE_MINUTES"`
	SweepExcludedReferencePattern string `mapstructure:"SWEEP_EXCLUDED_REFERENCE_PATTERN"`
}

var AppConfig Config

func LoadConfig() {
	// A local .env is optional; real deployments use the environment.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "bloomdispatch")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("STRIPE_KEY", "")
	viper.SetDefault("FIREBASE_CREDENTIALS_FILE", "firebase-service-account.json")
	viper.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	viper.SetDefault("OPS_NOTIFICATION_TOPIC", "")
	viper.SetDefault("ADMIN_TOKEN", "")
	viper.SetDefault("DEFAULT_TIMEZONE", "UTC")
	viper.SetDefault("SWEEP_SCHEDULE", "@every 5m")
	viper.SetDefault("SWEEP_GRACE_MINUTES", 2)
	viper.SetDefault("SWEEP_EXCLUDED_REFERENCE_PATTERN", "^RQ-")

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

// DefaultLocation is the timezone used for bookings that carry none.
func DefaultLocation() *time.Location {
	if AppConfig.DefaultTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(AppConfig.DefaultTimezone)
	if err != nil {
		log.Printf("invalid DEFAULT_TIMEZONE %q, using UTC: %v", AppConfig.DefaultTimezone, err)
		return time.UTC
	}
	return loc
}

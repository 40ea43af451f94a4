package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Global upload settings used by the local file store.
var UploadPath = "./uploads"
var BaseURL = "http://localhost:8080"

type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`

	JWTAccessSecret    string `mapstructure:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret   string `mapstructure:"JWT_REFRESH_SECRET"`
	JWTAccessTTLHours  int    `mapstructure:"JWT_ACCESS_TTL_HOURS"`
	JWTRefreshTTLHours int    `mapstructure:"JWT_REFRESH_TTL_HOURS"`

	// Redis
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// Kafka. Empty brokers means events are delivered in process.
	KafkaBrokers []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string   `mapstructure:"KAFKA_TOPIC"`

	// MSG91 OTP gateway
	MSG91APIKey      string `mapstructure:"MSG91_API_KEY"`
	MSG91TemplateID  string `mapstructure:"MSG91_OTP_TEMPLATE_ID"`
	MSG91BaseURL     string `mapstructure:"MSG91_BASE_URL"`
	MSG91CountryCode string `mapstructure:"MSG91_COUNTRY_CODE"`
	OTPExpiryMinutes int    `mapstructure:"OTP_EXPIRY_MINUTES"`
	OTPResendSeconds int    `mapstructure:"OTP_RESEND_SECONDS"`

	DietQuestionAddDays int `mapstructure:"DIET_QUESTION_ADD_DAYS"`

	// File storage. S3 is used when a bucket is configured.
	UploadPath      string `mapstructure:"UPLOAD_PATH"`
	BaseURL         string `mapstructure:"BASE_URL"`
	S3Bucket        string `mapstructure:"S3_BUCKET"`
	S3Region        string `mapstructure:"S3_REGION"`
	S3PublicBaseURL string `mapstructure:"S3_PUBLIC_BASE_URL"`

	// FCM
	FCMCredentialsPath string `mapstructure:"FCM_CREDENTIALS_PATH"`
	FCMProjectID       string `mapstructure:"FCM_PROJECT_ID"`

	CORSOrigins           []string `mapstructure:"CORS_ORIGINS"`
	RateLimitPerMinute    int64    `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	OTPRateLimitPerMinute int64    `mapstructure:"OTP_RATE_LIMIT_PER_MINUTE"`
	SchedulerEnabled      bool     `mapstructure:"SCHEDULER_ENABLED"`

	SuperAdminUsername string `mapstructure:"SUPERADMIN_USERNAME"`
	SuperAdminPassword string `mapstructure:"SUPERADMIN_PASSWORD"`
	SuperAdminPhone    string `mapstructure:"SUPERADMIN_PHONE"`
}

var defaults = map[string]interface{}{
	"PORT":                      "8080",
	"ENV":                       "development",
	"DB_HOST":                   "localhost",
	"DB_PORT":                   "5432",
	"DB_SSLMODE":                "disable",
	"JWT_ACCESS_TTL_HOURS":      24,
	"JWT_REFRESH_TTL_HOURS":     168,
	"REDIS_ADDR":                "localhost:6379",
	"REDIS_DB":                  0,
	"KAFKA_TOPIC":               "health-events",
	"MSG91_BASE_URL":            "https://control.msg91.com",
	"MSG91_COUNTRY_CODE":        "91",
	"OTP_EXPIRY_MINUTES":        5,
	"OTP_RESEND_SECONDS":        60,
	"DIET_QUESTION_ADD_DAYS":    15,
	"UPLOAD_PATH":               "./uploads",
	"BASE_URL":                  "http://localhost:8080",
	"CORS_ORIGINS":              "http://localhost:3000",
	"RATE_LIMIT_PER_MINUTE":     100,
	"OTP_RATE_LIMIT_PER_MINUTE": 5,
	"SCHEDULER_ENABLED":         false,
	"SUPERADMIN_USERNAME":       "superadmin",
	"SUPERADMIN_PASSWORD":       "admin123",
}

var boundKeys = []string{
	"DB_USER", "DB_PASSWORD", "DB_NAME",
	"JWT_ACCESS_SECRET", "JWT_REFRESH_SECRET",
	"REDIS_PASSWORD", "KAFKA_BROKERS",
	"MSG91_API_KEY", "MSG91_OTP_TEMPLATE_ID",
	"S3_BUCKET", "S3_REGION", "S3_PUBLIC_BASE_URL",
	"FCM_CREDENTIALS_PATH", "FCM_PROJECT_ID",
	"SUPERADMIN_PHONE",
}

// Load reads .env (if present) and the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file, using environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
		_ = v.BindEnv(key)
	}
	for _, key := range boundKeys {
		_ = v.BindEnv(key)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(v.GetString("KAFKA_BROKERS"))

	UploadPath = cfg.UploadPath
	BaseURL = cfg.BaseURL

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate reports configuration that would make the service unsafe or unusable.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.JWTAccessSecret == "" || c.JWTRefreshSecret == "" {
			return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required outside development")
		}
	}
	if c.DietQuestionAddDays <= 0 {
		return fmt.Errorf("DIET_QUESTION_ADD_DAYS must be positive, got %d", c.DietQuestionAddDays)
	}
	if c.OTPExpiryMinutes <= 0 {
		return fmt.Errorf("OTP_EXPIRY_MINUTES must be positive, got %d", c.OTPExpiryMinutes)
	}
	if c.MSG91APIKey != "" && c.MSG91TemplateID == "" {
		return fmt.Errorf("MSG91_OTP_TEMPLATE_ID is required when MSG91_API_KEY is set")
	}
	return nil
}

// DSN builds the postgres connection string for gorm.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

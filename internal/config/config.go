package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	BaseURL     string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	Provider ProviderConfig
	Storage  StorageConfig
	Commerce CommerceConfig

	RateLimit RateLimitConfig
}

// ProviderConfig configures the external inference provider.
type ProviderConfig struct {
	APIToken   string
	BaseURL    string
	ImageModel string
	VideoModel string
}

// StorageConfig configures the S3-compatible object store. When the
// credentials or bucket are empty the uploader runs in degraded mode and
// callers keep the original artifact URLs.
type StorageConfig struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	UsePathStyle  bool
}

// CommerceConfig configures the crypto commerce provider used for credit
// purchases.
type CommerceConfig struct {
	APIKey        string
	BaseURL       string
	WebhookSecret string
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	GenerateRate  float64
	GenerateBurst int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "mirage"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		BaseURL:     strings.TrimRight(getenv("APP_BASE_URL", "http://localhost:8080"), "/"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "mirage"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		Provider: ProviderConfig{
			APIToken:   strings.TrimSpace(getenv("PROVIDER_API_TOKEN", "")),
			BaseURL:    strings.TrimRight(getenv("PROVIDER_BASE_URL", "https://api.replicate.com"), "/"),
			ImageModel: getenv("PROVIDER_IMAGE_MODEL", "bytedance/seedream-4"),
			VideoModel: getenv("PROVIDER_VIDEO_MODEL", "wan-video/wan-2.2-i2v-fast"),
		},
		Storage: StorageConfig{
			Endpoint:      strings.TrimSpace(getenv("S3_ENDPOINT", "")),
			Region:        getenv("S3_REGION", "us-east-1"),
			AccessKey:     strings.TrimSpace(getenv("S3_ACCESS_KEY", "")),
			SecretKey:     strings.TrimSpace(getenv("S3_SECRET_KEY", "")),
			Bucket:        strings.TrimSpace(getenv("S3_BUCKET", "")),
			PublicBaseURL: strings.TrimSpace(getenv("S3_PUBLIC_BASE_URL", "")),
			UsePathStyle:  getenvBool("S3_USE_PATH_STYLE", false),
		},
		Commerce: CommerceConfig{
			APIKey:        strings.TrimSpace(getenv("COMMERCE_API_KEY", "")),
			BaseURL:       strings.TrimRight(getenv("COMMERCE_BASE_URL", "https://api.commerce.coinbase.com"), "/"),
			WebhookSecret: strings.TrimSpace(getenv("COMMERCE_WEBHOOK_SECRET", "")),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword: getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
			GenerateRate:  getenvFloat("RATE_LIMIT_GENERATE_RATE", 0.2),
			GenerateBurst: getenvInt("RATE_LIMIT_GENERATE_BURST", 3),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

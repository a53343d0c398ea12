package observability

import (
	"os"
	"strings"

	"github.com/mirage-studio/mirage/internal/config"
)

// Config holds observability configuration derived from environment variables.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel string
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "mirage"
	}

	return Config{
		ServiceName: serviceName,
		Environment: strings.TrimSpace(getenv("DEPLOYMENT_ENV", cfg.Environment)),
		Version:     strings.TrimSpace(getenv("SERVICE_VERSION", cfg.AppVersion)),
		LogLevel:    strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
	}
}

func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	return isDevEnv(c.Environment)
}

func isDevEnv(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	switch env {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

package config

import (
	"os"
	"strconv"
	"time"
)

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// parseEnv overlays values from environment variables (populated from .env
// by the entry point). Durations use Go syntax, e.g. "15m" or "168h".
func parseEnv(config *Config) {
	config.EndpointAddr = getEnv("ENDPOINT_ADDR", config.EndpointAddr)
	config.DatabaseDSN = getEnv("DATABASE_DSN", config.DatabaseDSN)
	config.AccessTokenSecret = getEnv("ACCESS_TOKEN_SECRET", config.AccessTokenSecret)
	config.RefreshTokenSecret = getEnv("REFRESH_TOKEN_SECRET", config.RefreshTokenSecret)

	if v, exists := os.LookupEnv("ACCESS_TOKEN_VALIDITY"); exists {
		if d, err := time.ParseDuration(v); err == nil {
			config.AccessTokenValidityDuration = d
		}
	}
	if v, exists := os.LookupEnv("REFRESH_TOKEN_VALIDITY"); exists {
		if d, err := time.ParseDuration(v); err == nil {
			config.RefreshTokenValidityDuration = d
		}
	}

	config.S3RootUser = getEnv("S3_ROOT_USER", config.S3RootUser)
	config.S3RootPassword = getEnv("S3_ROOT_PASSWORD", config.S3RootPassword)
	config.S3Bucket = getEnv("S3_BUCKET", config.S3Bucket)
	config.S3Region = getEnv("S3_REGION", config.S3Region)
	config.S3BaseEndpoint = getEnv("S3_BASE_ENDPOINT", config.S3BaseEndpoint)

	if v, exists := os.LookupEnv("COOKIE_SECURE"); exists {
		if b, err := strconv.ParseBool(v); err == nil {
			config.CookieSecure = b
		}
	}

	config.UploadDir = getEnv("UPLOAD_DIR", config.UploadDir)
}

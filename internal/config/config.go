package config

import (
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Config struct {
	APIBaseURL     string
	DatabaseURL    string
	RenewThreshold time.Duration
	RenewInterval  time.Duration
	HTTPTimeout    time.Duration
	LogLevel       string
	LogFile        string

	// Dev backend only.
	HTTPPort        string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

var AppConfig Config

// LoadConfig reads the environment into AppConfig. It rejects malformed
// numbers; callers apply flag overrides and then call Validate.
func LoadConfig() error {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Trace().Msg("No .env file found, relying on environment variables")
	}

	var parseErr error
	seconds := func(key string, defaultSeconds int) time.Duration {
		d, err := getEnvAsSeconds(key, defaultSeconds)
		if err != nil && parseErr == nil {
			parseErr = err
		}
		return d
	}

	AppConfig = Config{
		APIBaseURL:      getEnv("CHATDASH_API_URL", "http://localhost:8080"),
		DatabaseURL:     getEnv("CHATDASH_DB", "chatdash.db"),
		RenewThreshold:  seconds("CHATDASH_RENEW_THRESHOLD", 300),
		RenewInterval:   seconds("CHATDASH_RENEW_INTERVAL", 60),
		HTTPTimeout:     seconds("CHATDASH_HTTP_TIMEOUT", 30),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFile:         getEnv("LOG_FILE", ""),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		AccessTokenTTL:  seconds("ACCESS_TOKEN_TTL", 900),
		RefreshTokenTTL: seconds("REFRESH_TOKEN_TTL", 7*24*3600),
	}

	return parseErr
}

// Validate checks the client-side settings. The dev backend checks JWTSecret itself.
func (c Config) Validate() error {
	if _, err := Origin(c.APIBaseURL); err != nil {
		return err
	}
	if c.RenewThreshold <= 0 {
		return errors.New("CHATDASH_RENEW_THRESHOLD must be positive")
	}
	if c.RenewInterval <= 0 {
		return errors.New("CHATDASH_RENEW_INTERVAL must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("CHATDASH_HTTP_TIMEOUT must be positive")
	}
	return nil
}

// Origin reduces a base URL to scheme://host, the scope credentials are stored under.
func Origin(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", errors.Wrapf(err, "invalid api url %q", baseURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.Errorf("invalid api url %q: scheme and host are required", baseURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue, errors.Errorf("%s must be a whole number, got %q", key, valueStr)
	}
	return value, nil
}

func getEnvAsSeconds(key string, defaultSeconds int) (time.Duration, error) {
	value, err := getEnvAsInt(key, defaultSeconds)
	return time.Duration(value) * time.Second, err
}

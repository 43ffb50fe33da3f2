package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string
	// PublicURL is this server's external origin; it prefixes the login
	// return target when set.
	PublicURL string
	// AuthClientURL is the external login service.
	AuthClientURL string
	// AuthAPIURL serves the session profile and logout endpoints.
	AuthAPIURL string
	// InvoiceAPIURL serves organizations and tenant records.
	InvoiceAPIURL    string
	AuthCookieName   string
	StateCookieName  string
	StateSecret      string
	StateTTL         time.Duration
	DatabaseURL      string
	RateLimitRPS     float64
	APITimeout       time.Duration
	WorkspaceIdleTTL time.Duration
	StaticDir        string
	LogLevel         string
	LogFormat        string
}

func Load() Config {
	return Config{
		Port:             getEnv("PORT", "3000"),
		PublicURL:        strings.TrimSuffix(os.Getenv("PUBLIC_URL"), "/"),
		AuthClientURL:    getEnv("AUTH_CLIENT_URL", "http://localhost:8000"),
		AuthAPIURL:       getEnv("AUTH_API_URL", "http://localhost:8000/api"),
		InvoiceAPIURL:    os.Getenv("API_INVOICE_URL"),
		AuthCookieName:   getEnv("AUTH_COOKIE_NAME", "connect.sid"),
		StateCookieName:  getEnv("STATE_COOKIE_NAME", "invoicer_state"),
		StateSecret:      os.Getenv("STATE_SECRET"),
		StateTTL:         getDuration("STATE_TTL", 7*24*time.Hour),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RateLimitRPS:     getFloat("RATE_LIMIT_RPS", 20),
		APITimeout:       getDuration("API_TIMEOUT", 10*time.Second),
		WorkspaceIdleTTL: getDuration("WORKSPACE_IDLE_TTL", 30*time.Minute),
		StaticDir:        os.Getenv("STATIC_DIR"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "console"),
	}
}

// Validate reports the first missing required setting.
func (c Config) Validate() error {
	switch {
	case c.Port == "":
		return errors.New("config: PORT must be set")
	case c.AuthClientURL == "":
		return errors.New("config: AUTH_CLIENT_URL must be set")
	case c.AuthAPIURL == "":
		return errors.New("config: AUTH_API_URL must be set")
	case c.InvoiceAPIURL == "":
		return errors.New("config: API_INVOICE_URL must be set")
	case c.AuthCookieName == "":
		return errors.New("config: AUTH_COOKIE_NAME must be set")
	case c.StateSecret == "" && c.DatabaseURL == "":
		return errors.New("config: STATE_SECRET must be set when DATABASE_URL is empty")
	}
	return nil
}

// SecureCookies reports whether cookies must carry the Secure attribute.
func (c Config) SecureCookies() bool {
	return strings.HasPrefix(strings.ToLower(c.PublicURL), "https://")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

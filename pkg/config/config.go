package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultTrackerPrefix = "trackers"
	DefaultQueryParam    = "tracker_id"
)

type Config struct {
	Port        string
	DatabaseURL string
	AppEnv      string
	BaseURL     string

	TrackerPrefix     string
	TrackerQueryParam string
	TokenLength       int
	TokenMaxAttempts  int
	ClickTimeout      time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	JWTSecret          string
	FrontendURL        string
	AllowedEmails      []string
	AdminPasswordHash  string

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "file:db.sqlite"),
		AppEnv:      getEnv("APP_ENV", "local"),
		BaseURL:     strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),

		TrackerPrefix:     NormalizePrefix(getEnv("TRACKER_PREFIX", DefaultTrackerPrefix)),
		TrackerQueryParam: getEnv("TRACKER_QUERY_PARAM", DefaultQueryParam),
		TokenLength:       getEnvInt("TOKEN_LENGTH", 8),
		TokenMaxAttempts:  getEnvInt("TOKEN_MAX_ATTEMPTS", 10),
		ClickTimeout:      getEnvDuration("CLICK_TIMEOUT", 2*time.Second),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),
		JWTSecret:          getEnv("JWT_SECRET", "secret"),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:8080/api/v1/links"),
		AllowedEmails:      getEnvList("ALLOWED_EMAILS"),
		AdminPasswordHash:  getEnv("ADMIN_PASSWORD_HASH", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// reservedPrefixes are first path segments owned by the router.
var reservedPrefixes = []string{"api", "auth", "healthz"}

// NormalizePrefix strips surrounding slashes. An empty or reserved result
// falls back to the default so tracker routes never shadow "/" or the admin
// surface.
func NormalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" || IsReservedPrefix(prefix) {
		return DefaultTrackerPrefix
	}
	return prefix
}

// IsReservedPrefix reports whether prefix starts with a segment the router
// already serves.
func IsReservedPrefix(prefix string) bool {
	first, _, _ := strings.Cut(strings.Trim(strings.TrimSpace(prefix), "/"), "/")
	for _, reserved := range reservedPrefixes {
		if strings.EqualFold(first, reserved) {
			return true
		}
	}
	return false
}

// TrackerURL is the public address of a tracker link.
func (c *Config) TrackerURL(token string) string {
	return c.BaseURL + "/" + c.TrackerPrefix + "/" + token
}

// IsEmailAllowed reports whether email may sign in. An empty allowlist admits
// nobody.
func (c *Config) IsEmailAllowed(email string) bool {
	for _, allowed := range c.AllowedEmails {
		if strings.EqualFold(allowed, email) {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

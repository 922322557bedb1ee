package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Worker modes
const (
	WorkerModeEmbedded   = "embedded"
	WorkerModeStandalone = "standalone"
	WorkerModeOff        = "off"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	DatabaseURL   string
	RedisURL      string
	Port          string
	Env           string
	SessionSecret string
	EncryptionKey string
	LogLevel      string
	LogFormat     string

	StravaClientID     string
	StravaClientSecret string
	StravaCallbackURL  string
	StravaStubMode     bool
	StravaRateLimit    float64

	OpenCageAPIKey  string
	GeocodeStubMode bool

	RegionsDir          string
	DefaultCity         string
	CalendarHorizonDays int
	SlotCostCap         int
	InteractionBufferKm float64

	RefreshSchedule string
	RefreshTimezone string
	WorkerMode      string

	StravaVerifyToken string
	AdminUsernames    []string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg := &Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      getEnvWithDefault("REDIS_URL", "redis://localhost:6379/0"),
		Port:          getEnvWithDefault("PORT", "8080"),
		Env:           getEnvWithDefault("ENV", "development"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		EncryptionKey: os.Getenv("ENCRYPTION_KEY"),
		LogLevel:      getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat:     getEnvWithDefault("LOG_FORMAT", "text"),

		StravaClientID:     os.Getenv("STRAVA_CLIENT_ID"),
		StravaClientSecret: os.Getenv("STRAVA_CLIENT_SECRET"),
		StravaCallbackURL:  getEnvWithDefault("STRAVA_CALLBACK_URL", "http://localhost:8080/auth/strava/callback"),
		StravaStubMode:     getEnvBool("STRAVA_STUB_MODE", false),
		StravaRateLimit:    getEnvFloat("STRAVA_RATE_LIMIT", 1),

		OpenCageAPIKey:  os.Getenv("OPENCAGE_API_KEY"),
		GeocodeStubMode: getEnvBool("GEOCODE_STUB_MODE", false),

		RegionsDir:          os.Getenv("REGIONS_DIR"),
		DefaultCity:         getEnvWithDefault("DEFAULT_CITY", "Brisbane"),
		CalendarHorizonDays: getEnvInt("CALENDAR_HORIZON_DAYS", 5),
		SlotCostCap:         getEnvInt("SLOT_COST_CAP", 5),
		InteractionBufferKm: getEnvFloat("INTERACTION_BUFFER_KM", 5),

		RefreshSchedule: os.Getenv("REFRESH_SCHEDULE"),
		RefreshTimezone: getEnvWithDefault("REFRESH_TIMEZONE", "Australia/Brisbane"),
		WorkerMode:      strings.ToLower(getEnvWithDefault("WORKER_MODE", WorkerModeEmbedded)),

		StravaVerifyToken: os.Getenv("STRAVA_VERIFY_TOKEN"),
		AdminUsernames:    splitList(os.Getenv("ADMIN_USERNAMES")),
	}

	// Warn if using default session secret (insecure for production)
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = "dev-secret-change-in-production-use-openssl-rand-hex-32"
		log.Println("WARNING: Using default SESSION_SECRET. Generate a secure secret with: openssl rand -hex 32")
	}

	if cfg.StravaClientID == "" && !cfg.StravaStubMode {
		log.Println("WARNING: STRAVA_CLIENT_ID is empty. Set STRAVA_STUB_MODE=true for local development")
	}
	if cfg.OpenCageAPIKey == "" && !cfg.GeocodeStubMode {
		log.Println("WARNING: OPENCAGE_API_KEY is empty. Set GEOCODE_STUB_MODE=true for local development")
	}

	return cfg
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

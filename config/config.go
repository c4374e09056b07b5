package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	CORS        CORSConfig
	Redis       RedisConfig
	Reservation ReservationConfig
	WhatsApp    WhatsAppConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// AuthConfig describes how bearer tokens issued by the identity provider are verified.
type AuthConfig struct {
	JWTSecret        string
	AdminExternalIDs []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Enabled reports whether a Redis host was configured.
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

type ReservationConfig struct {
	Timezone        string
	Window          time.Duration
	SweepCutoff     time.Duration
	ReleaseGrace    time.Duration
	AutoRelease     bool
	SweepSchedule   string
	ReleaseSchedule string
}

type WhatsAppConfig struct {
	AccountSID string
	AuthToken  string
	BaseURL    string
	From       string
	SellerTo   string
}

// Enabled reports whether outbound WhatsApp delivery is configured.
func (c *WhatsAppConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.From != "" && c.SellerTo != ""
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "1234"),
			DBName:   getEnv("DB_NAME", "vintage_store"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret:        getEnv("AUTH_JWT_SECRET", "your-secret-key"),
			AdminExternalIDs: parseSlice(getEnv("AUTH_ADMIN_EXTERNAL_IDS", "")),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Reservation: ReservationConfig{
			Timezone:        getEnv("BUSINESS_TIMEZONE", "America/Argentina/Buenos_Aires"),
			Window:          parseDuration(getEnv("RESERVATION_WINDOW", "30m"), 30*time.Minute),
			SweepCutoff:     parseDuration(getEnv("RESERVATION_SWEEP_CUTOFF", "3h"), 3*time.Hour),
			ReleaseGrace:    parseDuration(getEnv("RESERVATION_RELEASE_GRACE", "5m"), 5*time.Minute),
			AutoRelease:     parseBool(getEnv("RESERVATION_AUTO_RELEASE", "true")),
			SweepSchedule:   getEnv("SWEEP_SCHEDULE", "@every 10m"),
			ReleaseSchedule: getEnv("RELEASE_SCHEDULE", "@every 30s"),
		},
		WhatsApp: WhatsAppConfig{
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			BaseURL:    getEnv("TWILIO_BASE_URL", "https://api.twilio.com/2010-04-01"),
			From:       getEnv("TWILIO_WHATSAPP_FROM", ""),
			SellerTo:   getEnv("SELLER_WHATSAPP_TO", ""),
		},
	}

	return config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Location resolves the shop timezone, falling back to UTC.
func (c *ReservationConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("Invalid timezone %s, using UTC", c.Timezone)
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseBool(s string) bool {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return v
}

func parseSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

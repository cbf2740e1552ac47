package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"club-planner-go/pkg/logger"
)

type Config struct {
	HTTPPort       string
	Env            string
	CalendarFeed   CalendarFeedConfig
	Directory      DirectoryConfig
	DB             DBConfig
	Auth           AuthConfig
	AllowedOrigins []string
}

type CalendarFeedConfig struct {
	Enabled      bool
	ProductID    string
	LookbackDays int
}

type DirectoryConfig struct {
	NameCacheTTL time.Duration
}

type DBConfig struct {
	DSN             string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	TimeZone        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// AuthConfig selects how the acting coach is identified. Mode "remote"
// introspects bearer tokens against the identity provider, "jwt" verifies
// HS256 tokens locally, "skip" injects the mock user for development.
type AuthConfig struct {
	Mode           string
	IdentityURL    string
	APIKey         string
	JWTSecret      string
	Timeout        time.Duration
	MockUserID     string
	MockUserEmail  string
	MockUserName   string
	MockUserAvatar string
}

func Load(log logger.Logger) (Config, error) {
	err := loadDotEnv(log)
	if err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	return Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		AllowedOrigins: []string{getEnv("CORS_ORIGIN", "http://localhost:5173")},
		CalendarFeed: CalendarFeedConfig{
			Enabled:      getEnvBool("CALENDAR_FEED_ENABLED", true),
			ProductID:    getEnv("CALENDAR_FEED_PRODUCT_ID", "-//club-planner//schedule//EN"),
			LookbackDays: getEnvInt("CALENDAR_FEED_LOOKBACK_DAYS", 30),
		},
		Directory: DirectoryConfig{
			NameCacheTTL: getEnvDuration("DIRECTORY_NAME_CACHE_TTL", 5*time.Minute),
		},
		DB: DBConfig{
			DSN:             getEnv("DB_DSN", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "club_planner"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			TimeZone:        getEnv("DB_TIMEZONE", "UTC"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Auth: AuthConfig{
			Mode:           getEnv("AUTH_MODE", "remote"),
			IdentityURL:    getEnv("AUTH_IDENTITY_URL", ""),
			APIKey:         getEnv("AUTH_API_KEY", ""),
			JWTSecret:      getEnv("AUTH_JWT_SECRET", ""),
			Timeout:        getEnvDuration("AUTH_TIMEOUT", 5*time.Second),
			MockUserID:     getEnv("AUTH_MOCK_USER_ID", "00000000-0000-0000-0000-000000000001"),
			MockUserEmail:  getEnv("AUTH_MOCK_USER_EMAIL", ""),
			MockUserName:   getEnv("AUTH_MOCK_USER_NAME", ""),
			MockUserAvatar: getEnv("AUTH_MOCK_USER_AVATAR_URL", ""),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c DBConfig) GetDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.TimeZone
}

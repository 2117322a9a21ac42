package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Addr                    string
	Environment             string
	DatabaseURL             string
	StoreDriver             string
	JWTSecret               string
	RunMigrations           bool
	MigrationsDir           string
	SeedFile                string
	Timezone                string
	WeekStartDay            time.Weekday
	RequireEmployeeApproval bool
	AutoSubmitOnClockOut    bool
	ExportWorkers           int
	ExportQueueSize         int
	ExportTimeout           time.Duration
	ExportResultTTL         time.Duration
	ExportMaxDays           int
	ExportRateLimit         int
	ExportRateWindow        time.Duration
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	CORSAllowedOrigins      []string
	MaxBodyBytes            int64
	MetricsEnabled          bool
	LogLevel                string
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:                    getEnv("APP_ADDR", ":8080"),
		Environment:             getEnv("APP_ENV", "development"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		StoreDriver:             strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		JWTSecret:               getEnv("JWT_SECRET", ""),
		RunMigrations:           getEnvBool("RUN_MIGRATIONS", true),
		MigrationsDir:           getEnv("MIGRATIONS_DIR", "migrations"),
		SeedFile:                getEnv("SEED_FILE", ""),
		Timezone:                getEnv("TIMEZONE", "UTC"),
		WeekStartDay:            getEnvWeekday("WEEK_START_DAY", time.Monday),
		RequireEmployeeApproval: getEnvBool("REQUIRE_EMPLOYEE_APPROVAL", true),
		AutoSubmitOnClockOut:    getEnvBool("AUTO_SUBMIT_ON_CLOCK_OUT", false),
		ExportWorkers:           getEnvInt("EXPORT_WORKERS", 2),
		ExportQueueSize:         getEnvInt("EXPORT_QUEUE_SIZE", 32),
		ExportTimeout:           getEnvDuration("EXPORT_TIMEOUT", 5*time.Minute),
		ExportResultTTL:         getEnvDuration("EXPORT_RESULT_TTL", time.Hour),
		ExportMaxDays:           getEnvInt("EXPORT_MAX_DAYS", 366),
		ExportRateLimit:         getEnvInt("EXPORT_RATE_LIMIT", 30),
		ExportRateWindow:        getEnvDuration("EXPORT_RATE_WINDOW", time.Minute),
		RedisAddr:               getEnv("REDIS_ADDR", ""),
		RedisPassword:           getEnv("REDIS_PASSWORD", ""),
		RedisDB:                 getEnvInt("REDIS_DB", 0),
		CORSAllowedOrigins:      getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		MaxBodyBytes:            int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		MetricsEnabled:          getEnvBool("METRICS_ENABLED", true),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
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

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvWeekday(key string, fallback time.Weekday) time.Weekday {
	day, err := ParseWeekday(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return day
}

// ParseWeekday accepts full or three-letter English day names.
func ParseWeekday(value string) (time.Weekday, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for day := time.Sunday; day <= time.Saturday; day++ {
		name := strings.ToLower(day.String())
		if normalized == name || normalized == name[:3] {
			return day, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", value)
}

func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q", StoreDriverPostgres, StoreDriverMemory)
	}
	if c.Environment == "production" {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if c.StoreDriver == StoreDriverMemory {
			return fmt.Errorf("STORE_DRIVER=memory is not allowed in production")
		}
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.ExportWorkers <= 0 {
		return fmt.Errorf("EXPORT_WORKERS must be positive")
	}
	if c.ExportQueueSize <= 0 {
		return fmt.Errorf("EXPORT_QUEUE_SIZE must be positive")
	}
	if c.ExportMaxDays <= 0 {
		return fmt.Errorf("EXPORT_MAX_DAYS must be positive")
	}
	if c.ExportRateLimit < 0 {
		return fmt.Errorf("EXPORT_RATE_LIMIT must not be negative")
	}
	if c.ExportRateLimit > 0 && c.ExportRateWindow <= 0 {
		return fmt.Errorf("EXPORT_RATE_WINDOW must be positive")
	}
	return nil
}

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/tripdesk/internal/domain/role"
	"github.com/joho/godotenv"
)

type Config struct {
	Env   string
	Port  int
	DBURL string

	DBMaxConns    int
	RunMigrations bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SessionTTLHours     int
	JWTSecret           string
	JWTAccessTTLMinutes int
	IdentityTimeoutMS   int
	LoginRateLimit      int

	// AdminDefaultRole is what an admin sees until they switch role.
	AdminDefaultRole string
	RoutesFile       string

	CORSAllowedOrigins []string

	AdminEmail    string
	AdminPassword string
	AdminName     string

	LogLevel         string
	OTLPEndpoint     string
	TraceSampleRatio float64
}

func Load() Config {
	// a missing .env is fine, real deployments use the environment
	_ = godotenv.Load()

	return Config{
		Env:                 getEnv("APP_ENV", "dev"),
		Port:                getEnvInt("PORT", 8080),
		DBURL:               buildDBURL(),
		DBMaxConns:          getEnvInt("DB_MAX_CONNS", 5),
		RunMigrations:       getEnvBool("RUN_MIGRATIONS", true),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		SessionTTLHours:     getEnvInt("SESSION_TTL_HOURS", 12),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		JWTAccessTTLMinutes: getEnvInt("JWT_ACCESS_TTL_MINUTES", 15),
		IdentityTimeoutMS:   getEnvInt("IDENTITY_TIMEOUT_MS", 2000),
		LoginRateLimit:      getEnvInt("LOGIN_RATE_LIMIT", 10),
		AdminDefaultRole:    getEnv("ADMIN_DEFAULT_ROLE", string(role.Manager)),
		RoutesFile:          getEnv("ROUTES_FILE", ""),
		CORSAllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		AdminEmail:          getEnv("ADMIN_EMAIL", ""),
		AdminPassword:       getEnv("ADMIN_PASSWORD", ""),
		AdminName:           getEnv("ADMIN_NAME", "Administrator"),
		LogLevel:            getEnv("LOG_LEVEL", ""),
		OTLPEndpoint:        getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		TraceSampleRatio:    getEnvFloat("OTEL_TRACES_SAMPLE_RATIO", 1),
	}
}

// Validate reports every bad value at once.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}

	if _, err := role.ParseRole(c.AdminDefaultRole); err != nil {
		errs = append(errs, fmt.Errorf("ADMIN_DEFAULT_ROLE %q: %w", c.AdminDefaultRole, err))
	}

	if c.JWTSecret == "" && c.Env != "dev" && c.Env != "test" {
		errs = append(errs, errors.New("JWT_SECRET is required outside dev"))
	}

	if c.IdentityTimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("IDENTITY_TIMEOUT_MS must be positive: %d", c.IdentityTimeoutMS))
	}

	if c.SessionTTLHours <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL_HOURS must be positive: %d", c.SessionTTLHours))
	}

	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_TRACES_SAMPLE_RATIO must be within [0,1]: %v", c.TraceSampleRatio))
	}

	if c.RedisAddr == "" && c.Env == "prod" {
		errs = append(errs, errors.New("REDIS_ADDR is required in prod"))
	}

	return errors.Join(errs...)
}

// DefaultRole returns the validated admin default. Call Validate first.
func (c Config) DefaultRole() role.Role {
	r, err := role.ParseRole(c.AdminDefaultRole)
	if err != nil {
		return role.Manager
	}
	return r
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func (c Config) IdentityTimeout() time.Duration {
	return time.Duration(c.IdentityTimeoutMS) * time.Millisecond
}

func (c Config) SecureCookies() bool {
	return c.Env == "prod"
}

func buildDBURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "tripdesk")
	pass := getEnv("DB_PASSWORD", "tripdesk")
	name := getEnv("DB_NAME", "tripdesk")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %s=%q is not a number, using %d\n", key, v, fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)

		if err != nil {
			return fallback
		}

		return f
	}

	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)

		if err != nil {
			return fallback
		}

		return b
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}

	return out
}

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
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env              string
	HTTPAddr         string
	DBURL            string
	JWTSecret        string
	JWTExpiry        time.Duration
	CookieExpiry     time.Duration
	AllowedOrigins   []string
	RateLimitMax     int
	RateLimitWindow  time.Duration
	RedisURL         string
	RequestTimeout   time.Duration
	BodyLimit        int64
	PublicDir        string
	StripeSecretKey  string
	EmailFrom        string
	EmailHost        string
	EmailPort        int
	EmailUsername    string
	EmailPassword    string
	SeedAdminEnabled bool
	SeedAdminEmail   string
	SeedAdminPass    string
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", getEnv("NODE_ENV", EnvDevelopment))
	if env != EnvProduction {
		env = EnvDevelopment
	}

	jwtExpiry, err := parseLifetime(getEnv("JWT_EXPIRES_IN", "90d"))
	if err != nil {
		return nil, fmt.Errorf("JWT_EXPIRES_IN: %w", err)
	}

	addr := getEnv("HTTP_ADDR", "")
	if addr == "" {
		addr = ":" + getEnv("PORT", "3000")
	}

	cfg := &Config{
		Env:              env,
		HTTPAddr:         addr,
		DBURL:            databaseURL(getEnv("DATABASE", "postgres://natours:<PASSWORD>@localhost:5432/natours?sslmode=disable"), getEnv("DATABASE_PASSWORD", "natours")),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTExpiry:        jwtExpiry,
		CookieExpiry:     time.Duration(getIntEnv("JWT_COOKIE_EXPIRES_IN", 90)) * 24 * time.Hour,
		AllowedOrigins:   splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		RateLimitMax:     getIntEnv("RATE_LIMIT_MAX", 100),
		RateLimitWindow:  getDurationEnv("RATE_LIMIT_WINDOW", time.Hour),
		RedisURL:         getEnv("REDIS_URL", ""),
		RequestTimeout:   getDurationEnv("REQUEST_TIMEOUT", 5*time.Second),
		BodyLimit:        int64(getIntEnv("BODY_LIMIT", 10*1024)),
		PublicDir:        getEnv("PUBLIC_DIR", "public"),
		StripeSecretKey:  getEnv("STRIPE_SECRET_KEY", ""),
		EmailFrom:        getEnv("EMAIL_FROM", "Natours <hello@natours.io>"),
		EmailHost:        getEnv("EMAIL_HOST", ""),
		EmailPort:        getIntEnv("EMAIL_PORT", 587),
		EmailUsername:    getEnv("EMAIL_USERNAME", ""),
		EmailPassword:    getEnv("EMAIL_PASSWORD", ""),
		SeedAdminEnabled: env != EnvProduction,
		SeedAdminEmail:   getEnv("SEED_ADMIN_EMAIL", "admin@natours.io"),
		SeedAdminPass:    getEnv("SEED_ADMIN_PASSWORD", "test1234"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// databaseURL substitutes the <PASSWORD> placeholder of the connection string.
func databaseURL(raw, password string) string {
	return strings.Replace(raw, "<PASSWORD>", password, 1)
}

// parseLifetime accepts Go durations plus a day suffix ("90d").
func parseLifetime(val string) (time.Duration, error) {
	val = strings.TrimSpace(val)
	if days, ok := strings.CutSuffix(val, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid day count %q", val)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("lifetime must be positive, got %q", val)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

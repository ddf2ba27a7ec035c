package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	RabbitURL  string

	// CommissionBps is the platform's cut of a released payment, in basis
	// points (500 = 5%).
	CommissionBps int64
	// TokenGrace extends a release token's life past the stay end date.
	TokenGrace time.Duration
	// TokenRetention keeps consumed/expired tokens around for audit before
	// the sweeper archives them.
	TokenRetention time.Duration
	// ReconcileMaxAttempts bounds retries on transient storage contention.
	ReconcileMaxAttempts int
	// ReleaseFinalizesBooking moves a booking to TERMINE when its payment
	// is released.
	ReleaseFinalizesBooking bool
}

func Load() *Config {
	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "escrow"),
		RabbitURL:  getEnv("RABBIT_URL", ""),

		CommissionBps:           getEnvInt64("COMMISSION_BPS", 500),
		TokenGrace:              getEnvDuration("TOKEN_GRACE", 72*time.Hour),
		TokenRetention:          getEnvDuration("TOKEN_RETENTION", 30*24*time.Hour),
		ReconcileMaxAttempts:    int(getEnvInt64("RECONCILE_MAX_ATTEMPTS", 3)),
		ReleaseFinalizesBooking: getEnvBool("RELEASE_FINALIZES_BOOKING", true),
	}
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

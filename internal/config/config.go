package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ridgeline-stays/booking-engine/internal/ledger"
	"github.com/ridgeline-stays/booking-engine/internal/model"
	"github.com/ridgeline-stays/booking-engine/internal/repository"
)

type Config struct {
	DB            *repository.DBConfig
	HTTPAddr      string
	RedisAddr     string
	KafkaBrokers  []string
	KafkaTopic    string
	MigrationsDir string
	HoldTTL       time.Duration
	SweepBatch    int
	DayCapacities ledger.Capacities
	SFN           struct {
		TaskToken string
	}
	EnableTracing bool
}

// Load reads the configuration from the environment. taskToken is the Step
// Functions callback token for batch runs; servers pass an empty string.
func Load(taskToken string) (*Config, error) {
	cfg := &Config{
		DB: &repository.DBConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvAsIntOrDefault("DB_PORT", 5432),
			UserName: getEnvOrDefault("DB_USERNAME", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrDefault("DB_NAME", "bookings"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		},
		HTTPAddr:      getEnvOrDefault("HTTP_ADDR", ":8080"),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", ""),
		KafkaBrokers:  splitNonEmpty(getEnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:    getEnvOrDefault("KAFKA_TOPIC", "booking-events"),
		MigrationsDir: getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		HoldTTL:       time.Duration(getEnvAsIntOrDefault("HOLD_TTL_MINUTES", 15)) * time.Minute,
		SweepBatch:    getEnvAsIntOrDefault("SWEEP_BATCH_SIZE", 100),
		DayCapacities: ledger.Capacities{
			model.PropertyLodge:  getEnvAsIntOrDefault("DAY_CAPACITY_LODGE", 40),
			model.PropertyCabins: getEnvAsIntOrDefault("DAY_CAPACITY_CABINS", 25),
		},
	}
	cfg.SFN.TaskToken = taskToken

	// Tracing is opt-in; AWS_XRAY_SDK_DISABLED=true always wins.
	enableKey := os.Getenv("BOOKING_ENABLE_TRACING")
	if !sdkDisabled() && (strings.ToLower(enableKey) == "true" || enableKey == "1") {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "FALSE")
		cfg.EnableTracing = true
	} else {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "TRUE")
		cfg.EnableTracing = false
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	log.Printf("Environment variable %s is not set, using default value", key)
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func sdkDisabled() bool {
	disableKey := os.Getenv("AWS_XRAY_SDK_DISABLED")
	return strings.ToLower(disableKey) == "true"
}

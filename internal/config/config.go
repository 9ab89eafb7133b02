package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Server
	Port        string
	CORSOrigins []string
	Env         string

	// Loan defaults
	Defaults LoanDefaults

	// Penalty accrual
	PenaltyDailyRate decimal.Decimal

	// Requests per minute per client IP
	RateLimitPerMinute int
}

// LoanDefaults are the terms applied when a loan is created without them.
type LoanDefaults struct {
	Periodicity   string
	Interest      decimal.Decimal
	ProcessingFee decimal.Decimal
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	interest, err := getDecimal("DEFAULT_INTEREST", "0.01")
	if err != nil {
		return nil, err
	}
	processingFee, err := getDecimal("DEFAULT_PROCESSING_FEE", "0")
	if err != nil {
		return nil, err
	}
	penaltyRate, err := getDecimal("PENALTY_DAILY_RATE", "0.01")
	if err != nil {
		return nil, err
	}
	rateLimit, err := getInt("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Port:        getEnv("PORT", "8080"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		Env:         getEnv("ENV", "development"),
		Defaults: LoanDefaults{
			Periodicity:   getEnv("DEFAULT_PERIODICITY", "monthly"),
			Interest:      interest,
			ProcessingFee: processingFee,
		},
		PenaltyDailyRate:   penaltyRate,
		RateLimitPerMinute: rateLimit,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.PenaltyDailyRate.IsNegative() {
		return fmt.Errorf("PENALTY_DAILY_RATE must not be negative")
	}
	switch c.Defaults.Periodicity {
	case "daily", "weekly", "monthly":
	default:
		return fmt.Errorf("DEFAULT_PERIODICITY must be daily, weekly or monthly")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDecimal(key, defaultValue string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(getEnv(key, defaultValue))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal number: %w", key, err)
	}
	return value, nil
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

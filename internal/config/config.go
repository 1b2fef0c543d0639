package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the exchange.
type Config struct {
	Port             int
	LogLevel         string
	WebhookTimeout   time.Duration
	StatsWindow      time.Duration
	ActivityInterval time.Duration

	VestingBaseRatePerHour   int64
	VestingPremiumMultiplier int64
	VestingCapShares         int64

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	webhookTimeout, err := getDuration("WEBHOOK_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_TIMEOUT: %w", err)
	}

	statsWindow, err := getDuration("STATS_WINDOW", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_WINDOW: %w", err)
	}

	activityInterval, err := getDuration("ACTIVITY_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid ACTIVITY_INTERVAL: %w", err)
	}

	vestingBaseRate, err := getInt64("VESTING_BASE_RATE", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid VESTING_BASE_RATE: %w", err)
	}
	if vestingBaseRate <= 0 {
		return nil, fmt.Errorf("invalid VESTING_BASE_RATE: must be positive, got %d", vestingBaseRate)
	}

	vestingMultiplier, err := getInt64("VESTING_PREMIUM_MULTIPLIER", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid VESTING_PREMIUM_MULTIPLIER: %w", err)
	}
	if vestingMultiplier < 1 {
		return nil, fmt.Errorf("invalid VESTING_PREMIUM_MULTIPLIER: must be >= 1, got %d", vestingMultiplier)
	}

	vestingCap, err := getInt64("VESTING_CAP", 1000)
	if err != nil {
		return nil, fmt.Errorf("invalid VESTING_CAP: %w", err)
	}
	if vestingCap <= 0 {
		return nil, fmt.Errorf("invalid VESTING_CAP: must be positive, got %d", vestingCap)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:                     port,
		LogLevel:                 logLevel,
		WebhookTimeout:           webhookTimeout,
		StatsWindow:              statsWindow,
		ActivityInterval:         activityInterval,
		VestingBaseRatePerHour:   vestingBaseRate,
		VestingPremiumMultiplier: vestingMultiplier,
		VestingCapShares:         vestingCap,
		ReadTimeout:              readTimeout,
		WriteTimeout:             writeTimeout,
		IdleTimeout:              idleTimeout,
		ShutdownTimeout:          shutdownTimeout,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getInt64(key string, defaultVal int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

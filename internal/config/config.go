// Package config loads environment configuration and holds the typed
// settings consumed by the settlement pipeline and its collaborators.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}
}

// GetEnv returns an environment variable or a default value.
func GetEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// GetIntEnv returns an int environment variable or a default value.
func GetIntEnv(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetDurationEnv returns a duration environment variable or a default value.
func GetDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// IsProduction checks if the app runs in production mode.
func IsProduction() bool {
	return GetEnv("ENV", "development") == "production"
}

// PipelineConfig bounds the payment worker and its retry behaviour.
// MaxAttempts counts total submission attempts, not retries.
type PipelineConfig struct {
	MaxAttempts        int
	RetryBaseDelay     time.Duration
	PaymentConcurrency int
	SubmitTimeout      time.Duration
}

// DefaultPipelineConfig reads pipeline settings from the environment.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MaxAttempts:        GetIntEnv("PIPELINE_MAX_ATTEMPTS", 3),
		RetryBaseDelay:     GetDurationEnv("PIPELINE_RETRY_BASE_DELAY", 5*time.Second),
		PaymentConcurrency: GetIntEnv("PIPELINE_PAYMENT_CONCURRENCY", 5),
		SubmitTimeout:      GetDurationEnv("PIPELINE_SUBMIT_TIMEOUT", 60*time.Second),
	}
}

// CacheTTLConfig holds the lifetimes of the cache entries the core maintains.
type CacheTTLConfig struct {
	CardStatus       time.Duration
	FastValidation   time.Duration
	NotificationFeed time.Duration
	AdminAlerts      time.Duration
	NotificationCap  int
	AdminAlertCap    int
}

// DefaultCacheTTLConfig reads cache lifetimes from the environment.
func DefaultCacheTTLConfig() CacheTTLConfig {
	return CacheTTLConfig{
		CardStatus:       GetDurationEnv("CACHE_CARD_STATUS_TTL", 5*time.Minute),
		FastValidation:   GetDurationEnv("CACHE_FAST_VALIDATION_TTL", time.Minute),
		NotificationFeed: GetDurationEnv("CACHE_NOTIFICATION_FEED_TTL", 7*24*time.Hour),
		AdminAlerts:      GetDurationEnv("CACHE_ADMIN_ALERTS_TTL", 30*24*time.Hour),
		NotificationCap:  GetIntEnv("CACHE_NOTIFICATION_FEED_CAP", 50),
		AdminAlertCap:    GetIntEnv("CACHE_ADMIN_ALERT_CAP", 100),
	}
}

// ChainConfig points the chain client at an RPC endpoint and a block explorer.
type ChainConfig struct {
	RPCURL         string
	ExplorerURL    string
	RequestTimeout time.Duration
	GasFeeRate     float64
	MinGasFee      float64
}

// DefaultChainConfig reads chain settings from the environment.
func DefaultChainConfig() ChainConfig {
	rate := 0.001
	if val, ok := os.LookupEnv("CHAIN_GAS_FEE_RATE"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			rate = f
		}
	}
	minFee := 10.0
	if val, ok := os.LookupEnv("CHAIN_MIN_GAS_FEE"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			minFee = f
		}
	}
	return ChainConfig{
		RPCURL:         GetEnv("CHAIN_RPC_URL", "http://localhost:8545"),
		ExplorerURL:    GetEnv("CHAIN_EXPLORER_URL", "https://explorer.local/tx"),
		RequestTimeout: GetDurationEnv("CHAIN_REQUEST_TIMEOUT", 30*time.Second),
		GasFeeRate:     rate,
		MinGasFee:      minFee,
	}
}

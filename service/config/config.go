package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Database configuration
	DatabaseURL string

	// NATS configuration
	NATSURL string

	// Solana configuration
	SolanaRPCURL     string
	WalletPrivateKey string

	// Jupiter API configuration
	JupiterQuoteURL     string
	JupiterRecurringURL string
	PriceAPIURL         string

	// Execution configuration
	SlippageBps         int
	SubmitMaxRetries    int
	SubmitSkipPreflight bool
	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration

	// Order size limits (USD)
	BasketDCAMinPerOrderUSD float64
	RecurringMinPerOrderUSD float64
	RecurringMinTotalUSD    float64
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Database configuration
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	// NATS configuration
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")

	// Solana configuration
	cfg.SolanaRPCURL = os.Getenv("SOLANA_RPC_URL")
	if cfg.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}

	// Optional. Without a key the server can quote but not sign.
	cfg.WalletPrivateKey = os.Getenv("WALLET_PRIVATE_KEY")

	// Jupiter API configuration
	cfg.JupiterQuoteURL = getEnvOrDefault("JUPITER_QUOTE_URL", "https://lite-api.jup.ag/swap/v1")
	cfg.JupiterRecurringURL = getEnvOrDefault("JUPITER_RECURRING_URL", "https://lite-api.jup.ag/recurring/v1")
	cfg.PriceAPIURL = getEnvOrDefault("PRICE_API_URL", "https://lite-api.jup.ag/price/v3")

	// Execution configuration
	slippage, err := parseInt("SLIPPAGE_BPS", 50)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SlippageBps = slippage
	}

	retries, err := parseInt("SUBMIT_MAX_RETRIES", 3)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SubmitMaxRetries = retries
	}

	skipPreflight, err := parseBool("SUBMIT_SKIP_PREFLIGHT", false)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SubmitSkipPreflight = skipPreflight
	}

	confirmTimeout, err := parseDuration("CONFIRM_TIMEOUT", "90s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmTimeout = confirmTimeout
	}

	pollInterval, err := parseDuration("CONFIRM_POLL_INTERVAL", "2s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmPollInterval = pollInterval
	}

	// Order size limits
	basketMin, err := parseFloat("BASKET_DCA_MIN_PER_ORDER_USD", 2)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.BasketDCAMinPerOrderUSD = basketMin
	}

	recurringMin, err := parseFloat("RECURRING_MIN_PER_ORDER_USD", 50)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RecurringMinPerOrderUSD = recurringMin
	}

	recurringTotal, err := parseFloat("RECURRING_MIN_TOTAL_USD", 100)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RecurringMinTotalUSD = recurringTotal
	}

	// Validate intervals
	if cfg.ConfirmPollInterval > cfg.ConfirmTimeout {
		errs = append(errs, fmt.Errorf("CONFIRM_POLL_INTERVAL (%v) cannot be greater than CONFIRM_TIMEOUT (%v)",
			cfg.ConfirmPollInterval, cfg.ConfirmTimeout))
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL is required"))
	}

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if c.JupiterQuoteURL == "" {
		errs = append(errs, fmt.Errorf("JupiterQuoteURL is required"))
	}

	if c.JupiterRecurringURL == "" {
		errs = append(errs, fmt.Errorf("JupiterRecurringURL is required"))
	}

	if c.SlippageBps < 0 || c.SlippageBps > 10000 {
		errs = append(errs, fmt.Errorf("SlippageBps must be between 0 and 10000"))
	}

	if c.ConfirmTimeout < time.Second {
		errs = append(errs, fmt.Errorf("ConfirmTimeout must be at least 1 second"))
	}

	if c.ConfirmPollInterval > c.ConfirmTimeout {
		errs = append(errs, fmt.Errorf("ConfirmPollInterval cannot be greater than ConfirmTimeout"))
	}

	if c.BasketDCAMinPerOrderUSD < 0 {
		errs = append(errs, fmt.Errorf("BasketDCAMinPerOrderUSD cannot be negative"))
	}

	if c.RecurringMinPerOrderUSD <= 0 {
		errs = append(errs, fmt.Errorf("RecurringMinPerOrderUSD must be positive"))
	}

	if c.RecurringMinTotalUSD < c.RecurringMinPerOrderUSD {
		errs = append(errs, fmt.Errorf("RecurringMinTotalUSD cannot be less than RecurringMinPerOrderUSD"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseFloat parses a float from an environment variable or uses a default.
func parseFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, value, err)
	}
	return result, nil
}

// parseBool parses a boolean from an environment variable or uses a default.
func parseBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return result, nil
}

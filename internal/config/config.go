// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	TelegramToken string
	AdminID       int64
	Domain        string
	Port          string
	DBPath        string
	LedgerPath    string
	FilesDir      string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	adminID, err := getEnvInt64("ADMIN_ID")
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Config{
		TelegramToken: getEnv("TELEGRAM_TOKEN", ""),
		AdminID:       adminID,
		Domain:        getEnv("DOMAIN", "http://127.0.0.1:4000"),
		Port:          getEnv("PORT", "4000"),
		DBPath:        getEnv("DB_PATH", "./data/orders.db"),
		LedgerPath:    getEnv("LEDGER_PATH", "./data/orders.xlsx"),
		FilesDir:      getEnv("FILES_DIR", "./data/files"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN cannot be empty")
	}
	if c.AdminID == 0 {
		return fmt.Errorf("ADMIN_ID must be set to the operator chat id")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.LedgerPath == "" {
		return fmt.Errorf("LEDGER_PATH cannot be empty")
	}
	if c.FilesDir == "" {
		return fmt.Errorf("FILES_DIR cannot be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt64(key string) (int64, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

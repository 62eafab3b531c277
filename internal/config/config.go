package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	// User scope
	UserID string `toml:"user_id"`

	// Store
	StoreBackend string `toml:"store_backend"`
	SQLiteDBPath string `toml:"sqlite_db_path"`

	// Provider selection
	Provider string `toml:"provider"`

	// Google Sheets provider
	GoogleSpreadsheetID      string `toml:"google_spreadsheet_id"`
	GoogleAccountsSheet      string `toml:"google_accounts_sheet"`
	GoogleTransactionsSheet  string `toml:"google_transactions_sheet"`
	GoogleServiceAccountFile string `toml:"google_service_account_file"`

	// AMQP
	AMQPURL          string `toml:"amqp_url"`
	AMQPExchange     string `toml:"amqp_exchange"`
	AMQPEventsQueue  string `toml:"amqp_events_queue"`
	AMQPTriggerQueue string `toml:"amqp_trigger_queue"`

	// Sync
	SyncInterval    time.Duration `toml:"-"`
	SyncIntervalRaw string        `toml:"sync_interval"`
}

// Load reads configuration from the environment, optionally overlaid on a
// TOML file named by LEDGERSYNC_CONFIG_FILE. Environment variables win.
func Load() (*Config, error) {
	cfg := &Config{
		StoreBackend:            "sqlite",
		SQLiteDBPath:            "./data/ledgersync.db",
		Provider:                "sheets",
		GoogleAccountsSheet:     "Accounts",
		GoogleTransactionsSheet: "Transactions",
		AMQPExchange:            "ledgersync",
		AMQPEventsQueue:         "sync_events",
		AMQPTriggerQueue:        "sync_triggers",
		SyncInterval:            time.Hour,
	}

	if path := os.Getenv("LEDGERSYNC_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if cfg.SyncIntervalRaw != "" {
			d, err := time.ParseDuration(cfg.SyncIntervalRaw)
			if err != nil {
				return nil, fmt.Errorf("config file sync_interval: %w", err)
			}
			cfg.SyncInterval = d
		}
	}

	cfg.UserID = getEnv("LEDGERSYNC_USER_ID", cfg.UserID)
	cfg.StoreBackend = getEnv("LEDGERSYNC_STORE_BACKEND", cfg.StoreBackend)
	cfg.SQLiteDBPath = getEnv("LEDGERSYNC_SQLITE_DB_PATH", cfg.SQLiteDBPath)
	cfg.Provider = getEnv("LEDGERSYNC_PROVIDER", cfg.Provider)
	cfg.GoogleSpreadsheetID = getEnv("LEDGERSYNC_SPREADSHEET_ID", cfg.GoogleSpreadsheetID)
	cfg.GoogleAccountsSheet = getEnv("LEDGERSYNC_ACCOUNTS_SHEET", cfg.GoogleAccountsSheet)
	cfg.GoogleTransactionsSheet = getEnv("LEDGERSYNC_TRANSACTIONS_SHEET", cfg.GoogleTransactionsSheet)
	cfg.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", cfg.GoogleServiceAccountFile)
	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.AMQPEventsQueue = getEnv("AMQP_EVENTS_QUEUE", cfg.AMQPEventsQueue)
	cfg.AMQPTriggerQueue = getEnv("AMQP_TRIGGER_QUEUE", cfg.AMQPTriggerQueue)
	cfg.SyncInterval = getEnvDuration("LEDGERSYNC_SYNC_INTERVAL", cfg.SyncInterval)

	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.UserID == "" {
		errors = append(errors, "user ID cannot be empty (set LEDGERSYNC_USER_ID)")
	}

	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.StoreBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid store backend '%s': must be one of %v", c.StoreBackend, validBackends))
	}

	if c.StoreBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	validProviders := []string{"sheets", "fixture"}
	isValidProvider := false
	for _, p := range validProviders {
		if c.Provider == p {
			isValidProvider = true
			break
		}
	}
	if !isValidProvider {
		errors = append(errors, fmt.Sprintf("invalid provider '%s': must be one of %v", c.Provider, validProviders))
	}

	if c.Provider == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using the sheets provider")
		}
		if c.GoogleAccountsSheet == "" || c.GoogleTransactionsSheet == "" {
			errors = append(errors, "accounts and transactions sheet names cannot be empty for the sheets provider")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPEventsQueue == "" || c.AMQPTriggerQueue == "" {
			errors = append(errors, "AMQP queue names cannot be empty when AMQP URL is provided")
		}
	}

	if c.SyncInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 minute", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

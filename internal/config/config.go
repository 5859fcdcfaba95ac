package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port            string
	MaxUploadBytes  int64
	SessionTTL      time.Duration
	ResetTTL        time.Duration
	RateLimitPerMin int

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID string
	GoogleSheetBase     string

	// Import
	SheetName      string
	SchemaPath     string
	SalaryCategory string

	// Analytics
	InvestmentKeyword string
	SavingsKeyword    string
}

func Load() *Config {
	cfg := &Config{
		Port:            getEnv("PORT", "8081"),
		MaxUploadBytes:  getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),
		SessionTTL:      getEnvDuration("SESSION_TTL", 7*24*time.Hour),
		ResetTTL:        getEnvDuration("RESET_TTL", time.Hour),
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MIN", 60),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/bilancio.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "bilancio"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "mirror_snapshots"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetBase:     getEnv("GOOGLE_SHEET_BASE", "Movimenti"),

		SheetName:      getEnv("IMPORT_SHEET_NAME", "Lista Operazione"),
		SchemaPath:     getEnv("IMPORT_SCHEMA_PATH", ""),
		SalaryCategory: getEnv("SALARY_CATEGORY", "Stipendi e pensioni"),

		InvestmentKeyword: getEnv("INVESTMENT_KEYWORD", "investimenti"),
		SavingsKeyword:    getEnv("SAVINGS_KEYWORD", "risparmi"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.MaxUploadBytes < 1<<10 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be at least 1KiB", c.MaxUploadBytes))
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.ResetTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid reset TTL %v: must be at least 1 minute", c.ResetTTL))
	}

	if c.RateLimitPerMin < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMin))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
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

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SchemaPath != "" {
		if _, err := os.Stat(c.SchemaPath); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("import schema file does not exist: %s", c.SchemaPath))
		}
	}

	if c.SalaryCategory == "" {
		errors = append(errors, "salary category cannot be empty")
	}
	if c.InvestmentKeyword == "" {
		errors = append(errors, "investment keyword cannot be empty")
	}
	if c.SavingsKeyword == "" {
		errors = append(errors, "savings keyword cannot be empty")
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
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

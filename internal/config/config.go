package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config carries every tunable of the service. It is built once in main
// and passed down explicitly; nothing reads the environment after Load.
type Config struct {
	// HTTP server
	Port     string
	LogLevel string
	APIKey   string

	// Ledger store
	LedgerPath string
	LedgerName string

	// Import pipeline
	UploadDir     string
	ImportWorkers int

	// Gemini assistant
	GeminiAPIKey string
	GeminiModel  string

	// Cloud mirror
	MirrorBucket string
	MirrorObject string
	MirrorDelay  time.Duration

	// BigQuery warehouse
	BQProject      string
	BQDataset      string
	ExportSchedule string

	// Notion sync
	NotionToken      string
	NotionDatabaseID string
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		APIKey:   getEnv("API_KEY", ""),

		LedgerPath: getEnv("SALES_LEDGER_PATH", "./data/ledger.json"),
		LedgerName: getEnv("LEDGER_NAME", "My Business"),

		UploadDir:     getEnv("UPLOAD_DIR", "./uploads"),
		ImportWorkers: getEnvInt("IMPORT_WORKERS", 5),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		MirrorBucket: getEnv("MIRROR_BUCKET", ""),
		MirrorObject: getEnv("MIRROR_OBJECT", "sales-ledger.json"),
		MirrorDelay:  getEnvDuration("MIRROR_DELAY", 3*time.Second),

		BQProject:      getEnv("BQ_PROJECT", ""),
		BQDataset:      getEnv("BQ_DATASET", "sales"),
		ExportSchedule: getEnv("WAREHOUSE_EXPORT_SCHEDULE", ""),

		NotionToken:      getEnv("NOTION_TOKEN", ""),
		NotionDatabaseID: getEnv("NOTION_DB_ID", ""),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.LedgerPath == "" {
		errors = append(errors, "ledger path cannot be empty")
	} else {
		if dir := filepath.Dir(c.LedgerPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create ledger directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.UploadDir == "" {
		errors = append(errors, "upload directory cannot be empty")
	} else if _, err := os.Stat(c.UploadDir); os.IsNotExist(err) {
		if err := os.MkdirAll(c.UploadDir, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create upload directory '%s': %v", c.UploadDir, err))
		}
	}

	if c.ImportWorkers < 1 {
		errors = append(errors, fmt.Sprintf("invalid import worker count %d: must be at least 1", c.ImportWorkers))
	} else if c.ImportWorkers > 32 {
		errors = append(errors, fmt.Sprintf("invalid import worker count %d: must be at most 32", c.ImportWorkers))
	}

	if c.GeminiAPIKey != "" && c.GeminiModel == "" {
		errors = append(errors, "Gemini model name cannot be empty when an API key is provided")
	}

	if c.MirrorBucket != "" {
		if c.MirrorObject == "" {
			errors = append(errors, "mirror object name cannot be empty when a mirror bucket is configured")
		}
		if c.MirrorDelay < 100*time.Millisecond {
			errors = append(errors, fmt.Sprintf("invalid mirror delay %v: must be at least 100ms", c.MirrorDelay))
		} else if c.MirrorDelay > 10*time.Minute {
			errors = append(errors, fmt.Sprintf("invalid mirror delay %v: must be at most 10 minutes", c.MirrorDelay))
		}
	}

	if c.ExportSchedule != "" {
		if c.BQProject == "" {
			errors = append(errors, "BigQuery project is required when an export schedule is configured")
		}
		if c.BQDataset == "" {
			errors = append(errors, "BigQuery dataset is required when an export schedule is configured")
		}
	}

	if c.NotionDatabaseID != "" && c.NotionToken == "" {
		errors = append(errors, "Notion token is required when a Notion database ID is provided")
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

package configs

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// RabbitMQConfig holds the broker connection settings.
type RabbitMQConfig struct {
	URL string
}

// DBconfig holds the database connection settings.
type DBconfig struct {
	URL string
}

// StdoutLoggerConfig controls the console logger.
type StdoutLoggerConfig struct {
	Level string
}

// FluentBitConfig controls the optional log shipper.
type FluentBitConfig struct {
	Enabled bool
	Host    string
	Port    int
	Level   string
}

// IngestConfig holds the knobs of the ingestion pipeline.
type IngestConfig struct {
	// StaleAfterDays is how long a listing may go unseen before the sweep
	// marks it inactive.
	StaleAfterDays int
}

// AppConfig holds the full application configuration.
type AppConfig struct {
	AppName      string
	Database     DBconfig
	RabbitMQ     RabbitMQConfig
	StdoutLogger StdoutLoggerConfig
	FluentBit    FluentBitConfig
	Ingest       IngestConfig
}

// LoadConfig loads the configuration from environment variables, optionally
// seeded from a .env file.
func LoadConfig(envPath ...string) (*AppConfig, error) {
	var err error
	if len(envPath) > 0 {
		err = godotenv.Load(envPath[0])
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		log.Printf("Info: Could not load .env file (path: %v): %v. Falling back to process environment.\n", envPath, err)
	}

	cfg := &AppConfig{}

	cfg.AppName = getEnvAsString("APP_NAME", "valoranl-core")

	cfg.Database.URL = os.Getenv("DATABASE_URL")
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL environment variable is required")
	}

	cfg.StdoutLogger.Level = getEnvAsString("LOG_LEVEL", "info")

	cfg.FluentBit.Enabled = getEnvAsBool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			log.Println("WARNING: FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set. Disabling Fluent Bit.")
			cfg.FluentBit.Enabled = false
		}
		cfg.FluentBit.Port = getEnvAsInt("FLUENTBIT_PORT", 24224)
		cfg.FluentBit.Level = getEnvAsString("FLUENTBIT_LOG_LEVEL", "info")
	}

	cfg.Ingest.StaleAfterDays = getEnvAsInt("STALE_AFTER_DAYS", 30)
	if cfg.Ingest.StaleAfterDays <= 0 {
		return nil, fmt.Errorf("STALE_AFTER_DAYS must be positive, got %d", cfg.Ingest.StaleAfterDays)
	}

	return cfg, nil
}

func getEnvAsString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: %s=%q is not a valid integer, using default %d.\n", key, value, fallback)
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: %s=%q is not a valid boolean, using default %t.\n", key, value, fallback)
		return fallback
	}
	return parsed
}

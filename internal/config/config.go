package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Config holds runtime configuration values for a dump ingestion run.
type Config struct {
	DumpPath string

	DBDriver   string
	DBPath     string
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string

	BatchSize       int
	InsertChunkSize int
	Prefetch        int
	LinkMode        string

	StatusAddr    string
	SummaryPath   string
	LogLevel      string
	SentryDSN     string
	Environment   string
	ShutdownGrace time.Duration
}

// Link modes select how rev_actor and slot_content_id are resolved.
const (
	LinkModePlaceholder = "placeholder"
	LinkModeContributor = "contributor"
)

const (
	defaultDBDriver        = "sqlite"
	defaultDBPath          = "./data/wiki.db"
	defaultDBHost          = "localhost"
	defaultBatchSize       = 2048
	defaultInsertChunkSize = 256
	defaultLinkMode        = LinkModePlaceholder
	defaultLogLevel        = "info"
	defaultEnvironment     = "development"
	defaultShutdownGrace   = 10 * time.Second
)

// Load reads configuration values from environment variables, applying defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		DumpPath:    strings.TrimSpace(os.Getenv("DUMP_PATH")),
		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", defaultDBDriver)),
		DBPath:      getEnv("DB_PATH", defaultDBPath),
		DBHost:      getEnv("DB_HOST", defaultDBHost),
		DBUser:      os.Getenv("DB_USER"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBName:      os.Getenv("DB_NAME"),
		LinkMode:    strings.ToLower(getEnv("LINK_MODE", defaultLinkMode)),
		StatusAddr:  strings.TrimSpace(os.Getenv("STATUS_ADDR")),
		SummaryPath: strings.TrimSpace(os.Getenv("SUMMARY_PATH")),
		LogLevel:    getEnv("LOG_LEVEL", defaultLogLevel),
		SentryDSN:   os.Getenv("SENTRY_DSN"),
		Environment: getEnv("ENV", defaultEnvironment),
	}

	var err error
	if cfg.BatchSize, err = getInt("BATCH_SIZE", defaultBatchSize); err != nil {
		return nil, err
	}
	if cfg.InsertChunkSize, err = getInt("INSERT_CHUNK_SIZE", defaultInsertChunkSize); err != nil {
		return nil, err
	}
	if cfg.Prefetch, err = getInt("PREFETCH", 0); err != nil {
		return nil, err
	}

	graceValue := getEnv("SHUTDOWN_GRACE", defaultShutdownGrace.String())
	grace, err := time.ParseDuration(graceValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid SHUTDOWN_GRACE value: %s", graceValue)
	}
	cfg.ShutdownGrace = grace

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.DumpPath == "" {
		return eris.New("DUMP_PATH is required")
	}

	switch c.DBDriver {
	case "sqlite":
	case "mysql":
		if strings.TrimSpace(c.DBName) == "" || strings.TrimSpace(c.DBUser) == "" {
			return eris.New("DB_NAME and DB_USER are required for the mysql driver")
		}
	default:
		return eris.Errorf("invalid DB_DRIVER value: %s", c.DBDriver)
	}

	if c.BatchSize < 1 {
		return eris.Errorf("BATCH_SIZE must be at least 1, got %d", c.BatchSize)
	}
	if c.InsertChunkSize < 1 {
		return eris.Errorf("INSERT_CHUNK_SIZE must be at least 1, got %d", c.InsertChunkSize)
	}
	if c.Prefetch < 0 {
		return eris.Errorf("PREFETCH must not be negative, got %d", c.Prefetch)
	}

	switch c.LinkMode {
	case LinkModePlaceholder, LinkModeContributor:
	default:
		return eris.Errorf("invalid LINK_MODE value: %s", c.LinkMode)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	value := getEnv(key, strconv.Itoa(fallback))
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, value)
	}
	return parsed, nil
}

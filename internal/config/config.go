package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers       []string
	KafkaJobTopic      string
	KafkaRenderedTopic string
	KafkaLayeredTopic  string
	KafkaGroupID       string
	HTTPAddr           string
	LogLevel           string
	LogFormat          string
	ShutdownTimeout    time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Layered-document ledger.
	LedgerPath      string
	LedgerCacheSize int

	// SVGRoot, when set, is prepended to relative paths in rendered-chart events.
	SVGRoot string
}

// Load reads configuration from environment variables, applying defaults
// where unset. If ENV_FILE names a dotenv file its values are applied first;
// variables already present in the environment win.
func Load() (*Config, error) {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load ENV_FILE %s: %w", envFile, err)
		}
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseLedgerCacheSize()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaJobTopic:      sharedcfg.EnvOrDefault("KAFKA_JOB_TOPIC", "chart-jobs"),
		KafkaRenderedTopic: sharedcfg.EnvOrDefault("KAFKA_RENDERED_TOPIC", "charts-rendered"),
		KafkaLayeredTopic:  sharedcfg.EnvOrDefault("KAFKA_LAYERED_TOPIC", "charts-layered"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "psychro-layerd"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		LedgerPath:      sharedcfg.EnvOrDefault("LEDGER_PATH", "layered.db"),
		LedgerCacheSize: cacheSize,
		SVGRoot:         os.Getenv("SVG_ROOT"),
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaRenderedTopic == "" {
		return nil, errors.New("KAFKA_RENDERED_TOPIC is required")
	}
	if cfg.KafkaLayeredTopic == "" {
		return nil, errors.New("KAFKA_LAYERED_TOPIC is required")
	}
	if cfg.KafkaRenderedTopic == cfg.KafkaLayeredTopic {
		return nil, errors.New("KAFKA_RENDERED_TOPIC and KAFKA_LAYERED_TOPIC must differ")
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: want json or text", cfg.LogFormat)
	}

	return cfg, nil
}

func parseLedgerCacheSize() (int, error) {
	s := os.Getenv("LEDGER_CACHE_SIZE")
	if s == "" {
		return 1000, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid LEDGER_CACHE_SIZE %q: must be a positive integer", s)
	}
	return n, nil
}

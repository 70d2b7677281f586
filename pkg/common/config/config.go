package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort   string
	ServerHost   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Storage layout
	DataDir      string
	ModelsDir    string
	MetadataPath string

	// Upload validation
	MaxUploadBytes int64
	MinDataRows    int
	MaxDataRows    int

	// Training defaults
	LookbackWindow     int
	Epochs             int
	BatchSize          int
	ValidationSplit    float64
	TuningEnabled      bool
	MinPredictionDays  int
	MaxPredictionDays  int
	MaxTrainingWorkers int

	// Indicator catalog
	IndicatorCatalogPath string

	// Kafka (empty brokers disables event publishing)
	KafkaBrokers []string
	KafkaTopic   string

	// Redis (empty addr disables the prediction cache)
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	PredictionCacheTTL time.Duration
}

func Load() *Config {
	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ServerHost:   getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),

		DataDir:      getEnv("DATA_DIR", "data/uploaded"),
		ModelsDir:    getEnv("MODELS_DIR", "data/models"),
		MetadataPath: getEnv("METADATA_PATH", "data/metadata.json"),

		MaxUploadBytes: int64(getIntEnv("MAX_UPLOAD_BYTES", 100*1024*1024)),
		MinDataRows:    getIntEnv("MIN_DATA_ROWS", 60),
		MaxDataRows:    getIntEnv("MAX_DATA_ROWS", 1_000_000),

		LookbackWindow:     getIntEnv("LOOKBACK_WINDOW", 60),
		Epochs:             getIntEnv("TRAINING_EPOCHS", 50),
		BatchSize:          getIntEnv("TRAINING_BATCH_SIZE", 32),
		ValidationSplit:    getFloatEnv("VALIDATION_SPLIT", 0.2),
		TuningEnabled:      getBoolEnv("HYPERPARAMETER_TUNING", true),
		MinPredictionDays:  getIntEnv("MIN_PREDICTION_DAYS", 1),
		MaxPredictionDays:  getIntEnv("MAX_PREDICTION_DAYS", 30),
		MaxTrainingWorkers: getIntEnv("TRAINING_MAX_WORKERS", 2),

		IndicatorCatalogPath: getEnv("INDICATOR_CATALOG_PATH", ""),

		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", nil),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "stockcast.training"),

		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getIntEnv("REDIS_DB", 0),
		PredictionCacheTTL: getDuration("PREDICTION_CACHE_TTL", 5*time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

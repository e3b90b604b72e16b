package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64
	RateLimitRPS   int
	RateLimitBurst int

	// Models
	ModelDir            string
	ModelManifest       string
	ModelSchema         string
	ModelEncoding       string
	BatchMaxConcurrency int

	// Analytics
	DataMode               string
	SyntheticAdminDataPath string

	// Remote model server
	ModelServerTimeout      time.Duration
	ModelServerTokenURL     string
	ModelServerClientID     string
	ModelServerClientSecret string

	// Database
	PostgresHost         string
	PostgresPort         string
	PostgresUser         string
	PostgresPassword     string
	PostgresDB           string
	PostgresSSLMode      string
	PredictionLogEnabled bool

	// Redis
	RedisHost              string
	RedisPort              string
	RedisPassword          string
	RedisDB                int
	PredictionCacheEnabled bool
	PredictionCacheTTL     time.Duration

	// Kafka
	KafkaBrokers           []string
	KafkaGroupID           string
	PredictionEventsTopic  string
	PredictionRequestTopic string
	PredictionResultTopic  string
}

func Load() *Config {
	modelDir := getEnv("ML_MODEL_DIR", "ml_models")
	if abs, err := filepath.Abs(modelDir); err == nil {
		modelDir = abs
	}

	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8090"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),
		RateLimitRPS:   getIntEnv("RATE_LIMIT_RPS", 0),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 0),

		ModelDir:            modelDir,
		ModelManifest:       getEnv("MODEL_MANIFEST", filepath.Join(modelDir, "models.yaml")),
		ModelSchema:         getEnv("MODEL_SCHEMA", "extended"),
		ModelEncoding:       getEnv("MODEL_ENCODING", "frame"),
		BatchMaxConcurrency: getIntEnv("BATCH_MAX_CONCURRENCY", 8),

		DataMode:               strings.ToLower(strings.TrimSpace(os.Getenv("DATA_MODE"))),
		SyntheticAdminDataPath: getEnv("SYNTHETIC_ADMIN_DATA_PATH", filepath.Join(modelDir, "synthetic_admin_data.json")),

		ModelServerTimeout:      getDuration("MODEL_SERVER_TIMEOUT", 5*time.Second),
		ModelServerTokenURL:     getEnv("MODEL_SERVER_TOKEN_URL", ""),
		ModelServerClientID:     getEnv("MODEL_SERVER_CLIENT_ID", ""),
		ModelServerClientSecret: getEnv("MODEL_SERVER_CLIENT_SECRET", ""),

		PostgresHost:         getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:         getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:         getEnv("POSTGRES_USER", "ikape"),
		PostgresPassword:     getEnv("POSTGRES_PASSWORD", "ikape"),
		PostgresDB:           getEnv("POSTGRES_DB", "ikape"),
		PostgresSSLMode:      getEnv("POSTGRES_SSLMODE", "disable"),
		PredictionLogEnabled: getBoolEnv("PREDICTION_LOG_ENABLED", false),

		RedisHost:              getEnv("REDIS_HOST", "localhost"),
		RedisPort:              getEnv("REDIS_PORT", "6379"),
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),
		RedisDB:                getIntEnv("REDIS_DB", 0),
		PredictionCacheEnabled: getBoolEnv("PREDICTION_CACHE_ENABLED", false),
		PredictionCacheTTL:     getDuration("PREDICTION_CACHE_TTL", 10*time.Minute),

		KafkaBrokers:           getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:           getEnv("KAFKA_GROUP_ID", "ikape-platform"),
		PredictionEventsTopic:  getEnv("PREDICTION_EVENTS_TOPIC", ""),
		PredictionRequestTopic: getEnv("PREDICTION_REQUEST_TOPIC", "prediction-requests"),
		PredictionResultTopic:  getEnv("PREDICTION_RESULT_TOPIC", "prediction-results"),
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
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
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

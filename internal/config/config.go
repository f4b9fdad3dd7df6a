// internal/config/config.go

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Environment   string
	Server        ServerConfig
	Database      DatabaseConfig
	NATS          NATSConfig
	Redis         RedisConfig
	Sources       SourcesConfig
	Transcription TranscriptionConfig
	Models        ModelsConfig
	Fusion        FusionConfig
	Scoring       ScoringConfig
	Pipeline      PipelineConfig
	Synthesis     SynthesisConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxLifetime  time.Duration
	SSLMode      string
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// RedisConfig holds the discovery cache configuration
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	DiscoveryTTL time.Duration
}

// SourcesConfig holds content source configuration
type SourcesConfig struct {
	YouTubeAPIKey  string
	NewsAPIKey     string
	GuardianAPIKey string
	ItemLimit      int
	FetchTimeout   time.Duration
	Retries        int
	RetryBackoff   time.Duration
	Concurrency    int
}

// TranscriptionConfig holds the transcription sidecar configuration
type TranscriptionConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ModelsConfig holds sentiment model configuration
type ModelsConfig struct {
	AnthropicAPIKey string
	AnthropicModel  string
	Timeout         time.Duration
	Concurrency     int
}

// FusionConfig holds sentiment fusion configuration
type FusionConfig struct {
	DisagreementMargin float64
}

// ScoringConfig holds impact scoring configuration
type ScoringConfig struct {
	ReachWeight      float64
	EngagementWeight float64
	SentimentWeight  float64
	QualityWeight    float64
	RecencyWeight    float64
	RecencyFloor     float64
}

// PipelineConfig holds run orchestration configuration
type PipelineConfig struct {
	ItemWorkers     int
	ReplayRetention time.Duration
}

// SynthesisConfig holds narrative synthesis configuration
type SynthesisConfig struct {
	Timeout time.Duration
}

// Load loads configuration from environment variables
func Load() (Config, error) {
	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "impactlens"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
		},
		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", "nats://localhost:4222"),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			DiscoveryTTL: getEnvAsDuration("REDIS_DISCOVERY_TTL", 15*time.Minute),
		},
		Sources: SourcesConfig{
			YouTubeAPIKey:  getEnv("YOUTUBE_API_KEY", ""),
			NewsAPIKey:     getEnv("NEWSAPI_API_KEY", ""),
			GuardianAPIKey: getEnv("GUARDIAN_API_KEY", ""),
			ItemLimit:      getEnvAsInt("SOURCES_ITEM_LIMIT", 5),
			FetchTimeout:   getEnvAsDuration("SOURCES_FETCH_TIMEOUT", 30*time.Second),
			Retries:        getEnvAsInt("SOURCES_RETRIES", 3),
			RetryBackoff:   getEnvAsDuration("SOURCES_RETRY_BACKOFF", 2*time.Second),
			Concurrency:    getEnvAsInt("SOURCES_CONCURRENCY", 2),
		},
		Transcription: TranscriptionConfig{
			BaseURL: getEnv("TRANSCRIPTION_BASE_URL", "http://localhost:9090"),
			Timeout: getEnvAsDuration("TRANSCRIPTION_TIMEOUT", 5*time.Minute),
		},
		Models: ModelsConfig{
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
			Timeout:         getEnvAsDuration("MODELS_TIMEOUT", 60*time.Second),
			Concurrency:     getEnvAsInt("MODELS_CONCURRENCY", 4),
		},
		Fusion: FusionConfig{
			DisagreementMargin: getEnvAsFloat("FUSION_DISAGREEMENT_MARGIN", 0.15),
		},
		Scoring: ScoringConfig{
			ReachWeight:      getEnvAsFloat("SCORING_REACH_WEIGHT", 0.25),
			EngagementWeight: getEnvAsFloat("SCORING_ENGAGEMENT_WEIGHT", 0.30),
			SentimentWeight:  getEnvAsFloat("SCORING_SENTIMENT_WEIGHT", 0.20),
			QualityWeight:    getEnvAsFloat("SCORING_QUALITY_WEIGHT", 0.15),
			RecencyWeight:    getEnvAsFloat("SCORING_RECENCY_WEIGHT", 0.10),
			RecencyFloor:     getEnvAsFloat("SCORING_RECENCY_FLOOR", 0.3),
		},
		Pipeline: PipelineConfig{
			ItemWorkers:     getEnvAsInt("PIPELINE_ITEM_WORKERS", 5),
			ReplayRetention: getEnvAsDuration("PIPELINE_REPLAY_RETENTION", 10*time.Minute),
		},
		Synthesis: SynthesisConfig{
			Timeout: getEnvAsDuration("SYNTHESIS_TIMEOUT", 2*time.Minute),
		},
	}

	return config, validate(config)
}

// validate checks if config is valid
func validate(config Config) error {
	if config.Models.AnthropicAPIKey == "" && config.Environment != "development" {
		return fmt.Errorf("anthropic api key must be set in non-development environments")
	}

	sum := config.Scoring.ReachWeight + config.Scoring.EngagementWeight +
		config.Scoring.SentimentWeight + config.Scoring.QualityWeight +
		config.Scoring.RecencyWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("scoring weights must sum to 1, got %.3f", sum)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}

package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	OpenAI   OpenAIConfig
	Session  SessionConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string   `envconfig:"PORT" default:"8080"`
	Host            string   `envconfig:"HOST" default:"0.0.0.0"`
	Environment     string   `envconfig:"ENVIRONMENT" default:"development"`
	AllowedOrigins  []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout int      `envconfig:"SHUTDOWN_TIMEOUT" default:"10"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host        string `envconfig:"DB_HOST" default:"localhost"`
	Port        string `envconfig:"DB_PORT" default:"5432"`
	User        string `envconfig:"DB_USER" default:"postgres"`
	Password    string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name        string `envconfig:"DB_NAME" default:"lia"`
	SSLMode     string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns    int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns    int    `envconfig:"DB_MIN_CONNS" default:"5"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"true"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     string `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// StorageConfig holds object storage configuration for session recordings
type StorageConfig struct {
	Enabled         bool   `envconfig:"STORAGE_ENABLED" default:"true"`
	Endpoint        string `envconfig:"STORAGE_ENDPOINT" default:"localhost:9000"`
	AccessKeyID     string `envconfig:"STORAGE_ACCESS_KEY" default:"minioadmin"`
	SecretAccessKey string `envconfig:"STORAGE_SECRET_KEY" default:"minioadmin"`
	BucketName      string `envconfig:"STORAGE_BUCKET" default:"lia-recordings"`
	UseSSL          bool   `envconfig:"STORAGE_USE_SSL" default:"false"`
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey             string `envconfig:"OPENAI_API_KEY"`
	BaseURL            string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com"`
	RealtimeURL        string `envconfig:"OPENAI_REALTIME_URL" default:"wss://api.openai.com/v1/realtime?intent=transcription"`
	TranscriptionModel string `envconfig:"OPENAI_TRANSCRIPTION_MODEL" default:"gpt-4o-mini-transcribe"`
	AnalysisModel      string `envconfig:"OPENAI_ANALYSIS_MODEL" default:"gpt-4.1-nano"`
	ClarifyModel       string `envconfig:"OPENAI_CLARIFY_MODEL" default:"gpt-4.1-mini"`
}

// SessionConfig holds live-session pipeline tuning
type SessionConfig struct {
	SampleRate             int           `envconfig:"SESSION_SAMPLE_RATE" default:"24000"`
	AnalysisThresholdChars int           `envconfig:"SESSION_ANALYSIS_THRESHOLD_CHARS" default:"50"`
	AnalysisDebounce       time.Duration `envconfig:"SESSION_ANALYSIS_DEBOUNCE" default:"2s"`
	AnalysisTimeout        time.Duration `envconfig:"SESSION_ANALYSIS_TIMEOUT" default:"20s"`
	SilenceDurationMs      int           `envconfig:"SESSION_SILENCE_DURATION_MS" default:"500"`
	VADThreshold           float64       `envconfig:"SESSION_VAD_THRESHOLD" default:"0.5"`
	PrefixPaddingMs        int           `envconfig:"SESSION_PREFIX_PADDING_MS" default:"300"`
	CredentialTTL          time.Duration `envconfig:"SESSION_CREDENTIAL_TTL" default:"10m"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.Session.AnalysisThresholdChars <= 0 {
		return fmt.Errorf("SESSION_ANALYSIS_THRESHOLD_CHARS must be positive")
	}
	if c.Session.SampleRate != 24000 {
		return fmt.Errorf("SESSION_SAMPLE_RATE must be 24000 (transcription service contract)")
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"

	TokenStrategyPaseto = "paseto"
	TokenStrategyJWT    = "jwt"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Email     EmailConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev or prod
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string // CORS allowed origins
	BaseURL         string   // public frontend URL, used by redirect flows only
	TrustProxy      bool     // take the client address from X-Forwarded-For / X-Real-IP
}

type StoreConfig struct {
	Driver string // postgres, mongo or memory
}

type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	ChannelBinding string // "require" for Neon DB, empty for local
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	TokenStrategy string // paseto or jwt
	// PASETO symmetric key (must be 32 bytes for v4.local)
	PasetoKey            []byte
	JWTSecret            []byte
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// EmailConfig holds the Gmail SMTP credentials used to deliver reset codes.
// User and AppPassword are only checked when a code is actually sent.
type EmailConfig struct {
	SMTPHost    string
	SMTPPort    string
	User        string
	AppPassword string
	From        string
	AppName     string
}

type KafkaConfig struct {
	Brokers       []string // empty disables event publishing
	SecurityTopic string
}

type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

// Load reads configuration from environment variables, loading a .env file
// first when one exists
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             getEnv("APP_ENV", "dev"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins:  getSliceEnv("TRUSTED_ORIGINS", []string{"http://localhost:3000"}),
			BaseURL:         getEnv("APP_BASE_URL", "http://localhost:3000"),
			TrustProxy:      getBoolEnv("TRUST_PROXY", false),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "wheels_db"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			ChannelBinding: getEnv("DB_CHANNEL_BINDING", ""),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "wheels_db"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			TokenStrategy:        strings.ToLower(getEnv("AUTH_TOKEN_STRATEGY", TokenStrategyPaseto)),
			PasetoKey:            []byte(getEnv("PASETO_KEY", "")),
			JWTSecret:            []byte(getEnv("JWT_SECRET", "")),
			AccessTokenDuration:  getDurationEnv("ACCESS_TOKEN_DURATION", 15*time.Minute),
			RefreshTokenDuration: getDurationEnv("REFRESH_TOKEN_DURATION", 7*24*time.Hour),
		},
		Email: EmailConfig{
			SMTPHost:    getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:    getEnv("SMTP_PORT", "587"),
			User:        getEnv("GMAIL_USER", ""),
			AppPassword: getEnv("GMAIL_APP_PASSWORD", ""),
			From:        getEnv("GMAIL_FROM", ""),
			AppName:     getEnv("APP_NAME", "Wheels"),
		},
		Kafka: KafkaConfig{
			Brokers:       getSliceEnv("KAFKA_BROKERS", nil),
			SecurityTopic: getEnv("KAFKA_SECURITY_TOPIC", "account.security"),
		},
		RateLimit: RateLimitConfig{
			MaxRequests: getIntEnv("RATE_LIMIT_MAX", 10),
			Window:      getDurationEnv("RATE_LIMIT_WINDOW", 15*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings the process cannot start without.
// Mail credentials are deliberately not checked here.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverMongo, StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be one of postgres, mongo, memory, got %q", c.Store.Driver)
	}

	switch c.Auth.TokenStrategy {
	case TokenStrategyPaseto:
		// Validate PASETO key length (must be 32 bytes for v4.local)
		if len(c.Auth.PasetoKey) != 32 {
			return fmt.Errorf("PASETO_KEY must be exactly 32 bytes, got %d", len(c.Auth.PasetoKey))
		}
	case TokenStrategyJWT:
		if len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(c.Auth.JWTSecret))
		}
	default:
		return fmt.Errorf("AUTH_TOKEN_STRATEGY must be paseto or jwt, got %q", c.Auth.TokenStrategy)
	}

	if c.RateLimit.MaxRequests <= 0 {
		return errors.New("RATE_LIMIT_MAX must be positive")
	}

	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)

	// Add channel_binding if configured (required for Neon DB)
	if c.ChannelBinding != "" {
		connStr += fmt.Sprintf(" channel_binding=%s", c.ChannelBinding)
	}

	return connStr
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

// FromAddress is the sender address, defaulting to the Gmail account
func (c *EmailConfig) FromAddress() string {
	if c.From != "" {
		return c.From
	}
	return c.User
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolValue
}

// getDurationEnv reads a whole number of seconds
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return time.Duration(seconds) * time.Second
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"direct-chat/pkg/logger"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Presence  PresenceConfig
	WebSocket WebSocketConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Log       LogConfig
	NodeID    int64
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig selects the conversation store. An empty URL runs the
// in-memory store.
type DatabaseConfig struct {
	URL string
}

type JWTConfig struct {
	Secret    []byte
	ExpiresIn time.Duration
}

type PresenceConfig struct {
	IdleThreshold       time.Duration
	TypingWindow        time.Duration
	TypingSweepInterval time.Duration
}

type WebSocketConfig struct {
	SendBuffer int
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded: %v", err)
	}

	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*Config, error) {
	var errs []string
	fail := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	readTimeout, err := getDurationOrDefault("READ_TIMEOUT", "15s")
	fail(err)
	writeTimeout, err := getDurationOrDefault("WRITE_TIMEOUT", "15s")
	fail(err)
	jwtExpires, err := getDurationOrDefault("JWT_EXPIRES_IN", "24h")
	fail(err)
	idle, err := getDurationOrDefault("PRESENCE_IDLE_THRESHOLD", "60s")
	fail(err)
	typing, err := getDurationOrDefault("TYPING_WINDOW", "2s")
	fail(err)
	sweep, err := getDurationOrDefault("TYPING_SWEEP_INTERVAL", "1s")
	fail(err)
	sendBuffer, err := getIntOrDefault("WS_SEND_BUFFER", 256)
	fail(err)
	nodeID, err := getIntOrDefault("SNOWFLAKE_NODE", 1)
	fail(err)

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		errs = append(errs, "JWT_SECRET environment variable is required")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         normalizePort(getEnvOrDefault("PORT", ":8080")),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		JWT: JWTConfig{
			Secret:    []byte(secret),
			ExpiresIn: jwtExpires,
		},
		Presence: PresenceConfig{
			IdleThreshold:       idle,
			TypingWindow:        typing,
			TypingSweepInterval: sweep,
		},
		WebSocket: WebSocketConfig{
			SendBuffer: sendBuffer,
		},
		Redis: RedisConfig{
			Addr: os.Getenv("REDIS_ADDR"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnvOrDefault("KAFKA_TOPIC", "chat-messages"),
		},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "console"),
		},
		NodeID: int64(nodeID),
	}

	return cfg, nil
}

// SetPort overrides the listen address, accepting "8080" or ":8080".
func (c *Config) SetPort(port string) {
	if port != "" {
		c.Server.Port = normalizePort(port)
	}
}

func normalizePort(port string) string {
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("invalid duration for %s: must be positive", key)
	}
	return duration, nil
}

func getIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return intValue, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the hospital API
type Config struct {
	Port                 string
	Origin               string
	Environment          string
	JWTSecret            string
	JWTExpirationMinutes int
	Database             DatabaseConfig
	RabbitMq             RabbitMqConfig
	Log                  LogConfig
	Activity             ActivityConfig
}

// PortalConfig holds the environment defaults of the portal CLI. Flags
// override every field.
type PortalConfig struct {
	APIBaseURL string
	StorePath  string
	Redis      RedisConfig
	Log        LogConfig
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// RedisConfig points the shared portal store at a Redis server.
// An empty URL keeps the portal on its local file store.
type RedisConfig struct {
	URL     string
	Channel string
}

// RabbitMqConfig enables consuming activity events published by other services
type RabbitMqConfig struct {
	Enabled  bool
	AmqpUri  string
	Exchange string
	Queue    string
}

// LogConfig selects logrus level and formatter
type LogConfig struct {
	Level  string
	Format string
}

// ActivityConfig tunes the activity stream
type ActivityConfig struct {
	SnapshotSize      int
	HeartbeatInterval time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "mysql"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "healthnexus"),
	}

	switch dbConfig.Driver {
	case "mysql":
		dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)
	case "sqlite":
		dbConfig.DSN = getEnv("DB_PATH", "healthnexus.db")
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q: expected mysql or sqlite", dbConfig.Driver)
	}

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "720"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	snapshotSize, err := strconv.Atoi(getEnv("ACTIVITY_SNAPSHOT_SIZE", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid ACTIVITY_SNAPSHOT_SIZE: %w", err)
	}
	if snapshotSize <= 0 {
		return nil, fmt.Errorf("invalid ACTIVITY_SNAPSHOT_SIZE %d: must be positive", snapshotSize)
	}

	heartbeat, err := time.ParseDuration(getEnv("ACTIVITY_HEARTBEAT", "25s"))
	if err != nil {
		return nil, fmt.Errorf("invalid ACTIVITY_HEARTBEAT: %w", err)
	}
	if heartbeat <= 0 {
		return nil, fmt.Errorf("invalid ACTIVITY_HEARTBEAT %s: must be positive", heartbeat)
	}

	amqpURI := getEnv("AMQP_URL", "")

	return &Config{
		Port:                 getEnv("PORT", "5000"),
		Origin:               getEnv("ORIGIN", "http://localhost:3000"),
		Environment:          getEnv("APP_ENV", "development"),
		JWTSecret:            getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTExpirationMinutes: jwtExpMinutes,
		Database:             dbConfig,
		RabbitMq: RabbitMqConfig{
			Enabled:  amqpURI != "",
			AmqpUri:  amqpURI,
			Exchange: getEnv("AMQP_ACTIVITY_EXCHANGE", "healthnexus.activity"),
			Queue:    getEnv("AMQP_ACTIVITY_QUEUE", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Activity: ActivityConfig{
			SnapshotSize:      snapshotSize,
			HeartbeatInterval: heartbeat,
		},
	}, nil
}

// LoadPortalConfig loads the portal CLI defaults from environment variables.
// An empty StorePath means the caller picks one under the home directory.
func LoadPortalConfig() PortalConfig {
	return PortalConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:5000/api"),
		StorePath:  getEnv("PORTAL_STORE", ""),
		Redis: RedisConfig{
			URL:     getEnv("REDIS_URL", ""),
			Channel: getEnv("REDIS_CHANNEL", "healthnexus:storage"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "warn"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

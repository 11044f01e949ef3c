package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Broker kinds accepted by BROKER_KIND.
const (
	BrokerKafka = "kafka"
	BrokerNATS  = "nats"
)

// Email backends accepted by EMAIL_BACKEND.
const (
	EmailBackendSMTP    = "smtp"
	EmailBackendConsole = "console"
)

// Config holds all configuration for the application.
type Config struct {
	Env       string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NewRelic  NewRelicConfig
	Telemetry TelemetryConfig
	Gateway   GatewayConfig
	Broker    BrokerConfig
	Email     EmailConfig
	Worker    WorkerConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// TelemetryConfig holds OpenTelemetry tracing configuration.
// Tracing is off when OTLPEndpoint is empty.
type TelemetryConfig struct {
	ServiceName  string
	OTLPEndpoint string
	Insecure     bool
}

// GatewayConfig holds the payment provider settings.
type GatewayConfig struct {
	BaseURL         string
	SecretKey       string
	DefaultCurrency string
	CallbackURL     string
	ReturnURL       string
	InitTimeout     time.Duration
	VerifyTimeout   time.Duration
}

// BrokerConfig holds the notification task broker settings.
type BrokerConfig struct {
	Kind         string
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
	NATSURL      string
	NATSSubject  string
	NATSQueue    string
	BufferSize   int
}

// EmailConfig holds outbound email settings.
type EmailConfig struct {
	Backend  string
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// WorkerConfig holds settings for the notification worker process.
type WorkerConfig struct {
	MetricsPort string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Env: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "travel"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			Enabled:  getBoolEnv("REDIS_ENABLED", true),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "travel-service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "travel-service"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure:     getBoolEnv("OTEL_EXPORTER_OTLP_INSECURE", true),
		},
		Gateway: GatewayConfig{
			BaseURL:         strings.TrimRight(getEnv("CHAPA_BASE_URL", "https://api.chapa.co"), "/"),
			SecretKey:       getEnv("CHAPA_SECRET_KEY", ""),
			DefaultCurrency: getEnv("CHAPA_CURRENCY", "ETB"),
			CallbackURL:     getEnv("CHAPA_CALLBACK_URL", "http://localhost:8080/v1/payments/verify"),
			ReturnURL:       getEnv("CHAPA_RETURN_URL", "http://localhost:3000/payment/complete"),
			InitTimeout:     getDurationEnv("CHAPA_INIT_TIMEOUT", 20*time.Second),
			VerifyTimeout:   getDurationEnv("CHAPA_VERIFY_TIMEOUT", 15*time.Second),
		},
		Broker: BrokerConfig{
			Kind:         strings.ToLower(getEnv("BROKER_KIND", BrokerKafka)),
			KafkaBrokers: getListEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			KafkaTopic:   getEnv("KAFKA_TOPIC", "notifications.email"),
			KafkaGroupID: getEnv("KAFKA_GROUP_ID", "notification-worker"),
			NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
			NATSSubject:  getEnv("NATS_SUBJECT", "notifications.email"),
			NATSQueue:    getEnv("NATS_QUEUE", "notification-worker"),
			BufferSize:   getIntEnv("NOTIFY_BUFFER_SIZE", 256),
		},
		Email: EmailConfig{
			Backend:  strings.ToLower(getEnv("EMAIL_BACKEND", EmailBackendConsole)),
			Host:     getEnv("EMAIL_HOST", "smtp.gmail.com"),
			Port:     getIntEnv("EMAIL_PORT", 587),
			Username: getEnv("EMAIL_HOST_USER", ""),
			Password: getEnv("EMAIL_HOST_PASSWORD", ""),
			From:     getEnv("DEFAULT_FROM_EMAIL", "ALX Travel <no-reply@example.com>"),
		},
		Worker: WorkerConfig{
			MetricsPort: getEnv("WORKER_METRICS_PORT", "9091"),
		},
	}
}

// Validate reports configuration that would make the service unusable.
func (c *Config) Validate() error {
	var errs []error

	if c.Gateway.BaseURL == "" {
		errs = append(errs, errors.New("CHAPA_BASE_URL is required"))
	}
	if c.Gateway.InitTimeout <= 0 || c.Gateway.VerifyTimeout <= 0 {
		errs = append(errs, errors.New("gateway timeouts must be positive"))
	}
	if c.Broker.Kind != BrokerKafka && c.Broker.Kind != BrokerNATS {
		errs = append(errs, errors.New("BROKER_KIND must be kafka or nats"))
	}
	if c.Broker.Kind == BrokerKafka && len(c.Broker.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required for the kafka broker"))
	}
	if c.Email.Backend != EmailBackendSMTP && c.Email.Backend != EmailBackendConsole {
		errs = append(errs, errors.New("EMAIL_BACKEND must be smtp or console"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated value, dropping empty entries.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

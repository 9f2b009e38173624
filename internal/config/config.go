package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	LogLevel string

	HTTP     HTTPConfig
	GRPC     GRPCConfig
	Mongo    MongoConfig
	SQL      SQLConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Push     PushConfig
	Email    EmailConfig
	Orders   OrdersConfig
	Outbox   OutboxConfig
	Dispatch DispatchConfig
}

type HTTPConfig struct {
	Port               string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
}

type GRPCConfig struct {
	Port string
}

type MongoConfig struct {
	URI      string
	Database string
}

type SQLConfig struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SQLitePath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

type AuthConfig struct {
	JWTSecret string
}

type PushConfig struct {
	FirebaseProjectID string
	CredentialsFile   string
}

func (p PushConfig) Enabled() bool { return p.FirebaseProjectID != "" }

type EmailConfig struct {
	SendGridAPIKey string
	From           string
}

func (e EmailConfig) Enabled() bool { return e.SendGridAPIKey != "" && e.From != "" }

type OrdersConfig struct {
	StrictTransitions bool
	CreateTimeout     time.Duration
	IdempotencyTTL    time.Duration
}

type OutboxConfig struct {
	PollInterval  time.Duration
	PurgeInterval time.Duration
	BatchSize     int
	Retention     time.Duration
}

type DispatchConfig struct {
	Timeout time.Duration
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTP: HTTPConfig{
			Port:               getEnv("HTTP_PORT", "8080"),
			RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		},
		GRPC: GRPCConfig{
			Port: getEnv("GRPC_PORT", "50051"),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "delivery"),
		},
		SQL: SQLConfig{
			Driver:     getEnv("ORDER_STORE_DRIVER", DriverPostgres),
			Host:       getEnv("POSTGRES_HOST", "localhost"),
			Port:       getEnvInt("POSTGRES_PORT", 5432),
			User:       getEnv("POSTGRES_USER", "postgres"),
			Password:   getEnv("POSTGRES_PASSWORD", "postgres"),
			DBName:     getEnv("POSTGRES_DB", "orders"),
			SQLitePath: getEnv("SQLITE_PATH", "orders.db"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS"),
			Topic:   getEnv("NOTIFICATIONS_TOPIC", "notifications"),
			GroupID: getEnv("NOTIFICATIONS_GROUP_ID", "notification-dispatcher"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Push: PushConfig{
			FirebaseProjectID: getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsFile:   getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		},
		Email: EmailConfig{
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			From:           getEnv("EMAIL_FROM", ""),
		},
		Orders: OrdersConfig{
			StrictTransitions: getEnvBool("ORDERS_STRICT_TRANSITIONS", true),
			CreateTimeout:     getEnvDuration("ORDER_CREATE_TIMEOUT", 15*time.Second),
			IdempotencyTTL:    getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Outbox: OutboxConfig{
			PollInterval:  getEnvDuration("OUTBOX_POLL_INTERVAL", time.Second),
			PurgeInterval: getEnvDuration("OUTBOX_PURGE_INTERVAL", time.Hour),
			BatchSize:     getEnvInt("OUTBOX_BATCH_SIZE", 100),
			Retention:     getEnvDuration("OUTBOX_RETENTION", 72*time.Hour),
		},
		Dispatch: DispatchConfig{
			Timeout: getEnvDuration("DISPATCH_TIMEOUT", 5*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LongestRequest is the most time any HTTP handler may spend on a request.
// Write deadlines and idempotency claims must outlast it.
func (c *Config) LongestRequest() time.Duration {
	return max(c.HTTP.RequestTimeout, c.Orders.CreateTimeout)
}

func (c *Config) Validate() error {
	var errs []error

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.SQL.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("ORDER_STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.SQL.Driver))
	}
	if c.Mongo.URI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	if c.HTTP.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.Orders.CreateTimeout <= 0 {
		errs = append(errs, errors.New("ORDER_CREATE_TIMEOUT must be positive"))
	}
	if c.Outbox.BatchSize <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	if c.Outbox.PollInterval <= 0 || c.Outbox.PurgeInterval <= 0 {
		errs = append(errs, errors.New("outbox intervals must be positive"))
	}
	if c.Outbox.Retention <= 0 {
		errs = append(errs, errors.New("OUTBOX_RETENTION must be positive"))
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	if c.Dispatch.Timeout <= 0 {
		errs = append(errs, errors.New("DISPATCH_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

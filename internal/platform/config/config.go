package config

import (
	"os"
	"strconv"
	"time"
)

// Config aggregates every runtime setting so main stays lean.
type Config struct {
	Server   Server
	Identity Identity
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
	Pending  Pending
	Verify   Verify
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Environment     string
	ShutdownTimeout time.Duration
}

// Identity points at the external identity provider and carries the shared
// secret used to validate the access tokens it mints.
type Identity struct {
	BaseURL       string
	APIKey        string
	JWTSigningKey string
	Timeout       time.Duration
}

// Postgres captures record-store connection settings.
type Postgres struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Redis captures pending-submission store connection settings.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures audit publisher settings.
type Kafka struct {
	Brokers         string
	Topic           string
	Acks            string
	Retries         int
	DeliveryTimeout time.Duration
}

// Pending controls the pending-submission store.
type Pending struct {
	TTL time.Duration
}

// Verify controls the verification callback behavior.
type Verify struct {
	// AdvanceDelay is the UX pause before the client auto-continues after a
	// successful verification. Correctness never depends on it.
	AdvanceDelay time.Duration
	ContinueURL  string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            envString("TUTORBASE_ADDR", ":8080"),
			Environment:     envString("TUTORBASE_ENV", "dev"),
			ShutdownTimeout: envDuration("TUTORBASE_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Identity: Identity{
			BaseURL:       envString("IDENTITY_BASE_URL", "http://localhost:9999"),
			APIKey:        os.Getenv("IDENTITY_API_KEY"),
			JWTSigningKey: envString("IDENTITY_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Timeout:       envDuration("IDENTITY_TIMEOUT", 10*time.Second),
		},
		Postgres: Postgres{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:         os.Getenv("KAFKA_BROKERS"),
			Topic:           envString("KAFKA_AUDIT_TOPIC", "tutorbase.audit.v1"),
			Acks:            envString("KAFKA_ACKS", "all"),
			Retries:         envInt("KAFKA_RETRIES", 3),
			DeliveryTimeout: envDuration("KAFKA_DELIVERY_TIMEOUT", 10*time.Second),
		},
		Pending: Pending{
			TTL: envDuration("PENDING_SUBMISSION_TTL", 24*time.Hour),
		},
		Verify: Verify{
			AdvanceDelay: envDuration("VERIFY_ADVANCE_DELAY", 3*time.Second),
			ContinueURL:  envString("VERIFY_CONTINUE_URL", "/signin"),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

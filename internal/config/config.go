package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Gate     GateConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Log      LogConfig
	Metrics  MetricsConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	ConnRetries  int
}

// GateConfig holds the check-in specific settings.
type GateConfig struct {
	AdminKey        string
	EventTitle      string
	QRBaseURL       string
	DisplayTimezone string
	// TrustedProxies lists the CIDRs whose X-Forwarded-For / X-Real-IP
	// headers name the client. Empty means the peer address is used.
	TrustedProxies []string
}

// RedisConfig enables the operator key lockout when Addr is set.
type RedisConfig struct {
	Addr           string
	MaxKeyFailures int
	KeyLockout     time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	Admissions string
	Resets     string
}

type LogConfig struct {
	Dir string
}

type MetricsConfig struct {
	Enabled bool
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "3000"),
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    0, // the /events stream stays open
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
			DSN:          getEnv("DB_DSN", "file:db.sqlite"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			ConnRetries:  getEnvInt("DB_CONN_RETRIES", 5),
		},
		Gate: GateConfig{
			AdminKey:        os.Getenv("ADMIN_KEY"),
			EventTitle:      getEnv("EVENT_TITLE", "CHECK-IN"),
			QRBaseURL:       getEnv("QR_BASE_URL", "http://localhost:3000/q?token="),
			DisplayTimezone: getEnv("DISPLAY_TIMEZONE", "Europe/Rome"),
			TrustedProxies:  getEnvList("TRUSTED_PROXIES", nil),
		},
		Redis: RedisConfig{
			Addr:           os.Getenv("REDIS_ADDR"),
			MaxKeyFailures: getEnvInt("KEY_MAX_FAILURES", 5),
			KeyLockout:     time.Duration(getEnvInt("KEY_LOCKOUT_MINUTES", 15)) * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Topics: TopicConfig{
				Admissions: getEnv("KAFKA_TOPIC_ADMISSIONS", "gate.guest.admitted"),
				Resets:     getEnv("KAFKA_TOPIC_RESETS", "gate.event.reset"),
			},
		},
		Log: LogConfig{
			Dir: getEnv("LOG_DIR", "logs"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
	}
}

// Addr turns PORT into a listen address.
func (s ServerConfig) Addr() string {
	if strings.HasPrefix(s.Port, ":") {
		return s.Port
	}
	return ":" + s.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
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
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	AdminToken    string
	Timezone      string

	Database      Database
	Redis         RedisConfig
	Kafka         KafkaConfig
	Cloudinary    CloudinaryConfig
	Booking       BookingConfig
	RateLimit     RateLimitConfig
	ShutdownGrace time.Duration
}

// Database selects the SQL driver and DSN. An empty URL keeps every store in memory.
type Database struct {
	URL          string
	Driver       string // "postgres" (lib/pq) or "pgx"
	MaxOpenConns int
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers     []string
	NotifyTopic string
}

type CloudinaryConfig struct {
	URL    string
	Folder string
}

// BookingConfig holds the business knobs of the booking flow.
type BookingConfig struct {
	HorizonDays     int
	MaxReceiptBytes int64
}

type RateLimitConfig struct {
	Disabled     bool
	WritesPerMin int
	ProbesPerMin int
}

// Client configures the booking session client and the bookctl CLI.
type Client struct {
	APIURL      string
	Token       string
	CallTimeout time.Duration
	HorizonDays int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default, override in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:          getString("TUTORLY_ADDR", ":8080"),
		JWTSigningKey: jwtSigningKey,
		JWTIssuer:     getString("JWT_ISSUER", "tutorly"),
		JWTAudience:   getString("JWT_AUDIENCE", "tutorly-api"),
		AdminToken:    os.Getenv("ADMIN_TOKEN"),
		Timezone:      getString("TUTORLY_TIMEZONE", "Asia/Riyadh"),
		Database: Database{
			URL:          os.Getenv("DATABASE_URL"),
			Driver:       getString("DB_DRIVER", "postgres"),
			MaxOpenConns: getInt("DB_MAX_OPEN_CONNS", 20),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(os.Getenv("KAFKA_BROKERS")),
			NotifyTopic: getString("NOTIFY_TOPIC", "tutorly.notifications"),
		},
		Cloudinary: CloudinaryConfig{
			URL:    os.Getenv("CLOUDINARY_URL"),
			Folder: getString("CLOUDINARY_FOLDER", "payment-receipts"),
		},
		Booking: BookingConfig{
			HorizonDays:     getInt("BOOKING_HORIZON_DAYS", 30),
			MaxReceiptBytes: int64(getInt("MAX_RECEIPT_BYTES", 10<<20)),
		},
		RateLimit: RateLimitConfig{
			Disabled:     os.Getenv("RATE_LIMIT_DISABLED") == "true",
			WritesPerMin: getInt("RATE_LIMIT_WRITES_PER_MIN", 20),
			ProbesPerMin: getInt("RATE_LIMIT_PROBES_PER_MIN", 60),
		},
		ShutdownGrace: getDuration("SHUTDOWN_GRACE", 10*time.Second),
	}
}

// ClientFromEnv reads the client-side settings used by bookctl.
func ClientFromEnv() Client {
	return Client{
		APIURL:      getString("TUTORLY_API_URL", "http://localhost:8080"),
		Token:       os.Getenv("TUTORLY_TOKEN"),
		CallTimeout: getDuration("TUTORLY_CALL_TIMEOUT", 15*time.Second),
		HorizonDays: getInt("BOOKING_HORIZON_DAYS", 30),
	}
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

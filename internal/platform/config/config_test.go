package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("TUTORLY_ADDR", "")
	t.Setenv("BOOKING_HORIZON_DAYS", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 30, cfg.Booking.HorizonDays)
	assert.Equal(t, int64(10<<20), cfg.Booking.MaxReceiptBytes)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("TUTORLY_ADDR", ":9090")
	t.Setenv("BOOKING_HORIZON_DAYS", "14")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,,")
	t.Setenv("REDIS_DIAL_TIMEOUT", "2s")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 14, cfg.Booking.HorizonDays)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Second, cfg.Redis.DialTimeout)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
}

func TestClientFromEnv(t *testing.T) {
	t.Setenv("TUTORLY_CALL_TIMEOUT", "3s")
	cfg := ClientFromEnv()
	assert.Equal(t, 3*time.Second, cfg.CallTimeout)
}

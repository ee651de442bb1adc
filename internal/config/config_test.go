package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"REPCOACH_ADDR", "REPCOACH_PENDING_TTL", "KAFKA_BROKERS", "WHATSAPP_ENABLED", "TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 24*time.Hour, cfg.PendingTTL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.WhatsAppEnabled)
	assert.False(t, cfg.TwilioEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REPCOACH_PENDING_TTL", "30m")
	t.Setenv("REPCOACH_HISTORY_TURNS", "4")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("WHATSAPP_ENABLED", "true")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "tok")

	cfg := Load()
	assert.Equal(t, 30*time.Minute, cfg.PendingTTL)
	assert.Equal(t, 4, cfg.HistoryTurns)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.WhatsAppEnabled)
	assert.True(t, cfg.TwilioEnabled())
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("REPCOACH_PENDING_TTL", "tomorrow")
	t.Setenv("REPCOACH_HISTORY_TURNS", "many")

	cfg := Load()
	assert.Equal(t, 24*time.Hour, cfg.PendingTTL)
	assert.Equal(t, 10, cfg.HistoryTurns)
}

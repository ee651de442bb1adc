// Package config loads runtime configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration values for the coaching service.
type Config struct {
	Addr                string
	DBPath              string
	LogMode             string
	LogHashSalt         string
	PendingTTL          time.Duration
	HistoryTurns        int
	MaintenanceInterval time.Duration
	Retention           time.Duration

	LLMAPIKey          string
	LLMBaseURL         string
	LLMModel           string
	LLMVisionModel     string
	LLMTranscribeModel string
	LLMTimeout         time.Duration

	GCSBucket               string
	GCSPublicBaseURL        string
	GoogleCredentialsFile   string
	VideoIntelligenceEnable bool

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	WhatsAppEnabled   bool
	WhatsAppStorePath string

	RedisAddr    string
	KafkaBrokers []string
	KafkaTopic   string
	NotifyURLs   string
}

// Load reads an optional .env file, then environment variables, applying
// defaults suited to local development.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:                getEnv("REPCOACH_ADDR", ":8080"),
		DBPath:              getEnv("REPCOACH_DB_PATH", "repcoach.db"),
		LogMode:             getEnv("REPCOACH_LOG_MODE", "dev"),
		LogHashSalt:         getEnv("REPCOACH_LOG_HASH_SALT", ""),
		PendingTTL:          getDurationEnv("REPCOACH_PENDING_TTL", 24*time.Hour),
		HistoryTurns:        getIntEnv("REPCOACH_HISTORY_TURNS", 10),
		MaintenanceInterval: getDurationEnv("REPCOACH_MAINTENANCE_INTERVAL", time.Hour),
		Retention:           getDurationEnv("REPCOACH_RETENTION", 90*24*time.Hour),

		LLMAPIKey:          getEnv("LLM_API_KEY", ""),
		LLMBaseURL:         getEnv("LLM_BASE_URL", ""),
		LLMModel:           getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMVisionModel:     getEnv("LLM_VISION_MODEL", "gpt-4o"),
		LLMTranscribeModel: getEnv("LLM_TRANSCRIBE_MODEL", "whisper-1"),
		LLMTimeout:         getDurationEnv("LLM_TIMEOUT", 60*time.Second),

		GCSBucket:               getEnv("GCS_BUCKET", ""),
		GCSPublicBaseURL:        getEnv("GCS_PUBLIC_BASE_URL", "https://storage.googleapis.com"),
		GoogleCredentialsFile:   getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		VideoIntelligenceEnable: getBoolEnv("VIDEO_INTELLIGENCE_ENABLED", false),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),

		WhatsAppEnabled:   getBoolEnv("WHATSAPP_ENABLED", false),
		WhatsAppStorePath: getEnv("WHATSAPP_STORE_PATH", "whatsapp.db"),

		RedisAddr:    getEnv("REDIS_ADDR", ""),
		KafkaBrokers: splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "repcoach.pr_achieved"),
		NotifyURLs:   getEnv("NOTIFY_URLS", ""),
	}
}

// TwilioEnabled reports whether outbound Twilio delivery is configured.
func (c Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != ""
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

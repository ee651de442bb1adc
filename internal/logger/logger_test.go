package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observed(salt string) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return &Logger{SugaredLogger: zap.New(core).Sugar(), hashSalt: salt}, logs
}

func TestSanitizeRedactsSecrets(t *testing.T) {
	l, logs := observed("")
	l.Info("outbound", "auth_token", "abc123", "api_key", "sk-xyz", "status", 200)

	entry := logs.All()[0]
	fields := entry.ContextMap()
	if fields["auth_token"] != "[REDACTED]" {
		t.Errorf("auth_token = %v, want redacted", fields["auth_token"])
	}
	if fields["api_key"] != "[REDACTED]" {
		t.Errorf("api_key = %v, want redacted", fields["api_key"])
	}
	if fields["status"] != int64(200) {
		t.Errorf("status = %v (%T), want 200", fields["status"], fields["status"])
	}
}

func TestSanitizeHashesPhones(t *testing.T) {
	l, logs := observed("salt")
	l.With("phone", "+5215512345678").Warn("dialogue", "to", "+5215512345678")

	fields := logs.All()[0].ContextMap()
	phone, _ := fields["phone"].(string)
	if !strings.HasPrefix(phone, "hash:") || strings.Contains(phone, "5512345678") {
		t.Errorf("phone = %q, want hashed", phone)
	}
	if fields["to"] != phone {
		t.Errorf("to = %v, want same hash as phone %q", fields["to"], phone)
	}
}

func TestSanitizeOddKVs(t *testing.T) {
	l, logs := observed("")
	l.Debug("odd", "dangling")
	if n := logs.FilterMessage("odd").Len(); n != 1 {
		t.Fatalf("entries = %d, want 1", n)
	}
}

func TestNop(t *testing.T) {
	Nop().With("component", "test").Error("discarded")
}

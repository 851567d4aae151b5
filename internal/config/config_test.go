package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("USE_MEMORY_QUEUE", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("NOTIFY_TIMEOUT", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if !cfg.UseMemoryQueue {
		t.Fatalf("expected memory queue by default")
	}
	if cfg.NotifyTimeout != 10*time.Second {
		t.Fatalf("expected default notify timeout, got %s", cfg.NotifyTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("expected wildcard CORS default, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://clinic@db/bookings")
	t.Setenv("DATABASE_PASSWORD", "s3cret")
	t.Setenv("STAFF_NOTIFY_EMAILS", "front@clinic.in, owner@clinic.in ,")
	t.Setenv("ADMIN_SESSION_TTL", "2h")
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("EMAIL_PROVIDER", " SendGrid ")
	cfg := Load()
	if cfg.Port != "9090" || cfg.Env != "production" {
		t.Fatalf("unexpected overrides: port=%s env=%s", cfg.Port, cfg.Env)
	}
	if cfg.DatabasePassword != "s3cret" {
		t.Fatalf("expected credential override, got %q", cfg.DatabasePassword)
	}
	if len(cfg.StaffEmails) != 2 || cfg.StaffEmails[1] != "owner@clinic.in" {
		t.Fatalf("unexpected staff emails %v", cfg.StaffEmails)
	}
	if cfg.AdminSessionTTL != 2*time.Hour {
		t.Fatalf("expected session ttl override, got %s", cfg.AdminSessionTTL)
	}
	if cfg.RateLimitBurst != 3 || cfg.RateLimitRPS != 0.5 {
		t.Fatalf("unexpected rate limit %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.EmailProvider != "sendgrid" {
		t.Fatalf("expected normalized email provider, got %q", cfg.EmailProvider)
	}
}

func TestValidateAPIReportsMissingKeys(t *testing.T) {
	cfg := &Config{UseMemoryQueue: true}
	err := cfg.ValidateAPI()
	if !errors.Is(err, ErrMisconfigured) {
		t.Fatalf("expected ErrMisconfigured, got %v", err)
	}
	for _, key := range []string{"DATABASE_URL", "TWILIO_ACCOUNT_SID", "ADMIN_JWT_SECRET", "REDIS_ADDR"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %s in error, got %v", key, err)
		}
	}
}

func TestValidateMessaging(t *testing.T) {
	cfg := &Config{
		TwilioAccountSID:   "XX123",
		TwilioAuthToken:    "token",
		TwilioWhatsAppFrom: "whatsapp:+14155238886",
		UseMemoryQueue:     true,
	}
	if err := cfg.ValidateMessaging(); !errors.Is(err, ErrMisconfigured) {
		t.Fatalf("expected bad SID prefix to be rejected, got %v", err)
	}
	cfg.TwilioAccountSID = "AC123"
	if err := cfg.ValidateMessaging(); err != nil {
		t.Fatalf("expected valid messaging config, got %v", err)
	}
	cfg.UseMemoryQueue = false
	if err := cfg.ValidateMessaging(); err == nil || !strings.Contains(err.Error(), "NOTIFICATION_QUEUE_URL") {
		t.Fatalf("expected queue url requirement, got %v", err)
	}
}

func TestValidateEmail(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateEmail(); err != nil {
		t.Fatalf("email is optional, got %v", err)
	}
	cfg.EmailProvider = "ses"
	if err := cfg.ValidateEmail(); !errors.Is(err, ErrMisconfigured) {
		t.Fatalf("expected ses from address requirement, got %v", err)
	}
	cfg.EmailProvider = "pigeon"
	if err := cfg.ValidateEmail(); !errors.Is(err, ErrMisconfigured) {
		t.Fatalf("expected unknown provider rejection, got %v", err)
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMisconfigured is returned by the Validate helpers when required settings are missing.
var ErrMisconfigured = errors.New("config: server misconfigured")

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Storage collaborator: endpoint + credential.
	DatabaseURL      string
	DatabasePassword string

	// Clinic branding used in customer messages.
	ClinicName         string
	ClinicContactPhone string
	ClinicWhatsAppURL  string

	// WhatsApp delivery through Twilio.
	TwilioAccountSID      string
	TwilioAuthToken       string
	TwilioWhatsAppFrom    string
	TwilioTemplateConfirm string
	TwilioTemplateCancel  string
	TwilioBaseURL         string
	TwilioStatusCallback  string

	// Notification channel.
	UseMemoryQueue       bool
	NotificationQueueURL string
	NotifyTimeout        time.Duration
	NotifyAPIToken       string

	// Staff email copy of confirmations and cancellations.
	EmailProvider     string
	StaffEmails       []string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AdminJWTSecret  string
	AdminSessionTTL time.Duration

	CronSecret         string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables, after applying a .env file when one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabasePassword: getEnv("DATABASE_PASSWORD", ""),

		ClinicName:         getEnv("CLINIC_NAME", "Dr Sonal Shah Cosmetica India"),
		ClinicContactPhone: getEnv("CLINIC_CONTACT_PHONE", "+91 98704 39934"),
		ClinicWhatsAppURL:  getEnv("CLINIC_WHATSAPP_URL", "https://wa.me/919870439934"),

		TwilioAccountSID:      strings.TrimSpace(getEnv("TWILIO_ACCOUNT_SID", "")),
		TwilioAuthToken:       strings.TrimSpace(getEnv("TWILIO_AUTH_TOKEN", "")),
		TwilioWhatsAppFrom:    strings.TrimSpace(getEnv("TWILIO_WHATSAPP_FROM", "")),
		TwilioTemplateConfirm: strings.TrimSpace(getEnv("TWILIO_WHATSAPP_TEMPLATE_CONFIRM", "")),
		TwilioTemplateCancel:  strings.TrimSpace(getEnv("TWILIO_WHATSAPP_TEMPLATE_CANCEL", "")),
		TwilioBaseURL:         getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),
		TwilioStatusCallback:  getEnv("TWILIO_STATUS_CALLBACK_URL", ""),

		UseMemoryQueue:       getEnvAsBool("USE_MEMORY_QUEUE", true),
		NotificationQueueURL: getEnv("NOTIFICATION_QUEUE_URL", ""),
		NotifyTimeout:        getEnvAsDuration("NOTIFY_TIMEOUT", 10*time.Second),
		NotifyAPIToken:       getEnv("NOTIFY_API_TOKEN", ""),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", ""))),
		StaffEmails:       getEnvAsList("STAFF_NOTIFY_EMAILS"),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Clinic Bookings"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),

		AWSRegion:           getEnv("AWS_REGION", "ap-south-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AdminJWTSecret:  getEnv("ADMIN_JWT_SECRET", ""),
		AdminSessionTTL: getEnvAsDuration("ADMIN_SESSION_TTL", 12*time.Hour),

		CronSecret:         getEnv("CRON_SECRET", ""),
		CORSAllowedOrigins: getEnvAsListDefault("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 1),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),
	}
}

// ValidateStorage checks the storage endpoint is present.
func (c *Config) ValidateStorage() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return missing("DATABASE_URL")
	}
	return nil
}

// ValidateMessaging checks the WhatsApp provider and notification channel settings.
func (c *Config) ValidateMessaging() error {
	var keys []string
	if c.TwilioAccountSID == "" {
		keys = append(keys, "TWILIO_ACCOUNT_SID")
	}
	if c.TwilioAuthToken == "" {
		keys = append(keys, "TWILIO_AUTH_TOKEN")
	}
	if c.TwilioWhatsAppFrom == "" {
		keys = append(keys, "TWILIO_WHATSAPP_FROM")
	}
	if !c.UseMemoryQueue && c.NotificationQueueURL == "" {
		keys = append(keys, "NOTIFICATION_QUEUE_URL")
	}
	if len(keys) > 0 {
		return missing(keys...)
	}
	if !strings.HasPrefix(c.TwilioAccountSID, "AC") {
		return fmt.Errorf("%w: TWILIO_ACCOUNT_SID must start with AC", ErrMisconfigured)
	}
	return nil
}

// ValidateAdmin checks the admin session settings.
func (c *Config) ValidateAdmin() error {
	var keys []string
	if c.AdminJWTSecret == "" {
		keys = append(keys, "ADMIN_JWT_SECRET")
	}
	if c.RedisAddr == "" {
		keys = append(keys, "REDIS_ADDR")
	}
	if len(keys) > 0 {
		return missing(keys...)
	}
	return nil
}

// ValidateEmail checks the optional staff email provider settings.
func (c *Config) ValidateEmail() error {
	switch c.EmailProvider {
	case "":
		return nil
	case "sendgrid":
		if c.SendGridAPIKey == "" || c.SendGridFromEmail == "" {
			return missing("SENDGRID_API_KEY", "SENDGRID_FROM_EMAIL")
		}
	case "ses":
		if c.SESFromEmail == "" {
			return missing("SES_FROM_EMAIL")
		}
	default:
		return fmt.Errorf("%w: unknown EMAIL_PROVIDER %q", ErrMisconfigured, c.EmailProvider)
	}
	return nil
}

// ValidateAPI runs every check the HTTP API needs before it starts serving.
func (c *Config) ValidateAPI() error {
	return errors.Join(c.ValidateStorage(), c.ValidateMessaging(), c.ValidateAdmin(), c.ValidateEmail())
}

func missing(keys ...string) error {
	return fmt.Errorf("%w: missing %s", ErrMisconfigured, strings.Join(keys, ", "))
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	return getEnvAsListDefault(key, nil)
}

func getEnvAsListDefault(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

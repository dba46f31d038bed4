package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        int
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	LogLevel    string

	AnthropicAPIKey string
	AnthropicModel  string

	MailAPIURL   string
	MailAPIToken string
	MailFrom     string
	// Pacing between consecutive sends from one handler, for the mail
	// transport's rate limit.
	MailSendDelay time.Duration

	ProbeURL string

	// APIToken guards the booking endpoints; webhooks stay open.
	APIToken string

	// SpamAutoReply gates the generic deflection reply to messages
	// classified as spam.
	SpamAutoReply bool

	// Outbox retry sweep tuning.
	OutboxSweepInterval time.Duration
	OutboxMaxAttempts   int

	Directory Directory
}

func Load() Config {
	// Best-effort: a missing .env just means plain env vars.
	_ = godotenv.Load()

	return Config{
		Port:            envInt("SKYDESK_PORT", 8640),
		NatsURL:         envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken:       envStr("NATS_TOKEN", ""),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("SKYDESK_MODEL", "claude-sonnet-4-20250514"),
		MailAPIURL:      envStr("MAIL_API_URL", ""),
		MailAPIToken:    envStr("MAIL_API_TOKEN", ""),
		MailFrom:        envStr("MAIL_FROM", "bookings@makaitours.com"),
		MailSendDelay:   envDuration("MAIL_SEND_DELAY", 800*time.Millisecond),
		ProbeURL:        envStr("AVAILABILITY_PROBE_URL", ""),
		APIToken:        envStr("API_TOKEN", ""),
		SpamAutoReply:   envBool("SPAM_AUTO_REPLY", false),

		OutboxSweepInterval: envDuration("OUTBOX_SWEEP_INTERVAL", 5*time.Minute),
		OutboxMaxAttempts:   envInt("OUTBOX_MAX_ATTEMPTS", 5),

		Directory: loadDirectory(),
	}
}

func loadDirectory() Directory {
	d := Directory{
		InternalAgent: envStr("INTERNAL_AGENT_EMAIL", "agent@makaitours.com"),
		Operators: []Operator{
			{Name: "Rainbow Helicopters", Email: envStr("RAINBOW_EMAIL", "fly@rainbowhelicopters.example")},
			{Name: "Blue Hawaiian Helicopters", Email: envStr("BLUE_HAWAIIAN_EMAIL", "reservations@bluehawaiian.example")},
		},
	}
	// Hub, test-agent and any other addresses that must never receive
	// customer-facing follow-up content.
	extra := envStr("INTERNAL_ADDRESSES", "hub@makaitours.com,test-agent@makaitours.com")
	for _, addr := range strings.Split(extra, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			d.Internal = append(d.Internal, addr)
		}
	}
	return d
}

func envStr(key, fallback string) string {
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

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
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

package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	AuthSecret string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	GoogleAllowedHD    string

	CORSOrigins []string

	// scheduler cadences: administration advancement is coarse, outbound
	// notification dispatch is finer
	AdvanceInterval  time.Duration
	DispatchInterval time.Duration

	MailEnabled bool
	SMTPAddr    string
	SMTPFrom    string
	SMTPUser    string
	SMTPPass    string
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:  addr,
		PublicURL: envOr("PUBLIC_URL", "http://localhost:3000"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		AuthSecret: envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURI:  os.Getenv("GOOGLE_REDIRECT_URI"),
		GoogleAllowedHD:    os.Getenv("GOOGLE_ALLOWED_HD"),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000"),

		AdvanceInterval:  envDur("ADVANCE_INTERVAL", 5*time.Minute),
		DispatchInterval: envDur("DISPATCH_INTERVAL", 30*time.Second),

		MailEnabled: envBool("MAIL_ENABLED", false),
		SMTPAddr:    envOr("SMTP_ADDR", "localhost:587"),
		SMTPFrom:    envOr("SMTP_FROM", "no-reply@perfcycle.local"),
		SMTPUser:    os.Getenv("SMTP_USER"),
		SMTPPass:    os.Getenv("SMTP_PASS"),
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDur(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func csvOr(k, def string) []string {
	v := os.Getenv(k)
	if v == "" {
		v = def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

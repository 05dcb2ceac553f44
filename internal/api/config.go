package api

import (
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server configuration, loaded from environment variables.
type Config struct {
	ListenAddr      string
	DBPath          string
	ShutdownTimeout time.Duration
	BaseURL         string
	LogFormat       string // "json" (default) or "text"
	LogLevel        string // "debug", "info" (default), "warn", "error"

	RateLimitPairing int            // pairing and deployment requests per IP per minute (default: 10)
	TrustedProxies   []netip.Prefix // peers whose X-Forwarded-For is believed; empty = use RemoteAddr

	CORSAllowedOrigins []string // allowed origins for the /api routes; empty = disabled

	HousekeepingInterval  time.Duration // how often expired codes are pruned (default: 5m)
	CodeRetention         time.Duration // unverified codes are kept this long past expiry (default: 1h)
	PairingEventRetention time.Duration // retention period for pairing events (default: 90 days)
	DefaultCallbackPort   int           // CLI callback port assumed when /cliauth has no ?port (default: 4000)

	WebhookURL    string // receives pairing.verified and deployment.recorded events; empty = disabled
	WebhookSecret string // HMAC key for X-Dehost-Signature
}

// LoadConfig reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present; variables
// already set in the environment win.
func LoadConfig() Config {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:      ":3000",
		DBPath:          "./data/dehost.db",
		ShutdownTimeout: 30 * time.Second,
		BaseURL:         "http://localhost:3000",
		LogFormat:       "json",
		LogLevel:        "info",

		RateLimitPairing: 10,

		HousekeepingInterval:  5 * time.Minute,
		CodeRetention:         time.Hour,
		PairingEventRetention: 90 * 24 * time.Hour,
		DefaultCallbackPort:   4000,
	}

	if v := os.Getenv("DEHOST_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DEHOST_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("DEHOST_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("DEHOST_BASE_URL"); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("DEHOST_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("DEHOST_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("DEHOST_RATE_LIMIT_PAIRING"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitPairing = n
		}
	}

	cfg.TrustedProxies = parsePrefixes(os.Getenv("DEHOST_TRUSTED_PROXIES"))

	if v := os.Getenv("DEHOST_HOUSEKEEPING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.HousekeepingInterval = d
		}
	}
	if v := os.Getenv("DEHOST_CODE_RETENTION"); v != "" {
		if d := parseDaysDuration(v); d > 0 {
			cfg.CodeRetention = d
		}
	}
	if v := os.Getenv("DEHOST_PAIRING_EVENT_RETENTION"); v != "" {
		if d := parseDaysDuration(v); d > 0 {
			cfg.PairingEventRetention = d
		}
	}
	if v := os.Getenv("DEHOST_CALLBACK_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < 65536 {
			cfg.DefaultCallbackPort = n
		}
	}

	cfg.WebhookURL = strings.TrimSpace(os.Getenv("DEHOST_WEBHOOK_URL"))
	cfg.WebhookSecret = os.Getenv("DEHOST_WEBHOOK_SECRET")

	if v := os.Getenv("DEHOST_CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for _, o := range origins {
			o = strings.TrimSpace(o)
			if o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	return cfg
}

// parseDaysDuration parses a string like "90d", "30d" into a time.Duration.
// Falls back to time.ParseDuration for standard Go durations.
func parseDaysDuration(s string) time.Duration {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		numStr := strings.TrimSuffix(s, "d")
		if n, err := strconv.Atoi(numStr); err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour
		}
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return 0
}

// parsePrefixes reads a comma-separated list of CIDRs or bare IPs. Invalid
// entries are logged and skipped.
func parsePrefixes(v string) []netip.Prefix {
	var out []netip.Prefix
	for _, f := range strings.Split(v, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if p, err := netip.ParsePrefix(f); err == nil {
			out = append(out, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(f); err == nil {
			a = a.Unmap()
			out = append(out, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		slog.Warn("ignoring invalid trusted proxy", "value", f)
	}
	return out
}

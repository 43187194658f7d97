package config

import (
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string

	JWTSecret  string
	JWTExpiry  time.Duration
	BcryptCost int

	BaseURL string

	Google OAuthConfig

	Redis     RedisConfig
	RateLimit RateLimitConfig

	AMQP AMQPConfig

	MetricsEnabled bool

	SMTP SMTPConfig

	SuperAdmin SuperAdminConfig
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig drives the token bucket in front of the public auth endpoints.
// A bucket holds Capacity tokens and regains one every RefillInterval.
// Forwarding headers are only honoured when the peer is in TrustedProxies.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
	TrustedProxies []netip.Prefix
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

// SuperAdminConfig seeds the initial super admin. Only read by cmd/bootstrap-super-admin.
type SuperAdminConfig struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtExpiry, err := time.ParseDuration(getEnv("JWT_EXPIRY", "24h"))
	if err != nil {
		jwtExpiry = 24 * time.Hour
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTSecret:  getEnvOrPanic("JWT_SECRET"),
		JWTExpiry:  jwtExpiry,
		BcryptCost: getEnvInt("BCRYPT_COST", 10),

		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		Google: OAuthConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		},

		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		RateLimit: loadRateLimit(),

		AMQP: AMQPConfig{
			URL:      getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "vericheck.users"),
		},

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),

		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
		},

		SuperAdmin: SuperAdminConfig{
			Username:  getEnv("SUPER_ADMIN_USERNAME", ""),
			Email:     getEnv("SUPER_ADMIN_EMAIL", ""),
			Password:  getEnv("SUPER_ADMIN_PASSWORD", ""),
			FirstName: getEnv("SUPER_ADMIN_FIRST_NAME", ""),
			LastName:  getEnv("SUPER_ADMIN_LAST_NAME", ""),
		},
	}, nil
}

func loadRateLimit() RateLimitConfig {
	rl := RateLimitConfig{
		Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
		Capacity:       getEnvInt("RATE_LIMIT_CAPACITY", 10),
		RefillInterval: getEnvDuration("RATE_LIMIT_REFILL_INTERVAL", 6*time.Second),
		TTL:            getEnvDuration("RATE_LIMIT_TTL", 10*time.Minute),
		Prefix:         getEnv("RATE_LIMIT_PREFIX", "rl"),
		TrustedProxies: parsePrefixes(getEnv("RATE_LIMIT_TRUSTED_PROXIES", "")),
	}
	if rl.Capacity < 1 {
		rl.Capacity = 1
	}
	if rl.RefillInterval <= 0 {
		rl.RefillInterval = time.Second
	}
	if minTTL := 5 * rl.RefillInterval; rl.TTL < minTTL {
		rl.TTL = minTTL
	}
	return rl
}

// parsePrefixes reads a comma separated list of CIDRs or bare addresses. Invalid entries are skipped.
func parsePrefixes(raw string) []netip.Prefix {
	var prefixes []netip.Prefix
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			if p, err := netip.ParsePrefix(entry); err == nil {
				prefixes = append(prefixes, p.Masked())
			}
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			addr = addr.Unmap()
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return prefixes
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *SuperAdminConfig) Validate() error {
	missing := []string{}
	if c.Username == "" {
		missing = append(missing, "SUPER_ADMIN_USERNAME")
	}
	if c.Email == "" {
		missing = append(missing, "SUPER_ADMIN_EMAIL")
	}
	if c.Password == "" {
		missing = append(missing, "SUPER_ADMIN_PASSWORD")
	}
	if len(missing) > 0 {
		return &MissingEnvError{Keys: missing}
	}
	return nil
}

type MissingEnvError struct {
	Keys []string
}

func (e *MissingEnvError) Error() string {
	msg := "required environment variables not set:"
	for _, k := range e.Keys {
		msg += " " + k
	}
	return msg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvOrPanic(key string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		panic("required environment variable not set: " + key)
	}
	return value
}

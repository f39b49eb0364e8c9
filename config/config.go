package config

import (
	"errors"
	"fmt"
	"log"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"radiovespa/utils"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PGHost     string
	PGPort     int
	PGUser     string
	PGPassword string
	PGDatabase string
	PGSSLMode  string

	FeedURL        string
	HTTPAddr       string
	ReviewsDBPath  string
	ClickBeaconURL string
	GeoCountry     string
	GeoLookupURL   string
	CountryCode    string
	TrustedProxies []netip.Prefix

	LogLevel          string
	FetchTimeoutMs    int
	BeaconWorkers     int
	ReconnectAttempts int
}

// legacyKeys maps retired variable names to their replacement. Only the PG_*
// scheme is read; finding an old key is a configuration error.
var legacyKeys = map[string]string{
	"DB_HOST":      "PG_HOST",
	"DB_PORT":      "PG_PORT",
	"DB_USER":      "PG_USER",
	"DB_PASS":      "PG_PASSWORD",
	"DB_NAME":      "PG_DATABASE",
	"DATABASE_URL": "PG_*",
}

// Load reads the .env file at envFile (if present) and returns a validated Config.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Printf("[config] No %s file found, falling back to system env vars", envFile)
	}

	var legacy []string
	for old, repl := range legacyKeys {
		if _, ok := os.LookupEnv(old); ok {
			legacy = append(legacy, fmt.Sprintf("%s (use %s)", old, repl))
		}
	}
	if len(legacy) > 0 {
		return nil, fmt.Errorf("config: unsupported variables set: %s", strings.Join(legacy, ", "))
	}

	var bad []error
	getEnvInt := func(key string, fallback int) int {
		n, err := parseEnvInt(key, fallback)
		if err != nil {
			bad = append(bad, err)
		}
		return n
	}

	cfg := &Config{
		PGHost:     getEnv("PG_HOST", "localhost"),
		PGPort:     getEnvInt("PG_PORT", 5432),
		PGUser:     getEnv("PG_USER", "postgres"),
		PGPassword: os.Getenv("PG_PASSWORD"),
		PGDatabase: getEnv("PG_DATABASE", "radiovespa"),
		PGSSLMode:  getEnv("PG_SSLMODE", "disable"),

		FeedURL:        os.Getenv("VESPAS_URL"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		ReviewsDBPath:  getEnv("REVIEWS_DB_PATH", "./data/reviews.db"),
		ClickBeaconURL: os.Getenv("CLICK_BEACON_URL"),
		GeoCountry:     strings.ToUpper(os.Getenv("GEO_COUNTRY")),
		GeoLookupURL:   getEnv("GEO_LOOKUP_URL", "https://ipapi.co"),
		CountryCode:    getEnv("PHONE_COUNTRY_CODE", "34"),

		LogLevel:          getEnv("LOG_LEVEL", "info"),
		FetchTimeoutMs:    getEnvInt("FETCH_TIMEOUT_MS", 8000),
		BeaconWorkers:     getEnvInt("BEACON_WORKERS", 4),
		ReconnectAttempts: getEnvInt("RECONNECT_ATTEMPTS", 0),
	}
	proxies, err := parseProxies(os.Getenv("TRUSTED_PROXIES"))
	if err != nil {
		bad = append(bad, err)
	}
	cfg.TrustedProxies = proxies

	if len(bad) > 0 {
		return nil, fmt.Errorf("config: %w", errors.Join(bad...))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values every command relies on.
func (c *Config) Validate() error {
	var errs []error

	if c.PGPort < 1 || c.PGPort > 65535 {
		errs = append(errs, fmt.Errorf("PG_PORT %d out of range", c.PGPort))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q must be debug, info, warn or error", c.LogLevel))
	}
	if c.FetchTimeoutMs <= 0 {
		errs = append(errs, errors.New("FETCH_TIMEOUT_MS must be positive"))
	}
	if c.BeaconWorkers <= 0 {
		errs = append(errs, errors.New("BEACON_WORKERS must be positive"))
	}
	// 0 keeps the bot reconnecting until it is stopped
	if c.ReconnectAttempts < 0 {
		errs = append(errs, errors.New("RECONNECT_ATTEMPTS must not be negative"))
	}
	if c.CountryCode == "" || utils.DigitsOnly(c.CountryCode) != c.CountryCode {
		errs = append(errs, fmt.Errorf("PHONE_COUNTRY_CODE %q must be digits", c.CountryCode))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// RequireStore checks the settings needed by commands that talk to PostgreSQL.
func (c *Config) RequireStore() error {
	var missing []string
	if c.PGHost == "" {
		missing = append(missing, "PG_HOST")
	}
	if c.PGUser == "" {
		missing = append(missing, "PG_USER")
	}
	if c.PGPassword == "" {
		missing = append(missing, "PG_PASSWORD")
	}
	if c.PGDatabase == "" {
		missing = append(missing, "PG_DATABASE")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + quoteDSN(c.PGHost) +
		" port=" + strconv.Itoa(c.PGPort) +
		" user=" + quoteDSN(c.PGUser) +
		" password=" + quoteDSN(c.PGPassword) +
		" dbname=" + quoteDSN(c.PGDatabase) +
		" sslmode=" + quoteDSN(c.PGSSLMode)
}

// FetchTimeout is the HTTP timeout for feed and geo lookups.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMs) * time.Millisecond
}

// quoteDSN quotes a lib/pq key/value when it is empty or contains spaces or quotes.
func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseEnvInt(key string, fallback int) (int, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback, fmt.Errorf("%s: %q is not an integer", key, val)
	}
	return n, nil
}

// parseProxies reads TRUSTED_PROXIES, a comma separated list of addresses and
// CIDR ranges. A bare address is a single host range.
func parseProxies(list string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: %q is not a CIDR range", item)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: %q is not an IP address", item)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

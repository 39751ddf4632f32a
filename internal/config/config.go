package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/pricing"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	StoreDriver        string
	DatabaseURL        string
	DBAutoMigrate      bool
	RedisURL           string
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration
	SeedProductsFile   string
	MaxBodyBytes       int64
	HSTSMaxAge         int

	TaxRate          decimal.Decimal
	ShippingFee      pricing.Money
	MaxLineAmount    int
	ProductCacheTTL  time.Duration
	WriteRate        string
	IdempotencyTTL   time.Duration
	OperationTimeout time.Duration

	JWTSecret    string
	JWKSURL      string
	JWTIssuer    string
	JWTAudience  string
	AccessCookie string

	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	TracingSampling  float64
	PprofEnabled     bool
	PprofUser        string
	PprofPass        string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		StoreDriver:        strings.ToLower(valueOrDefault(k.String("STORE_DRIVER"), StorePostgres)),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		DBAutoMigrate:      parseBool(k.String("DB_AUTO_MIGRATE"), true),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		ShutdownTimeout:    parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),
		SeedProductsFile:   strings.TrimSpace(k.String("SEED_PRODUCTS_FILE")),
		MaxBodyBytes:       int64(parseInt(k.String("CART_MAX_BODY_BYTES"), 4096)),
		HSTSMaxAge:         parseInt(k.String("SECURE_HSTS_MAX_AGE"), 0),

		ProductCacheTTL:  parseDuration(k.String("CART_PRODUCT_CACHE_TTL"), "30s"),
		WriteRate:        valueOrDefault(k.String("CART_WRITE_RATE"), "120-M"),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		OperationTimeout: parseDuration(k.String("CART_OPERATION_TIMEOUT"), "5s"),

		JWTSecret:    k.String("AUTH_JWT_SECRET"),
		JWKSURL:      strings.TrimSpace(k.String("AUTH_JWKS_URL")),
		JWTIssuer:    strings.TrimSpace(k.String("AUTH_ISSUER")),
		JWTAudience:  strings.TrimSpace(k.String("AUTH_AUDIENCE")),
		AccessCookie: strings.TrimSpace(k.String("AUTH_ACCESS_COOKIE")),

		LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsEnabled:   parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
		MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "toko"),
		MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
		TracingEnabled:   parseBool(k.String("OBS_ENABLE_TRACING"), false),
		TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
		OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSampling:  parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		PprofEnabled:     parseBool(k.String("OBS_ENABLE_PPROF"), false),
		PprofUser:        k.String("SECURE_PPROF_BASIC_AUTH_USER"),
		PprofPass:        k.String("SECURE_PPROF_BASIC_AUTH_PASS"),
	}

	rate, err := pricing.ParseRate(valueOrDefault(k.String("CART_TAX_RATE"), "0.1"))
	if err != nil {
		return nil, fmt.Errorf("CART_TAX_RATE: %w", err)
	}
	cfg.TaxRate = rate

	fee, err := strconv.ParseInt(valueOrDefault(k.String("CART_SHIPPING_FEE"), "500"), 10, 64)
	if err != nil || fee < 0 {
		return nil, errors.New("CART_SHIPPING_FEE must be a non-negative integer")
	}
	cfg.ShippingFee = pricing.Money(fee)

	maxLine, err := strconv.Atoi(valueOrDefault(k.String("CART_MAX_LINE_AMOUNT"), "99"))
	if err != nil || maxLine < 1 || maxLine > cart.AmountCeiling {
		return nil, fmt.Errorf("CART_MAX_LINE_AMOUNT must be an integer between 1 and %d", cart.AmountCeiling)
	}
	cfg.MaxLineAmount = maxLine

	switch cfg.StoreDriver {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("STORE_DRIVER %q is not supported", cfg.StoreDriver)
	}
	if cfg.JWTSecret == "" && cfg.JWKSURL == "" {
		return nil, errors.New("AUTH_JWT_SECRET or AUTH_JWKS_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return parsed
	}
	return fallback
}

func parseFloat(value string, fallback float64) float64 {
	if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		return parsed
	}
	return fallback
}

// MustLoad behaves like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
// An empty value unsets the variable for the duration of the load.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]*string, len(env))
	for key := range env {
		if prev, ok := os.LookupEnv(key); ok {
			original[key] = &prev
		} else {
			original[key] = nil
		}
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]*string) error {
	var errs []string
	for key, value := range values {
		var err error
		if value == nil {
			err = os.Unsetenv(key)
		} else {
			err = os.Setenv(key, *value)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}

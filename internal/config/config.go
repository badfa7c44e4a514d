// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, storage, the Redis-backed cache and lock
// service, bearer tokens, websocket limits and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-im-core")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// RedisConfig locates the shared cache and lock service.
type RedisConfig struct {
	Addr     string // REDIS_ADDR
	Password string // REDIS_PASSWORD
	DB       int    // REDIS_DB
}

// JWTConfig defines bearer token verification.
type JWTConfig struct {
	Secret string        // JWT_SECRET (HS256)
	Issuer string        // JWT_ISSUER
	TTL    time.Duration // JWT_TTL, lifetime of tokens minted by the CLI
}

// LockConfig tunes the distributed guards.
type LockConfig struct {
	Lease         time.Duration // LOCK_LEASE; 0 renews with a watchdog
	PairWait      time.Duration // LOCK_PAIR_WAIT
	RetryInterval time.Duration // LOCK_RETRY_INTERVAL
}

// CacheConfig holds the TTL policy of the cached namespaces.
type CacheConfig struct {
	UserTTL     time.Duration // CACHE_USER_TTL
	ContactsTTL time.Duration // CACHE_CONTACTS_TTL
	AppliesTTL  time.Duration // CACHE_APPLIES_TTL
	Jitter      time.Duration // CACHE_JITTER
	NegativeTTL time.Duration // CACHE_NEGATIVE_TTL
}

// WSConfig tunes the websocket endpoint.
type WSConfig struct {
	WriteTimeout   time.Duration // WS_WRITE_TIMEOUT
	PongWait       time.Duration // WS_PONG_WAIT
	ReadLimit      int64         // WS_READ_LIMIT (bytes)
	AllowedOrigins []string      // WS_ALLOWED_ORIGINS
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath         string // SQLite path
	SnowflakeShard int64  // SNOWFLAKE_SHARD in [0,1023]
	ApplyListLimit int    // APPLY_LIST_LIMIT, cap of the received-applications view

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Infrastructure
	Redis RedisConfig
	JWT   JWTConfig
	Lock  LockConfig
	Cache CacheConfig
	WS    WSConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:         getenv("DB_PATH", "app.db"),
		SnowflakeShard: int64(getint("SNOWFLAKE_SHARD", 0)),
		ApplyListLimit: getint("APPLY_LIST_LIMIT", 200),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: getenv("JWT_SECRET", ""),
			Issuer: getenv("JWT_ISSUER", "go-im-core"),
			TTL:    getdur("JWT_TTL", 24*time.Hour),
		},
		Lock: LockConfig{
			Lease:         getdur("LOCK_LEASE", 10*time.Second),
			PairWait:      getdur("LOCK_PAIR_WAIT", 3*time.Second),
			RetryInterval: getdur("LOCK_RETRY_INTERVAL", 50*time.Millisecond),
		},
		Cache: CacheConfig{
			UserTTL:     getdur("CACHE_USER_TTL", 30*time.Minute),
			ContactsTTL: getdur("CACHE_CONTACTS_TTL", 30*time.Minute),
			AppliesTTL:  getdur("CACHE_APPLIES_TTL", 10*time.Minute),
			Jitter:      getdur("CACHE_JITTER", 5*time.Minute),
			NegativeTTL: getdur("CACHE_NEGATIVE_TTL", time.Minute),
		},
		WS: WSConfig{
			WriteTimeout:   getdur("WS_WRITE_TIMEOUT", 10*time.Second),
			PongWait:       getdur("WS_PONG_WAIT", 60*time.Second),
			ReadLimit:      int64(getint("WS_READ_LIMIT", 8<<10)),
			AllowedOrigins: splitCSV(getenv("WS_ALLOWED_ORIGINS", "")),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-im-core"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (cfg Config) Validate() error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("DB_PATH must not be empty")
	}
	if cfg.SnowflakeShard < 0 || cfg.SnowflakeShard > 1023 {
		return errors.New("SNOWFLAKE_SHARD must be between 0 and 1023")
	}
	if cfg.ApplyListLimit < 1 {
		return errors.New("APPLY_LIST_LIMIT must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return errors.New("REDIS_ADDR must not be empty")
	}
	if cfg.Redis.DB < 0 {
		return errors.New("REDIS_DB must be >= 0")
	}
	if cfg.JWT.Secret == "" && cfg.GinMode == "release" {
		return errors.New("JWT_SECRET is required in release mode")
	}
	if cfg.JWT.TTL <= 0 {
		return errors.New("JWT_TTL must be > 0")
	}
	if cfg.Lock.Lease < 0 || cfg.Lock.PairWait < 0 || cfg.Lock.RetryInterval <= 0 {
		return errors.New("LOCK_LEASE and LOCK_PAIR_WAIT must be >= 0, LOCK_RETRY_INTERVAL > 0")
	}
	c := cfg.Cache
	if c.UserTTL <= 0 || c.ContactsTTL <= 0 || c.AppliesTTL <= 0 || c.Jitter < 0 {
		return errors.New("cache TTLs must be > 0 and CACHE_JITTER >= 0")
	}
	if c.NegativeTTL <= 0 || c.NegativeTTL >= min(c.UserTTL, c.ContactsTTL, c.AppliesTTL) {
		return errors.New("CACHE_NEGATIVE_TTL must be > 0 and shorter than every cache TTL")
	}
	if cfg.WS.WriteTimeout <= 0 || cfg.WS.PongWait <= 0 || cfg.WS.ReadLimit <= 0 {
		return errors.New("WS_WRITE_TIMEOUT, WS_PONG_WAIT and WS_READ_LIMIT must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env              string        // dev, prod
	Version          string        // reported by health endpoints
	HTTPPort         string        // default 8080
	PostgresDSN      string        // optional, enables the event_logs sink
	PostgresMaxConns int32         // pool size for the event_logs sink
	RedisAddr        string        // host:port, empty disables the Redis locker
	RedisUsername    string        // redis username
	RedisPassword    string        // redis password
	RedisDB          int           // logical database, /N in REDIS_URL
	RedisTLS         bool          // rediss:// scheme
	LockTTL          time.Duration // how long a Redis doctor lock lives
	LockWait         time.Duration // how long a writer waits for a busy doctor
	ShutdownTimeout  time.Duration // graceful shutdown timeout
	RosterFile       string        // optional YAML roster, default roster otherwise
	OTLPEndpoint     string        // optional OTLP gRPC collector
	OTLPInsecure     bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		Version:          getEnv("APP_VERSION", "dev"),
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		PostgresDSN:      os.Getenv("POSTGRES_DSN"),
		PostgresMaxConns: int32(getInt("POSTGRES_MAX_CONNS", 4)),
		LockTTL:          getDuration("LOCK_TTL", 5*time.Second),
		LockWait:         getDuration("LOCK_WAIT", 2*time.Second),
		ShutdownTimeout:  getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		RosterFile:       os.Getenv("ROSTER_FILE"),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:     getBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}

	if _, err := strconv.Atoi(cfg.HTTPPort); err != nil {
		return Config{}, fmt.Errorf("invalid HTTP_PORT %q", cfg.HTTPPort)
	}
	if cfg.PostgresMaxConns <= 0 {
		return Config{}, errors.New("POSTGRES_MAX_CONNS must be > 0")
	}
	if cfg.LockTTL <= 0 {
		return Config{}, errors.New("LOCK_TTL must be > 0")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL != "" {
		if err := parseRedisURL(redisURL, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
	} else {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		cfg.RedisUsername = getEnv("REDIS_USERNAME", "")
		cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
		cfg.RedisDB = getInt("REDIS_DB", 0)
		cfg.RedisTLS = getBool("REDIS_TLS", false)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		fmt.Fprintf(os.Stderr, "invalid duration for %s=%q, using default %s\n", key, v, def)
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		fmt.Fprintf(os.Stderr, "invalid bool for %s=%q, using default %t\n", key, v, def)
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		fmt.Fprintf(os.Stderr, "invalid int for %s=%q, using default %d\n", key, v, def)
	}
	return def
}

// parseRedisURL parses redis[s]://user:password@host:port[/db]
func parseRedisURL(raw string, cfg *Config) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "redis":
	case "rediss":
		cfg.RedisTLS = true
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}

	cfg.RedisAddr = u.Host

	if u.User != nil {
		cfg.RedisUsername = u.User.Username()
		cfg.RedisPassword, _ = u.User.Password()
	}

	if db := strings.Trim(u.Path, "/"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid db %q", db)
		}
		cfg.RedisDB = n
	}

	return nil
}

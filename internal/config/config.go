package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	RevocationMemory = "memory"
	RevocationRedis  = "redis"
	RevocationBadger = "badger"
)

type Config struct {
	Port        int
	GinMode     string
	TLSCertFile string
	TLSKeyFile  string

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration

	RevocationBackend string
	RedisURL          string
	BadgerDir         string

	LogLevel  string
	LogFormat string

	// WSCloseGrace is how long a rejected socket gets to read the error frame
	// and the close message before it is torn down.
	WSCloseGrace  time.Duration
	WSAuthTimeout time.Duration

	HydrationInterval time.Duration
	// FirebaseCredentialsFile enables FCM delivery; pushes are only logged without it.
	FirebaseCredentialsFile string
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:               3000,
		GinMode:            "release",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 365 * 24 * time.Hour,
		RevocationBackend:  RevocationMemory,
		LogLevel:           "info",
		LogFormat:          "json",
		WSCloseGrace:       time.Second,
		WSAuthTimeout:      10 * time.Second,
		HydrationInterval:  5 * time.Minute,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.AccessTokenSecret = env.Getenv("ACCESS_TOKEN_SECRET")
	if cfg.AccessTokenSecret == "" {
		return Config{}, fmt.Errorf("ACCESS_TOKEN_SECRET is required")
	}
	cfg.RefreshTokenSecret = env.Getenv("REFRESH_TOKEN_SECRET")
	if cfg.RefreshTokenSecret == "" {
		return Config{}, fmt.Errorf("REFRESH_TOKEN_SECRET is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")

	var err error
	if cfg.AccessTokenExpiry, err = seconds(env, "ACCESS_TOKEN_EXPIRY_SECONDS", cfg.AccessTokenExpiry); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenExpiry, err = seconds(env, "REFRESH_TOKEN_EXPIRY_SECONDS", cfg.RefreshTokenExpiry); err != nil {
		return Config{}, err
	}
	if cfg.WSAuthTimeout, err = seconds(env, "WS_AUTH_TIMEOUT_SECONDS", cfg.WSAuthTimeout); err != nil {
		return Config{}, err
	}
	if cfg.HydrationInterval, err = seconds(env, "HYDRATION_INTERVAL_SECONDS", cfg.HydrationInterval); err != nil {
		return Config{}, err
	}

	if raw := env.Getenv("WS_CLOSE_GRACE_MS"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms < 0 {
			return Config{}, fmt.Errorf("invalid WS_CLOSE_GRACE_MS")
		}
		cfg.WSCloseGrace = time.Duration(ms) * time.Millisecond
	}

	if raw := env.Getenv("REVOCATION_BACKEND"); raw != "" {
		cfg.RevocationBackend = raw
	}
	cfg.RedisURL = env.Getenv("REDIS_URL")
	cfg.BadgerDir = env.Getenv("BADGER_DIR")
	switch cfg.RevocationBackend {
	case RevocationMemory:
	case RevocationRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL is required for the redis revocation backend")
		}
	case RevocationBadger:
		if cfg.BadgerDir == "" {
			return Config{}, fmt.Errorf("BADGER_DIR is required for the badger revocation backend")
		}
	default:
		return Config{}, fmt.Errorf("invalid REVOCATION_BACKEND %q", cfg.RevocationBackend)
	}

	cfg.FirebaseCredentialsFile = env.Getenv("FIREBASE_CREDENTIALS_FILE")

	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := env.Getenv("LOG_FORMAT"); raw != "" {
		if raw != "json" && raw != "console" {
			return Config{}, fmt.Errorf("invalid LOG_FORMAT")
		}
		cfg.LogFormat = raw
	}

	return cfg, nil
}

func seconds(env Env, key string, def time.Duration) (time.Duration, error) {
	raw := env.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return time.Duration(n) * time.Second, nil
}

package config

import (
	"testing"
	"time"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func baseEnv() mapEnv {
	return mapEnv{"ACCESS_TOKEN_SECRET": "a", "REFRESH_TOKEN_SECRET": "r"}
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(baseEnv())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("expected default gin mode release, got %q", cfg.GinMode)
	}
	if cfg.RevocationBackend != RevocationMemory {
		t.Fatalf("expected memory backend, got %q", cfg.RevocationBackend)
	}
	if cfg.AccessTokenExpiry != 15*time.Minute {
		t.Fatalf("unexpected access expiry %v", cfg.AccessTokenExpiry)
	}
	if cfg.WSCloseGrace != time.Second {
		t.Fatalf("unexpected close grace %v", cfg.WSCloseGrace)
	}
	if cfg.FirebaseCredentialsFile != "" {
		t.Fatalf("expected push delivery off by default, got %q", cfg.FirebaseCredentialsFile)
	}
}

func TestLoadConfigFromEnv_MissingSecrets(t *testing.T) {
	if _, err := LoadConfigFromEnv(mapEnv{}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := LoadConfigFromEnv(mapEnv{"ACCESS_TOKEN_SECRET": "a"}); err == nil {
		t.Fatalf("expected error for missing refresh secret")
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "1234"
	env["ACCESS_TOKEN_EXPIRY_SECONDS"] = "60"
	env["WS_CLOSE_GRACE_MS"] = "250"
	env["LOG_FORMAT"] = "console"
	env["FIREBASE_CREDENTIALS_FILE"] = "/etc/recipe/fcm.json"
	cfg, err := LoadConfigFromEnv(env)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 1234 {
		t.Fatalf("expected port 1234, got %d", cfg.Port)
	}
	if cfg.AccessTokenExpiry != time.Minute {
		t.Fatalf("expected 1m, got %v", cfg.AccessTokenExpiry)
	}
	if cfg.WSCloseGrace != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", cfg.WSCloseGrace)
	}
	if cfg.LogFormat != "console" {
		t.Fatalf("expected console, got %q", cfg.LogFormat)
	}
	if cfg.FirebaseCredentialsFile != "/etc/recipe/fcm.json" {
		t.Fatalf("unexpected credentials file %q", cfg.FirebaseCredentialsFile)
	}
}

func TestLoadConfigFromEnv_RevocationBackend(t *testing.T) {
	env := baseEnv()
	env["REVOCATION_BACKEND"] = "redis"
	if _, err := LoadConfigFromEnv(env); err == nil {
		t.Fatalf("expected error without REDIS_URL")
	}
	env["REDIS_URL"] = "redis://localhost:6379/0"
	if _, err := LoadConfigFromEnv(env); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	env["REVOCATION_BACKEND"] = "etcd"
	if _, err := LoadConfigFromEnv(env); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestLoadConfigFromEnv_InvalidValues(t *testing.T) {
	for key, val := range map[string]string{
		"PORT":                        "70000",
		"ACCESS_TOKEN_EXPIRY_SECONDS": "-1",
		"WS_CLOSE_GRACE_MS":           "x",
		"LOG_FORMAT":                  "xml",
	} {
		env := baseEnv()
		env[key] = val
		if _, err := LoadConfigFromEnv(env); err == nil {
			t.Fatalf("expected error for %s=%s", key, val)
		}
	}
}

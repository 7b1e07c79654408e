package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret-32-characters-long!!")
	t.Setenv("ENV", "development")
}

func TestLoad_GuardDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Guard.Store != StoreMemory {
		t.Errorf("Store: got %q, want %q", cfg.Guard.Store, StoreMemory)
	}
	if cfg.Guard.FailureThreshold != 5 {
		t.Errorf("FailureThreshold: got %d, want 5", cfg.Guard.FailureThreshold)
	}
	if cfg.Guard.BlockDuration != 15*time.Minute {
		t.Errorf("BlockDuration: got %v, want 15m", cfg.Guard.BlockDuration)
	}
	if cfg.Guard.AttemptsTTL != 15*time.Minute {
		t.Errorf("AttemptsTTL: got %v, want 15m", cfg.Guard.AttemptsTTL)
	}
}

func TestLoad_GuardCustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GUARD_STORE", "SQLite")
	t.Setenv("GUARD_SQLITE_PATH", "/var/lib/shopguard/guard.db")
	t.Setenv("GUARD_FAILURE_THRESHOLD", "3")
	t.Setenv("GUARD_BLOCK_DURATION", "1h")
	t.Setenv("GUARD_ATTEMPTS_TTL", "10m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Guard.Store != StoreSQLite {
		t.Errorf("Store: got %q, want %q", cfg.Guard.Store, StoreSQLite)
	}
	if cfg.Guard.SQLitePath != "/var/lib/shopguard/guard.db" {
		t.Errorf("SQLitePath: got %q", cfg.Guard.SQLitePath)
	}
	if cfg.Guard.FailureThreshold != 3 || cfg.Guard.BlockDuration != time.Hour || cfg.Guard.AttemptsTTL != 10*time.Minute {
		t.Errorf("unexpected guard config: %+v", cfg.Guard)
	}
}

func TestLoad_RejectsInvalidGuardConfig(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown store", "GUARD_STORE", "redis"},
		{"zero threshold", "GUARD_FAILURE_THRESHOLD", "0"},
		{"negative block", "GUARD_BLOCK_DURATION", "-5m"},
		{"zero window", "GUARD_ATTEMPTS_TTL", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%s succeeded, want error", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_PostgresStoreRequiresPassword(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GUARD_STORE", "postgres")
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "DB_PASSWORD") {
		t.Fatalf("Load() = %v, want DB_PASSWORD error", err)
	}

	t.Setenv("DB_PASSWORD", "hunter2")
	if _, err := Load(); err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
}

func TestLoad_MemoryStoreNeedsNoDatabase(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_PASSWORD", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if cfg.UsesPostgres() {
		t.Error("UsesPostgres: got true, want false")
	}

	t.Setenv("DB_PASSWORD", "hunter2")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if !cfg.UsesPostgres() {
		t.Error("UsesPostgres with DB_PASSWORD: got false, want true")
	}
}

func TestLoad_NotifyRequiresFromAddress(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LOCKOUT_NOTIFY_ENABLED", "true")
	t.Setenv("EMAIL_FROM_ADDRESS", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() succeeded, want EMAIL_FROM_ADDRESS error")
	}

	t.Setenv("EMAIL_FROM_ADDRESS", "security@shop.example")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if !cfg.Email.LockoutNotifyEnabled {
		t.Error("LockoutNotifyEnabled: got false, want true")
	}
}

func TestLoad_TrustedProxies(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, ,192.168.1.1/32")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	want := []string{"10.0.0.0/8", "192.168.1.1/32"}
	if strings.Join(cfg.Auth.TrustedProxies, "|") != strings.Join(want, "|") {
		t.Errorf("TrustedProxies: got %v, want %v", cfg.Auth.TrustedProxies, want)
	}
}

func TestServerConfig_Timeouts(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_READ_TIMEOUT", "30s")
	t.Setenv("SERVER_IDLE_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"ReadTimeout", cfg.Server.ReadTimeout, 30 * time.Second},
		{"WriteTimeout", cfg.Server.WriteTimeout, 15 * time.Second},
		{"IdleTimeout", cfg.Server.IdleTimeout, 60 * time.Second},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}
}

func TestValidateJWTSecret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		env     string
		wantErr bool
	}{
		{"dev length ok", "sixteen-chars-ok", "development", false},
		{"dev too short", "short", "development", true},
		{"prod needs 32", "sixteen-chars-ok", "production", true},
		{"prod ok", "a-production-secret-of-32-chars!", "production", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateJWTSecret(tt.secret, tt.env)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateJWTSecret(%q, %q) = %v, wantErr %v", tt.secret, tt.env, err, tt.wantErr)
			}
		})
	}
}

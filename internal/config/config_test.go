package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != "8083" {
		t.Errorf("expected port 8083, got %s", cfg.Server.Port)
	}
	if cfg.Engine.Workers != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.Engine.Workers)
	}
	if cfg.Engine.Capacity != 100 {
		t.Errorf("expected capacity 100, got %d", cfg.Engine.Capacity)
	}
	if cfg.Engine.TTLHours != 24 {
		t.Errorf("expected 24h retention, got %d", cfg.Engine.TTLHours)
	}
	if cfg.Engine.SweepBatch != 50 {
		t.Errorf("expected sweep batch 50, got %d", cfg.Engine.SweepBatch)
	}
	if cfg.Upload.MaxFileSizeMB != 100 {
		t.Errorf("expected 100MB upload limit, got %d", cfg.Upload.MaxFileSizeMB)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ENGINE_WORKERS", "4")
	t.Setenv("CONVERTER_SERVICE_URL", "http://converter:8084")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Engine.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Engine.Workers)
	}
	if cfg.Converter.ServiceURL != "http://converter:8084" {
		t.Errorf("expected converter URL set, got %s", cfg.Converter.ServiceURL)
	}
}

func TestLoad_SecretFile(t *testing.T) {
	secretPath := filepath.Join(t.TempDir(), "r2_access_key")
	if err := os.WriteFile(secretPath, []byte("key-from-file\n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	t.Setenv("R2_ACCESS_KEY_ID_FILE", secretPath)
	t.Cleanup(func() { os.Unsetenv("R2_ACCESS_KEY_ID") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.R2.AccessKeyID != "key-from-file" {
		t.Errorf("expected secret from file, got %q", cfg.R2.AccessKeyID)
	}
}

func TestLoad_DirectEnvBeatsSecretFile(t *testing.T) {
	secretPath := filepath.Join(t.TempDir(), "redis_password")
	if err := os.WriteFile(secretPath, []byte("from-file"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	t.Setenv("REDIS_PASSWORD", "direct")
	t.Setenv("REDIS_PASSWORD_FILE", secretPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Redis.Password != "direct" {
		t.Errorf("direct env not preferred: %q", cfg.Redis.Password)
	}
}

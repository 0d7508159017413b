package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// TestLoadConfig_Defaults tests that an empty file yields defaults.
func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("ListenAddress = %q, want default", cfg.Server.ListenAddress)
	}
	if cfg.Export.MaxFileSizeMB != DefaultMaxFileSizeMB {
		t.Errorf("MaxFileSizeMB = %d, want %d", cfg.Export.MaxFileSizeMB, DefaultMaxFileSizeMB)
	}
	if cfg.Export.TaskTimeout != DefaultTaskTimeout {
		t.Errorf("TaskTimeout = %s, want %s", cfg.Export.TaskTimeout, DefaultTaskTimeout)
	}
	if cfg.Export.PerUserTaskLimit != DefaultPerUserTaskLimit {
		t.Errorf("PerUserTaskLimit = %d, want %d", cfg.Export.PerUserTaskLimit, DefaultPerUserTaskLimit)
	}
	if cfg.Export.RetentionDays != DefaultRetentionDays {
		t.Errorf("RetentionDays = %d, want %d", cfg.Export.RetentionDays, DefaultRetentionDays)
	}
}

// TestLoadConfig_Values tests YAML parsing into the right fields.
func TestLoadConfig_Values(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9000"
export:
  dir: /tmp/exports
  max_file_size_mb: 50
  task_timeout: 2m
  per_user_task_limit: 5
database:
  conn_store_path: /tmp/conns.db
  command_timeout: 10s
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Export.MaxFileSizeMB != 50 {
		t.Errorf("MaxFileSizeMB = %d, want 50", cfg.Export.MaxFileSizeMB)
	}
	if cfg.Export.MaxFileSizeBytes() != 50*1024*1024 {
		t.Errorf("MaxFileSizeBytes = %d", cfg.Export.MaxFileSizeBytes())
	}
	if cfg.Export.TaskTimeout != 2*time.Minute {
		t.Errorf("TaskTimeout = %s, want 2m", cfg.Export.TaskTimeout)
	}
	if cfg.Export.PerUserTaskLimit != 5 {
		t.Errorf("PerUserTaskLimit = %d, want 5", cfg.Export.PerUserTaskLimit)
	}
	if cfg.Database.CommandTimeout != 10*time.Second {
		t.Errorf("CommandTimeout = %s, want 10s", cfg.Database.CommandTimeout)
	}
}

// TestLoadConfigWithEnvOverrides tests that environment variables win.
func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
export:
  max_file_size_mb: 50
`)

	t.Setenv("TYCHO_EXPORT_MAX_FILE_SIZE_MB", "10")
	t.Setenv("TYCHO_EXPORT_PER_USER_TASK_LIMIT", "1")
	t.Setenv("TYCHO_SERVER_LISTEN_ADDRESS", "127.0.0.1:7777")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() failed: %v", err)
	}

	if cfg.Export.MaxFileSizeMB != 10 {
		t.Errorf("MaxFileSizeMB = %d, want env override 10", cfg.Export.MaxFileSizeMB)
	}
	if cfg.Export.PerUserTaskLimit != 1 {
		t.Errorf("PerUserTaskLimit = %d, want 1", cfg.Export.PerUserTaskLimit)
	}
	if cfg.Server.ListenAddress != "127.0.0.1:7777" {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
}

// TestValidate tests validation failures.
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"negative max file size", func(c *Config) { c.Export.MaxFileSizeMB = -1 }, "export.max_file_size_mb"},
		{"zero task limit", func(c *Config) { c.Export.PerUserTaskLimit = -3 }, "export.per_user_task_limit"},
		{"bad cron schedule", func(c *Config) { c.Export.SweepSchedule = "not a cron" }, "export.sweep_schedule"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"empty listen address", func(c *Config) { c.Server.ListenAddress = "" }, "server.listen_address"},
		{"pool bounds inverted", func(c *Config) { c.Database.MinPoolSize = 10; c.Database.MaxPoolSize = 2 }, "database.max_pool_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			verr, ok := err.(ValidationError)
			if !ok {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error for field %s, got %v", tt.field, verr.Errors)
			}
		})
	}
}

// TestLoadConfig_MissingFile tests the error path.
func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

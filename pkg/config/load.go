package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults,
// and validates the result. Environment variables are not consulted;
// use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides on top. Variables follow the
// convention TYCHO_SECTION_FIELD (e.g. TYCHO_SERVER_LISTEN_ADDRESS)
// and always win over file values.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("TYCHO_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("TYCHO_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("TYCHO_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("TYCHO_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	// Database overrides
	if val := os.Getenv("TYCHO_DATABASE_CONN_STORE_PATH"); val != "" {
		cfg.Database.ConnStorePath = val
	}
	if val := os.Getenv("TYCHO_DATABASE_MAX_POOL_SIZE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Database.MaxPoolSize = i
		}
	}
	if val := os.Getenv("TYCHO_DATABASE_COMMAND_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Database.CommandTimeout = d
		}
	}

	// Export overrides
	if val := os.Getenv("TYCHO_EXPORT_DIR"); val != "" {
		cfg.Export.Dir = val
	}
	if val := os.Getenv("TYCHO_EXPORT_MAX_FILE_SIZE_MB"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Export.MaxFileSizeMB = i
		}
	}
	if val := os.Getenv("TYCHO_EXPORT_TASK_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Export.TaskTimeout = d
		}
	}
	if val := os.Getenv("TYCHO_EXPORT_PER_USER_TASK_LIMIT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Export.PerUserTaskLimit = i
		}
	}
	if val := os.Getenv("TYCHO_EXPORT_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Export.RetentionDays = i
		}
	}
	if val := os.Getenv("TYCHO_EXPORT_SWEEP_SCHEDULE"); val != "" {
		cfg.Export.SweepSchedule = val
	}

	// Audit overrides
	if val := os.Getenv("TYCHO_AUDIT_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Audit.Enabled = b
		}
	}
	if val := os.Getenv("TYCHO_AUDIT_PATH"); val != "" {
		cfg.Audit.Path = val
	}

	// Logging overrides
	if val := os.Getenv("TYCHO_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("TYCHO_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
}

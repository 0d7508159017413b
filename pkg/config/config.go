// Package config loads, validates, and watches the service
// configuration.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Export   ExportConfig   `yaml:"export"`
	Audit    AuditConfig    `yaml:"audit"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	ListenAddress   string        `yaml:"listen_address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig configures cross-origin resource sharing.
type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	ExposedHeaders   []string `yaml:"exposed_headers"`
	MaxAge           int      `yaml:"max_age"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

// DatabaseConfig configures the connection store and pool sizing
// applied to registered databases.
type DatabaseConfig struct {
	// ConnStorePath is the SQLite file holding registered connections.
	ConnStorePath string `yaml:"conn_store_path"`

	MinPoolSize    int           `yaml:"min_pool_size"`
	MaxPoolSize    int           `yaml:"max_pool_size"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// ExportConfig configures the export task subsystem.
type ExportConfig struct {
	// Dir is where export files are written and served from.
	Dir string `yaml:"dir"`

	// MaxFileSizeMB caps the estimated and actual export file size.
	MaxFileSizeMB int64 `yaml:"max_file_size_mb"`

	// TaskTimeout bounds a single export run.
	TaskTimeout time.Duration `yaml:"task_timeout"`

	// PerUserTaskLimit is the number of concurrently active export
	// tasks one user may hold.
	PerUserTaskLimit int `yaml:"per_user_task_limit"`

	// RetentionDays is how long export files are kept before the
	// scheduled sweep removes them.
	RetentionDays int `yaml:"retention_days"`

	// SweepSchedule is the cron expression for the retention sweep.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// MaxFileSizeBytes returns the size cap in bytes.
func (c ExportConfig) MaxFileSizeBytes() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

// AuditConfig configures the audit store.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is json or text.
	Format string `yaml:"format"`
}

package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// CORS defaults
	DefaultCORSEnabled = true
	DefaultCORSMaxAge  = 3600

	// Database defaults
	DefaultConnStorePath  = "data/connections.db"
	DefaultMinPoolSize    = 1
	DefaultMaxPoolSize    = 10
	DefaultCommandTimeout = 30 * time.Second

	// Export defaults
	DefaultExportDir        = "data/exports"
	DefaultMaxFileSizeMB    = int64(100)
	DefaultTaskTimeout      = 300 * time.Second
	DefaultPerUserTaskLimit = 3
	DefaultRetentionDays    = 7
	DefaultSweepSchedule    = "0 3 * * *"

	// Audit defaults
	DefaultAuditEnabled = true
	DefaultAuditPath    = "data/audit.db"

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills unset fields with default values.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.CORS.AllowedOrigins == nil {
		cfg.Server.CORS.Enabled = DefaultCORSEnabled
		cfg.Server.CORS.AllowedOrigins = []string{"*"}
	}
	if cfg.Server.CORS.AllowedMethods == nil {
		cfg.Server.CORS.AllowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if cfg.Server.CORS.AllowedHeaders == nil {
		cfg.Server.CORS.AllowedHeaders = []string{"Content-Type", "X-Request-ID", "X-User-ID"}
	}
	if cfg.Server.CORS.ExposedHeaders == nil {
		cfg.Server.CORS.ExposedHeaders = []string{"X-Request-ID", "Content-Disposition"}
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = DefaultCORSMaxAge
	}

	if cfg.Database.ConnStorePath == "" {
		cfg.Database.ConnStorePath = DefaultConnStorePath
	}
	if cfg.Database.MinPoolSize == 0 {
		cfg.Database.MinPoolSize = DefaultMinPoolSize
	}
	if cfg.Database.MaxPoolSize == 0 {
		cfg.Database.MaxPoolSize = DefaultMaxPoolSize
	}
	if cfg.Database.CommandTimeout == 0 {
		cfg.Database.CommandTimeout = DefaultCommandTimeout
	}

	if cfg.Export.Dir == "" {
		cfg.Export.Dir = DefaultExportDir
	}
	if cfg.Export.MaxFileSizeMB == 0 {
		cfg.Export.MaxFileSizeMB = DefaultMaxFileSizeMB
	}
	if cfg.Export.TaskTimeout == 0 {
		cfg.Export.TaskTimeout = DefaultTaskTimeout
	}
	if cfg.Export.PerUserTaskLimit == 0 {
		cfg.Export.PerUserTaskLimit = DefaultPerUserTaskLimit
	}
	if cfg.Export.RetentionDays == 0 {
		cfg.Export.RetentionDays = DefaultRetentionDays
	}
	if cfg.Export.SweepSchedule == "" {
		cfg.Export.SweepSchedule = DefaultSweepSchedule
	}

	if cfg.Audit.Path == "" {
		cfg.Audit.Enabled = DefaultAuditEnabled
		cfg.Audit.Path = DefaultAuditPath
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
}

// DefaultConfig returns a configuration with every field set to its
// default.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

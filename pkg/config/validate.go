package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for one configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g. "export.dir").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every validation failure in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the whole configuration. All failures are collected
// and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateDatabase(&cfg.Database)...)
	errs = append(errs, validateExport(&cfg.Export)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError
	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{"server.listen_address", "must not be empty"})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{"server.read_timeout", "must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{"server.write_timeout", "must not be negative"})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{"server.max_header_bytes", "must not be negative"})
	}
	return errs
}

func validateDatabase(cfg *DatabaseConfig) []FieldError {
	var errs []FieldError
	if cfg.ConnStorePath == "" {
		errs = append(errs, FieldError{"database.conn_store_path", "must not be empty"})
	}
	if cfg.MinPoolSize < 0 {
		errs = append(errs, FieldError{"database.min_pool_size", "must not be negative"})
	}
	if cfg.MaxPoolSize < cfg.MinPoolSize {
		errs = append(errs, FieldError{"database.max_pool_size", "must be at least min_pool_size"})
	}
	if cfg.CommandTimeout <= 0 {
		errs = append(errs, FieldError{"database.command_timeout", "must be positive"})
	}
	return errs
}

func validateExport(cfg *ExportConfig) []FieldError {
	var errs []FieldError
	if cfg.Dir == "" {
		errs = append(errs, FieldError{"export.dir", "must not be empty"})
	}
	if cfg.MaxFileSizeMB <= 0 {
		errs = append(errs, FieldError{"export.max_file_size_mb", "must be positive"})
	}
	if cfg.TaskTimeout <= 0 {
		errs = append(errs, FieldError{"export.task_timeout", "must be positive"})
	}
	if cfg.PerUserTaskLimit <= 0 {
		errs = append(errs, FieldError{"export.per_user_task_limit", "must be positive"})
	}
	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{"export.retention_days", "must not be negative"})
	}
	if cfg.SweepSchedule != "" {
		if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
			errs = append(errs, FieldError{"export.sweep_schedule",
				fmt.Sprintf("invalid cron expression: %v", err)})
		}
	}
	return errs
}

func validateLogging(cfg *LoggingConfig) []FieldError {
	var errs []FieldError
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{"logging.level", "must be one of debug, info, warn, error"})
	}
	switch cfg.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{"logging.format", "must be json or text"})
	}
	return errs
}

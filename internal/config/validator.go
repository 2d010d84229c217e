package config

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateState(&cfg.State)
	v.validateEngine(&cfg.Engine)
	v.validateCursor(&cfg.Cursor)
	v.validateServer(&cfg.Server)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(cfg.Level)] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"auto": true, "text": true, "json": true,
	}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}

	for i, p := range cfg.RedactPatterns {
		if _, err := regexp.Compile(p); err != nil {
			v.addError(fmt.Sprintf("log.redact_patterns[%d]", i), p, "invalid regular expression")
		}
	}
}

func (v *Validator) validateState(cfg *StateConfig) {
	if strings.TrimSpace(cfg.Path) == "" {
		v.addError("state.path", cfg.Path, "required")
		return
	}
	if strings.ContainsRune(cfg.Path, 0) {
		v.addError("state.path", cfg.Path, "invalid file path")
	}
}

func (v *Validator) validateEngine(cfg *EngineConfig) {
	if cfg.MaxParallel < 0 {
		v.addError("engine.max_parallel", cfg.MaxParallel, "must be >= 0")
	}
	v.validateDuration("engine.task_timeout", cfg.TaskTimeout)
}

func (v *Validator) validateCursor(cfg *CursorConfig) {
	if strings.TrimSpace(cfg.Path) == "" {
		v.addError("cursor.path", cfg.Path, "required")
	}
	v.validateDuration("cursor.timeout", cfg.Timeout)
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		v.addError("server.addr", cfg.Addr, "must be host:port")
	}
}

// validateDuration accepts an empty value as "no limit".
func (v *Validator) validateDuration(field, value string) {
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		v.addError(field, value, "invalid duration format")
		return
	}
	if d < 0 {
		v.addError(field, value, "must not be negative")
	}
}

// ValidateConfig is a convenience function to validate a config.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

package config

import (
	"time"

	"github.com/weft-dev/weft/internal/adapters/cli"
	"github.com/weft-dev/weft/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	State  StateConfig  `mapstructure:"state" yaml:"state"`
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`
	Cursor CursorConfig `mapstructure:"cursor" yaml:"cursor"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level          string   `mapstructure:"level" yaml:"level"`
	Format         string   `mapstructure:"format" yaml:"format"`
	RedactPatterns []string `mapstructure:"redact_patterns" yaml:"redact_patterns,omitempty"`
}

// StateConfig configures the durable store.
type StateConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// EngineConfig configures workflow execution.
type EngineConfig struct {
	// MaxParallel bounds concurrent tasks per round; 0 means unbounded.
	MaxParallel int    `mapstructure:"max_parallel" yaml:"max_parallel"`
	TaskTimeout string `mapstructure:"task_timeout" yaml:"task_timeout"`
}

// CursorConfig holds the cursor-agent defaults every cursor_agent task
// inherits.
type CursorConfig struct {
	Path    string `mapstructure:"path" yaml:"path"`
	Model   string `mapstructure:"model" yaml:"model,omitempty"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Timeout string `mapstructure:"timeout" yaml:"timeout,omitempty"`
	Force   bool   `mapstructure:"force" yaml:"force,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string   `mapstructure:"addr" yaml:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins,omitempty"`
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = c.Log.Format
	cfg.RedactPatterns = c.Log.RedactPatterns
	return cfg
}

// TaskTimeout parses engine.task_timeout. Empty or invalid values yield 0.
func (c *Config) TaskTimeout() time.Duration {
	d, err := time.ParseDuration(c.Engine.TaskTimeout)
	if err != nil {
		return 0
	}
	return d
}

// CursorDefaults converts the cursor section for the agent adapter.
func (c *Config) CursorDefaults() cli.CursorConfig {
	return cli.CursorConfig{
		Path:    c.Cursor.Path,
		Model:   c.Cursor.Model,
		APIKey:  c.Cursor.APIKey,
		Timeout: c.Cursor.Timeout,
		Force:   c.Cursor.Force,
	}
}

package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// isolate points HOME and the working directory at empty temp dirs so no
// real config file is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoader_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "auto", cfg.Log.Format)
	assert.Equal(t, filepath.Join(".weft", "state", "weft.db"), cfg.State.Path)
	assert.Equal(t, 0, cfg.Engine.MaxParallel)
	assert.Equal(t, 30*time.Minute, cfg.TaskTimeout())
	assert.Equal(t, "cursor-agent", cfg.Cursor.Path)
	assert.Equal(t, "127.0.0.1:7420", cfg.Server.Addr)
	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoader_ProjectOverridesGlobal(t *testing.T) {
	dir := isolate(t)

	global, err := GlobalConfigPath()
	require.NoError(t, err)
	require.NoError(t, AtomicWrite(global, []byte("log:\n  level: debug\nengine:\n  max_parallel: 2\n")))
	require.NoError(t, AtomicWrite(filepath.Join(dir, ".weft", "config.yaml"), []byte("engine:\n  max_parallel: 4\n")))

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level, "global value survives where the project is silent")
	assert.Equal(t, 4, cfg.Engine.MaxParallel, "project value wins")
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, AtomicWrite(filepath.Join(dir, ".weft", "config.yaml"), []byte("server:\n  addr: 127.0.0.1:9000\n")))
	t.Setenv("WEFT_SERVER_ADDR", "0.0.0.0:8080")
	t.Setenv("WEFT_CURSOR_MODEL", "gpt-5")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, "gpt-5", cfg.CursorDefaults().Model)
}

func TestLoader_ExplicitFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("state:\n  path: /tmp/x.db\n"), 0o600))

	loader := NewLoader().WithConfigFile(path)
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.State.Path)
	assert.Equal(t, path, loader.ConfigFile())

	_, err = NewLoader().WithConfigFile(filepath.Join(dir, "missing.yaml")).Load()
	assert.Error(t, err)
}

func TestLoader_MalformedProjectFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, AtomicWrite(filepath.Join(dir, ".weft", "config.yaml"), []byte("log: [unclosed\n")))

	_, err := NewLoader().Load()
	assert.Error(t, err)
}

func TestValidator(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Log:    LogConfig{Level: "info", Format: "auto"},
			State:  StateConfig{Path: ".weft/state/weft.db"},
			Engine: EngineConfig{TaskTimeout: "30m"},
			Cursor: CursorConfig{Path: "cursor-agent"},
			Server: ServerConfig{Addr: "127.0.0.1:7420"},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad redact pattern", func(c *Config) { c.Log.RedactPatterns = []string{"[x"} }, "log.redact_patterns[0]"},
		{"empty state path", func(c *Config) { c.State.Path = " " }, "state.path"},
		{"negative parallel", func(c *Config) { c.Engine.MaxParallel = -1 }, "engine.max_parallel"},
		{"bad timeout", func(c *Config) { c.Engine.TaskTimeout = "soon" }, "engine.task_timeout"},
		{"negative cursor timeout", func(c *Config) { c.Cursor.Timeout = "-1s" }, "cursor.timeout"},
		{"empty cursor path", func(c *Config) { c.Cursor.Path = "" }, "cursor.path"},
		{"bad addr", func(c *Config) { c.Server.Addr = "localhost" }, "server.addr"},
	}

	require.NoError(t, ValidateConfig(valid()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			require.Error(t, err)
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidator_CollectsAll(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&Config{})
	require.Error(t, err)
	assert.True(t, v.Errors().HasErrors())
	assert.GreaterOrEqual(t, len(v.Errors()), 4)
}

func TestDefaultConfigYAML_MatchesDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(DefaultConfigYAML), &cfg))
	assert.NoError(t, ValidateConfig(&cfg))
	assert.Equal(t, ".weft/state/weft.db", cfg.State.Path)
	assert.Equal(t, "30m", cfg.Engine.TaskTimeout)
	assert.Equal(t, "cursor-agent", cfg.Cursor.Path)
}

func TestConfig_Conversions(t *testing.T) {
	cfg := &Config{
		Log:    LogConfig{Level: "debug", Format: "json", RedactPatterns: []string{"x"}},
		Engine: EngineConfig{TaskTimeout: "bogus"},
		Cursor: CursorConfig{Path: "/bin/agent", Model: "m", Timeout: "1m", Force: true},
	}
	lc := cfg.Logging()
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "json", lc.Format)
	assert.Equal(t, []string{"x"}, lc.RedactPatterns)
	assert.Zero(t, cfg.TaskTimeout())

	cd := cfg.CursorDefaults()
	assert.Equal(t, "/bin/agent", cd.Path)
	assert.Equal(t, "m", cd.Model)
	assert.True(t, cd.Force)
}

func TestAtomicWrite(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	require.NoError(t, AtomicWrite(path, []byte("a: 1\n")))
	require.NoError(t, AtomicWrite(path, []byte("a: 2\n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a: 2\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "."), "temp file %s left behind", e.Name())
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestAtomicWrite_KeepsPermissions(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	require.NoError(t, AtomicWrite(path, []byte("new")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestEnsureConfigFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".weft", "config.yaml")

	created, err := EnsureConfigFile(path)
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))
	created, err = EnsureConfigFile(path)
	require.NoError(t, err)
	assert.False(t, created)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "warn", "existing file is never overwritten")
}

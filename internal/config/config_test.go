package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/collineage/pkg/lineage"
)

// chdir switches into dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		ResetConfig()
	})
}

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("mode", "", "")
	fs.Int("max-depth", 0, "")
	fs.StringSlice("functions", nil, "")
	fs.StringP("output", "o", "", "")
	fs.BoolP("verbose", "v", false, "")
	fs.String("state", "", "")
	fs.String("addr", "", "")
	fs.StringSlice("origins", nil, "")
	return fs
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultMode, cfg.Mode)
	assert.Equal(t, 32, cfg.MaxDepth)
	assert.Equal(t, lineage.DefaultFunctions, cfg.Functions)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, DefaultStateFile, cfg.StatePath)
	assert.Equal(t, int64(DefaultMaxInputBytes), cfg.MaxInputBytes)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, DefaultReadTimeout, cfg.Server.ReadTimeout)
	assert.Empty(t, GetConfigFileUsed())
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	content := `mode: deep
max_depth: 8
functions: [sum, coalesce]
output: json
server:
  addr: ":9000"
  read_timeout: 3s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o600))

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "deep", cfg.Mode)
	assert.Equal(t, 8, cfg.MaxDepth)
	assert.Equal(t, []string{"sum", "coalesce"}, cfg.Functions)
	assert.Equal(t, "json", cfg.Output)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, ConfigFileName, GetConfigFileUsed())
}

func TestLoadConfig_AltFileName(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileNameAlt), []byte("mode: deep\n"), 0o600))

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "deep", cfg.Mode)
	assert.Equal(t, ConfigFileNameAlt, GetConfigFileUsed())
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	chdir(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output: csv\n"), 0o600))

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "csv", cfg.Output)
	assert.Equal(t, path, GetConfigFileUsed())
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoadConfig_Env(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("mode: shallow\nmax_depth: 4\n"), 0o600))

	t.Setenv("COLLINEAGE_MODE", "deep")
	t.Setenv("COLLINEAGE_FUNCTIONS", "sum, avg ,")
	t.Setenv("COLLINEAGE_SERVER_ADDR", ":7000")
	t.Setenv("COLLINEAGE_SERVER_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "deep", cfg.Mode, "env overrides file")
	assert.Equal(t, 4, cfg.MaxDepth, "file value kept when env is unset")
	assert.Equal(t, []string{"sum", "avg"}, cfg.Functions)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoadConfig_FlagPrecedence(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("COLLINEAGE_MODE", "shallow")
	t.Setenv("COLLINEAGE_OUTPUT", "yaml")

	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--mode", "deep", "--max-depth", "5", "--state", "h.db", "--addr", ":1234"}))

	cfg, err := LoadConfig("", fs)
	require.NoError(t, err)

	assert.Equal(t, "deep", cfg.Mode, "flag overrides env")
	assert.Equal(t, 5, cfg.MaxDepth)
	assert.Equal(t, "yaml", cfg.Output, "unset flag does not override env")
	assert.Equal(t, "h.db", cfg.StatePath)
	assert.Equal(t, ":1234", cfg.Server.Addr)
}

func TestLoadConfig_UnchangedFlagsKeepDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	fs := newFlags()
	require.NoError(t, fs.Parse(nil))

	cfg, err := LoadConfig("", fs)
	require.NoError(t, err)
	assert.Equal(t, DefaultMode, cfg.Mode)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, lineage.DefaultFunctions, cfg.Functions)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("mode: sideways\n"), 0o600))

	_, err := LoadConfig("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ConfigFileName)
	assert.Contains(t, err.Error(), "sideways")
}

func TestLoadConfig_ExpandsStatePath(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HISTORY_DIR", "/var/lib/collineage")
	t.Setenv("COLLINEAGE_STATE_PATH", "${HISTORY_DIR}/history.db")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/collineage/history.db", cfg.StatePath)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errSubstr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "empty mode is shallow", mutate: func(c *Config) { c.Mode = "" }},
		{name: "unknown mode", mutate: func(c *Config) { c.Mode = "wide" }, errSubstr: "unknown lineage mode"},
		{name: "zero depth", mutate: func(c *Config) { c.MaxDepth = 0 }, errSubstr: "max_depth must be positive"},
		{name: "unknown output", mutate: func(c *Config) { c.Output = "pdf" }, errSubstr: "unknown output format"},
		{name: "zero input limit", mutate: func(c *Config) { c.MaxInputBytes = 0 }, errSubstr: "max_input_bytes"},
		{name: "empty addr", mutate: func(c *Config) { c.Server.Addr = "" }, errSubstr: "server.addr is required"},
		{name: "negative timeout", mutate: func(c *Config) { c.Server.ReadTimeout = -time.Second }, errSubstr: "read_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestConfig_NewExtractor(t *testing.T) {
	cfg := Default()
	cfg.Mode = "deep"
	cfg.MaxDepth = 3
	cfg.Functions = []string{"coalesce"}

	ex, err := cfg.NewExtractor()
	require.NoError(t, err)
	assert.Equal(t, lineage.ModeDeep, ex.Mode())
	assert.Equal(t, 3, ex.MaxDepth())
	assert.Equal(t, []string{"COALESCE"}, ex.Functions())

	cfg.Mode = "bogus"
	_, err = cfg.NewExtractor()
	assert.Error(t, err)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_ONE", "value_one")

	tests := []struct {
		input    string
		expected string
	}{
		{"${TEST_VAR_ONE}", "value_one"},
		{"/path/${TEST_VAR_ONE}/file", "/path/value_one/file"},
		{"${UNSET_VARIABLE_XYZ}", "${UNSET_VARIABLE_XYZ}"},
		{"plain string", "plain string"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandEnvVars(tt.input))
		})
	}
}

func TestGetLogger(t *testing.T) {
	t.Run("fallback discards", func(t *testing.T) {
		logger := GetLogger(context.Background())
		require.NotNil(t, logger)
		assert.False(t, logger.Enabled(context.Background(), 12))
	})

	t.Run("stored logger", func(t *testing.T) {
		logger := GetLogger(context.Background())
		ctx := WithLogger(context.Background(), logger)
		assert.Same(t, logger, GetLogger(ctx))
	})
}

func TestGetConfig(t *testing.T) {
	assert.Equal(t, Default(), GetConfig(context.Background()))

	cfg := Default()
	cfg.Mode = "deep"
	ctx := WithConfig(context.Background(), cfg)
	assert.Same(t, cfg, GetConfig(ctx))
}

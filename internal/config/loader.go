package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "collineage.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "collineage.yml"

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "COLLINEAGE_"

// loggerKey is used to store the logger in a context.
type loggerKey struct{}

// configKey is used to store the config in a context.
type configKey struct{}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// flagKeys maps flag names that differ from their config keys.
var flagKeys = map[string]string{
	"state":   "state_path",
	"addr":    "server.addr",
	"origins": "server.allowed_origins",
}

// findConfigFile finds the config file to use.
// Priority: explicit path > collineage.yaml > collineage.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// ResetConfig clears the loaded configuration. Used by tests.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
}

// LoadConfig loads configuration from defaults, the config file, environment
// variables and flags, in increasing order of precedence. Only flags that
// were explicitly set override other sources. flags may be nil.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")
	def := Default()

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"mode":                   def.Mode,
		"max_depth":              def.MaxDepth,
		"functions":              def.Functions,
		"output":                 def.Output,
		"verbose":                def.Verbose,
		"state_path":             def.StatePath,
		"max_input_bytes":        def.MaxInputBytes,
		"server.addr":            def.Server.Addr,
		"server.allowed_origins": def.Server.AllowedOrigins,
		"server.read_timeout":    def.Server.ReadTimeout.String(),
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment: COLLINEAGE_MAX_DEPTH -> max_depth, COLLINEAGE_SERVER_ADDR -> server.addr
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if mapped, ok := flagKeys[key]; ok {
				key = mapped
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.StatePath = expandEnvVars(cfg.StatePath)

	if err := cfg.Validate(); err != nil {
		if configFileUsed != "" {
			return nil, fmt.Errorf("invalid configuration in %s: %w", configFileUsed, err)
		}
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// listKeys are config keys holding comma-separated lists in the environment.
var listKeys = map[string]bool{
	"functions":              true,
	"server.allowed_origins": true,
}

// envValue converts an environment variable into a config key and value.
func envValue(name, value string) (string, interface{}) {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	if rest, ok := strings.CutPrefix(key, "server_"); ok {
		key = "server." + rest
	}
	if listKeys[key] {
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return key, items
	}
	return key, value
}

// GetConfigFileUsed returns the path of the config file that was loaded,
// or "" if none was found.
func GetConfigFileUsed() string {
	return configFileUsed
}

// WithConfig returns a copy of ctx carrying cfg.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig retrieves the config from ctx, or the defaults if none is set.
func GetConfig(ctx context.Context) *Config {
	if ctx != nil {
		if c, ok := ctx.Value(configKey{}).(*Config); ok {
			return c
		}
	}
	return Default()
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from ctx.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// expandEnvVars expands ${VAR} patterns with environment variable values.
// Unset variables are left as-is.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if val := os.Getenv(name); val != "" {
			return val
		}
		return match
	})
}

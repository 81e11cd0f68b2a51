// Package config provides configuration management for collineage.
//
// Configuration is read with koanf from, in increasing precedence: built-in
// defaults, collineage.yaml (or .yml), COLLINEAGE_* environment variables
// and explicitly set command-line flags.
package config

import (
	"time"

	"github.com/leapstack-labs/collineage/pkg/lineage"
	"github.com/leapstack-labs/collineage/pkg/parser"
)

// ServerConfig holds configuration for the HTTP API.
type ServerConfig struct {
	Addr           string        `koanf:"addr"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
}

// Config holds all collineage configuration options.
type Config struct {
	Mode          string       `koanf:"mode"`
	MaxDepth      int          `koanf:"max_depth"`
	Functions     []string     `koanf:"functions"`
	Output        string       `koanf:"output"`
	Verbose       bool         `koanf:"verbose"`
	StatePath     string       `koanf:"state_path"`
	MaxInputBytes int64        `koanf:"max_input_bytes"`
	Server        ServerConfig `koanf:"server"`
}

// Default configuration values.
const (
	DefaultMode          = "shallow"
	DefaultOutput        = "auto" // TTY=table, non-TTY=markdown
	DefaultStateFile     = ".collineage/history.db"
	DefaultMaxInputBytes = 1 << 20
	DefaultAddr          = "127.0.0.1:8780"
	DefaultReadTimeout   = 10 * time.Second
)

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Mode:          DefaultMode,
		MaxDepth:      parser.DefaultMaxDepth,
		Functions:     append([]string(nil), lineage.DefaultFunctions...),
		Output:        DefaultOutput,
		StatePath:     DefaultStateFile,
		MaxInputBytes: DefaultMaxInputBytes,
		Server: ServerConfig{
			Addr:           DefaultAddr,
			AllowedOrigins: []string{"*"},
			ReadTimeout:    DefaultReadTimeout,
		},
	}
}

// LineageMode returns the parsed extraction mode.
func (c *Config) LineageMode() (lineage.Mode, error) {
	return lineage.ParseMode(c.Mode)
}

// ExtractorOptions converts the lineage settings into extractor options.
func (c *Config) ExtractorOptions() ([]lineage.Option, error) {
	mode, err := c.LineageMode()
	if err != nil {
		return nil, err
	}
	return []lineage.Option{
		lineage.WithMode(mode),
		lineage.WithMaxDepth(c.MaxDepth),
		lineage.WithFunctions(c.Functions...),
	}, nil
}

// NewExtractor builds an extractor from the lineage settings.
func (c *Config) NewExtractor() (*lineage.Extractor, error) {
	opts, err := c.ExtractorOptions()
	if err != nil {
		return nil, err
	}
	return lineage.New(opts...), nil
}

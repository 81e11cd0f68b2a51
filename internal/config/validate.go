package config

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/collineage/internal/export"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.LineageMode(); err != nil {
		errs = append(errs, err)
	}
	if c.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth))
	}
	if _, err := export.ParseFormat(c.Output); err != nil {
		errs = append(errs, err)
	}
	if c.MaxInputBytes < 1 {
		errs = append(errs, fmt.Errorf("max_input_bytes must be positive, got %d", c.MaxInputBytes))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must not be negative, got %s", c.Server.ReadTimeout))
	}
	return errors.Join(errs...)
}

package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateClaude(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateTieOut(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateClaude() error {
	if c.Claude.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/capaudit/config.toml"
		}
		return fmt.Errorf("claude.api_key is required. Set ANTHROPIC_API_KEY env var or edit %s (create with 'capaudit config init')", defaultPath)
	}
	if c.Claude.TimeoutSeconds > 600 {
		return errors.New("claude.timeout_seconds must be at most 600")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MaxWorkers > 64 {
		return errors.New("pipeline.max_workers must be at most 64")
	}
	if c.Pipeline.ParseTimeoutSeconds >= c.Pipeline.PipelineTimeoutSeconds {
		return errors.New("pipeline.parse_timeout_seconds must be less than pipeline.pipeline_timeout_seconds")
	}
	return nil
}

func (c *Config) validateTieOut() error {
	if c.TieOut.NameMatchThreshold > 1 {
		return errors.New("tieout.name_match_threshold must be between 0 and 1")
	}
	if c.TieOut.NameMatchMargin > 1 {
		return errors.New("tieout.name_match_margin must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeClaude()
	c.normalizePipeline()
	c.normalizeTieOut()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.UploadDir) == "" {
		c.Paths.UploadDir = defaultUploadDir
	}
	if c.Paths.UploadDir, err = expandPath(c.Paths.UploadDir); err != nil {
		return fmt.Errorf("paths.upload_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.PreviewDir) == "" {
		c.Paths.PreviewDir = defaultPreviewDir
	}
	if c.Paths.PreviewDir, err = expandPath(c.Paths.PreviewDir); err != nil {
		return fmt.Errorf("paths.preview_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabaseDir) == "" {
		c.Paths.DatabaseDir = defaultDatabaseDir
	}
	if c.Paths.DatabaseDir, err = expandPath(c.Paths.DatabaseDir); err != nil {
		return fmt.Errorf("paths.database_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeClaude() {
	if c.Claude.APIKey == "" {
		if value, ok := os.LookupEnv("ANTHROPIC_API_KEY"); ok {
			c.Claude.APIKey = value
		}
	}
	c.Claude.APIKey = strings.TrimSpace(c.Claude.APIKey)
	c.Claude.BaseURL = strings.TrimSpace(c.Claude.BaseURL)
	if c.Claude.BaseURL == "" {
		c.Claude.BaseURL = defaultClaudeBaseURL
	}
	c.Claude.Model = strings.TrimSpace(c.Claude.Model)
	if c.Claude.Model == "" {
		c.Claude.Model = defaultClaudeModel
	}
	if c.Claude.TimeoutSeconds <= 0 {
		c.Claude.TimeoutSeconds = defaultClaudeTimeoutSeconds
	}
	if c.Claude.MaxRetries <= 0 {
		c.Claude.MaxRetries = defaultClaudeMaxRetries
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.MaxWorkers <= 0 {
		c.Pipeline.MaxWorkers = defaultMaxWorkers
	}
	if c.Pipeline.PipelineTimeoutSeconds <= 0 {
		c.Pipeline.PipelineTimeoutSeconds = defaultPipelineTimeoutSeconds
	}
	if c.Pipeline.ParseTimeoutSeconds <= 0 {
		c.Pipeline.ParseTimeoutSeconds = defaultParseTimeoutSeconds
	}
	if c.Pipeline.ClassifySampleChars <= 0 {
		c.Pipeline.ClassifySampleChars = defaultClassifySampleChars
	}
}

func (c *Config) normalizeTieOut() {
	if c.TieOut.NameMatchThreshold <= 0 {
		c.TieOut.NameMatchThreshold = defaultNameMatchThreshold
	}
	if c.TieOut.NameMatchMargin <= 0 {
		c.TieOut.NameMatchMargin = defaultNameMatchMargin
	}
	if c.TieOut.ShareTolerance <= 0 {
		c.TieOut.ShareTolerance = defaultShareTolerance
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

package config

const (
	defaultWorkDir     = "~/.local/share/capaudit/work"
	defaultUploadDir   = "~/.local/share/capaudit/uploads"
	defaultPreviewDir  = "~/.local/share/capaudit/previews"
	defaultLogDir      = "~/.local/share/capaudit/logs"
	defaultDatabaseDir = "~/.local/share/capaudit"

	defaultClaudeBaseURL        = "https://api.anthropic.com/v1/messages"
	defaultClaudeModel          = "claude-sonnet-4-5-20250929"
	defaultClaudeTimeoutSeconds = 60
	defaultClaudeMaxRetries     = 3

	defaultMaxWorkers             = 5
	defaultPipelineTimeoutSeconds = 600
	defaultParseTimeoutSeconds    = 45
	defaultClassifySampleChars    = 3000

	defaultNameMatchThreshold = 0.92
	defaultNameMatchMargin    = 0.05
	defaultShareTolerance     = 0.5

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:     defaultWorkDir,
			UploadDir:   defaultUploadDir,
			PreviewDir:  defaultPreviewDir,
			LogDir:      defaultLogDir,
			DatabaseDir: defaultDatabaseDir,
		},
		Claude: Claude{
			BaseURL:        defaultClaudeBaseURL,
			Model:          defaultClaudeModel,
			TimeoutSeconds: defaultClaudeTimeoutSeconds,
			MaxRetries:     defaultClaudeMaxRetries,
		},
		Pipeline: Pipeline{
			MaxWorkers:             defaultMaxWorkers,
			PipelineTimeoutSeconds: defaultPipelineTimeoutSeconds,
			ParseTimeoutSeconds:    defaultParseTimeoutSeconds,
			ClassifySampleChars:    defaultClassifySampleChars,
		},
		TieOut: TieOut{
			NameMatchThreshold: defaultNameMatchThreshold,
			NameMatchMargin:    defaultNameMatchMargin,
			ShareTolerance:     defaultShareTolerance,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

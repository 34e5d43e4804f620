package domain

// Config mirrors ~/.li/config.yaml.
type Config struct {
	ConfigFormatVersion string            `yaml:"config_format_version"`
	Preferences         Preferences       `yaml:"preferences"`
	Models              []ModelDefinition `yaml:"models"`
	Recovery            RecoverySettings  `yaml:"recovery"`
	Agent               AgentSettings     `yaml:"agent"`
	Execution           ExecutionSettings `yaml:"execution"`
	Security            SecuritySettings  `yaml:"security"`
	History             HistorySettings   `yaml:"history"`
	Logging             LoggingSettings   `yaml:"logging"`
}

// Preferences captures user level toggles.
type Preferences struct {
	DefaultModel   string `yaml:"default_model"`
	TimeoutSeconds int    `yaml:"timeout"`
	MaxTokens      int    `yaml:"max_tokens"`
}

// RecoverySettings controls what happens when a plan names a missing command.
type RecoverySettings struct {
	Enabled     bool             `yaml:"enabled"`
	Preference  RecoveryStrategy `yaml:"preference"`
	AutoInstall bool             `yaml:"auto_install"`
	MaxRounds   int              `yaml:"max_rounds"`
}

// AgentSettings bounds the pipeline loops and approval behavior.
type AgentSettings struct {
	AutoApprove       bool `yaml:"auto_approve"`
	MaxClarifications int  `yaml:"max_clarifications"`
}

// ExecutionSettings controls how plan commands run.
type ExecutionSettings struct {
	Shell                 string `yaml:"shell"`
	CommandTimeoutSeconds int    `yaml:"command_timeout"`
	StreamOutput          bool   `yaml:"stream_output"`
}

// SecuritySettings defines guardrail behavior.
type SecuritySettings struct {
	Enabled   bool   `yaml:"enabled"`
	RulesFile string `yaml:"rules_file"`
}

// HistorySettings configures the run history store.
type HistorySettings struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// LoggingSettings configures the optional rotating log file.
type LoggingSettings struct {
	File       string `yaml:"file"`
	JSON       bool   `yaml:"json"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

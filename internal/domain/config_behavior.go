package domain

import "fmt"

// GetDefaultModel retrieves the default model definition from configuration.
func (c *Config) GetDefaultModel() (ModelDefinition, error) {
	if c.Preferences.DefaultModel == "" {
		if len(c.Models) > 0 {
			return c.Models[0], nil
		}
		return ModelDefinition{}, fmt.Errorf("no default model configured")
	}

	if model, ok := c.FindModelByName(c.Preferences.DefaultModel); ok {
		return model, nil
	}
	return ModelDefinition{}, fmt.Errorf("default model %s not found in configuration", c.Preferences.DefaultModel)
}

// FindModelByName searches for a model by its name.
func (c *Config) FindModelByName(name string) (ModelDefinition, bool) {
	for _, model := range c.Models {
		if model.Name == name {
			return model, true
		}
	}
	return ModelDefinition{}, false
}

// HasModel checks if a model with the given name exists.
func (c *Config) HasModel(name string) bool {
	_, exists := c.FindModelByName(name)
	return exists
}

// GetTimeoutSeconds returns the completion request timeout in seconds.
func (c *Config) GetTimeoutSeconds() int {
	if c.Preferences.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds
	}
	return c.Preferences.TimeoutSeconds
}

// GetMaxTokens returns the completion budget for a model, preferring the
// model's own limit over the global preference.
func (c *Config) GetMaxTokens(model ModelDefinition) int {
	if model.MaxTokens > 0 {
		return model.MaxTokens
	}
	if c.Preferences.MaxTokens > 0 {
		return c.Preferences.MaxTokens
	}
	return DefaultMaxTokens
}

// GetRecoveryStrategy returns the effective strategy. Disabled recovery
// behaves as never-recover.
func (c *Config) GetRecoveryStrategy() RecoveryStrategy {
	if !c.Recovery.Enabled {
		return StrategyNeverRecover
	}
	if c.Recovery.Preference == "" {
		return StrategyAlternativesFirst
	}
	return c.Recovery.Preference
}

// GetMaxRecoveryRounds bounds recovery attempts per missing command.
func (c *Config) GetMaxRecoveryRounds() int {
	if c.Recovery.MaxRounds <= 0 {
		return DefaultMaxRecoveryRounds
	}
	return c.Recovery.MaxRounds
}

// GetMaxClarifications bounds planner question rounds.
func (c *Config) GetMaxClarifications() int {
	if c.Agent.MaxClarifications <= 0 {
		return DefaultMaxClarifications
	}
	return c.Agent.MaxClarifications
}

// GetExecutionShell returns the configured shell, defaulting to sh.
func (c *Config) GetExecutionShell() string {
	if c.Execution.Shell == "" || c.Execution.Shell == "auto" {
		return "sh"
	}
	return c.Execution.Shell
}

// GetHistoryRetentionDays returns the number of days to retain history.
func (c *Config) GetHistoryRetentionDays() int {
	if c.History.RetentionDays <= 0 {
		return DefaultHistoryRetainDays
	}
	return c.History.RetentionDays
}

// IsSecurityEnabled checks if guardrails are enabled.
func (c *Config) IsSecurityEnabled() bool {
	return c.Security.Enabled
}

// ValidateConsistency checks the internal consistency of the configuration.
func (c *Config) ValidateConsistency() error {
	if c.Preferences.DefaultModel != "" && !c.HasModel(c.Preferences.DefaultModel) {
		return fmt.Errorf("default model %s does not exist in models list", c.Preferences.DefaultModel)
	}
	if c.Recovery.Preference != "" {
		if _, err := ParseRecoveryStrategy(string(c.Recovery.Preference)); err != nil {
			return err
		}
	}
	if c.Recovery.MaxRounds < 0 {
		return fmt.Errorf("recovery.max_rounds must be >= 0")
	}
	if c.Agent.MaxClarifications < 0 {
		return fmt.Errorf("agent.max_clarifications must be >= 0")
	}
	return nil
}

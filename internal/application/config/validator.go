// Package config checks a loaded configuration for internal consistency.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/doeshing/li/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if len(cfg.Models) == 0 {
		return errors.New("at least one model must be configured")
	}
	if err := cfg.ValidateConsistency(); err != nil {
		return err
	}
	if _, err := cfg.GetDefaultModel(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(cfg.Models))
	for i, model := range cfg.Models {
		if err := validateModel(model); err != nil {
			return fmt.Errorf("models[%d]: %w", i, err)
		}
		if seen[model.Name] {
			return fmt.Errorf("models[%d]: duplicate model name %s", i, model.Name)
		}
		seen[model.Name] = true
	}

	if err := validateExecution(cfg.Execution); err != nil {
		return err
	}
	if err := validateSecurity(cfg.Security); err != nil {
		return err
	}
	return validateHistory(cfg.History)
}

func validateModel(model domain.ModelDefinition) error {
	if strings.TrimSpace(model.Name) == "" {
		return errors.New("name must be set")
	}
	if strings.TrimSpace(model.ModelID) == "" {
		return fmt.Errorf("%s: model_id must be set", model.Name)
	}
	u, err := url.Parse(model.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s: endpoint must be an http(s) URL, got %q", model.Name, model.Endpoint)
	}
	if model.MaxTokens < 0 {
		return fmt.Errorf("%s: max_tokens must be >= 0", model.Name)
	}
	switch model.APIFormat.SystemMessageMode {
	case "", domain.SystemMessageModeInline, domain.SystemMessageModeSeparate:
	default:
		return fmt.Errorf("%s: api_format.system_message_mode must be inline|separate", model.Name)
	}
	switch model.APIFormat.ContentWrapper {
	case "", domain.ContentWrapperStandard, domain.ContentWrapperAnthropic:
	default:
		return fmt.Errorf("%s: api_format.content_wrapper must be standard|anthropic", model.Name)
	}
	return nil
}

func validateExecution(exec domain.ExecutionSettings) error {
	if exec.CommandTimeoutSeconds < 0 {
		return fmt.Errorf("execution.command_timeout must be >= 0")
	}
	return nil
}

func validateSecurity(sec domain.SecuritySettings) error {
	if sec.Enabled && sec.RulesFile == "" {
		return fmt.Errorf("security.rules_file must be set")
	}
	return nil
}

func validateHistory(history domain.HistorySettings) error {
	if history.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days must be >= 0")
	}
	if history.Enabled && history.Path == "" {
		return fmt.Errorf("history.path must be set")
	}
	return nil
}

// Package doctor runs environment diagnostics for li.
package doctor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/ports"
)

// ToolLister reports the tools the validator finds on the host.
type ToolLister interface {
	AvailableTools(ctx context.Context) []string
}

// RuleSource is implemented by guardrails that can describe their rule set.
type RuleSource interface {
	Source() string
	RuleCount() int
}

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider  ports.ConfigProvider
	ShellIntegrator ports.ShellIntegrator
	SecurityService ports.SecurityService
	Tools           ToolLister
	History         ports.RunHistoryRepository
}

// Run executes checks and returns a report. A config load failure stops the
// run since every later check depends on it.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	if s.ConfigProvider == nil {
		return domain.HealthReport{}, fmt.Errorf("doctor has no config provider")
	}
	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	if model, err := cfg.GetDefaultModel(); err != nil {
		checks = append(checks, fail("Config file", err.Error()))
	} else {
		checks = append(checks, ok("Config file", fmt.Sprintf("default model %s (%s)", model.Name, model.ModelID)))
	}

	checks = append(checks, apiCheck(cfg))
	checks = append(checks, s.guardrailCheck(cfg))
	checks = append(checks, s.shellCheck())
	checks = append(checks, s.toolsCheck(ctx))
	checks = append(checks, s.historyCheck(cfg))

	return domain.HealthReport{Checks: checks}, nil
}

// apiCheck only looks at the default model; other entries are opt-in.
func apiCheck(cfg domain.Config) domain.HealthCheck {
	model, err := cfg.GetDefaultModel()
	if err != nil {
		return fail("API key", err.Error())
	}
	if model.AuthEnvVar == "" {
		return ok("API key", fmt.Sprintf("%s needs no key", model.Name))
	}
	if strings.TrimSpace(os.Getenv(model.AuthEnvVar)) == "" {
		return fail("API key", fmt.Sprintf("%s is not set (needed by %s)", model.AuthEnvVar, model.Name))
	}
	return ok("API key", fmt.Sprintf("%s set", model.AuthEnvVar))
}

func (s *Service) guardrailCheck(cfg domain.Config) domain.HealthCheck {
	if !cfg.IsSecurityEnabled() {
		return warn("Guardrail", "disabled in config")
	}
	if s.SecurityService == nil {
		return warn("Guardrail", "security service not initialized")
	}
	if _, err := s.SecurityService.Evaluate("ls"); err != nil {
		return fail("Guardrail", err.Error())
	}
	if src, isSource := s.SecurityService.(RuleSource); isSource {
		return ok("Guardrail", fmt.Sprintf("%d rules from %s", src.RuleCount(), src.Source()))
	}
	return ok("Guardrail", "rules loaded")
}

func (s *Service) shellCheck() domain.HealthCheck {
	if s.ShellIntegrator == nil {
		return warn("Shell hook", "installer not initialized")
	}
	status := s.ShellIntegrator.Status("zsh")
	switch {
	case status.Error != "":
		return warn("Shell hook", status.Error)
	case status.Installed():
		return ok("Shell hook", fmt.Sprintf("zsh hook sourced from %s", status.RCFile))
	case status.ScriptExists:
		return warn("Shell hook", fmt.Sprintf("script present but %s does not source it (run: li hook install)", status.RCFile))
	default:
		return warn("Shell hook", "not installed (run: li hook install)")
	}
}

func (s *Service) toolsCheck(ctx context.Context) domain.HealthCheck {
	if s.Tools == nil {
		return warn("Tools", "validator not initialized")
	}
	tools := s.Tools.AvailableTools(ctx)
	if len(tools) == 0 {
		return warn("Tools", "no common tools found on PATH")
	}
	return ok("Tools", fmt.Sprintf("detected %d common tools", len(tools)))
}

func (s *Service) historyCheck(cfg domain.Config) domain.HealthCheck {
	if !cfg.History.Enabled {
		return warn("History", "disabled in config")
	}
	if s.History == nil {
		return warn("History", "store not initialized")
	}
	if d, isDegradable := s.History.(interface{ Degraded() bool }); isDegradable && d.Degraded() {
		return warn("History", fmt.Sprintf("sqlite unavailable, using %s", s.History.Path()))
	}
	return ok("History", s.History.Path())
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}

// Package security evaluates plan commands against regex guardrail rules.
package security

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/li/assets"
	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/pkg/filesystem"
	"github.com/doeshing/li/internal/ports"
)

// Guardrail implements the SecurityService port.
type Guardrail struct {
	patterns  []compiledPattern
	pathRules []ProtectedPath
	source    string
}

type compiledPattern struct {
	re   *regexp.Regexp
	rule DangerPattern
}

// DangerPattern describes a regex-based guardrail rule.
type DangerPattern struct {
	Pattern string `yaml:"pattern"`
	Level   string `yaml:"level"`
	Message string `yaml:"message"`
	Action  string `yaml:"action"`
}

// ProtectedPath flags listed operations that target a path or its children.
type ProtectedPath struct {
	Path       string   `yaml:"path"`
	Operations []string `yaml:"operations"`
	Level      string   `yaml:"level"`
	Action     string   `yaml:"action"`
}

// RulesFile is the YAML schema root.
type RulesFile struct {
	Rules struct {
		DangerPatterns []DangerPattern `yaml:"danger_patterns"`
		ProtectedPaths []ProtectedPath `yaml:"protected_paths"`
	} `yaml:"rules"`
}

// NewGuardrail loads rules from path, falling back to the embedded defaults
// when the file does not exist.
func NewGuardrail(path string) (*Guardrail, error) {
	rules, source, err := loadRules(path)
	if err != nil {
		return nil, err
	}

	compiled := make([]compiledPattern, 0, len(rules.Rules.DangerPatterns))
	for _, pattern := range rules.Rules.DangerPatterns {
		re, err := regexp.Compile(pattern.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile guardrail pattern %q: %w", pattern.Pattern, err)
		}
		compiled = append(compiled, compiledPattern{re: re, rule: pattern})
	}

	return &Guardrail{
		patterns:  compiled,
		pathRules: rules.Rules.ProtectedPaths,
		source:    source,
	}, nil
}

var _ ports.SecurityService = (*Guardrail)(nil)

// Source names where the rules came from: a file path or "embedded".
func (g *Guardrail) Source() string {
	return g.source
}

// RuleCount returns the number of loaded rules.
func (g *Guardrail) RuleCount() int {
	return len(g.patterns) + len(g.pathRules)
}

// Evaluate implements ports.SecurityService.
func (g *Guardrail) Evaluate(command string) (domain.RiskAssessment, error) {
	if g == nil {
		return domain.RiskAssessment{}, errors.New("guardrail nil")
	}
	command = strings.TrimSpace(command)
	assessment := domain.RiskAssessment{
		Command: command,
		Level:   domain.RiskSafe,
		Action:  domain.ActionAllow,
	}

	for _, pattern := range g.patterns {
		if !pattern.re.MatchString(command) {
			continue
		}
		raise(&assessment, parseRiskLevel(pattern.rule.Level), pattern.rule.Action)
		assessment.Reasons = append(assessment.Reasons, pattern.rule.Message)
		assessment.MatchedRules = append(assessment.MatchedRules, pattern.rule.Pattern)
	}

	tokens := strings.Fields(command)
	for _, rule := range g.pathRules {
		if !matchesPathRule(tokens, rule) {
			continue
		}
		raise(&assessment, parseRiskLevel(rule.Level), rule.Action)
		assessment.Reasons = append(assessment.Reasons, fmt.Sprintf("Operation on protected path %s", rule.Path))
		assessment.MatchedRules = append(assessment.MatchedRules, "path:"+rule.Path)
	}
	return assessment, nil
}

// EvaluatePlan assesses every command of plan. The plan takes the most
// severe level and the strictest action of any command.
func (g *Guardrail) EvaluatePlan(plan domain.Plan) (domain.PlanRisk, error) {
	risk := domain.PlanRisk{Highest: domain.RiskSafe, Action: domain.ActionAllow}
	for _, line := range append(append([]string(nil), plan.DryRunCommands...), plan.ExecuteCommands...) {
		assessment, err := g.Evaluate(line)
		if err != nil {
			return domain.PlanRisk{}, err
		}
		risk.Assessments = append(risk.Assessments, assessment)
		if assessment.Level.MoreSevere(risk.Highest) {
			risk.Highest = assessment.Level
		}
		if actionRank[assessment.Action] > actionRank[risk.Action] {
			risk.Action = assessment.Action
		}
	}
	return risk, nil
}

var actionRank = map[domain.GuardrailAction]int{
	domain.ActionAllow:           0,
	domain.ActionConfirm:         1,
	domain.ActionExplicitConfirm: 2,
	domain.ActionBlock:           3,
}

// raise lifts the assessment to level, and to action when stricter.
func raise(a *domain.RiskAssessment, level domain.RiskLevel, action string) {
	if level.MoreSevere(a.Level) {
		a.Level = level
	}
	if parsed := parseAction(action, level); actionRank[parsed] > actionRank[a.Action] {
		a.Action = parsed
	}
}

func matchesPathRule(tokens []string, rule ProtectedPath) bool {
	if len(tokens) == 0 || len(rule.Operations) == 0 {
		return false
	}
	op := tokens[0]
	if op == "sudo" && len(tokens) > 1 {
		op = tokens[1]
	}
	listed := false
	for _, candidate := range rule.Operations {
		if candidate == op {
			listed = true
			break
		}
	}
	if !listed {
		return false
	}
	target := strings.TrimRight(rule.Path, "/")
	for _, token := range tokens[1:] {
		token = strings.Trim(token, `"'`)
		if token == target || token == target+"/" || strings.HasPrefix(token, target+"/") {
			return true
		}
	}
	return false
}

func loadRules(path string) (RulesFile, string, error) {
	var rules RulesFile
	source := "embedded"
	data := assets.DefaultGuardrailYAML

	if path = filesystem.ExpandPath(path); path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			data, source = raw, path
		case !os.IsNotExist(err):
			return RulesFile{}, "", fmt.Errorf("read guardrail rules: %w", err)
		}
	}

	if err := yaml.Unmarshal(data, &rules); err != nil {
		return RulesFile{}, "", fmt.Errorf("parse guardrail rules %s: %w", source, err)
	}
	if len(rules.Rules.DangerPatterns) == 0 && len(rules.Rules.ProtectedPaths) == 0 {
		if err := yaml.Unmarshal(assets.DefaultGuardrailYAML, &rules); err != nil {
			return RulesFile{}, "", err
		}
		source = "embedded"
	}
	return rules, source, nil
}

func parseRiskLevel(value string) domain.RiskLevel {
	switch strings.ToLower(value) {
	case "low":
		return domain.RiskLow
	case "medium":
		return domain.RiskMedium
	case "high":
		return domain.RiskHigh
	case "critical":
		return domain.RiskCritical
	default:
		return domain.RiskSafe
	}
}

func parseAction(value string, fallback domain.RiskLevel) domain.GuardrailAction {
	switch strings.ToLower(value) {
	case "allow":
		return domain.ActionAllow
	case "confirm", "simple_confirm":
		return domain.ActionConfirm
	case "explicit_confirm":
		return domain.ActionExplicitConfirm
	case "block":
		return domain.ActionBlock
	default:
		if fallback == domain.RiskSafe {
			return domain.ActionAllow
		}
		return domain.ActionConfirm
	}
}

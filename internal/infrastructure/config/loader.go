// Package config loads ~/.li/config.yaml and applies environment overrides.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/li/assets"
	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/pkg/filesystem"
	"github.com/doeshing/li/internal/ports"
)

// Environment variables read after the file is loaded.
const (
	EnvConfigPath   = "LI_CONFIG"
	EnvProvider     = "LI_PROVIDER"
	EnvBaseURL      = "LI_LLM_BASE_URL"
	EnvTimeoutSecs  = "LI_TIMEOUT_SECS"
	EnvMaxTokens    = "LI_MAX_TOKENS"
	EnvPlannerModel = "LI_PLANNER_MODEL"
)

const chatCompletionsPath = "/chat/completions"

// FileLoader loads YAML configuration from ~/.li/config.yaml (overridable via LI_CONFIG).
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader. An empty path resolves LI_CONFIG, then the default location.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

var _ ports.ConfigProvider = (*FileLoader)(nil)

// Load implements ports.ConfigProvider. A missing file is created from the
// embedded defaults.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.Path()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, fmt.Errorf("ensure config dir: %w", err)
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := writeConfig(path, cfg); err != nil {
			return domain.Config{}, err
		}
	case err != nil:
		return domain.Config{}, fmt.Errorf("read config: %w", err)
	default:
		// Keys absent from the file keep their default values.
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return domain.Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg = hydrateDefaults(cfg)
	if err := ApplyEnvOverrides(&cfg); err != nil {
		return domain.Config{}, err
	}
	return cfg, nil
}

// Path returns the resolved config file path.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return filesystem.ExpandPath(l.overridePath)
	}
	if custom := os.Getenv(EnvConfigPath); custom != "" {
		return filesystem.ExpandPath(custom)
	}
	return filepath.Join(filesystem.AppDir(), "config.yaml")
}

// Save writes cfg back to disk.
func (l *FileLoader) Save(cfg domain.Config) error {
	path := l.Path()
	if err := ensureConfigDir(path); err != nil {
		return err
	}
	return writeConfig(path, cfg)
}

// Reset overwrites the config with defaults and returns the default snapshot.
func (l *FileLoader) Reset() (domain.Config, error) {
	cfg := DefaultConfig()
	if err := l.Save(cfg); err != nil {
		return domain.Config{}, err
	}
	return cfg, nil
}

// Backup copies the current config file to a timestamped backup.
func (l *FileLoader) Backup() (string, error) {
	path := l.Path()
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	backup := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102T150405"))
	if err := os.WriteFile(backup, data, domain.SecureFilePermissions); err != nil {
		return "", err
	}
	return backup, nil
}

// DefaultConfig returns the embedded bootstrap configuration.
func DefaultConfig() domain.Config {
	var cfg domain.Config
	if err := yaml.Unmarshal(assets.DefaultConfigYAML, &cfg); err != nil {
		panic(fmt.Sprintf("embedded default config is invalid: %v", err))
	}
	return cfg
}

// ApplyEnvOverrides layers LI_* variables over cfg. LI_LLM_BASE_URL,
// LI_MAX_TOKENS and LI_PLANNER_MODEL apply to the default model.
func ApplyEnvOverrides(cfg *domain.Config) error {
	if provider := strings.TrimSpace(os.Getenv(EnvProvider)); provider != "" {
		name := strings.ToLower(provider)
		if !cfg.HasModel(name) {
			return fmt.Errorf("%s=%q does not name a configured model", EnvProvider, provider)
		}
		cfg.Preferences.DefaultModel = name
	}

	if timeout, ok, err := envInt(EnvTimeoutSecs); err != nil {
		return err
	} else if ok {
		cfg.Preferences.TimeoutSeconds = timeout
	}

	maxTokens, hasMaxTokens, err := envInt(EnvMaxTokens)
	if err != nil {
		return err
	}
	if hasMaxTokens {
		cfg.Preferences.MaxTokens = maxTokens
	}

	idx := defaultModelIndex(cfg)
	if idx < 0 {
		return nil
	}
	model := &cfg.Models[idx]
	if base := strings.TrimSpace(os.Getenv(EnvBaseURL)); base != "" {
		model.Endpoint = endpointFromBase(base)
	}
	if hasMaxTokens {
		model.MaxTokens = maxTokens
	}
	if planner := strings.TrimSpace(os.Getenv(EnvPlannerModel)); planner != "" {
		model.ModelID = planner
	}
	return nil
}

func envInt(key string) (int, bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, false, fmt.Errorf("parse %s: %q is not a positive integer", key, raw)
	}
	return value, true, nil
}

func endpointFromBase(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, chatCompletionsPath) {
		return base
	}
	return base + chatCompletionsPath
}

func defaultModelIndex(cfg *domain.Config) int {
	for i, model := range cfg.Models {
		if model.Name == cfg.Preferences.DefaultModel {
			return i
		}
	}
	if cfg.Preferences.DefaultModel == "" && len(cfg.Models) > 0 {
		return 0
	}
	return -1
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.Preferences.DefaultModel == "" && len(cfg.Models) > 0 {
		cfg.Preferences.DefaultModel = cfg.Models[0].Name
	}
	if cfg.Preferences.TimeoutSeconds <= 0 {
		cfg.Preferences.TimeoutSeconds = domain.DefaultTimeoutSeconds
	}
	if cfg.Preferences.MaxTokens <= 0 {
		cfg.Preferences.MaxTokens = domain.DefaultMaxTokens
	}
	if cfg.Recovery.MaxRounds == 0 {
		cfg.Recovery.MaxRounds = domain.DefaultMaxRecoveryRounds
	}
	if cfg.Agent.MaxClarifications == 0 {
		cfg.Agent.MaxClarifications = domain.DefaultMaxClarifications
	}
	if cfg.History.RetentionDays < 0 {
		cfg.History.RetentionDays = 0
	}
	if cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(filesystem.AppDir(), "history.db")
	}
	if cfg.Security.RulesFile == "" {
		cfg.Security.RulesFile = filepath.Join(filesystem.AppDir(), "guardrail.yaml")
	}
	if cfg.Logging.MaxSizeMB <= 0 {
		cfg.Logging.MaxSizeMB = domain.DefaultLogMaxSizeMB
	}
	if cfg.Logging.MaxBackups <= 0 {
		cfg.Logging.MaxBackups = domain.DefaultLogMaxBackups
	}
	if cfg.Logging.MaxAgeDays <= 0 {
		cfg.Logging.MaxAgeDays = domain.DefaultLogMaxAgeDays
	}
	return cfg
}

func ensureConfigDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions)
}

func writeConfig(path string, cfg domain.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, raw, domain.SecureFilePermissions)
}

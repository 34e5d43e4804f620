package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/doeshing/li/internal/application/agent"
	"github.com/doeshing/li/internal/application/classifier"
	configapp "github.com/doeshing/li/internal/application/config"
	"github.com/doeshing/li/internal/application/doctor"
	"github.com/doeshing/li/internal/application/explain"
	"github.com/doeshing/li/internal/application/planner"
	"github.com/doeshing/li/internal/application/recovery"
	"github.com/doeshing/li/internal/application/validator"
	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/infrastructure/ai"
	"github.com/doeshing/li/internal/infrastructure/config"
	contextcollector "github.com/doeshing/li/internal/infrastructure/context"
	"github.com/doeshing/li/internal/infrastructure/executor"
	"github.com/doeshing/li/internal/infrastructure/history"
	"github.com/doeshing/li/internal/infrastructure/security"
	"github.com/doeshing/li/internal/infrastructure/shell"
	"github.com/doeshing/li/internal/pkg/filesystem"
	"github.com/doeshing/li/internal/pkg/logger"
	"github.com/doeshing/li/internal/ports"
)

// Options configures container construction.
type Options struct {
	Verbose bool
	// Stdout and Stderr receive streamed command output when enabled in config.
	Stdout io.Writer
	Stderr io.Writer
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config domain.Config
	// ConfigErr is set when the config file could not be loaded; Config then
	// holds the built-in defaults so read-only commands keep working.
	ConfigErr error

	ConfigProvider  ports.ConfigProvider
	ConfigLoader    *config.FileLoader
	Logger          ports.Logger
	Completers      ports.CompleterFactory
	Catalog         ports.ModelCatalog
	Validator       *validator.Validator
	Classifier      ports.Classifier
	Collector       ports.ContextCollector
	Executor        ports.CommandExecutor
	SecurityService ports.SecurityService
	HistoryStore    ports.RunHistoryRepository
	ShellIntegrator ports.ShellIntegrator
	DoctorService   *doctor.Service

	closers []io.Closer
}

// FrontEnd holds the interactive adapters a pipeline run talks through.
type FrontEnd struct {
	Console  ports.Console
	Approver ports.Approver
	Resolver ports.QuestionResolver
	Events   ports.EventSink
}

// Overrides adjusts config-derived pipeline settings for one invocation.
type Overrides struct {
	Strategy    domain.RecoveryStrategy
	AutoApprove bool
	AutoInstall bool
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	c := &Container{}
	cfgLoader := config.NewFileLoader("")
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		c.ConfigErr = err
		cfg = config.DefaultConfig()
	}
	c.Config = cfg
	c.ConfigProvider = cfgLoader
	c.ConfigLoader = cfgLoader

	log, err := c.buildLogger(cfg, opts.Verbose)
	if err != nil {
		return nil, err
	}
	c.Logger = log

	c.Validator = validator.New(validator.WithLogger(log))
	c.Classifier = &classifier.Heuristic{Checker: c.Validator}
	c.Collector = contextcollector.NewCollector(c.Validator)
	factory := ai.NewFactory(time.Duration(cfg.GetTimeoutSeconds())*time.Second, ai.WithLogger(log))
	c.Completers = factory
	c.Catalog = factory

	execOpts := []executor.Option{executor.WithLogger(log)}
	if cfg.Execution.CommandTimeoutSeconds > 0 {
		execOpts = append(execOpts, executor.WithTimeout(time.Duration(cfg.Execution.CommandTimeoutSeconds)*time.Second))
	}
	if cfg.Execution.StreamOutput {
		execOpts = append(execOpts, executor.WithStream(opts.Stdout, opts.Stderr))
	}
	c.Executor = executor.New(cfg.GetExecutionShell(), execOpts...)

	if cfg.IsSecurityEnabled() {
		guardrail, err := security.NewGuardrail(filesystem.ExpandPath(cfg.Security.RulesFile))
		if err != nil {
			log.Warn("guardrail rules unusable, falling back to defaults", map[string]interface{}{"error": err.Error()})
			guardrail, err = security.NewGuardrail("")
			if err != nil {
				return nil, err
			}
		}
		c.SecurityService = guardrail
	}

	if cfg.History.Enabled {
		store := history.NewSQLiteStore(filesystem.ExpandPath(cfg.History.Path))
		if err := store.PruneOlderThan(cfg.GetHistoryRetentionDays()); err != nil {
			log.Warn("history prune failed", map[string]interface{}{"error": err.Error()})
		}
		c.HistoryStore = store
		c.closers = append(c.closers, store)
	}

	c.ShellIntegrator = shell.NewInstaller(log)
	c.DoctorService = &doctor.Service{
		ConfigProvider:  cfgLoader,
		ShellIntegrator: c.ShellIntegrator,
		SecurityService: c.SecurityService,
		Tools:           c.Validator,
		History:         c.HistoryStore,
	}
	return c, nil
}

func (c *Container) buildLogger(cfg domain.Config, verbose bool) (ports.Logger, error) {
	std := logger.NewStd(verbose)
	if cfg.Logging.File == "" {
		return std, nil
	}
	settings := cfg.Logging
	settings.File = filesystem.ExpandPath(settings.File)
	fileLog, err := logger.NewFile(settings, "li")
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	c.closers = append(c.closers, fileLog)
	return logger.Multi{std, fileLog}, nil
}

// NewOrchestrator assembles a pipeline for one run against the default model.
func (c *Container) NewOrchestrator(fe FrontEnd, overrides Overrides) (*agent.Orchestrator, error) {
	if c.ConfigErr != nil {
		return nil, fmt.Errorf("load configuration: %w", c.ConfigErr)
	}
	cfg := c.Config
	if err := configapp.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	model, err := cfg.GetDefaultModel()
	if err != nil {
		return nil, err
	}
	completer, err := c.Completers.ForModel(model)
	if err != nil {
		return nil, err
	}
	maxTokens := cfg.GetMaxTokens(model)

	settings := agent.SettingsFromConfig(cfg)
	if overrides.Strategy != "" {
		settings.Strategy = overrides.Strategy
	}
	if overrides.AutoApprove {
		settings.AutoApprove = true
	}
	recoverySettings := cfg.Recovery
	if overrides.AutoInstall {
		recoverySettings.AutoInstall = true
	}

	return &agent.Orchestrator{
		Classifier: c.Classifier,
		Planner: &planner.Service{
			Completer: completer,
			MaxTokens: maxTokens,
			Logger:    c.Logger,
		},
		Validator: c.Validator,
		Recovery: &recovery.Engine{
			Completer: completer,
			Checker:   c.Validator,
			Executor:  c.Executor,
			Console:   fe.Console,
			Settings:  recoverySettings,
			MaxTokens: maxTokens,
			Logger:    c.Logger,
		},
		Executor:  c.Executor,
		Approver:  fe.Approver,
		Resolver:  fe.Resolver,
		Security:  c.SecurityService,
		Collector: c.Collector,
		History:   c.HistoryStore,
		Events:    logger.Sinks{fe.Events, logger.EventLogger{Log: c.Logger}},
		Logger:    c.Logger,
		Settings:  settings,
	}, nil
}

// Completer builds a client for the named model, or the default model when
// name is empty.
func (c *Container) Completer(name string) (ports.Completer, domain.ModelDefinition, error) {
	if c.ConfigErr != nil {
		return nil, domain.ModelDefinition{}, fmt.Errorf("load configuration: %w", c.ConfigErr)
	}
	if c.Completers == nil {
		return nil, domain.ModelDefinition{}, errors.New("completion client unavailable")
	}

	var model domain.ModelDefinition
	if name == "" {
		var err error
		model, err = c.Config.GetDefaultModel()
		if err != nil {
			return nil, domain.ModelDefinition{}, err
		}
	} else {
		found, ok := c.Config.FindModelByName(name)
		if !ok {
			return nil, domain.ModelDefinition{}, fmt.Errorf("model %s not found", name)
		}
		model = found
	}

	completer, err := c.Completers.ForModel(model)
	if err != nil {
		return nil, domain.ModelDefinition{}, err
	}
	return completer, model, nil
}

// NewExplainer assembles the output explainer against the default model.
func (c *Container) NewExplainer() (*explain.Service, error) {
	completer, model, err := c.Completer("")
	if err != nil {
		return nil, err
	}
	return &explain.Service{
		Completer: completer,
		Executor:  c.Executor,
		Security:  c.SecurityService,
		MaxTokens: c.Config.GetMaxTokens(model),
	}, nil
}

// Close releases the history database and log file.
func (c *Container) Close() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

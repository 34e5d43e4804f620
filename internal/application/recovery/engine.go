// Package recovery turns a missing command into a set of choices for the
// user (alternatives, installs, skip, retry, abort) and carries out the one
// they pick.
//
// Model output is untrusted: anything that cannot be decoded falls back to
// built-in tables, so generating options never fails.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/ports"
)

// ErrNoConsole is returned when an interactive step has no console to use.
var ErrNoConsole = errors.New("recovery console not configured")

// CommandChecker is the slice of the validator recovery relies on.
type CommandChecker interface {
	AvailableTools(ctx context.Context) []string
	CommandExists(ctx context.Context, token string) bool
	Forget(token string)
}

// Engine generates and executes recovery options for one pipeline run.
type Engine struct {
	Completer ports.Completer
	Checker   CommandChecker
	Executor  ports.CommandExecutor
	Console   ports.Console
	Settings  domain.RecoverySettings
	MaxTokens int
	Logger    ports.Logger
	// GOOS overrides the host OS used in prompts and fallbacks.
	GOOS string

	toolsOnce sync.Once
	tools     []string
}

// ShouldAttemptRecovery gates the recovery stage: NeverRecover, or recovery
// switched off in config, means the engine is never invoked.
func (e *Engine) ShouldAttemptRecovery(strategy domain.RecoveryStrategy) bool {
	if !e.Settings.Enabled {
		return false
	}
	return strategy != domain.StrategyNeverRecover
}

// GenerateRecoveryOptions builds fresh options for one missing command. It
// never returns an error; model and transport failures fall back to the
// built-in tables.
func (e *Engine) GenerateRecoveryOptions(
	ctx context.Context,
	strategy domain.RecoveryStrategy,
	missing domain.MissingCommand,
	plan domain.Plan,
	goal string,
) domain.RecoveryOptions {
	switch strategy {
	case domain.StrategySkipOnError, domain.StrategyNeverRecover:
		return domain.SkipOnlyOptions()
	case domain.StrategyInstallationFirst:
		return e.installationFirst(ctx, missing, goal)
	default:
		return e.alternativesFirst(ctx, missing, goal)
	}
}

func (e *Engine) alternativesFirst(ctx context.Context, missing domain.MissingCommand, goal string) domain.RecoveryOptions {
	tools := e.availableTools(ctx)
	opts, ok := e.ask(ctx, alternativesPrompt(missing, goal, tools, e.goos()), missing)
	if !ok {
		return fallbackOptions(missing.Command, tools, e.goos())
	}
	if len(opts.CommandAlternatives) == 0 {
		opts.CommandAlternatives = FallbackAlternatives(missing.Command, tools)
	}
	return opts
}

func (e *Engine) installationFirst(ctx context.Context, missing domain.MissingCommand, goal string) domain.RecoveryOptions {
	opts, ok := e.ask(ctx, installationPrompt(missing, goal, e.goos()), missing)
	if !ok {
		return fallbackOptions(missing.Command, e.availableTools(ctx), e.goos())
	}
	if len(opts.InstallationInstructions) == 0 {
		opts.InstallationInstructions = FallbackInstructions(missing.Command, e.goos())
	}
	return opts
}

// ask sends one recovery prompt. ok is false when the call or decoding failed.
func (e *Engine) ask(ctx context.Context, prompt string, missing domain.MissingCommand) (domain.RecoveryOptions, bool) {
	if e.Completer == nil {
		e.logWarn("no completer configured; using fallback recovery options", missing, nil)
		return domain.RecoveryOptions{}, false
	}
	raw, err := e.Completer.Complete(ctx, ports.CompletionRequest{
		Prompt:      prompt,
		Temperature: domain.RecoveryTemperature,
		MaxTokens:   e.MaxTokens,
	})
	if err != nil {
		e.logWarn("recovery completion failed; using fallback", missing, err)
		return domain.RecoveryOptions{}, false
	}
	opts, err := ParseResponse(raw)
	if err != nil {
		e.logWarn("recovery response unusable; using fallback", missing, err)
		return domain.RecoveryOptions{}, false
	}
	return opts, true
}

func (e *Engine) availableTools(ctx context.Context) []string {
	e.toolsOnce.Do(func() {
		if e.Checker != nil {
			e.tools = e.Checker.AvailableTools(ctx)
		}
	})
	return e.tools
}

// SetAvailableTools seeds the tool list so the engine does not probe the host.
func (e *Engine) SetAvailableTools(tools []string) {
	e.toolsOnce.Do(func() {})
	e.tools = append([]string(nil), tools...)
}

func (e *Engine) goos() string {
	if e.GOOS != "" {
		return e.GOOS
	}
	return runtime.GOOS
}

// ExecuteRecovery carries out a choice. Command failures are reported as
// results; the error return is reserved for console failures.
func (e *Engine) ExecuteRecovery(
	ctx context.Context,
	choice domain.RecoveryChoice,
	missing domain.MissingCommand,
	options domain.RecoveryOptions,
) (domain.RecoveryResult, error) {
	switch c := choice.(type) {
	case domain.UseAlternative:
		if c.Index < 0 || c.Index >= len(options.CommandAlternatives) {
			return domain.PlanAborted{Reason: "invalid alternative index"}, nil
		}
		return e.runAlternative(ctx, options.CommandAlternatives[c.Index]), nil
	case domain.InstallCommand:
		if c.Index < 0 || c.Index >= len(options.InstallationInstructions) {
			return domain.PlanAborted{Reason: "invalid installation index"}, nil
		}
		return e.runInstallation(ctx, options.InstallationInstructions[c.Index], missing)
	case domain.SkipStep:
		return domain.StepSkipped{Step: missing.Ref()}, nil
	case domain.AbortPlan:
		return domain.PlanAborted{Reason: "user cancelled due to missing command"}, nil
	case domain.RetryOriginal:
		if e.Checker == nil {
			return domain.RetryRequested{}, nil
		}
		e.Checker.Forget(missing.Command)
		return domain.RetryRequested{Available: e.Checker.CommandExists(ctx, missing.Command)}, nil
	default:
		panic(fmt.Sprintf("recovery: unhandled choice %T", choice))
	}
}

func (e *Engine) runAlternative(ctx context.Context, alt domain.CommandAlternative) domain.RecoveryResult {
	e.print(fmt.Sprintf("Using alternative: %s\n", alt.Command))
	out, err := e.run(ctx, alt.Command)
	if err != nil {
		return domain.AlternativeFailed{Alternative: alt, Output: out, Reason: err.Error()}
	}
	if !out.Succeeded() {
		return domain.AlternativeFailed{Alternative: alt, Output: out, Reason: fmt.Sprintf("exit status %d", out.ExitCode)}
	}
	e.print("Alternative command succeeded.\n")
	return domain.AlternativeSucceeded{Alternative: alt, Output: out}
}

func (e *Engine) runInstallation(ctx context.Context, inst domain.InstallationInstruction, missing domain.MissingCommand) (domain.RecoveryResult, error) {
	if !e.Settings.AutoInstall {
		if e.Console == nil {
			return nil, ErrNoConsole
		}
		e.print(fmt.Sprintf("Installation for %s via %s:\n  %s\n", missing.Command, inst.PackageManager, inst.InstallCommand))
		confirmed, err := e.Console.Confirm(ctx, "Execute this installation command?")
		if err != nil {
			return nil, fmt.Errorf("confirm installation: %w", err)
		}
		if !confirmed {
			return domain.InstallationCancelled{}, nil
		}
	}

	e.print(fmt.Sprintf("Installing %s...\n", missing.Command))
	out, err := e.run(ctx, inst.InstallCommand)
	if err != nil {
		return domain.InstallationFailed{Instruction: inst, Output: out, Reason: err.Error()}, nil
	}
	if !out.Succeeded() {
		return domain.InstallationFailed{Instruction: inst, Output: out, Reason: fmt.Sprintf("exit status %d", out.ExitCode)}, nil
	}
	e.print("Installation completed.\n")
	return domain.InstallationSucceeded{Instruction: inst, Output: out}, nil
}

func (e *Engine) run(ctx context.Context, line string) (domain.CommandResult, error) {
	if e.Executor == nil {
		return domain.CommandResult{Command: line, ExitCode: -1}, errors.New("no executor configured")
	}
	return e.Executor.Run(ctx, line)
}

func (e *Engine) print(text string) {
	if e.Console != nil {
		e.Console.Print(text)
	}
}

func (e *Engine) logWarn(msg string, missing domain.MissingCommand, err error) {
	if e.Logger == nil {
		return
	}
	fields := map[string]interface{}{"command": missing.Command}
	if err != nil {
		fields["error"] = err.Error()
	}
	e.Logger.Warn(msg, fields)
}

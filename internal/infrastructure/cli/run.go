package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/li/internal/app"
	"github.com/doeshing/li/internal/application/classifier"
	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/infrastructure/cli/helpers"
)

type runFlags struct {
	yes         bool
	planOnly    bool
	strategy    string
	autoInstall bool
	explain     bool
	debug       bool
	timeout     time.Duration
}

func (f *runFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "Approve plans without asking (explicit-confirm risks still ask)")
	cmd.Flags().BoolVar(&f.planOnly, "plan-only", false, "Plan, validate and recover, but do not execute")
	cmd.Flags().StringVar(&f.strategy, "strategy", "", "Recovery strategy: alternatives-first|installation-first|skip-on-error|never-recover")
	cmd.Flags().BoolVar(&f.autoInstall, "auto-install", false, "Run suggested install commands without asking")
	cmd.Flags().BoolVar(&f.explain, "explain", false, "Have the model explain the output once the plan succeeds")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Abort the whole run after this long")
}

func newRunCommand(container *app.Container, opts Options, flags *runFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <goal...>",
		Short: "Plan and run a natural-language goal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGoal(cmd, container, opts, flags, args)
		},
	}
	flags.bind(cmd)
	return cmd
}

func (f *runFlags) overrides() (app.Overrides, error) {
	overrides := app.Overrides{AutoApprove: f.yes, AutoInstall: f.autoInstall}
	if f.strategy != "" {
		strategy, err := domain.ParseRecoveryStrategy(f.strategy)
		if err != nil {
			return app.Overrides{}, err
		}
		overrides.Strategy = strategy
	}
	return overrides, nil
}

func runGoal(cmd *cobra.Command, container *app.Container, opts Options, flags *runFlags, args []string) error {
	goal := strings.TrimSpace(strings.Join(args, " "))
	if goal == "" {
		return cmd.Help()
	}
	overrides, err := flags.overrides()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if flags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flags.timeout)
		defer cancel()
	}

	tty := interactive(opts.Stdin)
	renderer := NewRenderer(opts.Stdout, opts.Stderr, tty && writerIsTerminal(opts.Stderr), flags.debug)
	renderer.Security = container.SecurityService
	prompter := NewPrompter(opts.Stdin, opts.Stdout, renderer)

	fe := app.FrontEnd{Console: prompter, Events: renderer}
	if tty {
		fe.Approver = prompter
		fe.Resolver = prompter
	}

	orchestrator, err := container.NewOrchestrator(fe, overrides)
	if err != nil {
		return err
	}
	run := orchestrator.Run(ctx, domain.AgentRequest{Input: goal, PlanOnly: flags.planOnly})
	renderer.StopSpinner()

	if direct, ok := run.Outcome.(domain.DirectCommand); ok {
		if flags.planOnly {
			renderer.Direct(direct.Command)
			return nil
		}
		var confirm *Prompter
		if tty {
			confirm = prompter
		}
		return runDirect(ctx, container, confirm, flags.yes, direct.Command, opts)
	}
	if err := renderer.Outcome(run, container.Config.Execution.StreamOutput); err != nil {
		return err
	}
	if flags.explain {
		return explainRun(ctx, container, run, opts)
	}
	return nil
}

// explainRun asks the model about the output of a plan that ran to
// completion. Anything else has nothing worth explaining.
func explainRun(ctx context.Context, container *app.Container, run domain.AgentRun, opts Options) error {
	planned, ok := run.Outcome.(domain.Planned)
	if !ok || planned.Execution == nil || !planned.Execution.Success {
		return nil
	}
	var output strings.Builder
	for _, result := range planned.Execution.Commands {
		if !result.Skipped {
			output.WriteString(result.Stdout)
		}
	}
	if strings.TrimSpace(output.String()) == "" {
		fmt.Fprintln(opts.Stdout, "No output to explain.")
		return nil
	}

	explainer, err := container.NewExplainer()
	if err != nil {
		return err
	}
	answer, err := explainer.ExplainPlan(ctx, planned.Plan, output.String())
	if err != nil {
		return err
	}
	fmt.Fprint(opts.Stdout, "\nExplanation:\n\n")
	fmt.Fprintln(opts.Stdout, answer)
	return nil
}

const reasonReadsLikeProse = "reads like a sentence rather than a shell command"

// runDirect runs input that was already a shell command, after the same
// guardrail check a plan gets. Several plain words with no shell syntax
// always ask first, --yes or not.
func runDirect(ctx context.Context, container *app.Container, prompter *Prompter, yes bool, command string, opts Options) error {
	risk := domain.RiskAssessment{Command: command, Level: domain.RiskSafe, Action: domain.ActionAllow}
	if container.SecurityService != nil {
		evaluated, err := container.SecurityService.Evaluate(command)
		if err != nil {
			return fmt.Errorf("guardrail: %w", err)
		}
		risk = evaluated
		if risk.Action == domain.ActionBlock {
			return fmt.Errorf("command blocked by guardrail: %s", strings.Join(risk.Reasons, "; "))
		}
	}

	prose := len(strings.Fields(command)) > 1 && !classifier.HasShellSyntax(command)
	if prose {
		risk.Reasons = append(risk.Reasons, reasonReadsLikeProse)
		if risk.Action == domain.ActionAllow {
			risk.Action = domain.ActionConfirm
		}
		if risk.Level == domain.RiskSafe {
			risk.Level = domain.RiskLow
		}
	}

	ask := prose || risk.Action == domain.ActionExplicitConfirm || (risk.Action == domain.ActionConfirm && !yes)
	if ask {
		if prompter == nil {
			if prose || risk.Action == domain.ActionExplicitConfirm {
				return errors.New("command needs confirmation; rerun from a terminal")
			}
			return errors.New("command needs confirmation; rerun from a terminal or with --yes")
		}
		approved, err := prompter.Approve(ctx, domain.Plan{Confidence: 1, ExecuteCommands: []string{command}}, domain.PlanRisk{
			Highest:     risk.Level,
			Action:      risk.Action,
			Assessments: []domain.RiskAssessment{risk},
		})
		if err != nil {
			return err
		}
		if !approved {
			fmt.Fprintln(opts.Stdout, "Cancelled.")
			return nil
		}
	}

	result, err := container.Executor.Run(ctx, command)
	if err != nil {
		return err
	}
	if !container.Config.Execution.StreamOutput {
		fmt.Fprint(opts.Stdout, result.Stdout)
		fmt.Fprint(opts.Stderr, result.Stderr)
	}
	switch {
	case result.ExitCode > 0:
		return &helpers.ExitError{Code: result.ExitCode}
	case result.ExitCode < 0:
		return &helpers.ExitError{Code: 1}
	}
	return nil
}

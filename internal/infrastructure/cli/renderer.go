package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/doeshing/li/internal/application/agent"
	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/infrastructure/cli/helpers"
	"github.com/doeshing/li/internal/ports"
)

var (
	colorAccent  = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")
	colorCommand = lipgloss.Color("#60A5FA")
)

type styles struct {
	title   lipgloss.Style
	command lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	err     lipgloss.Style
	dim     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true),
		command: r.NewStyle().Foreground(colorCommand),
		ok:      r.NewStyle().Foreground(colorAccent).Bold(true),
		warn:    r.NewStyle().Foreground(colorWarning),
		err:     r.NewStyle().Foreground(colorError).Bold(true),
		dim:     r.NewStyle().Foreground(colorMuted),
	}
}

// Renderer prints plans, progress and outcomes for one pipeline run.
type Renderer struct {
	out     io.Writer
	errOut  io.Writer
	style   styles
	spinner *Spinner
	verbose bool
	// Security, when set, is used to show guardrail verdicts for plan-only runs.
	Security ports.SecurityService

	mu    sync.Mutex
	shown bool
}

// NewRenderer builds a renderer. animate enables the planning spinner on errOut.
func NewRenderer(out, errOut io.Writer, animate, verbose bool) *Renderer {
	r := &Renderer{
		out:     out,
		errOut:  errOut,
		style:   newStyles(lipgloss.NewRenderer(out)),
		verbose: verbose,
	}
	if animate {
		r.spinner = NewSpinner(errOut)
	}
	return r
}

var _ ports.EventSink = (*Renderer)(nil)

// Emit implements ports.EventSink.
func (r *Renderer) Emit(event domain.AgentEvent) {
	if event.Kind == domain.EventStageStarted && event.Stage == domain.StagePlanning {
		if r.spinner != nil {
			r.spinner.Start("planning...")
		}
	} else {
		r.StopSpinner()
	}
	if !r.verbose {
		return
	}
	msg := event.Message
	if msg == "" {
		msg = string(event.Kind)
	}
	stage := string(event.Stage)
	if stage == "" {
		stage = "agent"
	}
	fmt.Fprintln(r.errOut, r.style.dim.Render(fmt.Sprintf("[%s] %s", stage, msg)))
}

// StopSpinner clears the spinner before anything else is written.
func (r *Renderer) StopSpinner() {
	if r.spinner != nil {
		r.spinner.Stop()
	}
}

// Plan prints both phases of plan together with any flagged commands.
func (r *Renderer) Plan(plan domain.Plan, risk domain.PlanRisk) {
	r.StopSpinner()
	r.mu.Lock()
	r.shown = true
	r.mu.Unlock()

	fmt.Fprintln(r.out, r.style.title.Render(fmt.Sprintf("Plan (confidence %.2f)", plan.Confidence)))
	if notes := strings.TrimSpace(plan.Notes); notes != "" {
		fmt.Fprintln(r.out, r.style.dim.Render("  "+notes))
	}
	r.commandList("Dry run:", plan.DryRunCommands)
	r.commandList("Execute:", plan.ExecuteCommands)

	flagged := risk.Flagged()
	if len(flagged) == 0 {
		return
	}
	fmt.Fprintln(r.out, r.style.warn.Render(fmt.Sprintf("Risk: %s (%s)", strings.ToUpper(string(risk.Highest)), risk.Action)))
	for _, a := range flagged {
		fmt.Fprintf(r.out, "  %s %s\n", r.style.command.Render(a.Command), r.style.dim.Render("["+string(a.Level)+"]"))
		for _, reason := range a.Reasons {
			fmt.Fprintf(r.out, "    - %s\n", reason)
		}
	}
}

// Direct prints a shell line that plan-only mode leaves unexecuted.
func (r *Renderer) Direct(command string) {
	r.StopSpinner()
	fmt.Fprintln(r.out, r.style.title.Render("Direct command:"))
	fmt.Fprintf(r.out, "  %s\n", r.style.command.Render(command))
	if r.Security != nil {
		if risk, err := r.Security.Evaluate(command); err == nil && risk.Level != domain.RiskSafe {
			fmt.Fprintln(r.out, r.style.warn.Render(fmt.Sprintf("Risk: %s (%s)", strings.ToUpper(string(risk.Level)), risk.Action)))
			for _, reason := range risk.Reasons {
				fmt.Fprintf(r.out, "    - %s\n", reason)
			}
		}
	}
	fmt.Fprintln(r.out, r.style.dim.Render("Plan only: nothing was executed."))
}

func (r *Renderer) commandList(title string, commands []string) {
	if len(commands) == 0 {
		return
	}
	fmt.Fprintln(r.out, title)
	for i, c := range commands {
		fmt.Fprintf(r.out, "  %d. %s\n", i+1, r.style.command.Render(c))
	}
}

// Outcome prints the result of a run and returns the error the process
// should exit with. streamed reports whether command output already went to
// the terminal while executing.
func (r *Renderer) Outcome(run domain.AgentRun, streamed bool) error {
	r.StopSpinner()
	switch outcome := run.Outcome.(type) {
	case domain.DirectCommand:
		return nil
	case domain.Planned:
		return r.planned(outcome, streamed)
	case domain.Cancelled:
		fmt.Fprintln(r.out, r.style.warn.Render("Cancelled: "+outcome.Reason))
		return nil
	case domain.AwaitingClarification:
		fmt.Fprintln(r.out, r.style.title.Render("More information needed:"))
		fmt.Fprintf(r.out, "  %s\n", outcome.Question)
		if outcome.Context != "" {
			fmt.Fprintln(r.out, r.style.dim.Render("  "+outcome.Context))
		}
		fmt.Fprintln(r.out, r.style.dim.Render("Run li again with the answer included in the goal."))
		return &helpers.ExitError{Code: 2}
	case domain.Failed:
		r.failed(outcome)
		return outcome
	default:
		panic(fmt.Sprintf("cli: unhandled agent outcome %T", run.Outcome))
	}
}

func (r *Renderer) planned(outcome domain.Planned, streamed bool) error {
	r.mu.Lock()
	shown := r.shown
	r.mu.Unlock()

	if !shown {
		var risk domain.PlanRisk
		if r.Security != nil {
			if evaluated, err := r.Security.EvaluatePlan(outcome.Plan); err == nil {
				risk = evaluated
			}
		}
		r.Plan(outcome.Plan, risk)
	}

	for _, action := range outcome.Recovery {
		fmt.Fprintf(r.out, "%s %s: %s\n", r.style.warn.Render("recovery"), action.Missing.Command, domain.Describe(action.Result))
	}
	for _, m := range outcome.Validation.MissingCommands {
		fmt.Fprintf(r.out, "%s %s (%s step %d)\n", r.style.warn.Render("missing"), m.Command, m.Phase(), m.PlanStep+1)
	}

	if outcome.Execution == nil {
		fmt.Fprintln(r.out, r.style.dim.Render("Plan only: nothing was executed."))
		return nil
	}

	report := outcome.Execution
	for _, result := range report.Commands {
		r.commandResult(result, streamed)
	}
	for _, note := range report.Notes {
		fmt.Fprintln(r.out, r.style.dim.Render(note))
	}

	if failed, ok := report.FailedCommand(); ok {
		fmt.Fprintln(r.out, r.style.err.Render(fmt.Sprintf("Command failed with exit code %d: %s", failed.ExitCode, failed.Command)))
		code := failed.ExitCode
		if code <= 0 {
			code = 1
		}
		return &helpers.ExitError{Code: code}
	}
	fmt.Fprintln(r.out, r.style.ok.Render("Done."))
	return nil
}

func (r *Renderer) commandResult(result domain.CommandResult, streamed bool) {
	switch {
	case result.Skipped:
		fmt.Fprintf(r.out, "%s %s\n", r.style.dim.Render("skip"), result.Command)
		return
	case result.Succeeded():
		fmt.Fprintf(r.out, "%s %s %s\n", r.style.ok.Render("ok  "), result.Command, r.style.dim.Render(fmt.Sprintf("(%dms)", result.DurationMS)))
	default:
		fmt.Fprintf(r.out, "%s %s %s\n", r.style.err.Render("fail"), result.Command, r.style.dim.Render(fmt.Sprintf("(exit %d)", result.ExitCode)))
	}
	if streamed {
		return
	}
	if out := strings.TrimRight(result.Stdout, "\n"); out != "" {
		fmt.Fprintln(r.out, out)
	}
	if errText := strings.TrimRight(result.Stderr, "\n"); errText != "" {
		fmt.Fprintln(r.errOut, errText)
	}
}

func (r *Renderer) failed(outcome domain.Failed) {
	fmt.Fprintln(r.errOut, r.style.err.Render(fmt.Sprintf("Failed during %s: %v", outcome.Stage, outcome.Err)))

	var missing *agent.MissingCommandsError
	var blocked *agent.BlockedError
	switch {
	case errors.As(outcome.Err, &missing):
		for _, m := range missing.Missing {
			fmt.Fprintf(r.errOut, "  install %s or rerun with --strategy installation-first\n", m.Command)
		}
	case errors.As(outcome.Err, &blocked):
		for _, a := range blocked.Risk.Assessments {
			if a.Action != domain.ActionBlock {
				continue
			}
			fmt.Fprintf(r.errOut, "  %s: %s\n", a.Command, strings.Join(a.Reasons, "; "))
		}
		fmt.Fprintln(r.errOut, "  adjust the rules with `li guardrail` if this is expected")
	case errors.Is(outcome.Err, agent.ErrNotApproved):
		fmt.Fprintln(r.errOut, "  no terminal to confirm on; rerun with --yes to approve the plan")
	case outcome.Stage == domain.StagePlanning || outcome.Stage == domain.StageClassification:
		fmt.Fprintln(r.errOut, "  check the API key and connectivity with `li doctor`")
	case outcome.Stage == domain.StageRecovery:
		fmt.Fprintln(r.errOut, "  install the missing tool manually and try again")
	case outcome.Stage == domain.StageExecution:
		fmt.Fprintln(r.errOut, "  see the command output above")
	}
}

// Package executor runs plan commands on the host shell.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/pkg/logger"
	"github.com/doeshing/li/internal/ports"
)

// killGrace bounds how long Wait lingers on pipes held by orphaned children
// after a timed-out shell is killed.
const killGrace = time.Second

// ErrEmptyLine is returned by Run for blank input.
var ErrEmptyLine = errors.New("empty command line")

// LocalExecutor runs commands through "<shell> -c".
type LocalExecutor struct {
	shell   string
	timeout time.Duration
	stdout  io.Writer
	stderr  io.Writer
	logger  ports.Logger
}

// Option customizes a LocalExecutor.
type Option func(*LocalExecutor)

// WithTimeout bounds each command. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(e *LocalExecutor) { e.timeout = d }
}

// WithStream copies command output to stdout and stderr as it is produced.
func WithStream(stdout, stderr io.Writer) Option {
	return func(e *LocalExecutor) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(log ports.Logger) Option {
	return func(e *LocalExecutor) { e.logger = log }
}

// New builds an executor; shell defaults to $SHELL, then /bin/sh.
func New(shell string, opts ...Option) *LocalExecutor {
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	e := &LocalExecutor{shell: shell, logger: logger.Nop{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ ports.CommandExecutor = (*LocalExecutor)(nil)

// Shell returns the interpreter commands run under.
func (e *LocalExecutor) Shell() string {
	return e.shell
}

// Run executes one line. A non-zero exit is reported in the result, not as
// an error. Cancelling ctx does not interrupt a command that has started;
// only the configured timeout does.
func (e *LocalExecutor) Run(ctx context.Context, line string) (domain.CommandResult, error) {
	line = strings.TrimSpace(line)
	result := domain.CommandResult{Command: line}
	if line == "" {
		return result, ErrEmptyLine
	}

	runCtx := context.WithoutCancel(ctx)
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, e.shell, "-c", line)
	cmd.WaitDelay = killGrace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if e.stdout != nil {
		fmt.Fprintf(e.stdout, "$ %s\n", line)
		cmd.Stdout = io.MultiWriter(&stdout, e.stdout)
	}
	if e.stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, e.stderr)
	}

	start := time.Now()
	err := cmd.Run()
	result.DurationMS = time.Since(start).Milliseconds()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		if result.ExitCode < 0 {
			result.ExitCode = -1
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			result.Stderr += fmt.Sprintf("\ncommand timed out after %s", e.timeout)
		}
	case errors.Is(err, exec.ErrWaitDelay):
		// Output pipes stayed open after exit; the status is still valid.
		result.ExitCode = cmd.ProcessState.ExitCode()
	default:
		result.ExitCode = -1
		e.logger.Error("command spawn failed", err, map[string]interface{}{"command": line, "shell": e.shell})
		return result, fmt.Errorf("run %q: %w", line, err)
	}

	e.logger.Debug("command finished", map[string]interface{}{
		"command":     line,
		"exit_code":   result.ExitCode,
		"duration_ms": result.DurationMS,
	})
	return result, nil
}

// ExecutePlan runs the dry-run phase and then the execute phase, stopping at
// the first non-zero exit. Steps listed in opts.Skip are recorded as skipped.
// Cancellation is observed between commands; the partial report is returned
// alongside ctx.Err().
func (e *LocalExecutor) ExecutePlan(ctx context.Context, plan domain.Plan, opts domain.ExecuteOptions) (domain.ExecutionReport, error) {
	report := domain.ExecutionReport{Success: true}

	phases := []struct {
		name   string
		dryRun bool
		lines  []string
	}{
		{domain.PhaseDryRun, true, plan.DryRunCommands},
		{domain.PhaseExecute, false, plan.ExecuteCommands},
	}

	for _, phase := range phases {
		for i, line := range phase.lines {
			ref := domain.StepRef{Step: i, IsDryRun: phase.dryRun}
			if opts.Skip[ref] {
				report.Commands = append(report.Commands, domain.CommandResult{
					Command: line,
					Phase:   phase.name,
					Step:    i,
					Skipped: true,
				})
				continue
			}

			if err := ctx.Err(); err != nil {
				report.Success = false
				report.Notes = append(report.Notes, fmt.Sprintf("cancelled before %s step %d", phase.name, i+1))
				return report, err
			}

			result, err := e.Run(ctx, line)
			result.Phase = phase.name
			result.Step = i
			report.Commands = append(report.Commands, result)
			if err != nil {
				report.Success = false
				return report, fmt.Errorf("%s step %d: %w", phase.name, i+1, err)
			}

			if !result.Succeeded() {
				report.Success = false
				report.Notes = append(report.Notes, fmt.Sprintf("%s step %d exited with status %d", phase.name, i+1, result.ExitCode))
				return report, nil
			}
		}
	}
	return report, nil
}

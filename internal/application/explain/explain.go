// Package explain asks the model to interpret command output: either output
// piped into li or the output of a command li runs for the purpose.
package explain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/ports"
)

const (
	explainTemperature = 0.7
	pipedLabel         = "stdin (piped input)"
)

var (
	// ErrNothingToExplain is returned when there is neither a command nor input.
	ErrNothingToExplain = errors.New("explain needs a command to run or piped output")
	// ErrEmptyPipedInput is returned when stdin was piped but held only whitespace.
	ErrEmptyPipedInput = errors.New("piped input was empty; pipe command output or name a command to run")
	// ErrNoOutput is returned when the command printed nothing to explain.
	ErrNoOutput = errors.New("no output available to explain")
	// ErrNeedsApproval is returned when the guardrail wants confirmation first.
	ErrNeedsApproval = errors.New("command needs approval; rerun with --yes")
)

// Request describes one explanation.
type Request struct {
	Question string
	Command  string
	// Piped is stdin content; Piped wins over running Command.
	Piped    string
	HasPiped bool
	// Approved lets commands the guardrail wants confirmed run.
	Approved bool
}

// Result carries the output that was explained and the model's answer.
type Result struct {
	Source      string
	Stdout      string
	Stderr      string
	Ran         bool
	Explanation string
}

// Service runs or reads output and asks the model about it.
type Service struct {
	Completer ports.Completer
	Executor  ports.CommandExecutor
	Security  ports.SecurityService
	MaxTokens int
}

// SplitArgs separates a question from the command in free-form arguments.
// With an explicit question, or a single argument, everything is the command.
// Otherwise the last argument is the command when it was quoted as one word
// with spaces in it or the words before it ask a question.
func SplitArgs(question string, args []string) (string, string) {
	question = strings.TrimSpace(question)
	if len(args) == 0 {
		return question, ""
	}
	joined := strings.TrimSpace(strings.Join(args, " "))
	if question != "" || len(args) == 1 {
		return question, joined
	}

	last := strings.TrimSpace(args[len(args)-1])
	head := strings.TrimSpace(strings.Join(args[:len(args)-1], " "))
	if head == "" {
		return question, joined
	}
	if strings.Contains(head, "?") || strings.ContainsAny(last, " \t") {
		return head, last
	}
	return question, joined
}

// Explain gathers the output for req and returns the model's explanation.
func (s *Service) Explain(ctx context.Context, req Request) (Result, error) {
	piped := req.Piped
	if req.HasPiped && strings.TrimSpace(piped) == "" {
		piped = ""
		if req.Command == "" {
			return Result{}, ErrEmptyPipedInput
		}
	}
	if piped == "" && req.Command == "" {
		return Result{}, ErrNothingToExplain
	}

	var res Result
	switch {
	case piped != "":
		res.Source = pipedLabel
		if req.Command != "" {
			res.Source = req.Command
		}
		res.Stdout = piped
	default:
		if err := s.check(req.Command, req.Approved); err != nil {
			return Result{}, err
		}
		out, err := s.Executor.Run(ctx, req.Command)
		if err != nil {
			return Result{}, fmt.Errorf("run command: %w", err)
		}
		res.Source = req.Command
		res.Stdout = out.Stdout
		res.Stderr = out.Stderr
		res.Ran = true
	}

	output := res.Stdout
	if strings.TrimSpace(output) == "" {
		output = res.Stderr
	}
	if strings.TrimSpace(output) == "" {
		return res, ErrNoOutput
	}

	answer, err := s.complete(ctx, OutputPrompt(req.Question, res.Source, output))
	if err != nil {
		return res, err
	}
	res.Explanation = answer
	return res, nil
}

// ExplainPlan summarizes what an executed plan's output means.
func (s *Service) ExplainPlan(ctx context.Context, plan domain.Plan, output string) (string, error) {
	if strings.TrimSpace(output) == "" {
		return "", ErrNoOutput
	}
	return s.complete(ctx, PlanPrompt(plan, output))
}

func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	answer, err := s.Completer.Complete(ctx, ports.CompletionRequest{
		Prompt:      prompt,
		Temperature: explainTemperature,
		MaxTokens:   s.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("get explanation: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

func (s *Service) check(command string, approved bool) error {
	if s.Security == nil {
		return nil
	}
	risk, err := s.Security.Evaluate(command)
	if err != nil {
		return fmt.Errorf("guardrail: %w", err)
	}
	switch risk.Action {
	case domain.ActionBlock:
		return fmt.Errorf("command blocked by guardrail: %s", strings.Join(risk.Reasons, "; "))
	case domain.ActionConfirm, domain.ActionExplicitConfirm:
		if !approved {
			return fmt.Errorf("%w (%s)", ErrNeedsApproval, strings.Join(risk.Reasons, "; "))
		}
	}
	return nil
}

// OutputPrompt builds the prompt for explaining a command's output, or for
// answering question about it.
func OutputPrompt(question, command, output string) string {
	if question != "" {
		return fmt.Sprintf("A user asked the following question about a command they ran:\n"+
			"Question: %s\n"+
			"Command: '%s'\n"+
			"Output:\n%s\n"+
			"Please answer the question directly, referencing the command output.\n"+
			"Include any helpful context, summaries, and actionable insights the user should know.",
			question, command, output)
	}
	return fmt.Sprintf("Please explain the following command output in a clear, human-friendly way.\n"+
		"The command executed was: '%s'\n\n"+
		"Output:\n%s\n"+
		"Please provide:\n"+
		"1. What this output means in simple terms\n"+
		"2. Key insights or important information\n"+
		"3. Any warnings or things to pay attention to\n"+
		"4. What a user should understand from this result\n"+
		"Keep the explanation conversational and easy to understand for someone who might not be familiar with this command.",
		command, output)
}

// PlanPrompt builds the prompt for explaining an executed plan.
func PlanPrompt(plan domain.Plan, output string) string {
	var summary strings.Builder
	if len(plan.DryRunCommands) > 0 {
		summary.WriteString("Dry-run Commands:\n")
		for _, c := range plan.DryRunCommands {
			fmt.Fprintf(&summary, "  - %s\n", c)
		}
	}
	if len(plan.ExecuteCommands) > 0 {
		summary.WriteString("Execute Commands:\n")
		for _, c := range plan.ExecuteCommands {
			fmt.Fprintf(&summary, "  - %s\n", c)
		}
	}
	return fmt.Sprintf("Please explain the following command execution results in a clear, human-friendly way.\n\n"+
		"The plan that was executed:\n%s\n"+
		"Plan Notes: %s\n\n"+
		"Command Output:\n%s\n\n"+
		"Please provide:\n"+
		"1. What this output means in simple terms\n"+
		"2. Key insights or important information from the results\n"+
		"3. Any warnings or things to pay attention to\n"+
		"4. Whether the plan achieved its intended goal\n"+
		"5. Any follow-up actions the user might need to take\n\n"+
		"Keep the explanation conversational and easy to understand.",
		summary.String(), plan.Notes, output)
}

package recovery

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/doeshing/li/internal/domain"
)

// RenderMenu formats the recovery options for display. Alternatives are
// numbered first, installations continue the numbering and also answer to
// i1..iN, and skip takes the number after the last option.
func RenderMenu(options domain.RecoveryOptions, missing domain.MissingCommand) string {
	var b strings.Builder
	b.WriteString("\nCommand not found recovery\n")
	fmt.Fprintf(&b, "The command '%s' is not available on your system.\n", missing.Command)
	fmt.Fprintf(&b, "  (%s step %d: %s)\n", missing.Phase(), missing.PlanStep+1, missing.FailedCommandLine)

	if len(options.CommandAlternatives) > 0 {
		fmt.Fprintf(&b, "\nAlternatives (%d):\n", len(options.CommandAlternatives))
		for i, alt := range options.CommandAlternatives {
			fmt.Fprintf(&b, "  [%d] %s (%.0f%% confidence)\n", i+1, alt.Command, alt.Confidence*100)
			if alt.Description != "" {
				fmt.Fprintf(&b, "      %s\n", alt.Description)
			}
		}
	}

	if len(options.InstallationInstructions) > 0 {
		b.WriteString("\nInstallation options:\n")
		base := len(options.CommandAlternatives)
		for i, inst := range options.InstallationInstructions {
			fmt.Fprintf(&b, "  [%d|i%d] Install %s (%s)\n", base+i+1, i+1, missing.Command, inst.PackageManager)
			fmt.Fprintf(&b, "      %s\n", inst.InstallCommand)
			if inst.Caveat != "" {
				fmt.Fprintf(&b, "      %s\n", inst.Caveat)
			}
		}
	}

	b.WriteString("\n")
	total := optionCount(options)
	if options.CanSkipStep {
		fmt.Fprintf(&b, "  [%d|skip] Skip this step\n", total+1)
	}
	if options.RetryPossible {
		b.WriteString("  [retry] Retry original command\n")
	}
	b.WriteString("  [abort] Cancel entire plan\n")
	return b.String()
}

func menuPrompt(options domain.RecoveryOptions) string {
	limit := optionCount(options)
	if options.CanSkipStep {
		limit++
	}
	words := []string{}
	if options.CanSkipStep {
		words = append(words, "skip")
	}
	if options.RetryPossible {
		words = append(words, "retry")
	}
	words = append(words, "abort")
	if limit == 0 {
		return fmt.Sprintf("Your choice [%s]: ", strings.Join(words, "/"))
	}
	return fmt.Sprintf("Your choice [1-%d] or [%s]: ", limit, strings.Join(words, "/"))
}

func optionCount(options domain.RecoveryOptions) int {
	return len(options.CommandAlternatives) + len(options.InstallationInstructions)
}

// ParseChoice maps one line of user input to a RecoveryChoice. Anything
// outside the offered set is an error.
func ParseChoice(input string, options domain.RecoveryOptions) (domain.RecoveryChoice, error) {
	choice := strings.ToLower(strings.TrimSpace(input))
	alts := len(options.CommandAlternatives)
	installs := len(options.InstallationInstructions)

	switch choice {
	case "":
		return nil, fmt.Errorf("please enter a choice")
	case "skip":
		if !options.CanSkipStep {
			return nil, fmt.Errorf("skipping is not allowed for this step")
		}
		return domain.SkipStep{}, nil
	case "retry":
		if !options.RetryPossible {
			return nil, fmt.Errorf("retry is not available for this command")
		}
		return domain.RetryOriginal{}, nil
	case "abort":
		return domain.AbortPlan{}, nil
	}

	if strings.HasPrefix(choice, "i") {
		n, err := strconv.Atoi(choice[1:])
		if err != nil {
			return nil, fmt.Errorf("please enter a valid installation number (e.g. i1)")
		}
		if n < 1 || n > installs {
			if installs == 0 {
				return nil, fmt.Errorf("no installation options are available")
			}
			return nil, fmt.Errorf("invalid installation number, please enter i1-i%d", installs)
		}
		return domain.InstallCommand{Index: n - 1}, nil
	}

	n, err := strconv.Atoi(choice)
	if err != nil {
		return nil, fmt.Errorf("unrecognized choice %q", input)
	}
	switch {
	case n >= 1 && n <= alts:
		return domain.UseAlternative{Index: n - 1}, nil
	case n > alts && n <= alts+installs:
		return domain.InstallCommand{Index: n - alts - 1}, nil
	case options.CanSkipStep && n == alts+installs+1:
		return domain.SkipStep{}, nil
	}

	limit := alts + installs
	if options.CanSkipStep {
		limit++
	}
	if limit == 0 {
		return nil, fmt.Errorf("no numbered options are available, use the text options")
	}
	return nil, fmt.Errorf("please enter a number between 1 and %d, or a text option", limit)
}

// PresentRecoveryMenu shows the options and keeps prompting until the input
// names a valid choice. It fails only when the console cannot be read.
func (e *Engine) PresentRecoveryMenu(ctx context.Context, options domain.RecoveryOptions, missing domain.MissingCommand) (domain.RecoveryChoice, error) {
	if e.Console == nil {
		return nil, ErrNoConsole
	}
	e.Console.Print(RenderMenu(options, missing))
	prompt := menuPrompt(options)
	for {
		line, err := e.Console.ReadLine(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("read recovery choice: %w", err)
		}
		choice, err := ParseChoice(line, options)
		if err == nil {
			return choice, nil
		}
		e.Console.Print(fmt.Sprintf("Invalid choice: %v\n", err))
	}
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/li/internal/app"
	"github.com/doeshing/li/internal/application/doctor"
	"github.com/doeshing/li/internal/infrastructure/cli/helpers"
)

// NewGuardrailCommand creates the guardrail command
func NewGuardrailCommand(container *app.Container) *cobra.Command {
	guardrailCmd := &cobra.Command{
		Use:   "guardrail",
		Short: "Inspect and toggle the command guardrail",
	}

	guardrailCmd.AddCommand(
		&cobra.Command{
			Use:   "enable",
			Short: "Enable the guardrail",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return setGuardrailState(cmd.Context(), cmd.OutOrStdout(), container, true)
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Disable the guardrail (not recommended)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return setGuardrailState(cmd.Context(), cmd.OutOrStdout(), container, false)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show guardrail status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				showGuardrailStatus(cmd.OutOrStdout(), container)
				return nil
			},
		},
		&cobra.Command{
			Use:   "check <line>",
			Short: "Evaluate a shell line against the guardrail rules",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return checkLine(cmd.OutOrStdout(), container, strings.Join(args, " "))
			},
		},
	)

	return guardrailCmd
}

func setGuardrailState(ctx context.Context, out io.Writer, container *app.Container, enabled bool) error {
	cfg, err := container.ConfigProvider.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg.Security.Enabled = enabled
	if err := helpers.SaveConfigWithValidation(container, cfg); err != nil {
		return err
	}

	status := "disabled"
	if enabled {
		status = "enabled"
	}
	fmt.Fprintf(out, "Guardrail %s.\n", status)
	return nil
}

func showGuardrailStatus(out io.Writer, container *app.Container) {
	if container.SecurityService == nil {
		fmt.Fprintln(out, "Guardrail is disabled.")
		return
	}
	fmt.Fprintln(out, "Guardrail is enabled.")
	if src, ok := container.SecurityService.(doctor.RuleSource); ok {
		fmt.Fprintf(out, "Rules: %d from %s\n", src.RuleCount(), src.Source())
	}
}

func checkLine(out io.Writer, container *app.Container, line string) error {
	if container.SecurityService == nil {
		return errors.New("guardrail is disabled")
	}
	assessment, err := container.SecurityService.Evaluate(line)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Risk: %s (%s)\n", assessment.Level, assessment.Action)
	helpers.PrintWarnings(out, assessment.Reasons)
	return nil
}

package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/li/internal/app"
	"github.com/doeshing/li/internal/application/validator"
	"github.com/doeshing/li/internal/infrastructure/cli/helpers"
)

// NewValidateCommand creates the validate command
func NewValidateCommand(container *app.Container) *cobra.Command {
	var showStats bool

	cmd := &cobra.Command{
		Use:   "validate <line>...",
		Short: "Check whether the programs named by shell lines exist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Validator == nil {
				return errors.New("validator unavailable")
			}
			missing := validateLines(cmd, cmd.OutOrStdout(), container.Validator, args)
			if showStats {
				stats := container.Validator.CacheStats()
				fmt.Fprintf(cmd.OutOrStdout(), "cache: %d entries, %d found, %d probes\n",
					stats.Total, stats.Hits, container.Validator.ProbeCount())
			}
			if missing > 0 {
				return &helpers.ExitError{Code: 1}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showStats, "stats", false, "Print validator cache statistics")
	return cmd
}

func validateLines(cmd *cobra.Command, out io.Writer, v *validator.Validator, lines []string) int {
	missing := 0
	for _, line := range lines {
		found, err := v.CheckSingleCommand(cmd.Context(), line)
		switch {
		case errors.Is(err, validator.ErrEmptyCommand):
			fmt.Fprintf(out, "?  %q: no command found\n", line)
			missing++
		case found:
			token, _ := validator.ExtractCommand(line)
			fmt.Fprintf(out, "ok %s (%s)\n", line, token)
		default:
			token, _ := validator.ExtractCommand(line)
			fmt.Fprintf(out, "-- %s (%s not found)\n", line, token)
			missing++
		}
	}
	return missing
}

// NewToolsCommand creates the tools command
func NewToolsCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List common tools available on this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Validator == nil {
				return errors.New("validator unavailable")
			}
			tools := container.Validator.AvailableTools(cmd.Context())
			if len(tools) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No common tools found on PATH.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(tools, "\n"))
			return nil
		},
	}
}

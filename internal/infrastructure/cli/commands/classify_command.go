package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/li/internal/app"
	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/infrastructure/cli/helpers"
)

// typedClassifier is implemented by classifiers with a looser mode for lines
// the shell runs itself.
type typedClassifier interface {
	ClassifyTyped(ctx context.Context, input string) domain.Classification
}

// NewClassifyCommand creates the classify command used by the zsh hook.
// Terminal input exits with ClassifyTerminalExitCode.
func NewClassifyCommand(container *app.Container) *cobra.Command {
	var typed bool
	cmd := &cobra.Command{
		Use:   "classify -- <line>",
		Short: "Report whether a line is a shell command or a natural-language goal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Classifier == nil {
				return errors.New("classifier unavailable")
			}
			line := strings.Join(args, " ")

			var class domain.Classification
			if tc, ok := container.Classifier.(typedClassifier); ok && typed {
				class = tc.ClassifyTyped(cmd.Context(), line)
			} else {
				var err error
				class, err = container.Classifier.Classify(cmd.Context(), line)
				if err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), class.String())
			if class == domain.ClassTerminal {
				return &helpers.ExitError{Code: ClassifyTerminalExitCode}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&typed, "typed", false, "Line was typed at the shell prompt and runs in the shell when terminal")
	return cmd
}

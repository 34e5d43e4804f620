package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/li/internal/app"
	"github.com/doeshing/li/internal/ports"
)

const defaultChatTemperature = 0.7

var errEmptyPrompt = errors.New("prompt cannot be empty")

// NewChatCommand creates the chat command, a single completion call that
// bypasses planning.
func NewChatCommand(container *app.Container) *cobra.Command {
	var (
		model       string
		maxTokens   int
		temperature float64
	)
	cmd := &cobra.Command{
		Use:   "chat <prompt...>",
		Short: "Send a prompt straight to the model",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				return errEmptyPrompt
			}

			completer, def, err := container.Completer(model)
			if err != nil {
				return err
			}
			budget := maxTokens
			if budget <= 0 {
				budget = container.Config.GetMaxTokens(def)
			}
			reply, err := completer.Complete(cmd.Context(), ports.CompletionRequest{
				Prompt:      prompt,
				Temperature: temperature,
				MaxTokens:   budget,
			})
			if err != nil {
				return fmt.Errorf("chat completion failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Provider: %s\n", def.Name)
			fmt.Fprintf(out, "Model: %s\n\n", def.ModelID)
			fmt.Fprintln(out, strings.TrimSpace(reply))
			return nil
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "Configured model name (default: preferences.default_model)")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Context budget for the request (default: the model's max_tokens)")
	cmd.Flags().Float64Var(&temperature, "temperature", defaultChatTemperature, "Sampling temperature")
	return cmd
}

package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/doeshing/li/internal/app"
	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/infrastructure/ai"
	"github.com/doeshing/li/internal/infrastructure/cli/helpers"
	configinfra "github.com/doeshing/li/internal/infrastructure/config"
)

// NewSetupCommand creates the interactive provider setup.
func NewSetupCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Choose a provider, API key, timeout and model interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(cmd.Context(), cmd.OutOrStdout(), bufio.NewReader(cmd.InOrStdin()), container)
		},
	}
}

func runSetup(ctx context.Context, out io.Writer, reader *bufio.Reader, container *app.Container) error {
	loader, err := helpers.GetConfigLoader(container)
	if err != nil {
		return err
	}
	cfg, err := loader.Load(ctx)
	if err != nil {
		fmt.Fprintf(out, "Current configuration is unreadable (%v); starting from defaults.\n", err)
		cfg = configinfra.DefaultConfig()
	}
	if len(cfg.Models) == 0 {
		cfg.Models = configinfra.DefaultConfig().Models
	}

	fmt.Fprint(out, "li setup\nConfigure the model li plans with.\n\n")
	current := 0
	for i, m := range cfg.Models {
		fmt.Fprintf(out, "  %d. %s (%s)\n", i+1, m.Name, m.Endpoint)
		if m.Name == cfg.Preferences.DefaultModel {
			current = i
		}
	}
	idx, err := helpers.PromptChoice(out, reader, "Select provider", len(cfg.Models), current)
	if err != nil {
		return err
	}
	model := &cfg.Models[idx]

	hint := "leave empty to keep the current key"
	if model.APIKey == "" && model.AuthEnvVar != "" {
		hint = "leave empty to use $" + model.AuthEnvVar
	}
	key, err := helpers.PromptString(out, reader, fmt.Sprintf("API key for %s (%s)", model.Name, hint), "")
	if err != nil {
		return err
	}
	if key != "" {
		model.APIKey = key
	}

	timeout, err := helpers.PromptPositiveInt(out, reader, "Timeout in seconds", cfg.GetTimeoutSeconds())
	if err != nil {
		return err
	}
	cfg.Preferences.TimeoutSeconds = timeout

	picked, err := pickFromCatalog(ctx, out, reader, container, model)
	if err != nil {
		return err
	}
	if !picked {
		if err := enterModelManually(out, reader, &cfg, model); err != nil {
			return err
		}
	}

	cfg.Preferences.DefaultModel = model.Name
	if err := helpers.SaveConfigWithValidation(container, cfg); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nConfiguration saved to %s\n", loader.Path())
	fmt.Fprintf(out, "  Provider:   %s\n", model.Name)
	fmt.Fprintf(out, "  API key:    %s\n", helpers.MaskAPIKey(model.APIKey))
	fmt.Fprintf(out, "  Endpoint:   %s\n", model.Endpoint)
	fmt.Fprintf(out, "  Timeout:    %ds\n", timeout)
	fmt.Fprintf(out, "  Model:      %s\n", model.ModelID)
	fmt.Fprintf(out, "  Max tokens: %d\n", cfg.GetMaxTokens(*model))
	fmt.Fprint(out, "\nTry: li 'list all files in the current directory'\n")
	return nil
}

// pickFromCatalog offers OpenRouter's free models. It reports false when the
// catalog is unavailable so the caller falls back to manual entry.
func pickFromCatalog(ctx context.Context, out io.Writer, reader *bufio.Reader, container *app.Container, model *domain.ModelDefinition) (bool, error) {
	if container.Catalog == nil || !ai.IsOpenRouter(*model) {
		return false, nil
	}
	key, err := ai.ResolveAPIKey(*model)
	if err != nil || key == "" {
		fmt.Fprintln(out, "No API key available; skipping the free model list.")
		return false, nil
	}

	fmt.Fprintln(out, "\nFetching free models from OpenRouter...")
	models, err := container.Catalog.FreeModels(ctx, key)
	if err != nil {
		fmt.Fprintf(out, "Could not fetch models: %v\n", err)
		return false, nil
	}
	if len(models) == 0 {
		fmt.Fprintln(out, "No free models were returned.")
		return false, nil
	}

	fmt.Fprint(out, "\nAvailable free models:\n\n")
	for i, m := range models {
		window := ""
		if m.ContextLength > 0 {
			window = fmt.Sprintf(" (%d context)", m.ContextLength)
		}
		fmt.Fprintf(out, "  %d. %s%s\n", i+1, m.Name, window)
	}
	idx, err := helpers.PromptChoice(out, reader, "Select planner model", len(models), -1)
	if err != nil {
		return false, err
	}
	model.ModelID = models[idx].ID
	model.MaxTokens = ai.DeriveMaxTokens(models[idx].ContextLength)
	return true, nil
}

func enterModelManually(out io.Writer, reader *bufio.Reader, cfg *domain.Config, model *domain.ModelDefinition) error {
	id, err := helpers.PromptString(out, reader, "Model ID", model.ModelID)
	if err != nil {
		return err
	}
	model.ModelID = id

	tokens, err := helpers.PromptPositiveInt(out, reader, "Max tokens", cfg.GetMaxTokens(*model))
	if err != nil {
		return err
	}
	model.MaxTokens = tokens
	return nil
}

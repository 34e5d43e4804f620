package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/li/internal/app"
	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/infrastructure/ai"
	"github.com/doeshing/li/internal/infrastructure/cli/helpers"
	"github.com/doeshing/li/internal/ports"
)

const modelTestTimeout = 20 * time.Second

// NewModelsCommand creates the models command with all subcommands
func NewModelsCommand(container *app.Container) *cobra.Command {
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List, select and test configured models",
	}

	var remote bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List configured models, or OpenRouter's free models with --remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if remote {
				return listRemoteModels(cmd.Context(), cmd.OutOrStdout(), container)
			}
			return listModels(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}
	listCmd.Flags().BoolVar(&remote, "remote", false, "List free models available from OpenRouter")

	modelsCmd.AddCommand(
		listCmd,
		&cobra.Command{
			Use:   "use <name>",
			Short: "Set the default model",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return setDefaultModel(cmd.Context(), cmd.OutOrStdout(), container, args[0])
			},
		},
		&cobra.Command{
			Use:   "test <name>",
			Short: "Send a short prompt to a model",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return testModel(cmd.Context(), cmd.OutOrStdout(), container, args[0])
			},
		},
	)

	return modelsCmd
}

func listModels(ctx context.Context, out io.Writer, container *app.Container) error {
	cfg, err := container.ConfigProvider.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	fmt.Fprintf(out, "NAME\tMODEL ID\tENDPOINT\tDEFAULT\n")
	defaultModel, _ := cfg.GetDefaultModel()
	for _, model := range cfg.Models {
		marker := ""
		if model.Name == defaultModel.Name {
			marker = "*"
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", model.Name, model.ModelID, model.Endpoint, marker)
	}
	return nil
}

func listRemoteModels(ctx context.Context, out io.Writer, container *app.Container) error {
	if container.Catalog == nil {
		return errors.New("model catalog is not available")
	}
	cfg, err := container.ConfigProvider.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	var (
		source domain.ModelDefinition
		found  bool
	)
	for _, model := range cfg.Models {
		if ai.IsOpenRouter(model) {
			source, found = model, true
			break
		}
	}
	if !found {
		return errors.New("no OpenRouter model is configured; run `li setup`")
	}
	key, err := ai.ResolveAPIKey(source)
	if err != nil {
		return err
	}

	models, err := container.Catalog.FreeModels(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to fetch free models: %w", err)
	}
	fmt.Fprintf(out, "ID\tNAME\tCONTEXT\n")
	for _, m := range models {
		fmt.Fprintf(out, "%s\t%s\t%d\n", m.ID, m.Name, m.ContextLength)
	}
	return nil
}

func setDefaultModel(ctx context.Context, out io.Writer, container *app.Container, name string) error {
	cfg, err := container.ConfigProvider.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if !cfg.HasModel(name) {
		return fmt.Errorf("model %s not found", name)
	}
	cfg.Preferences.DefaultModel = name
	if err := helpers.SaveConfigWithValidation(container, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Default model set to %s.\n", name)
	return nil
}

func testModel(ctx context.Context, out io.Writer, container *app.Container, name string) error {
	cfg, err := container.ConfigProvider.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	model, exists := cfg.FindModelByName(name)
	if !exists {
		return fmt.Errorf("model %s not found", name)
	}
	completer, err := container.Completers.ForModel(model)
	if err != nil {
		return fmt.Errorf("failed to create client for model %s: %w", name, err)
	}

	testCtx, cancel := context.WithTimeout(ctx, modelTestTimeout)
	defer cancel()
	reply, err := completer.Complete(testCtx, ports.CompletionRequest{
		Prompt:    "Reply with the single word: ready",
		MaxTokens: 64,
	})
	if err != nil {
		return fmt.Errorf("model %s test failed: %w", name, err)
	}
	fmt.Fprintf(out, "Model %s responded: %s\n", name, strings.TrimSpace(reply))
	return nil
}

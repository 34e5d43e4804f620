package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/li/internal/app"
	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/infrastructure/ai"
	"github.com/doeshing/li/internal/infrastructure/cli/helpers"
	"github.com/doeshing/li/internal/infrastructure/config"
	"github.com/doeshing/li/internal/ports"
)

type fakeCatalog struct {
	models []domain.RemoteModel
	err    error
	keys   []string
}

func (f *fakeCatalog) FreeModels(_ context.Context, apiKey string) ([]domain.RemoteModel, error) {
	f.keys = append(f.keys, apiKey)
	return f.models, f.err
}

type cannedCompleter struct {
	model    domain.ModelDefinition
	reply    string
	requests []ports.CompletionRequest
}

func (c *cannedCompleter) Name() string                  { return c.model.Name }
func (c *cannedCompleter) Model() domain.ModelDefinition { return c.model }

func (c *cannedCompleter) Complete(_ context.Context, req ports.CompletionRequest) (string, error) {
	c.requests = append(c.requests, req)
	return c.reply, nil
}

type cannedCompleters struct {
	completer *cannedCompleter
}

func (f cannedCompleters) ForModel(model domain.ModelDefinition) (ports.Completer, error) {
	f.completer.model = model
	return f.completer, nil
}

type cannedExecutor struct {
	result domain.CommandResult
	ran    []string
}

func (e *cannedExecutor) Run(_ context.Context, line string) (domain.CommandResult, error) {
	e.ran = append(e.ran, line)
	r := e.result
	r.Command = line
	return r, nil
}

func (e *cannedExecutor) ExecutePlan(context.Context, domain.Plan, domain.ExecuteOptions) (domain.ExecutionReport, error) {
	return domain.ExecutionReport{}, errors.New("not used")
}

var freeModels = []domain.RemoteModel{
	{ID: "meta-llama/llama-3.3-8b-instruct:free", Name: "Llama 3.3 8B", ContextLength: 8192},
	{ID: "qwen/qwen3-coder:free", Name: "Qwen3 Coder"},
}

func TestSetupCommand(t *testing.T) {
	t.Run("manual model entry", func(t *testing.T) {
		loader := isolatedConfig(t)
		t.Setenv("CEREBRAS_API_KEY", "")
		catalog := &fakeCatalog{models: freeModels}
		c := &app.Container{ConfigProvider: loader, ConfigLoader: loader, Catalog: catalog}

		input := "2\ncsk-1234567890abcdef\nabc\n45\nllama-4-scout\n\n"
		out, err := executeWithInput(NewSetupCommand(c), input)
		require.NoError(t, err)
		assert.Empty(t, catalog.keys)
		assert.Contains(t, out, "Please enter a valid number.")
		assert.Contains(t, out, "API key:    csk-1234***")

		cfg, err := loader.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "cerebras", cfg.Preferences.DefaultModel)
		assert.Equal(t, 45, cfg.Preferences.TimeoutSeconds)
		model, ok := cfg.FindModelByName("cerebras")
		require.True(t, ok)
		assert.Equal(t, "csk-1234567890abcdef", model.APIKey)
		assert.Equal(t, "llama-4-scout", model.ModelID)
	})

	t.Run("free model from the catalog", func(t *testing.T) {
		loader := isolatedConfig(t)
		t.Setenv("OPENROUTER_API_KEY", "sk-or-env")
		catalog := &fakeCatalog{models: freeModels}
		c := &app.Container{ConfigProvider: loader, ConfigLoader: loader, Catalog: catalog}

		out, err := executeWithInput(NewSetupCommand(c), "\n\n\n\n1\n")
		require.NoError(t, err)
		assert.Equal(t, []string{"sk-or-env"}, catalog.keys)
		assert.Contains(t, out, "  1. Llama 3.3 8B (8192 context)\n  2. Qwen3 Coder\n")
		assert.Contains(t, out, "Please select a number.")

		cfg, err := loader.Load(context.Background())
		require.NoError(t, err)
		model, ok := cfg.FindModelByName("openrouter")
		require.True(t, ok)
		assert.Empty(t, model.APIKey)
		assert.Equal(t, "meta-llama/llama-3.3-8b-instruct:free", model.ModelID)
		assert.Equal(t, ai.DeriveMaxTokens(8192), model.MaxTokens)
	})

	t.Run("catalog failure falls back to manual entry", func(t *testing.T) {
		loader := isolatedConfig(t)
		t.Setenv("OPENROUTER_API_KEY", "sk-or-env")
		c := &app.Container{ConfigProvider: loader, ConfigLoader: loader, Catalog: &fakeCatalog{err: errors.New("503")}}

		out, err := executeWithInput(NewSetupCommand(c), "1\n\n\nopenai/gpt-oss-20b:free\n4096\n")
		require.NoError(t, err)
		assert.Contains(t, out, "Could not fetch models: 503")

		cfg, err := loader.Load(context.Background())
		require.NoError(t, err)
		model, _ := cfg.FindModelByName("openrouter")
		assert.Equal(t, "openai/gpt-oss-20b:free", model.ModelID)
		assert.Equal(t, 4096, model.MaxTokens)
	})

	t.Run("closed input", func(t *testing.T) {
		loader := isolatedConfig(t)
		c := &app.Container{ConfigProvider: loader, ConfigLoader: loader}
		_, err := executeWithInput(NewSetupCommand(c), "2\n")
		assert.ErrorIs(t, err, helpers.ErrInputClosed)
	})
}

func TestModelsListRemote(t *testing.T) {
	loader := isolatedConfig(t)
	catalog := &fakeCatalog{models: freeModels}
	c := &app.Container{ConfigProvider: loader, ConfigLoader: loader, Catalog: catalog}

	t.Setenv("OPENROUTER_API_KEY", "sk-or-env")
	out, err := execute(NewModelsCommand(c), "list", "--remote")
	require.NoError(t, err)
	assert.Equal(t, "ID\tNAME\tCONTEXT\n"+
		"meta-llama/llama-3.3-8b-instruct:free\tLlama 3.3 8B\t8192\n"+
		"qwen/qwen3-coder:free\tQwen3 Coder\t0\n", out)
	assert.Equal(t, []string{"sk-or-env"}, catalog.keys)

	t.Setenv("OPENROUTER_API_KEY", "")
	_, err = execute(NewModelsCommand(c), "list", "--remote")
	assert.ErrorIs(t, err, ai.ErrMissingAPIKey)

	_, err = execute(NewModelsCommand(&app.Container{ConfigProvider: loader}), "list", "--remote")
	assert.Error(t, err)
}

func TestChatCommand(t *testing.T) {
	completer := &cannedCompleter{reply: "  Paris.  "}
	c := &app.Container{Config: config.DefaultConfig(), Completers: cannedCompleters{completer: completer}}

	out, err := execute(NewChatCommand(c), "--model", "cerebras", "--max-tokens", "256", "capital", "of", "France?")
	require.NoError(t, err)
	assert.Equal(t, "Provider: cerebras\nModel: llama-3.3-70b\n\nParis.\n", out)
	require.Len(t, completer.requests, 1)
	assert.Equal(t, ports.CompletionRequest{Prompt: "capital of France?", Temperature: defaultChatTemperature, MaxTokens: 256}, completer.requests[0])

	_, err = execute(NewChatCommand(c))
	assert.ErrorIs(t, err, errEmptyPrompt)

	_, err = execute(NewChatCommand(c), "--model", "missing", "hi")
	assert.Error(t, err)

	broken := &app.Container{Config: config.DefaultConfig(), ConfigErr: errors.New("bad yaml"), Completers: cannedCompleters{completer: completer}}
	_, err = execute(NewChatCommand(broken), "hi")
	assert.ErrorContains(t, err, "bad yaml")
}

func TestExplainCommand(t *testing.T) {
	newContainer := func(completer *cannedCompleter, exec *cannedExecutor) *app.Container {
		cfg := config.DefaultConfig()
		cfg.Execution.StreamOutput = false
		return &app.Container{Config: cfg, Completers: cannedCompleters{completer: completer}, Executor: exec}
	}

	t.Run("piped output", func(t *testing.T) {
		completer := &cannedCompleter{reply: "The disk is full."}
		exec := &cannedExecutor{}
		out, err := executeWithInput(NewExplainCommand(newContainer(completer, exec)), "write error: no space left\n", "-q", "why did it fail?")
		require.NoError(t, err)
		assert.Empty(t, exec.ran)
		assert.Contains(t, out, "Analyzing piped input from stdin\n")
		assert.Contains(t, out, "Command output:\nwrite error: no space left\n")
		assert.Contains(t, out, "\nExplanation:\n\nThe disk is full.\n")
		assert.Contains(t, completer.requests[0].Prompt, "Question: why did it fail?")
	})

	t.Run("runs the command with its own flags", func(t *testing.T) {
		completer := &cannedCompleter{reply: "Plenty of space."}
		exec := &cannedExecutor{result: domain.CommandResult{Stdout: "/dev/sda1  12%\n"}}
		out, err := execute(NewExplainCommand(newContainer(completer, exec)), "df", "-h")
		require.NoError(t, err)
		assert.Equal(t, []string{"df -h"}, exec.ran)
		assert.Contains(t, out, "Executing: df -h\n")
		assert.Contains(t, out, "Command output:\n/dev/sda1  12%\n")
	})

	t.Run("nothing to explain", func(t *testing.T) {
		_, err := execute(NewExplainCommand(newContainer(&cannedCompleter{}, &cannedExecutor{})))
		require.Error(t, err)
	})
}

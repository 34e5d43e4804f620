// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// The agent core (validator, recovery engine, orchestrator) depends only on
// these abstractions. Adapters in the infrastructure layer implement them:
// the HTTP completion client, the shell executor, the YAML config loader,
// the SQLite history store and the terminal prompter.
package ports

import (
	"context"

	"github.com/doeshing/li/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// ContextCollector describes the host for planner and recovery prompts.
type ContextCollector interface {
	Collect(context.Context) (domain.SystemContext, error)
}

// CompleterFactory builds completion clients from model definitions.
type CompleterFactory interface {
	ForModel(domain.ModelDefinition) (Completer, error)
}

// ModelCatalog lists models a provider offers without charge.
type ModelCatalog interface {
	FreeModels(ctx context.Context, apiKey string) ([]domain.RemoteModel, error)
}

// CompletionRequest is a single prompt sent to a language model.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Completer turns a prompt into raw text. The text carries no structural
// guarantee; callers parse it defensively.
type Completer interface {
	Name() string
	Model() domain.ModelDefinition
	Complete(context.Context, CompletionRequest) (string, error)
}

// Classifier decides whether input is a shell command or a natural-language goal.
type Classifier interface {
	Classify(ctx context.Context, input string) (domain.Classification, error)
}

// Planner turns a goal into a Plan or a clarifying Question.
type Planner interface {
	Plan(context.Context, domain.PlanRequest) (domain.PlannerResponse, error)
}

// CommandExecutor runs shell lines. Non-zero exits are reported in the
// result; only spawn failures are errors.
type CommandExecutor interface {
	Run(ctx context.Context, command string) (domain.CommandResult, error)
	ExecutePlan(ctx context.Context, plan domain.Plan, opts domain.ExecuteOptions) (domain.ExecutionReport, error)
}

// QuestionResolver asks the user a planner question and returns the answer.
type QuestionResolver interface {
	Resolve(ctx context.Context, question domain.Question) (string, error)
}

// Approver records the user's go/no-go on a validated plan.
type Approver interface {
	Approve(ctx context.Context, plan domain.Plan, risk domain.PlanRisk) (bool, error)
}

// Console is the line-oriented terminal the recovery menu talks through.
type Console interface {
	Print(text string)
	ReadLine(ctx context.Context, prompt string) (string, error)
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// SecurityService evaluates commands against guardrail rules.
type SecurityService interface {
	Evaluate(command string) (domain.RiskAssessment, error)
	EvaluatePlan(plan domain.Plan) (domain.PlanRisk, error)
}

// ShellIntegrator manages the shell hook that routes input through li.
type ShellIntegrator interface {
	Install(shell string, force bool) (domain.ShellInstallResult, error)
	Uninstall(shell string) (domain.ShellInstallResult, error)
	Status(shell string) domain.ShellStatus
	DetectShell() string
}

// RunHistoryRepository persists pipeline run summaries.
type RunHistoryRepository interface {
	Save(domain.RunRecord) error
	Records(limit int, search string) ([]domain.RunRecord, error)
	Clear() error
	ExportJSON(dest string) error
	PruneOlderThan(days int) error
	Path() string
}

// EventSink receives agent events as they are appended to a run's log.
type EventSink interface {
	Emit(domain.AgentEvent)
}

// Logger provides structured logging abstraction for the application layer.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}

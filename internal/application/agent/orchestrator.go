// Package agent sequences classify, plan, validate, recover and execute over
// one AgentContext and reduces every run to a single AgentOutcome.
//
// Stage errors never escape Run. Transport failures become Failed with the
// stage that saw them; user declines become Cancelled.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/pkg/logger"
	"github.com/doeshing/li/internal/ports"
)

var (
	ErrEmptyRequest       = errors.New("empty request")
	ErrClarificationLimit = errors.New("planner kept asking questions")
	ErrRecoveryLimit      = errors.New("recovery round limit reached")
	ErrNotApproved        = errors.New("no approval source configured")
)

// PlanValidator is the validator surface the pipeline needs.
type PlanValidator interface {
	ValidatePlan(ctx context.Context, plan domain.Plan) domain.ValidationResult
	Forget(token string)
}

// RecoveryEngine is the recovery surface the pipeline needs.
type RecoveryEngine interface {
	ShouldAttemptRecovery(strategy domain.RecoveryStrategy) bool
	GenerateRecoveryOptions(ctx context.Context, strategy domain.RecoveryStrategy, missing domain.MissingCommand, plan domain.Plan, goal string) domain.RecoveryOptions
	PresentRecoveryMenu(ctx context.Context, options domain.RecoveryOptions, missing domain.MissingCommand) (domain.RecoveryChoice, error)
	ExecuteRecovery(ctx context.Context, choice domain.RecoveryChoice, missing domain.MissingCommand, options domain.RecoveryOptions) (domain.RecoveryResult, error)
}

// Settings is the configuration surface the pipeline consumes.
type Settings struct {
	Strategy          domain.RecoveryStrategy
	AutoApprove       bool
	MaxClarifications int
	MaxRecoveryRounds int
}

// SettingsFromConfig derives pipeline settings from the loaded config.
func SettingsFromConfig(cfg domain.Config) Settings {
	return Settings{
		Strategy:          cfg.GetRecoveryStrategy(),
		AutoApprove:       cfg.Agent.AutoApprove,
		MaxClarifications: cfg.GetMaxClarifications(),
		MaxRecoveryRounds: cfg.GetMaxRecoveryRounds(),
	}
}

// MissingCommandsError carries the commands that blocked a plan.
type MissingCommandsError struct {
	Missing []domain.MissingCommand
}

func (e *MissingCommandsError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		parts = append(parts, fmt.Sprintf("%s (%s step %d)", m.Command, m.Phase(), m.PlanStep+1))
	}
	return "missing commands: " + strings.Join(parts, ", ")
}

// BlockedError reports a plan stopped by a guardrail block rule.
type BlockedError struct {
	Risk domain.PlanRisk
}

func (e *BlockedError) Error() string {
	for _, a := range e.Risk.Assessments {
		if a.Action == domain.ActionBlock {
			return fmt.Sprintf("command blocked by guardrail: %s", a.Command)
		}
	}
	return "plan blocked by guardrail"
}

// Orchestrator runs the agent pipeline. Only Planner and Validator are
// required; every other collaborator is optional.
type Orchestrator struct {
	Classifier ports.Classifier
	Planner    ports.Planner
	Validator  PlanValidator
	Recovery   RecoveryEngine
	Executor   ports.CommandExecutor
	Approver   ports.Approver
	Resolver   ports.QuestionResolver
	Security   ports.SecurityService
	Collector  ports.ContextCollector
	History    ports.RunHistoryRepository
	Events     ports.EventSink
	Logger     ports.Logger
	Settings   Settings

	Now   func() time.Time
	NewID func() string
}

// Run drives one request to a terminal outcome and records it in history.
func (o *Orchestrator) Run(ctx context.Context, req domain.AgentRequest) domain.AgentRun {
	ac := newAgentContext(o.newID(), req, o.now, o.Events)
	outcome := o.pipeline(ctx, ac)
	run := ac.finish(outcome)

	o.log().Info("agent run finished", map[string]interface{}{
		"run":     run.ID,
		"outcome": domain.OutcomeKind(outcome),
	})
	o.saveHistory(ac, run)
	return run
}

func (o *Orchestrator) pipeline(ctx context.Context, ac *AgentContext) domain.AgentOutcome {
	input := strings.TrimSpace(ac.Request.Input)
	if input == "" {
		return o.fail(ac, domain.StageClassification, ErrEmptyRequest)
	}
	if o.Planner == nil || o.Validator == nil {
		return o.fail(ac, domain.StagePlanning, errors.New("agent.Orchestrator dependencies not satisfied"))
	}

	if outcome := o.classify(ctx, ac, input); outcome != nil {
		return outcome
	}
	if outcome := o.plan(ctx, ac, input); outcome != nil {
		return outcome
	}
	if outcome := o.validateAndRecover(ctx, ac); outcome != nil {
		return outcome
	}
	if outcome := o.guardrail(ac); outcome != nil {
		return outcome
	}
	if ac.Request.PlanOnly {
		ac.stageSkipped(domain.StageExecution, "plan only")
		return o.planned(ac)
	}
	if outcome := o.approve(ctx, ac); outcome != nil {
		return outcome
	}
	return o.execute(ctx, ac)
}

func (o *Orchestrator) classify(ctx context.Context, ac *AgentContext, input string) domain.AgentOutcome {
	if o.Classifier == nil {
		ac.stageSkipped(domain.StageClassification, "no classifier")
		return nil
	}
	ac.stageStarted(domain.StageClassification)
	class, err := o.Classifier.Classify(ctx, input)
	if err != nil {
		return o.fail(ac, domain.StageClassification, err)
	}
	ac.recordClassification(class)
	ac.stageCompleted(domain.StageClassification)
	if class == domain.ClassTerminal {
		return domain.DirectCommand{Command: input}
	}
	return nil
}

func (o *Orchestrator) plan(ctx context.Context, ac *AgentContext, goal string) domain.AgentOutcome {
	ac.stageStarted(domain.StagePlanning)

	var system domain.SystemContext
	if o.Collector != nil {
		snapshot, err := o.Collector.Collect(ctx)
		if err != nil {
			o.log().Warn("context collection failed", map[string]interface{}{"error": err.Error()})
		}
		system = snapshot
	}

	for {
		resp, err := o.Planner.Plan(ctx, domain.PlanRequest{
			Goal:           goal,
			System:         system,
			Clarifications: append([]domain.Clarification(nil), ac.Clarifications...),
		})
		if err != nil {
			return o.fail(ac, domain.StagePlanning, err)
		}

		switch r := resp.(type) {
		case domain.Plan:
			ac.recordPlan(r)
			ac.stageCompleted(domain.StagePlanning)
			return nil
		case domain.Question:
			if len(ac.Clarifications) >= o.maxClarifications() {
				return o.fail(ac, domain.StagePlanning, fmt.Errorf("%w after %d answers", ErrClarificationLimit, len(ac.Clarifications)))
			}
			if o.Resolver == nil {
				ac.message(domain.StagePlanning, "awaiting clarification")
				return domain.AwaitingClarification{Question: r.Text, Context: r.Context}
			}
			answer, err := o.Resolver.Resolve(ctx, r)
			if err != nil {
				return o.interrupted(ac, domain.StagePlanning, err, "planning cancelled")
			}
			answer = strings.TrimSpace(answer)
			if answer == "" || strings.EqualFold(answer, "skip") {
				return o.cancel(ac, "planning cancelled by user")
			}
			ac.recordClarification(r, answer)
		default:
			panic(fmt.Sprintf("agent: unhandled planner response %T", resp))
		}
	}
}

// validateAndRecover loops validation and recovery until the plan can run.
// Each missing step gets at most MaxRecoveryRounds attempts.
func (o *Orchestrator) validateAndRecover(ctx context.Context, ac *AgentContext) domain.AgentOutcome {
	plan := *ac.Plan
	rounds := make(map[domain.StepRef]int)

	for {
		ac.stageStarted(domain.StageValidation)
		result := o.Validator.ValidatePlan(ctx, plan).Without(ac.resolved)
		ac.recordValidation(result)
		ac.stageCompleted(domain.StageValidation)

		if result.PlanCanContinue {
			if len(result.MissingCommands) > 0 {
				ac.message(domain.StageValidation, "continuing with missing dry-run commands")
			}
			return nil
		}

		strategy := o.Settings.Strategy
		if o.Recovery == nil || !o.Recovery.ShouldAttemptRecovery(strategy) {
			ac.stageSkipped(domain.StageRecovery, "recovery disabled")
			return o.fail(ac, domain.StageValidation, &MissingCommandsError{Missing: result.MissingCommands})
		}

		missing, _ := result.FirstBlocking()
		ref := missing.Ref()
		if rounds[ref] >= o.maxRecoveryRounds() {
			return o.fail(ac, domain.StageRecovery, fmt.Errorf("%w for %s", ErrRecoveryLimit, missing.Command))
		}
		rounds[ref]++

		if outcome := o.recoverOnce(ctx, ac, strategy, missing); outcome != nil {
			return outcome
		}
	}
}

func (o *Orchestrator) recoverOnce(ctx context.Context, ac *AgentContext, strategy domain.RecoveryStrategy, missing domain.MissingCommand) domain.AgentOutcome {
	ac.stageStarted(domain.StageRecovery)
	plan := *ac.Plan

	options := o.Recovery.GenerateRecoveryOptions(ctx, strategy, missing, plan, ac.Request.Input)
	choice, err := o.Recovery.PresentRecoveryMenu(ctx, options, missing)
	if err != nil {
		return o.interrupted(ac, domain.StageRecovery, err, "recovery cancelled")
	}
	result, err := o.Recovery.ExecuteRecovery(ctx, choice, missing, options)
	if err != nil {
		return o.interrupted(ac, domain.StageRecovery, err, "recovery cancelled")
	}
	ac.recordRecovery(missing, result)
	ac.stageCompleted(domain.StageRecovery)

	switch r := result.(type) {
	case domain.AlternativeSucceeded, domain.StepSkipped:
		ac.resolve(missing.Ref())
	case domain.InstallationSucceeded, domain.RetryRequested:
		o.Validator.Forget(missing.Command)
	case domain.AlternativeFailed, domain.InstallationFailed:
		// another round, bounded by the caller
	case domain.InstallationCancelled:
		return o.cancel(ac, "installation cancelled")
	case domain.PlanAborted:
		return o.cancel(ac, r.Reason)
	default:
		panic(fmt.Sprintf("agent: unhandled recovery result %T", result))
	}
	return nil
}

func (o *Orchestrator) guardrail(ac *AgentContext) domain.AgentOutcome {
	if o.Security == nil {
		return nil
	}
	risk, err := o.Security.EvaluatePlan(*ac.Plan)
	if err != nil {
		return o.fail(ac, domain.StageValidation, fmt.Errorf("guardrail: %w", err))
	}
	ac.Risk = &risk
	if risk.Blocked() {
		return o.fail(ac, domain.StageValidation, &BlockedError{Risk: risk})
	}
	if flagged := risk.Flagged(); len(flagged) > 0 {
		ac.message(domain.StageValidation, fmt.Sprintf("guardrail flagged %d command(s) as %s", len(flagged), risk.Highest))
	}
	return nil
}

// approve records approval. Auto-approve never covers plans whose risk
// demands explicit confirmation.
func (o *Orchestrator) approve(ctx context.Context, ac *AgentContext) domain.AgentOutcome {
	var risk domain.PlanRisk
	if ac.Risk != nil {
		risk = *ac.Risk
	}

	if o.Settings.AutoApprove && risk.Action != domain.ActionExplicitConfirm {
		ac.Approved = true
		ac.message(domain.StageExecution, "plan auto-approved")
		return nil
	}
	if o.Approver == nil {
		return o.fail(ac, domain.StageExecution, ErrNotApproved)
	}
	approved, err := o.Approver.Approve(ctx, *ac.Plan, risk)
	if err != nil {
		return o.interrupted(ac, domain.StageExecution, err, "approval cancelled")
	}
	if !approved {
		return o.cancel(ac, "plan not approved")
	}
	ac.Approved = true
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, ac *AgentContext) domain.AgentOutcome {
	if !ac.Approved || ac.Validation == nil || !ac.Validation.PlanCanContinue {
		return o.fail(ac, domain.StageExecution, ErrNotApproved)
	}
	if o.Executor == nil {
		return o.fail(ac, domain.StageExecution, errors.New("no executor configured"))
	}

	ac.stageStarted(domain.StageExecution)
	report, err := o.Executor.ExecutePlan(ctx, *ac.Plan, domain.ExecuteOptions{Skip: ac.Resolved()})
	if err != nil {
		if len(report.Commands) > 0 {
			ac.recordExecution(report)
		}
		return o.interrupted(ac, domain.StageExecution, err, "execution cancelled")
	}
	ac.recordExecution(report)
	ac.stageCompleted(domain.StageExecution)
	return o.planned(ac)
}

func (o *Orchestrator) planned(ac *AgentContext) domain.AgentOutcome {
	return domain.Planned{
		Plan:       *ac.Plan,
		Validation: *ac.Validation,
		Execution:  ac.Execution,
		Recovery:   append([]domain.RecoveryAction(nil), ac.Recovery...),
	}
}

func (o *Orchestrator) fail(ac *AgentContext, stage domain.StageKind, err error) domain.AgentOutcome {
	ac.stageFailed(stage, err)
	o.log().Error("agent stage failed", err, map[string]interface{}{"run": ac.ID, "stage": string(stage)})
	return domain.Failed{Stage: stage, Err: err}
}

func (o *Orchestrator) cancel(ac *AgentContext, reason string) domain.AgentOutcome {
	ac.message("", "cancelled: "+reason)
	return domain.Cancelled{Reason: reason}
}

// interrupted maps a prompt or process error: context cancellation is a user
// abort, anything else is a stage failure.
func (o *Orchestrator) interrupted(ac *AgentContext, stage domain.StageKind, err error, reason string) domain.AgentOutcome {
	if errors.Is(err, context.Canceled) {
		return o.cancel(ac, reason)
	}
	return o.fail(ac, stage, err)
}

func (o *Orchestrator) maxClarifications() int {
	if o.Settings.MaxClarifications > 0 {
		return o.Settings.MaxClarifications
	}
	return domain.DefaultMaxClarifications
}

func (o *Orchestrator) maxRecoveryRounds() int {
	if o.Settings.MaxRecoveryRounds > 0 {
		return o.Settings.MaxRecoveryRounds
	}
	return domain.DefaultMaxRecoveryRounds
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) newID() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return uuid.NewString()
}

func (o *Orchestrator) log() ports.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logger.Nop{}
}

package agent

import (
	"time"

	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/ports"
)

// AgentContext is the single mutable record of one pipeline run. The
// orchestrator owns it; nothing else holds a reference after Run returns.
type AgentContext struct {
	ID      string
	Request domain.AgentRequest
	Started time.Time

	Classification *domain.Classification
	Plan           *domain.Plan
	Validation     *domain.ValidationResult
	Execution      *domain.ExecutionReport
	Recovery       []domain.RecoveryAction
	Clarifications []domain.Clarification
	Risk           *domain.PlanRisk
	Approved       bool

	// resolved holds plan steps that recovery replaced or skipped.
	resolved map[domain.StepRef]bool
	events   []domain.AgentEvent
	sink     ports.EventSink
	now      func() time.Time
}

func newAgentContext(id string, req domain.AgentRequest, now func() time.Time, sink ports.EventSink) *AgentContext {
	return &AgentContext{
		ID:       id,
		Request:  req,
		Started:  now(),
		resolved: make(map[domain.StepRef]bool),
		sink:     sink,
		now:      now,
	}
}

// Events returns a copy of the event log.
func (c *AgentContext) Events() []domain.AgentEvent {
	return append([]domain.AgentEvent(nil), c.events...)
}

// Resolved returns a copy of the steps recovery has handled.
func (c *AgentContext) Resolved() map[domain.StepRef]bool {
	out := make(map[domain.StepRef]bool, len(c.resolved))
	for k, v := range c.resolved {
		out[k] = v
	}
	return out
}

func (c *AgentContext) record(kind domain.EventKind, stage domain.StageKind, message string, fields map[string]interface{}) {
	event := domain.AgentEvent{
		At:      c.now(),
		Kind:    kind,
		Stage:   stage,
		Message: message,
		Fields:  fields,
	}
	c.events = append(c.events, event)
	if c.sink != nil {
		c.sink.Emit(event)
	}
}

func (c *AgentContext) stageStarted(stage domain.StageKind) {
	c.record(domain.EventStageStarted, stage, "", nil)
}

func (c *AgentContext) stageCompleted(stage domain.StageKind) {
	c.record(domain.EventStageCompleted, stage, "", nil)
}

func (c *AgentContext) stageSkipped(stage domain.StageKind, reason string) {
	c.record(domain.EventStageSkipped, stage, reason, nil)
}

func (c *AgentContext) stageFailed(stage domain.StageKind, err error) {
	c.record(domain.EventStageFailed, stage, err.Error(), nil)
}

func (c *AgentContext) message(stage domain.StageKind, text string) {
	c.record(domain.EventMessage, stage, text, nil)
}

func (c *AgentContext) recordClassification(class domain.Classification) {
	c.Classification = &class
	c.record(domain.EventClassification, domain.StageClassification, class.String(), nil)
}

func (c *AgentContext) recordPlan(plan domain.Plan) {
	c.Plan = &plan
	c.record(domain.EventPlanReady, domain.StagePlanning, "", map[string]interface{}{
		"confidence": plan.Confidence,
		"dry_run":    len(plan.DryRunCommands),
		"execute":    len(plan.ExecuteCommands),
	})
}

func (c *AgentContext) recordClarification(q domain.Question, answer string) {
	c.Clarifications = append(c.Clarifications, domain.Clarification{Question: q.Text, Answer: answer})
	c.record(domain.EventMessage, domain.StagePlanning, "clarification answered", map[string]interface{}{
		"question": q.Text,
	})
}

func (c *AgentContext) recordValidation(result domain.ValidationResult) {
	c.Validation = &result
	c.record(domain.EventValidationFinished, domain.StageValidation, "", map[string]interface{}{
		"missing":      len(result.MissingCommands),
		"can_continue": result.PlanCanContinue,
	})
}

func (c *AgentContext) recordRecovery(missing domain.MissingCommand, result domain.RecoveryResult) {
	c.Recovery = append(c.Recovery, domain.RecoveryAction{Missing: missing, Result: result})
	c.record(domain.EventRecoveryFinished, domain.StageRecovery, domain.Describe(result), map[string]interface{}{
		"command": missing.Command,
		"phase":   missing.Phase(),
		"step":    missing.PlanStep,
	})
}

func (c *AgentContext) recordExecution(report domain.ExecutionReport) {
	c.Execution = &report
	c.record(domain.EventExecutionFinished, domain.StageExecution, "", map[string]interface{}{
		"success":  report.Success,
		"commands": len(report.Commands),
	})
}

func (c *AgentContext) resolve(ref domain.StepRef) {
	c.resolved[ref] = true
}

func (c *AgentContext) finish(outcome domain.AgentOutcome) domain.AgentRun {
	return domain.AgentRun{
		ID:       c.ID,
		Started:  c.Started,
		Finished: c.now(),
		Outcome:  outcome,
		Events:   c.Events(),
	}
}

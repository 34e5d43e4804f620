package domain

import (
	"fmt"
	"time"
)

// StageKind names one step of the agent pipeline.
type StageKind string

const (
	StageClassification StageKind = "classification"
	StagePlanning       StageKind = "planning"
	StageValidation     StageKind = "validation"
	StageRecovery       StageKind = "recovery"
	StageExecution      StageKind = "execution"
)

// Classification tells whether input is already a shell command.
type Classification int

const (
	ClassNaturalLanguage Classification = iota
	ClassTerminal
)

func (c Classification) String() string {
	if c == ClassTerminal {
		return "terminal"
	}
	return "natural_language"
}

// AgentRequest is what a front end hands the orchestrator.
type AgentRequest struct {
	Input string
	// PlanOnly stops after validation and recovery, without approval or execution.
	PlanOnly bool
}

// EventKind enumerates AgentEvent variants.
type EventKind string

const (
	EventStageStarted       EventKind = "stage_started"
	EventStageCompleted     EventKind = "stage_completed"
	EventStageSkipped       EventKind = "stage_skipped"
	EventStageFailed        EventKind = "stage_failed"
	EventClassification     EventKind = "classification_ready"
	EventPlanReady          EventKind = "plan_ready"
	EventValidationFinished EventKind = "validation_finished"
	EventRecoveryFinished   EventKind = "recovery_finished"
	EventExecutionFinished  EventKind = "execution_finished"
	EventMessage            EventKind = "message"
)

// AgentEvent is one append-only entry in the run's observability log.
type AgentEvent struct {
	At      time.Time
	Kind    EventKind
	Stage   StageKind
	Message string
	Fields  map[string]interface{}
}

// AgentOutcome is the terminal result of a pipeline run.
type AgentOutcome interface {
	isAgentOutcome()
}

type (
	DirectCommand struct{ Command string }
	Planned       struct {
		Plan       Plan
		Validation ValidationResult
		// Execution is nil when the run stopped before execution (plan-only).
		Execution *ExecutionReport
		Recovery  []RecoveryAction
	}
	AwaitingClarification struct {
		Question string
		Context  string
	}
	Cancelled struct{ Reason string }
	Failed    struct {
		Stage StageKind
		Err   error
	}
)

func (DirectCommand) isAgentOutcome()         {}
func (Planned) isAgentOutcome()               {}
func (AwaitingClarification) isAgentOutcome() {}
func (Cancelled) isAgentOutcome()             {}
func (Failed) isAgentOutcome()                {}

func (f Failed) Error() string {
	return fmt.Sprintf("stage %s failed: %v", f.Stage, f.Err)
}

func (f Failed) Unwrap() error {
	return f.Err
}

// OutcomeKind returns a stable name for persisting and logging outcomes.
func OutcomeKind(outcome AgentOutcome) string {
	switch outcome.(type) {
	case DirectCommand:
		return "direct_command"
	case Planned:
		return "planned"
	case AwaitingClarification:
		return "awaiting_clarification"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		panic(fmt.Sprintf("domain: unhandled agent outcome %T", outcome))
	}
}

// AgentRun pairs an outcome with the run's identity and event log.
type AgentRun struct {
	ID       string
	Started  time.Time
	Finished time.Time
	Outcome  AgentOutcome
	Events   []AgentEvent
}

package agent

import (
	"encoding/json"
	"errors"

	"github.com/doeshing/li/internal/domain"
)

// RecordFor summarizes a finished run for the history store.
func RecordFor(run domain.AgentRun, goal string, plan *domain.Plan, validation *domain.ValidationResult) domain.RunRecord {
	rec := domain.RunRecord{
		ID:         run.ID,
		Timestamp:  run.Started,
		Goal:       goal,
		Outcome:    domain.OutcomeKind(run.Outcome),
		DurationMS: run.Finished.Sub(run.Started).Milliseconds(),
	}
	if plan != nil {
		if data, err := json.Marshal(plan); err == nil {
			rec.PlanJSON = string(data)
		}
	}
	if validation != nil {
		for _, m := range validation.MissingCommands {
			rec.Missing = append(rec.Missing, m.Command)
		}
	}

	switch o := run.Outcome.(type) {
	case domain.DirectCommand:
		rec.Detail = o.Command
		rec.Success = true
	case domain.Planned:
		if o.Execution != nil {
			rec.Executed = true
			rec.Success = o.Execution.Success
			if failed, ok := o.Execution.FailedCommand(); ok {
				rec.Detail = failed.Command
			}
		} else {
			rec.Success = true
			rec.Detail = "plan only"
		}
	case domain.AwaitingClarification:
		rec.Stage = domain.StagePlanning
		rec.Detail = o.Question
	case domain.Cancelled:
		rec.Detail = o.Reason
	case domain.Failed:
		rec.Stage = o.Stage
		if o.Err != nil {
			rec.Detail = o.Err.Error()
		}
	}
	return rec
}

func (o *Orchestrator) saveHistory(ac *AgentContext, run domain.AgentRun) {
	if o.History == nil {
		return
	}
	if errors.Is(outcomeErr(run.Outcome), ErrEmptyRequest) {
		return
	}
	rec := RecordFor(run, ac.Request.Input, ac.Plan, ac.Validation)
	if err := o.History.Save(rec); err != nil {
		o.log().Warn("history save failed", map[string]interface{}{"run": run.ID, "error": err.Error()})
	}
}

func outcomeErr(outcome domain.AgentOutcome) error {
	if f, ok := outcome.(domain.Failed); ok {
		return f.Err
	}
	return nil
}

package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/li/internal/application/agent"
	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/infrastructure/cli/helpers"
)

func newTestRenderer(verbose bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewRenderer(&out, &errOut, false, verbose), &out, &errOut
}

func TestRendererPlan(t *testing.T) {
	r, out, _ := newTestRenderer(false)
	r.Plan(domain.Plan{
		Confidence:      0.9,
		DryRunCommands:  []string{"ls -la"},
		ExecuteCommands: []string{"rm -rf build"},
		Notes:           "clean the build dir",
	}, domain.PlanRisk{
		Highest: domain.RiskHigh,
		Action:  domain.ActionConfirm,
		Assessments: []domain.RiskAssessment{
			{Command: "ls -la", Level: domain.RiskSafe, Action: domain.ActionAllow},
			{Command: "rm -rf build", Level: domain.RiskHigh, Action: domain.ActionConfirm, Reasons: []string{"recursive delete"}},
		},
	})

	text := out.String()
	assert.Contains(t, text, "Plan (confidence 0.90)")
	assert.Contains(t, text, "clean the build dir")
	assert.Contains(t, text, "Dry run:")
	assert.Contains(t, text, "Execute:")
	assert.Contains(t, text, "Risk: HIGH (confirm)")
	assert.Contains(t, text, "- recursive delete")
}

func TestRendererOutcome(t *testing.T) {
	plan := domain.Plan{Confidence: 0.8, ExecuteCommands: []string{"make", "make test"}}

	t.Run("successful execution", func(t *testing.T) {
		r, out, _ := newTestRenderer(false)
		err := r.Outcome(domain.AgentRun{Outcome: domain.Planned{
			Plan:       plan,
			Validation: domain.ValidationResult{PlanCanContinue: true},
			Execution: &domain.ExecutionReport{Success: true, Commands: []domain.CommandResult{
				{Command: "make", Stdout: "built\n"},
				{Command: "make test", Stdout: "PASS\n"},
			}},
		}}, false)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Plan (confidence 0.80)")
		assert.Contains(t, out.String(), "built")
		assert.Contains(t, out.String(), "PASS")
		assert.Contains(t, out.String(), "Done.")
	})

	t.Run("failed command maps to its exit code", func(t *testing.T) {
		r, out, errOut := newTestRenderer(false)
		err := r.Outcome(domain.AgentRun{Outcome: domain.Planned{
			Plan: plan,
			Execution: &domain.ExecutionReport{Commands: []domain.CommandResult{
				{Command: "make", ExitCode: 3, Stderr: "no rule\n"},
				{Command: "make test", Skipped: true},
			}},
		}}, false)
		var exit *helpers.ExitError
		require.True(t, errors.As(err, &exit))
		assert.Equal(t, 3, exit.Code)
		assert.Contains(t, out.String(), "(exit 3)")
		assert.Contains(t, errOut.String(), "no rule")
	})

	t.Run("streamed output is not repeated", func(t *testing.T) {
		r, out, _ := newTestRenderer(false)
		err := r.Outcome(domain.AgentRun{Outcome: domain.Planned{
			Plan:      plan,
			Execution: &domain.ExecutionReport{Success: true, Commands: []domain.CommandResult{{Command: "make", Stdout: "built\n"}}},
		}}, true)
		require.NoError(t, err)
		assert.NotContains(t, out.String(), "built")
	})

	t.Run("plan only", func(t *testing.T) {
		r, out, _ := newTestRenderer(false)
		require.NoError(t, r.Outcome(domain.AgentRun{Outcome: domain.Planned{Plan: plan}}, false))
		assert.Contains(t, out.String(), "nothing was executed")
	})

	t.Run("clarification", func(t *testing.T) {
		r, out, _ := newTestRenderer(false)
		err := r.Outcome(domain.AgentRun{Outcome: domain.AwaitingClarification{Question: "Which branch?"}}, false)
		var exit *helpers.ExitError
		require.True(t, errors.As(err, &exit))
		assert.Equal(t, 2, exit.Code)
		assert.Contains(t, out.String(), "Which branch?")
	})

	t.Run("cancelled", func(t *testing.T) {
		r, out, _ := newTestRenderer(false)
		require.NoError(t, r.Outcome(domain.AgentRun{Outcome: domain.Cancelled{Reason: "plan not approved"}}, false))
		assert.Contains(t, out.String(), "plan not approved")
	})

	t.Run("missing commands", func(t *testing.T) {
		r, _, errOut := newTestRenderer(false)
		failure := domain.Failed{Stage: domain.StageValidation, Err: &agent.MissingCommandsError{
			Missing: []domain.MissingCommand{{Command: "ffmpeg", FailedCommandLine: "ffmpeg -i a b"}},
		}}
		err := r.Outcome(domain.AgentRun{Outcome: failure}, false)
		require.Error(t, err)
		assert.Contains(t, errOut.String(), "install ffmpeg")
	})

	t.Run("not approved", func(t *testing.T) {
		r, _, errOut := newTestRenderer(false)
		err := r.Outcome(domain.AgentRun{Outcome: domain.Failed{Stage: domain.StageExecution, Err: agent.ErrNotApproved}}, false)
		assert.ErrorIs(t, err, agent.ErrNotApproved)
		assert.Contains(t, errOut.String(), "--yes")
	})
}

func TestRendererVerboseEvents(t *testing.T) {
	r, _, errOut := newTestRenderer(true)
	r.Emit(domain.AgentEvent{Kind: domain.EventStageStarted, Stage: domain.StagePlanning})
	r.Emit(domain.AgentEvent{Kind: domain.EventMessage, Message: "plan auto-approved", Stage: domain.StageExecution})
	assert.Contains(t, errOut.String(), "[planning] stage_started")
	assert.Contains(t, errOut.String(), "[execution] plan auto-approved")

	quiet, _, quietErr := newTestRenderer(false)
	quiet.Emit(domain.AgentEvent{Kind: domain.EventMessage, Message: "hidden"})
	assert.Empty(t, quietErr.String())
}

package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/li/internal/application/recovery"
	"github.com/doeshing/li/internal/application/validator"
	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/ports"
)

// hostProber pretends a fixed set of programs is installed.
type hostProber struct{ present map[string]bool }

func (hostProber) Name() string { return "host" }

func (p hostProber) Probe(_ context.Context, token string) (validator.Verdict, error) {
	if p.present[token] {
		return validator.Found, nil
	}
	return validator.NotFound, nil
}

func newHost(present ...string) (hostProber, *validator.Validator) {
	p := hostProber{present: map[string]bool{}}
	for _, name := range present {
		p.present[name] = true
	}
	return p, validator.New(validator.WithProbers(p))
}

type scriptedPlanner struct {
	responses []domain.PlannerResponse
	err       error
	requests  []domain.PlanRequest
}

func (s *scriptedPlanner) Plan(_ context.Context, req domain.PlanRequest) (domain.PlannerResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	idx := len(s.requests) - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

type fixedClassifier domain.Classification

func (f fixedClassifier) Classify(context.Context, string) (domain.Classification, error) {
	return domain.Classification(f), nil
}

type recordingExecutor struct {
	ran      []string
	exitCode map[string]int
	onRun    func(string)
	plans    int
	skip     map[domain.StepRef]bool
	planErr  error
}

func (r *recordingExecutor) Run(_ context.Context, command string) (domain.CommandResult, error) {
	r.ran = append(r.ran, command)
	if r.onRun != nil {
		r.onRun(command)
	}
	return domain.CommandResult{Command: command, ExitCode: r.exitCode[command]}, nil
}

func (r *recordingExecutor) ExecutePlan(_ context.Context, plan domain.Plan, opts domain.ExecuteOptions) (domain.ExecutionReport, error) {
	r.plans++
	r.skip = opts.Skip
	if r.planErr != nil {
		return domain.ExecutionReport{}, r.planErr
	}
	report := domain.ExecutionReport{Success: true}
	for i, line := range plan.ExecuteCommands {
		ref := domain.StepRef{Step: i}
		report.Commands = append(report.Commands, domain.CommandResult{
			Command: line, Phase: domain.PhaseExecute, Step: i, Skipped: opts.Skip[ref],
		})
	}
	return report, nil
}

type fixedApprover struct {
	answer bool
	err    error
	calls  int
	risk   domain.PlanRisk
}

func (a *fixedApprover) Approve(_ context.Context, _ domain.Plan, risk domain.PlanRisk) (bool, error) {
	a.calls++
	a.risk = risk
	return a.answer, a.err
}

type queuedResolver struct {
	answers []string
	err     error
	asked   []string
}

func (q *queuedResolver) Resolve(_ context.Context, question domain.Question) (string, error) {
	q.asked = append(q.asked, question.Text)
	if q.err != nil {
		return "", q.err
	}
	if len(q.answers) == 0 {
		return "default", nil
	}
	a := q.answers[0]
	q.answers = q.answers[1:]
	return a, nil
}

type lineConsole struct {
	lines   []string
	confirm bool
}

func (c *lineConsole) Print(string) {}

func (c *lineConsole) ReadLine(context.Context, string) (string, error) {
	if len(c.lines) == 0 {
		return "", errors.New("no more input")
	}
	line := c.lines[0]
	c.lines = c.lines[1:]
	return line, nil
}

func (c *lineConsole) Confirm(context.Context, string) (bool, error) { return c.confirm, nil }

type replyCompleter string

func (replyCompleter) Name() string                  { return "reply" }
func (replyCompleter) Model() domain.ModelDefinition { return domain.ModelDefinition{} }
func (r replyCompleter) Complete(context.Context, ports.CompletionRequest) (string, error) {
	return string(r), nil
}

// spyRecovery records calls without doing anything.
type spyRecovery struct {
	generated int
}

func (s *spyRecovery) ShouldAttemptRecovery(strategy domain.RecoveryStrategy) bool {
	return strategy != domain.StrategyNeverRecover
}

func (s *spyRecovery) GenerateRecoveryOptions(context.Context, domain.RecoveryStrategy, domain.MissingCommand, domain.Plan, string) domain.RecoveryOptions {
	s.generated++
	return domain.SkipOnlyOptions()
}

func (s *spyRecovery) PresentRecoveryMenu(context.Context, domain.RecoveryOptions, domain.MissingCommand) (domain.RecoveryChoice, error) {
	return domain.AbortPlan{}, nil
}

func (s *spyRecovery) ExecuteRecovery(context.Context, domain.RecoveryChoice, domain.MissingCommand, domain.RecoveryOptions) (domain.RecoveryResult, error) {
	return domain.PlanAborted{Reason: "spy"}, nil
}

type memoryHistory struct {
	saved []domain.RunRecord
}

func (m *memoryHistory) Save(r domain.RunRecord) error { m.saved = append(m.saved, r); return nil }
func (m *memoryHistory) Records(int, string) ([]domain.RunRecord, error) {
	return m.saved, nil
}
func (m *memoryHistory) Clear() error             { m.saved = nil; return nil }
func (m *memoryHistory) ExportJSON(string) error  { return nil }
func (m *memoryHistory) PruneOlderThan(int) error { return nil }
func (m *memoryHistory) Path() string             { return "memory" }

type fixedSecurity struct{ risk domain.PlanRisk }

func (f fixedSecurity) Evaluate(cmd string) (domain.RiskAssessment, error) {
	return domain.RiskAssessment{Command: cmd, Level: domain.RiskSafe, Action: domain.ActionAllow}, nil
}
func (f fixedSecurity) EvaluatePlan(domain.Plan) (domain.PlanRisk, error) { return f.risk, nil }

var scenarioB = domain.Plan{Confidence: 0.8, ExecuteCommands: []string{"foobarbaz --help"}}

var gitPlan = domain.Plan{
	Confidence:      0.9,
	DryRunCommands:  []string{"git status"},
	ExecuteCommands: []string{"git init", "git add .", `git commit -m "x"`},
}

func baseOrchestrator(plan domain.Plan, present ...string) (*Orchestrator, *recordingExecutor, *fixedApprover) {
	_, v := newHost(present...)
	exec := &recordingExecutor{exitCode: map[string]int{}}
	approver := &fixedApprover{answer: true}
	o := &Orchestrator{
		Classifier: fixedClassifier(domain.ClassNaturalLanguage),
		Planner:    &scriptedPlanner{responses: []domain.PlannerResponse{plan}},
		Validator:  v,
		Executor:   exec,
		Approver:   approver,
		Settings:   Settings{Strategy: domain.StrategyAlternativesFirst},
		NewID:      func() string { return "run-1" },
	}
	return o, exec, approver
}

func TestRunDirectCommand(t *testing.T) {
	planner := &scriptedPlanner{}
	o := &Orchestrator{
		Classifier: fixedClassifier(domain.ClassTerminal),
		Planner:    planner,
		Validator:  validator.New(),
	}

	run := o.Run(context.Background(), domain.AgentRequest{Input: "  ls -la "})

	assert.Equal(t, domain.DirectCommand{Command: "ls -la"}, run.Outcome)
	assert.Empty(t, planner.requests)
}

func TestRunEmptyInputFails(t *testing.T) {
	o, _, _ := baseOrchestrator(gitPlan)
	run := o.Run(context.Background(), domain.AgentRequest{Input: "  "})

	failed, ok := run.Outcome.(domain.Failed)
	require.True(t, ok)
	assert.ErrorIs(t, failed, ErrEmptyRequest)
}

func TestRunHappyPathExecutesApprovedPlan(t *testing.T) {
	o, exec, approver := baseOrchestrator(gitPlan, "git")
	history := &memoryHistory{}
	o.History = history

	run := o.Run(context.Background(), domain.AgentRequest{Input: "init a repo"})

	planned, ok := run.Outcome.(domain.Planned)
	require.True(t, ok, "got %T", run.Outcome)
	assert.Equal(t, gitPlan, planned.Plan)
	assert.Empty(t, planned.Validation.MissingCommands)
	assert.True(t, planned.Validation.PlanCanContinue)
	require.NotNil(t, planned.Execution)
	assert.True(t, planned.Execution.Success)
	assert.Empty(t, planned.Recovery)
	assert.Equal(t, 1, approver.calls)
	assert.Equal(t, 1, exec.plans)

	assert.Equal(t, "run-1", run.ID)
	require.Len(t, history.saved, 1)
	assert.Equal(t, "planned", history.saved[0].Outcome)
	assert.True(t, history.saved[0].Executed)
	assert.Contains(t, history.saved[0].PlanJSON, `"git init"`)

	var kinds []domain.EventKind
	for _, e := range run.Events {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, domain.EventClassification)
	assert.Contains(t, kinds, domain.EventPlanReady)
	assert.Contains(t, kinds, domain.EventValidationFinished)
	assert.Contains(t, kinds, domain.EventExecutionFinished)
}

func TestRunNeverRecoverFailsValidationWithoutRecovery(t *testing.T) {
	o, exec, approver := baseOrchestrator(scenarioB)
	spy := &spyRecovery{}
	o.Recovery = spy
	o.Settings.Strategy = domain.StrategyNeverRecover

	run := o.Run(context.Background(), domain.AgentRequest{Input: "show foobarbaz help"})

	failed, ok := run.Outcome.(domain.Failed)
	require.True(t, ok, "got %T", run.Outcome)
	assert.Equal(t, domain.StageValidation, failed.Stage)
	var missingErr *MissingCommandsError
	require.ErrorAs(t, failed.Err, &missingErr)
	assert.Equal(t, "foobarbaz", missingErr.Missing[0].Command)
	assert.Equal(t, 0, spy.generated)
	assert.Equal(t, 0, approver.calls)
	assert.Equal(t, 0, exec.plans)
}

func TestRunWithoutRecoveryEngineFailsValidation(t *testing.T) {
	o, _, _ := baseOrchestrator(scenarioB)

	run := o.Run(context.Background(), domain.AgentRequest{Input: "x"})

	failed, ok := run.Outcome.(domain.Failed)
	require.True(t, ok)
	assert.Equal(t, domain.StageValidation, failed.Stage)
}

func TestRunAlternativeSucceededRevalidatesAndExecutes(t *testing.T) {
	o, exec, approver := baseOrchestrator(scenarioB)
	o.Recovery = &recovery.Engine{
		Completer: replyCompleter(`{"alternatives":[{"command":"echo fallback","description":"stand-in","confidence":0.9}],"installation_instructions":[],"can_skip":true,"original_goal_achievable":true}`),
		Checker:   o.Validator.(*validator.Validator),
		Executor:  exec,
		Console:   &lineConsole{lines: []string{"1"}},
		Settings:  domain.RecoverySettings{Enabled: true, Preference: domain.StrategyAlternativesFirst},
	}
	o.Recovery.(*recovery.Engine).SetAvailableTools([]string{"echo"})

	run := o.Run(context.Background(), domain.AgentRequest{Input: "show foobarbaz help"})

	planned, ok := run.Outcome.(domain.Planned)
	require.True(t, ok, "got %T: %v", run.Outcome, run.Outcome)
	require.Len(t, planned.Recovery, 1)
	succeeded, ok := planned.Recovery[0].Result.(domain.AlternativeSucceeded)
	require.True(t, ok)
	assert.Equal(t, "echo fallback", succeeded.Alternative.Command)
	assert.Empty(t, planned.Validation.MissingCommands)
	assert.True(t, planned.Validation.PlanCanContinue)
	assert.Equal(t, 1, approver.calls)
	assert.Equal(t, []string{"echo fallback"}, exec.ran)
	assert.True(t, exec.skip[domain.StepRef{Step: 0}])
	assert.True(t, planned.Execution.Commands[0].Skipped)
}

func TestRunInstallationSucceededForgetsCachedVerdict(t *testing.T) {
	prober, v := newHost()
	exec := &recordingExecutor{exitCode: map[string]int{}}
	exec.onRun = func(cmd string) {
		if cmd == "sudo apt-get install foobarbaz" {
			prober.present["foobarbaz"] = true
		}
	}
	o := &Orchestrator{
		Planner:   &scriptedPlanner{responses: []domain.PlannerResponse{scenarioB}},
		Validator: v,
		Executor:  exec,
		Approver:  &fixedApprover{answer: true},
		Recovery: &recovery.Engine{
			Checker:  v,
			Executor: exec,
			Console:  &lineConsole{lines: []string{"i1"}, confirm: true},
			Settings: domain.RecoverySettings{Enabled: true},
			GOOS:     "linux",
		},
		Settings: Settings{Strategy: domain.StrategyInstallationFirst},
	}

	run := o.Run(context.Background(), domain.AgentRequest{Input: "x"})

	planned, ok := run.Outcome.(domain.Planned)
	require.True(t, ok, "got %T: %v", run.Outcome, run.Outcome)
	assert.IsType(t, domain.InstallationSucceeded{}, planned.Recovery[0].Result)
	assert.Empty(t, planned.Validation.MissingCommands)
	assert.Empty(t, exec.skip)
}

func TestRunRecoveryRoundsAreBounded(t *testing.T) {
	o, exec, _ := baseOrchestrator(scenarioB)
	exec.exitCode["false"] = 1
	lines := []string{"1", "1", "1", "1"}
	o.Recovery = &recovery.Engine{
		Completer: replyCompleter(`{"alternatives":[{"command":"false","confidence":0.5}],"can_skip":false}`),
		Checker:   o.Validator.(*validator.Validator),
		Executor:  exec,
		Console:   &lineConsole{lines: lines},
		Settings:  domain.RecoverySettings{Enabled: true},
	}
	o.Recovery.(*recovery.Engine).SetAvailableTools(nil)
	o.Settings.MaxRecoveryRounds = 3

	run := o.Run(context.Background(), domain.AgentRequest{Input: "x"})

	failed, ok := run.Outcome.(domain.Failed)
	require.True(t, ok, "got %T", run.Outcome)
	assert.Equal(t, domain.StageRecovery, failed.Stage)
	assert.ErrorIs(t, failed, ErrRecoveryLimit)
	assert.Len(t, exec.ran, 3)
	assert.Equal(t, 0, exec.plans)
}

func TestRunRecoveryAbortCancels(t *testing.T) {
	o, exec, _ := baseOrchestrator(scenarioB)
	o.Recovery = &spyRecovery{}

	run := o.Run(context.Background(), domain.AgentRequest{Input: "x"})

	assert.Equal(t, domain.Cancelled{Reason: "spy"}, run.Outcome)
	assert.Equal(t, 0, exec.plans)
}

func TestRunContinuesWithMissingDryRunCommand(t *testing.T) {
	plan := domain.Plan{DryRunCommands: []string{"shellcheck x.sh"}, ExecuteCommands: []string{"sh x.sh"}}
	o, exec, _ := baseOrchestrator(plan, "sh")

	run := o.Run(context.Background(), domain.AgentRequest{Input: "run x"})

	planned, ok := run.Outcome.(domain.Planned)
	require.True(t, ok, "got %T", run.Outcome)
	require.Len(t, planned.Validation.MissingCommands, 1)
	assert.True(t, planned.Validation.PlanCanContinue)
	assert.Equal(t, 1, exec.plans)
}

func TestRunClarificationLoopIsBounded(t *testing.T) {
	q := domain.Question{Text: "Which server?", Context: "remote"}
	planner := &scriptedPlanner{responses: []domain.PlannerResponse{q}}
	resolver := &queuedResolver{}
	o, _, _ := baseOrchestrator(gitPlan, "git")
	o.Planner = planner
	o.Resolver = resolver
	o.Settings.MaxClarifications = 2

	run := o.Run(context.Background(), domain.AgentRequest{Input: "push it"})

	failed, ok := run.Outcome.(domain.Failed)
	require.True(t, ok, "got %T", run.Outcome)
	assert.Equal(t, domain.StagePlanning, failed.Stage)
	assert.ErrorIs(t, failed, ErrClarificationLimit)
	assert.Len(t, planner.requests, 3)
	assert.Len(t, resolver.asked, 2)
	assert.Len(t, planner.requests[2].Clarifications, 2)
}

func TestRunClarificationThenPlan(t *testing.T) {
	q := domain.Question{Text: "Which branch?"}
	planner := &scriptedPlanner{responses: []domain.PlannerResponse{q, gitPlan}}
	o, _, _ := baseOrchestrator(gitPlan, "git")
	o.Planner = planner
	o.Resolver = &queuedResolver{answers: []string{"main"}}

	run := o.Run(context.Background(), domain.AgentRequest{Input: "commit"})

	assert.IsType(t, domain.Planned{}, run.Outcome)
	require.Len(t, planner.requests, 2)
	assert.Equal(t, []domain.Clarification{{Question: "Which branch?", Answer: "main"}}, planner.requests[1].Clarifications)
}

func TestRunClarificationOutcomes(t *testing.T) {
	q := domain.Question{Text: "Which server?", Context: "remote"}

	t.Run("no resolver awaits", func(t *testing.T) {
		o, _, _ := baseOrchestrator(gitPlan)
		o.Planner = &scriptedPlanner{responses: []domain.PlannerResponse{q}}
		run := o.Run(context.Background(), domain.AgentRequest{Input: "x"})
		assert.Equal(t, domain.AwaitingClarification{Question: "Which server?", Context: "remote"}, run.Outcome)
	})

	t.Run("skip cancels", func(t *testing.T) {
		o, _, _ := baseOrchestrator(gitPlan)
		o.Planner = &scriptedPlanner{responses: []domain.PlannerResponse{q}}
		o.Resolver = &queuedResolver{answers: []string{"SKIP"}}
		run := o.Run(context.Background(), domain.AgentRequest{Input: "x"})
		assert.IsType(t, domain.Cancelled{}, run.Outcome)
	})

	t.Run("resolver interrupted", func(t *testing.T) {
		o, _, _ := baseOrchestrator(gitPlan)
		o.Planner = &scriptedPlanner{responses: []domain.PlannerResponse{q}}
		o.Resolver = &queuedResolver{err: context.Canceled}
		run := o.Run(context.Background(), domain.AgentRequest{Input: "x"})
		assert.IsType(t, domain.Cancelled{}, run.Outcome)
	})
}

func TestRunPlannerErrorFailsPlanning(t *testing.T) {
	o, _, _ := baseOrchestrator(gitPlan)
	o.Planner = &scriptedPlanner{err: errors.New("503 service unavailable")}

	run := o.Run(context.Background(), domain.AgentRequest{Input: "x"})

	failed, ok := run.Outcome.(domain.Failed)
	require.True(t, ok)
	assert.Equal(t, domain.StagePlanning, failed.Stage)
	assert.EqualError(t, failed.Err, "503 service unavailable")
}

func TestRunApprovalGate(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		o, exec, approver := baseOrchestrator(gitPlan, "git")
		approver.answer = false
		run := o.Run(context.Background(), domain.AgentRequest{Input: "x"})
		assert.Equal(t, domain.Cancelled{Reason: "plan not approved"}, run.Outcome)
		assert.Equal(t, 0, exec.plans)
	})

	t.Run("no approver", func(t *testing.T) {
		o, exec, _ := baseOrchestrator(gitPlan, "git")
		o.Approver = nil
		run := o.Run(context.Background(), domain.AgentRequest{Input: "x"})
		failed, ok := run.Outcome.(domain.Failed)
		require.True(t, ok)
		assert.ErrorIs(t, failed, ErrNotApproved)
		assert.Equal(t, 0, exec.plans)
	})

	t.Run("auto approve", func(t *testing.T) {
		o, exec, approver := baseOrchestrator(gitPlan, "git")
		o.Settings.AutoApprove = true
		run := o.Run(context.Background(), domain.AgentRequest{Input: "x"})
		assert.IsType(t, domain.Planned{}, run.Outcome)
		assert.Equal(t, 0, approver.calls)
		assert.Equal(t, 1, exec.plans)
	})

	t.Run("auto approve defers to explicit confirm", func(t *testing.T) {
		o, _, approver := baseOrchestrator(gitPlan, "git")
		o.Settings.AutoApprove = true
		o.Security = fixedSecurity{risk: domain.PlanRisk{Highest: domain.RiskHigh, Action: domain.ActionExplicitConfirm}}
		o.Run(context.Background(), domain.AgentRequest{Input: "x"})
		assert.Equal(t, 1, approver.calls)
		assert.Equal(t, domain.ActionExplicitConfirm, approver.risk.Action)
	})
}

func TestRunGuardrailBlock(t *testing.T) {
	o, exec, approver := baseOrchestrator(gitPlan, "git")
	o.Security = fixedSecurity{risk: domain.PlanRisk{
		Highest: domain.RiskCritical,
		Action:  domain.ActionBlock,
		Assessments: []domain.RiskAssessment{
			{Command: "git init", Level: domain.RiskCritical, Action: domain.ActionBlock},
		},
	}}

	run := o.Run(context.Background(), domain.AgentRequest{Input: "x"})

	failed, ok := run.Outcome.(domain.Failed)
	require.True(t, ok)
	assert.Equal(t, domain.StageValidation, failed.Stage)
	var blocked *BlockedError
	assert.ErrorAs(t, failed.Err, &blocked)
	assert.Equal(t, 0, approver.calls)
	assert.Equal(t, 0, exec.plans)
}

func TestRunPlanOnlySkipsApprovalAndExecution(t *testing.T) {
	o, exec, approver := baseOrchestrator(gitPlan, "git")

	run := o.Run(context.Background(), domain.AgentRequest{Input: "x", PlanOnly: true})

	planned, ok := run.Outcome.(domain.Planned)
	require.True(t, ok)
	assert.Nil(t, planned.Execution)
	assert.Equal(t, 0, approver.calls)
	assert.Equal(t, 0, exec.plans)
}

func TestRunExecutionErrors(t *testing.T) {
	o, exec, _ := baseOrchestrator(gitPlan, "git")
	exec.planErr = errors.New("fork: resource unavailable")
	run := o.Run(context.Background(), domain.AgentRequest{Input: "x"})
	failed, ok := run.Outcome.(domain.Failed)
	require.True(t, ok)
	assert.Equal(t, domain.StageExecution, failed.Stage)

	o, exec, _ = baseOrchestrator(gitPlan, "git")
	exec.planErr = context.Canceled
	run = o.Run(context.Background(), domain.AgentRequest{Input: "x"})
	assert.IsType(t, domain.Cancelled{}, run.Outcome)
}

func TestRecordForFailedOutcome(t *testing.T) {
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	run := domain.AgentRun{
		ID:       "abc",
		Started:  start,
		Finished: start.Add(1500 * time.Millisecond),
		Outcome:  domain.Failed{Stage: domain.StageValidation, Err: errors.New("missing commands: jq")},
	}
	validation := domain.NewValidationResult([]domain.MissingCommand{{Command: "jq"}})

	rec := RecordFor(run, "parse json", &scenarioB, &validation)

	assert.Equal(t, "failed", rec.Outcome)
	assert.Equal(t, domain.StageValidation, rec.Stage)
	assert.Equal(t, int64(1500), rec.DurationMS)
	assert.Equal(t, []string{"jq"}, rec.Missing)
	assert.False(t, rec.Executed)
	assert.Equal(t, "missing commands: jq", rec.Detail)
}

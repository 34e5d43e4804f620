package domain

// MissingCommand records a plan line whose program could not be found.
type MissingCommand struct {
	Command           string `json:"command"`
	FailedCommandLine string `json:"failed_command_line"`
	PlanStep          int    `json:"plan_step"`
	IsDryRun          bool   `json:"is_dry_run"`
}

// Ref returns the plan position of the missing command.
func (m MissingCommand) Ref() StepRef {
	return StepRef{Step: m.PlanStep, IsDryRun: m.IsDryRun}
}

// Phase names the plan list the command came from.
func (m MissingCommand) Phase() string {
	if m.IsDryRun {
		return PhaseDryRun
	}
	return PhaseExecute
}

// ValidationResult is recomputed on every validation pass and never edited.
type ValidationResult struct {
	MissingCommands []MissingCommand `json:"missing_commands"`
	PlanCanContinue bool             `json:"plan_can_continue"`
}

// NewValidationResult derives PlanCanContinue from the missing list: only
// missing dry-run commands are tolerated.
func NewValidationResult(missing []MissingCommand) ValidationResult {
	canContinue := true
	for _, m := range missing {
		if !m.IsDryRun {
			canContinue = false
			break
		}
	}
	if missing == nil {
		missing = []MissingCommand{}
	}
	return ValidationResult{MissingCommands: missing, PlanCanContinue: canContinue}
}

// Without returns a new result that ignores missing commands at the given steps.
func (v ValidationResult) Without(resolved map[StepRef]bool) ValidationResult {
	if len(resolved) == 0 {
		return NewValidationResult(append([]MissingCommand(nil), v.MissingCommands...))
	}
	var kept []MissingCommand
	for _, m := range v.MissingCommands {
		if resolved[m.Ref()] {
			continue
		}
		kept = append(kept, m)
	}
	return NewValidationResult(kept)
}

// FirstBlocking returns the first missing command in plan order.
func (v ValidationResult) FirstBlocking() (MissingCommand, bool) {
	if len(v.MissingCommands) == 0 {
		return MissingCommand{}, false
	}
	return v.MissingCommands[0], true
}

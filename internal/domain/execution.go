package domain

// Phase names used in reports and messages.
const (
	PhaseDryRun  = "dry-run"
	PhaseExecute = "execute"
)

// CommandResult captures one spawned command.
type CommandResult struct {
	Command    string `json:"command"`
	Phase      string `json:"phase,omitempty"`
	Step       int    `json:"step"`
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Skipped    bool   `json:"skipped,omitempty"`
}

// Succeeded reports a zero exit status.
func (r CommandResult) Succeeded() bool {
	return r.ExitCode == 0
}

// ExecutionReport summarizes a plan execution.
type ExecutionReport struct {
	Commands []CommandResult `json:"commands"`
	Success  bool            `json:"success"`
	Notes    []string        `json:"notes,omitempty"`
}

// FailedCommand returns the command that stopped execution, if any.
func (r ExecutionReport) FailedCommand() (CommandResult, bool) {
	for _, c := range r.Commands {
		if !c.Skipped && !c.Succeeded() {
			return c, true
		}
	}
	return CommandResult{}, false
}

// ExecuteOptions tunes a plan execution.
type ExecuteOptions struct {
	// Skip lists steps already handled by recovery.
	Skip map[StepRef]bool
}

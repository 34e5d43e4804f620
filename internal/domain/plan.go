package domain

// Plan is a two-phase shell recipe: every dry-run command must succeed before
// any execute command starts. A Plan is never edited after planning returns it.
type Plan struct {
	Confidence      float64  `json:"confidence"`
	DryRunCommands  []string `json:"dry_run_commands"`
	ExecuteCommands []string `json:"execute_commands"`
	Notes           string   `json:"notes"`
}

// CommandCount returns the number of lines across both phases.
func (p Plan) CommandCount() int {
	return len(p.DryRunCommands) + len(p.ExecuteCommands)
}

// StepRef addresses one line of a Plan.
type StepRef struct {
	Step     int
	IsDryRun bool
}

// Line returns the command line the reference points at, if any.
func (p Plan) Line(ref StepRef) (string, bool) {
	list := p.ExecuteCommands
	if ref.IsDryRun {
		list = p.DryRunCommands
	}
	if ref.Step < 0 || ref.Step >= len(list) {
		return "", false
	}
	return list[ref.Step], true
}

// PlannerResponse is what the planning capability returns: a Plan or a Question.
type PlannerResponse interface {
	isPlannerResponse()
}

// Question asks the user for information the planner cannot assume.
type Question struct {
	Text    string
	Context string
}

func (Plan) isPlannerResponse()     {}
func (Question) isPlannerResponse() {}

// Clarification is one answered planner question.
type Clarification struct {
	Question string
	Answer   string
}

// PlanRequest carries everything the planner needs for one attempt.
type PlanRequest struct {
	Goal           string
	System         SystemContext
	Clarifications []Clarification
}

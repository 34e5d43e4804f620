package domain

// RiskLevel enumerates guardrail outcomes.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskOrder = map[RiskLevel]int{
	RiskSafe:     0,
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// MoreSevere reports whether l ranks above other.
func (l RiskLevel) MoreSevere(other RiskLevel) bool {
	return riskOrder[l] > riskOrder[other]
}

// GuardrailAction describes how the pipeline reacts to a risk level.
type GuardrailAction string

const (
	ActionAllow           GuardrailAction = "allow"
	ActionConfirm         GuardrailAction = "confirm"
	ActionExplicitConfirm GuardrailAction = "explicit_confirm"
	ActionBlock           GuardrailAction = "block"
)

// RiskAssessment aggregates security evaluation data for one command.
type RiskAssessment struct {
	Command      string
	Level        RiskLevel
	Action       GuardrailAction
	Reasons      []string
	MatchedRules []string
}

// PlanRisk is the guardrail verdict over every command of a plan.
type PlanRisk struct {
	Highest     RiskLevel
	Action      GuardrailAction
	Assessments []RiskAssessment
}

// Blocked reports whether any command hit a block rule.
func (r PlanRisk) Blocked() bool {
	return r.Action == ActionBlock
}

// Flagged returns the assessments above safe.
func (r PlanRisk) Flagged() []RiskAssessment {
	var out []RiskAssessment
	for _, a := range r.Assessments {
		if a.Level != RiskSafe {
			out = append(out, a)
		}
	}
	return out
}

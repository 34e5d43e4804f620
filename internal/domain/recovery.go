package domain

import "fmt"

// RecoveryStrategy selects how recovery options are produced.
type RecoveryStrategy string

const (
	StrategyAlternativesFirst RecoveryStrategy = "alternatives-first"
	StrategyInstallationFirst RecoveryStrategy = "installation-first"
	StrategySkipOnError       RecoveryStrategy = "skip-on-error"
	StrategyNeverRecover      RecoveryStrategy = "never-recover"
)

// ParseRecoveryStrategy accepts the kebab-case names used in config and flags.
func ParseRecoveryStrategy(value string) (RecoveryStrategy, error) {
	switch s := RecoveryStrategy(value); s {
	case StrategyAlternativesFirst, StrategyInstallationFirst, StrategySkipOnError, StrategyNeverRecover:
		return s, nil
	default:
		return "", fmt.Errorf("unknown recovery strategy %q", value)
	}
}

// CommandAlternative is a replacement line for a missing command.
type CommandAlternative struct {
	Command     string  `json:"command"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

// InstallationInstruction describes how to install a missing command.
type InstallationInstruction struct {
	PackageManager string `json:"package_manager"`
	InstallCommand string `json:"install_command"`
	Caveat         string `json:"caveat,omitempty"`
}

// RecoveryOptions is built fresh for each missing command.
type RecoveryOptions struct {
	CommandAlternatives      []CommandAlternative
	InstallationInstructions []InstallationInstruction
	CanSkipStep              bool
	RetryPossible            bool
}

// SkipOnlyOptions allows nothing but skipping or aborting.
func SkipOnlyOptions() RecoveryOptions {
	return RecoveryOptions{CanSkipStep: true}
}

// IsEmpty reports whether the options offer nothing beyond abort.
func (o RecoveryOptions) IsEmpty() bool {
	return len(o.CommandAlternatives) == 0 && len(o.InstallationInstructions) == 0 && !o.CanSkipStep && !o.RetryPossible
}

// RecoveryChoice is the user's decision from the recovery menu.
type RecoveryChoice interface {
	isRecoveryChoice()
}

type (
	UseAlternative struct{ Index int }
	InstallCommand struct{ Index int }
	SkipStep       struct{}
	AbortPlan      struct{}
	RetryOriginal  struct{}
)

func (UseAlternative) isRecoveryChoice() {}
func (InstallCommand) isRecoveryChoice() {}
func (SkipStep) isRecoveryChoice()       {}
func (AbortPlan) isRecoveryChoice()      {}
func (RetryOriginal) isRecoveryChoice()  {}

// RecoveryResult is the outcome of carrying out a RecoveryChoice.
type RecoveryResult interface {
	isRecoveryResult()
}

type (
	AlternativeSucceeded struct {
		Alternative CommandAlternative
		Output      CommandResult
	}
	AlternativeFailed struct {
		Alternative CommandAlternative
		Output      CommandResult
		Reason      string
	}
	InstallationSucceeded struct {
		Instruction InstallationInstruction
		Output      CommandResult
	}
	InstallationFailed struct {
		Instruction InstallationInstruction
		Output      CommandResult
		Reason      string
	}
	InstallationCancelled struct{}
	StepSkipped           struct{ Step StepRef }
	PlanAborted           struct{ Reason string }
	// RetryRequested reports whether the original command resolves after the
	// user fixed the environment.
	RetryRequested struct{ Available bool }
)

func (AlternativeSucceeded) isRecoveryResult()  {}
func (AlternativeFailed) isRecoveryResult()     {}
func (InstallationSucceeded) isRecoveryResult() {}
func (InstallationFailed) isRecoveryResult()    {}
func (InstallationCancelled) isRecoveryResult() {}
func (StepSkipped) isRecoveryResult()           {}
func (PlanAborted) isRecoveryResult()           {}
func (RetryRequested) isRecoveryResult()        {}

// RecoveryAction is one entry in the recovery summary of a run.
type RecoveryAction struct {
	Missing MissingCommand
	Result  RecoveryResult
}

// Describe renders a short human-readable label for a recovery result.
func Describe(result RecoveryResult) string {
	switch r := result.(type) {
	case AlternativeSucceeded:
		return fmt.Sprintf("alternative succeeded: %s", r.Alternative.Command)
	case AlternativeFailed:
		return fmt.Sprintf("alternative failed: %s", r.Alternative.Command)
	case InstallationSucceeded:
		return fmt.Sprintf("installed with: %s", r.Instruction.InstallCommand)
	case InstallationFailed:
		return fmt.Sprintf("installation failed: %s", r.Instruction.InstallCommand)
	case InstallationCancelled:
		return "installation cancelled"
	case StepSkipped:
		return fmt.Sprintf("skipped %s step %d", phaseName(r.Step.IsDryRun), r.Step.Step+1)
	case PlanAborted:
		return fmt.Sprintf("plan aborted: %s", r.Reason)
	case RetryRequested:
		if r.Available {
			return "retry: command now available"
		}
		return "retry: command still missing"
	default:
		panic(fmt.Sprintf("domain: unhandled recovery result %T", result))
	}
}

func phaseName(dryRun bool) string {
	if dryRun {
		return PhaseDryRun
	}
	return PhaseExecute
}

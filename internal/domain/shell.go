package domain

// ShellName enumerates shells with hook support.
type ShellName string

const (
	ShellUnknown ShellName = "unknown"
	ShellZsh     ShellName = "zsh"
)

// ShellInstallResult describes hook install/uninstall outcomes.
type ShellInstallResult struct {
	Shell         ShellName
	ScriptPath    string
	RCFile        string
	ScriptUpdated bool
	RCUpdated     bool
}

// ShellStatus captures current hook state.
type ShellStatus struct {
	Shell        ShellName
	ScriptPath   string
	RCFile       string
	ScriptExists bool
	LinePresent  bool
	Error        string
}

// Installed reports whether the hook is fully wired.
func (s ShellStatus) Installed() bool {
	return s.ScriptExists && s.LinePresent
}

package commands

// ClassifyTerminalExitCode tells the zsh hook to run the line as typed.
const ClassifyTerminalExitCode = 100

// Error messages
const (
	errConfigLoaderUnavailable   = "config loader unavailable"
	errDoctorServiceUnavailable  = "doctor service unavailable"
	errHistoryStoreUnavailable   = "history store unavailable (enable history in config)"
	errShellInstallerUnavailable = "shell installer unavailable"
	errInvalidRetainDays         = "--days must be > 0"
)

// Success messages
const (
	msgConfigurationValid       = "Configuration valid"
	msgNoDifferencesFromDefault = "No differences from default configuration."
	msgNoHistoryRecorded        = "No history recorded yet."
)

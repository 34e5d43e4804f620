package domain

// SystemContext is the host description handed to the planner and recovery prompts.
type SystemContext struct {
	WorkingDir     string
	Shell          string
	OS             string
	User           string
	AvailableTools []string
}

package domain

import "time"

// RunRecord is the persisted summary of one pipeline run.
type RunRecord struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Goal       string    `json:"goal"`
	Outcome    string    `json:"outcome"`
	Stage      StageKind `json:"stage,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	PlanJSON   string    `json:"plan,omitempty"`
	Missing    []string  `json:"missing,omitempty"`
	Executed   bool      `json:"executed"`
	Success    bool      `json:"success"`
	DurationMS int64     `json:"duration_ms"`
}

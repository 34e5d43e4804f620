package helpers

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/doeshing/li/internal/application/validator"
	"github.com/doeshing/li/internal/domain"
)

// CountStatistic is one value with how often it occurred.
type CountStatistic struct {
	Value string
	Count int
}

// HistoryStatistics summarizes a slice of run records.
type HistoryStatistics struct {
	Runs         int
	Executed     int
	Successful   int
	Outcomes     map[string]int
	FailedStages map[domain.StageKind]int
	Programs     map[string]int
	Missing      map[string]int
}

// AnalyzeHistory computes outcome, stage and program counts over records.
func AnalyzeHistory(records []domain.RunRecord) HistoryStatistics {
	stats := HistoryStatistics{
		Runs:         len(records),
		Outcomes:     make(map[string]int),
		FailedStages: make(map[domain.StageKind]int),
		Programs:     make(map[string]int),
		Missing:      make(map[string]int),
	}
	for _, rec := range records {
		stats.Outcomes[rec.Outcome]++
		if rec.Executed {
			stats.Executed++
			if rec.Success {
				stats.Successful++
			}
		}
		if rec.Outcome == "failed" && rec.Stage != "" {
			stats.FailedStages[rec.Stage]++
		}
		for _, line := range PlanCommands(rec) {
			if name, ok := validator.ExtractCommand(line); ok {
				stats.Programs[validator.NormalizeName(name)]++
			}
		}
		for _, m := range rec.Missing {
			stats.Missing[m]++
		}
	}
	return stats
}

// PlanCommands decodes the plan stored with a record, dry-run commands first.
// Records without a readable plan yield nothing.
func PlanCommands(rec domain.RunRecord) []string {
	if rec.PlanJSON == "" {
		return nil
	}
	var plan domain.Plan
	if err := json.Unmarshal([]byte(rec.PlanJSON), &plan); err != nil {
		return nil
	}
	return append(append([]string(nil), plan.DryRunCommands...), plan.ExecuteCommands...)
}

// TopCounts returns the most frequent entries, ties broken alphabetically.
// A limit of 0 or less returns everything.
func TopCounts(frequency map[string]int, limit int) []CountStatistic {
	stats := make([]CountStatistic, 0, len(frequency))
	for value, count := range frequency {
		stats = append(stats, CountStatistic{Value: value, Count: count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count == stats[j].Count {
			return stats[i].Value < stats[j].Value
		}
		return stats[i].Count > stats[j].Count
	})
	if limit > 0 && len(stats) > limit {
		return stats[:limit]
	}
	return stats
}

// CalculateSuccessRate calculates the success rate as a percentage
func CalculateSuccessRate(successfulCount int, executedCount int) float64 {
	if executedCount == 0 {
		return 0.0
	}
	return float64(successfulCount) / float64(executedCount) * 100.0
}

var undoHints = map[string]string{
	"git":     "Use `git status`, `git reflog`, or `git restore` to inspect and undo git changes.",
	"kubectl": "Use `kubectl rollout undo` or `kubectl get events` to recover from cluster issues.",
	"rm":      "Restore files via backups or `git checkout -- <path>` if tracked.",
	"mv":      "Moved files can be moved back; check the plan in `li history list` for the original paths.",
	"docker":  "Use `docker ps -a` and `docker logs` to review container history before repeating.",
}

// DeriveUndoHints lists recovery hints for programs that executed plans used.
func DeriveUndoHints(records []domain.RunRecord) []string {
	seen := make(map[string]bool)
	for _, rec := range records {
		if !rec.Executed {
			continue
		}
		for _, line := range PlanCommands(rec) {
			name, ok := validator.ExtractCommand(line)
			if !ok {
				continue
			}
			if hint, known := undoHints[strings.ToLower(validator.NormalizeName(name))]; known {
				seen[hint] = true
			}
		}
	}
	hints := make([]string, 0, len(seen))
	for hint := range seen {
		hints = append(hints, hint)
	}
	sort.Strings(hints)
	return hints
}

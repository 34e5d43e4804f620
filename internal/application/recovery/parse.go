package recovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/doeshing/li/internal/domain"
)

var errEmptyResponse = errors.New("empty recovery response")

type aiAlternative struct {
	Command     string  `json:"command"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

type aiInstruction struct {
	Command     string `json:"command"`
	Description string `json:"description"`
	Platform    string `json:"platform"`
}

type aiResponse struct {
	Alternatives             []aiAlternative `json:"alternatives"`
	InstallationInstructions []aiInstruction `json:"installation_instructions"`
	CanSkip                  bool            `json:"can_skip"`
	OriginalGoalAchievable   bool            `json:"original_goal_achievable"`
}

// ExtractJSON returns the body of the first ```json fence, else the first
// plain fence, else the trimmed input.
func ExtractJSON(content string) string {
	if body, ok := fenced(content, "```json"); ok {
		return body
	}
	if body, ok := fenced(content, "```"); ok {
		return body
	}
	return strings.TrimSpace(content)
}

func fenced(content, open string) (string, bool) {
	start := strings.Index(content, open)
	if start < 0 {
		return "", false
	}
	rest := content[start+len(open):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// ParseResponse decodes a model reply into RecoveryOptions. Entries without a
// command are dropped.
func ParseResponse(raw string) (domain.RecoveryOptions, error) {
	body := ExtractJSON(raw)
	if body == "" {
		return domain.RecoveryOptions{}, errEmptyResponse
	}

	var resp aiResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return domain.RecoveryOptions{}, fmt.Errorf("decode recovery response: %w", err)
	}

	opts := domain.RecoveryOptions{
		CanSkipStep:   resp.CanSkip,
		RetryPossible: resp.OriginalGoalAchievable,
	}
	for _, alt := range resp.Alternatives {
		cmd := strings.TrimSpace(alt.Command)
		if cmd == "" {
			continue
		}
		opts.CommandAlternatives = append(opts.CommandAlternatives, domain.CommandAlternative{
			Command:     cmd,
			Confidence:  clampConfidence(alt.Confidence),
			Description: strings.TrimSpace(alt.Description),
		})
	}
	for _, inst := range resp.InstallationInstructions {
		cmd := strings.TrimSpace(inst.Command)
		if cmd == "" {
			continue
		}
		manager := strings.TrimSpace(inst.Platform)
		if manager == "" {
			manager = guessPackageManager(cmd)
		}
		opts.InstallationInstructions = append(opts.InstallationInstructions, domain.InstallationInstruction{
			PackageManager: manager,
			InstallCommand: cmd,
			Caveat:         strings.TrimSpace(inst.Description),
		})
	}
	return opts, nil
}

func clampConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

var knownManagers = map[string]string{
	"brew":    "brew",
	"apt":     "apt",
	"apt-get": "apt",
	"yum":     "yum",
	"dnf":     "dnf",
	"pacman":  "pacman",
	"apk":     "apk",
	"zypper":  "zypper",
	"port":    "port",
	"snap":    "snap",
	"npm":     "npm",
	"pip":     "pip",
	"pip3":    "pip",
	"cargo":   "cargo",
	"go":      "go",
}

func guessPackageManager(command string) string {
	for _, field := range strings.Fields(command) {
		if field == "sudo" {
			continue
		}
		if manager, ok := knownManagers[field]; ok {
			return manager
		}
		break
	}
	return "unknown"
}

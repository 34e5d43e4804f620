package recovery

import (
	"fmt"
	"strings"

	"github.com/doeshing/li/internal/domain"
)

const responseShape = `{
  "alternatives": [
    {
      "command": "alternate command",
      "description": "why this works as an alternative",
      "confidence": %s
    }
  ],
  "installation_instructions": [
    {
      "command": "brew install %s",
      "description": "install on macOS using Homebrew",
      "platform": "brew"
    }
  ],
  "can_skip": %t,
  "original_goal_achievable": true
}`

func alternativesPrompt(missing domain.MissingCommand, goal string, tools []string, goos string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The command '%s' is not available on this system.\n\n", missing.Command)
	fmt.Fprintf(&b, "Original goal: %s\n", goal)
	fmt.Fprintf(&b, "Failed command line: %s\n\n", missing.FailedCommandLine)
	fmt.Fprintf(&b, "Available tools on this system: %s\n", joinTools(tools))
	fmt.Fprintf(&b, "Operating system: %s\n\n", goos)
	b.WriteString("Please suggest 2-3 alternative approaches to achieve the same goal, using only the available tools listed above.\n\n")
	b.WriteString("For each suggestion:\n")
	b.WriteString("1. Provide the exact command to run\n")
	b.WriteString("2. Explain why it works as an alternative\n")
	b.WriteString("3. Rate confidence (0.0-1.0) that it will achieve the same goal\n\n")
	b.WriteString("Also include installation instructions for the missing command if available.\n\n")
	b.WriteString("Respond in valid JSON format:\n")
	fmt.Fprintf(&b, responseShape, "0.9", missing.Command, false)
	return b.String()
}

func installationPrompt(missing domain.MissingCommand, goal string, goos string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The command '%s' is not available on this system.\n\n", missing.Command)
	fmt.Fprintf(&b, "Original goal: %s\n", goal)
	fmt.Fprintf(&b, "Failed command line: %s\n\n", missing.FailedCommandLine)
	fmt.Fprintf(&b, "Operating system: %s\n\n", goos)
	b.WriteString("Please provide installation instructions for the missing command and suggest alternative approaches.\n\n")
	b.WriteString("Include:\n")
	b.WriteString("1. Installation commands for this platform, one per package manager\n")
	b.WriteString("2. Alternative commands that might achieve similar results\n")
	b.WriteString("3. Whether the original goal can be achieved without the missing tool\n\n")
	b.WriteString("Respond in valid JSON format:\n")
	fmt.Fprintf(&b, responseShape, "0.7", missing.Command, true)
	return b.String()
}

func joinTools(tools []string) string {
	if len(tools) == 0 {
		return "(unknown)"
	}
	return strings.Join(tools, ", ")
}

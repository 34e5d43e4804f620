package recovery

import (
	"fmt"

	"github.com/doeshing/li/internal/domain"
)

// FallbackAlternatives is the built-in substitution table used when the model
// gives nothing usable. Suggestions depend on which tools are present.
func FallbackAlternatives(command string, tools []string) []domain.CommandAlternative {
	has := func(name string) bool {
		for _, t := range tools {
			if t == name {
				return true
			}
		}
		return false
	}

	var alts []domain.CommandAlternative
	switch command {
	case "tar":
		if has("zip") {
			alts = append(alts, domain.CommandAlternative{
				Command:     "zip -r archive.zip files",
				Confidence:  0.8,
				Description: "Use zip for compression instead of tar",
			})
		}
		if has("gzip") {
			alts = append(alts, domain.CommandAlternative{
				Command:     "gzip files",
				Confidence:  0.6,
				Description: "Use gzip for individual file compression",
			})
		}
	case "curl":
		if has("wget") {
			alts = append(alts, domain.CommandAlternative{
				Command:     "wget -O output.txt https://example.com",
				Confidence:  0.8,
				Description: "Use wget instead of curl for downloading",
			})
		}
	case "git":
		alts = append(alts, domain.CommandAlternative{
			Command:     "echo 'Git is required for version control. Please install git first.'",
			Confidence:  0.1,
			Description: "Git cannot be easily replaced; installation required",
		})
	default:
		alts = append(alts, domain.CommandAlternative{
			Command:     fmt.Sprintf("echo '%s command not found. Please install %s or find an alternative.'", command, command),
			Confidence:  0.1,
			Description: "No suitable alternative found",
		})
	}
	return alts
}

// FallbackInstructions returns the default package-manager commands for goos.
func FallbackInstructions(command, goos string) []domain.InstallationInstruction {
	switch goos {
	case "darwin":
		return []domain.InstallationInstruction{
			{PackageManager: "brew", InstallCommand: "brew install " + command},
		}
	case "linux":
		return []domain.InstallationInstruction{
			{PackageManager: "apt", InstallCommand: "sudo apt-get install " + command},
			{PackageManager: "yum", InstallCommand: "sudo yum install " + command},
		}
	default:
		return []domain.InstallationInstruction{
			{
				PackageManager: "generic",
				InstallCommand: fmt.Sprintf("echo 'Please install %s using your system package manager'", command),
			},
		}
	}
}

func fallbackOptions(command string, tools []string, goos string) domain.RecoveryOptions {
	return domain.RecoveryOptions{
		CommandAlternatives:      FallbackAlternatives(command, tools),
		InstallationInstructions: FallbackInstructions(command, goos),
		CanSkipStep:              true,
		RetryPossible:            true,
	}
}

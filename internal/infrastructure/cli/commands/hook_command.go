package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/doeshing/li/internal/app"
	"github.com/doeshing/li/internal/domain"
)

// NewHookCommand creates the hook command with install, uninstall and status.
func NewHookCommand(container *app.Container) *cobra.Command {
	var shell string

	hookCmd := &cobra.Command{
		Use:   "hook",
		Short: "Manage the zsh hook that sends plain-language lines to li",
	}
	hookCmd.PersistentFlags().StringVar(&shell, "shell", "zsh", "Target shell (only zsh is supported)")

	var force bool
	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Install the zsh hook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.ShellIntegrator == nil {
				return errors.New(errShellInstallerUnavailable)
			}
			result, err := container.ShellIntegrator.Install(shell, force)
			if err != nil {
				return fmt.Errorf("install %s hook: %w", shell, err)
			}
			displayInstallResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	installCmd.Flags().BoolVar(&force, "force", false, "Rewrite the rc entry even if present")

	uninstallCmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the zsh hook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.ShellIntegrator == nil {
				return errors.New(errShellInstallerUnavailable)
			}
			result, err := container.ShellIntegrator.Uninstall(shell)
			if err != nil {
				return fmt.Errorf("uninstall %s hook: %w", shell, err)
			}
			out := cmd.OutOrStdout()
			if !result.RCUpdated && !result.ScriptUpdated {
				fmt.Fprintln(out, "Hook was not installed.")
				return nil
			}
			fmt.Fprintf(out, "Removed hook from %s\n", result.RCFile)
			fmt.Fprintln(out, "Restart your shell to unload it.")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show hook installation state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.ShellIntegrator == nil {
				return errors.New(errShellInstallerUnavailable)
			}
			displayHookStatus(cmd.OutOrStdout(), container.ShellIntegrator.Status(shell))
			return nil
		},
	}

	hookCmd.AddCommand(installCmd, uninstallCmd, statusCmd)
	return hookCmd
}

func displayInstallResult(out io.Writer, result domain.ShellInstallResult) {
	if result.ScriptUpdated {
		fmt.Fprintf(out, "Wrote hook script %s\n", result.ScriptPath)
	}
	if result.RCUpdated {
		fmt.Fprintf(out, "Updated %s\n", result.RCFile)
	} else {
		fmt.Fprintf(out, "%s already sources the hook\n", result.RCFile)
	}
	fmt.Fprintf(out, "Run: source %s\n", result.RCFile)
}

func displayHookStatus(out io.Writer, status domain.ShellStatus) {
	if status.Error != "" {
		fmt.Fprintf(out, "%s: %s\n", status.Shell, status.Error)
		return
	}
	state := "not installed"
	switch {
	case status.Installed():
		state = "installed"
	case status.ScriptExists:
		state = "script present, rc entry missing"
	case status.LinePresent:
		state = "rc entry present, script missing"
	}
	fmt.Fprintf(out, "Shell: %s\nScript: %s\nRC file: %s\nStatus: %s\n",
		status.Shell, status.ScriptPath, status.RCFile, state)
}

// Package shell installs the zsh accept-line hook that routes typed goals through li.
package shell

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/doeshing/li/assets"
	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/pkg/filesystem"
	"github.com/doeshing/li/internal/pkg/logger"
	"github.com/doeshing/li/internal/ports"
)

const rcHeader = "# Added by li installer"

// Installer handles hook script deployment.
type Installer struct {
	logger ports.Logger
	home   string
}

// NewInstaller builds a shell installer rooted at the user's home directory.
func NewInstaller(log ports.Logger) *Installer {
	if log == nil {
		log = logger.Nop{}
	}
	return &Installer{logger: log, home: filesystem.UserHomeDir()}
}

var _ ports.ShellIntegrator = (*Installer)(nil)

// Install writes the hook script and adds a source line to the rc file.
// force rewrites the source line even when already present.
func (i *Installer) Install(shell string, force bool) (domain.ShellInstallResult, error) {
	name := normalizeShell(shell)
	scriptPath, rcFile, err := i.paths(name)
	if err != nil {
		return domain.ShellInstallResult{}, err
	}
	if err := os.MkdirAll(filepath.Dir(scriptPath), domain.DirectoryPermissions); err != nil {
		return domain.ShellInstallResult{}, err
	}

	scriptUpdated := true
	if current, err := os.ReadFile(scriptPath); err == nil && string(current) == string(assets.ZshHook) {
		scriptUpdated = false
	}
	if scriptUpdated {
		if err := os.WriteFile(scriptPath, assets.ZshHook, 0o644); err != nil {
			return domain.ShellInstallResult{}, fmt.Errorf("write hook script: %w", err)
		}
	}

	rcUpdated, err := ensureRCLine(rcFile, i.sourceLine(scriptPath), force)
	if err != nil {
		return domain.ShellInstallResult{}, fmt.Errorf("update %s: %w", rcFile, err)
	}

	i.logger.Info("shell hook installed", map[string]interface{}{
		"shell":      string(name),
		"script":     scriptPath,
		"rc_updated": rcUpdated,
	})
	return domain.ShellInstallResult{
		Shell:         name,
		ScriptPath:    scriptPath,
		RCFile:        rcFile,
		ScriptUpdated: scriptUpdated,
		RCUpdated:     rcUpdated,
	}, nil
}

// Uninstall removes the source line and the hook script.
func (i *Installer) Uninstall(shell string) (domain.ShellInstallResult, error) {
	name := normalizeShell(shell)
	scriptPath, rcFile, err := i.paths(name)
	if err != nil {
		return domain.ShellInstallResult{}, err
	}
	updated, err := removeRCLine(rcFile, i.sourceLine(scriptPath))
	if err != nil {
		return domain.ShellInstallResult{}, err
	}
	removed := false
	if err := os.Remove(scriptPath); err == nil {
		removed = true
	} else if !errors.Is(err, os.ErrNotExist) {
		return domain.ShellInstallResult{}, err
	}
	return domain.ShellInstallResult{
		Shell:         name,
		ScriptPath:    scriptPath,
		RCFile:        rcFile,
		ScriptUpdated: removed,
		RCUpdated:     updated,
	}, nil
}

// Status reports current integration state.
func (i *Installer) Status(shell string) domain.ShellStatus {
	name := normalizeShell(shell)
	status := domain.ShellStatus{Shell: name}
	scriptPath, rcFile, err := i.paths(name)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.ScriptPath = scriptPath
	status.RCFile = rcFile

	if info, err := os.Stat(scriptPath); err == nil && info.Mode().IsRegular() {
		status.ScriptExists = true
	}
	if contents, err := os.ReadFile(rcFile); err == nil {
		status.LinePresent = strings.Contains(string(contents), i.sourceLine(scriptPath))
	}
	return status
}

// DetectShell inspects the SHELL env var.
func (i *Installer) DetectShell() string {
	return filepath.Base(os.Getenv("SHELL"))
}

func normalizeShell(shell string) domain.ShellName {
	if shell == "" {
		shell = filepath.Base(os.Getenv("SHELL"))
	}
	if strings.EqualFold(shell, "zsh") {
		return domain.ShellZsh
	}
	return domain.ShellUnknown
}

func (i *Installer) paths(shell domain.ShellName) (string, string, error) {
	if shell != domain.ShellZsh {
		return "", "", fmt.Errorf("unsupported shell: %s (only zsh has a hook)", shell)
	}
	return filepath.Join(i.home, ".zshrc.d", "li.zsh"), filepath.Join(i.home, ".zshrc"), nil
}

func (i *Installer) sourceLine(scriptPath string) string {
	friendly := friendlyPath(i.home, scriptPath)
	return fmt.Sprintf("[ -f %s ] && source %s", friendly, friendly)
}

func friendlyPath(home, path string) string {
	if rel, err := filepath.Rel(home, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.Join("$HOME", rel)
	}
	return path
}

func ensureRCLine(path string, line string, force bool) (bool, error) {
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return true, os.WriteFile(path, []byte(rcHeader+"\n"+line+"\n"), 0o644)
	}
	if err != nil {
		return false, err
	}
	if strings.Contains(string(contents), line) && !force {
		return false, nil
	}
	var kept []string
	for _, existing := range strings.Split(strings.TrimRight(string(contents), "\n"), "\n") {
		if strings.Contains(existing, line) || existing == rcHeader {
			continue
		}
		kept = append(kept, existing)
	}
	kept = append(kept, rcHeader, line)
	return true, os.WriteFile(path, []byte(strings.Join(kept, "\n")+"\n"), 0o644)
}

func removeRCLine(path string, line string) (bool, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	var kept []string
	removed := false
	for _, existing := range strings.Split(strings.TrimRight(string(contents), "\n"), "\n") {
		if strings.Contains(existing, line) {
			removed = true
			continue
		}
		if existing == rcHeader {
			continue
		}
		kept = append(kept, existing)
	}
	if !removed {
		return false, nil
	}
	out := strings.Join(kept, "\n")
	if out != "" {
		out += "\n"
	}
	return true, os.WriteFile(path, []byte(out), 0o644)
}

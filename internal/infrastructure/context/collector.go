// Package contextcollector describes the host for planner and recovery prompts.
package contextcollector

import (
	"context"
	"os"
	"os/user"
	"path/filepath"
	"runtime"

	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/ports"
)

// ToolLister reports which allowlisted tools exist on the host.
type ToolLister interface {
	AvailableTools(ctx context.Context) []string
}

// Collector implements ports.ContextCollector.
type Collector struct {
	Tools ToolLister
	// Getwd and GOOS are replaceable for tests.
	Getwd func() (string, error)
	GOOS  string
}

// NewCollector builds a collector that probes tools through lister.
func NewCollector(lister ToolLister) *Collector {
	return &Collector{Tools: lister, Getwd: os.Getwd, GOOS: runtime.GOOS}
}

var _ ports.ContextCollector = (*Collector)(nil)

// Collect gathers the working directory, shell, OS, user and available tools.
func (c *Collector) Collect(ctx context.Context) (domain.SystemContext, error) {
	getwd := c.Getwd
	if getwd == nil {
		getwd = os.Getwd
	}
	wd, err := getwd()
	if err != nil {
		wd = "."
	}

	goos := c.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}

	snapshot := domain.SystemContext{
		WorkingDir: wd,
		Shell:      DetectShell(),
		OS:         goos,
		User:       currentUser(),
	}
	if c.Tools != nil {
		snapshot.AvailableTools = c.Tools.AvailableTools(ctx)
	}
	return snapshot, nil
}

// DetectShell returns the basename of $SHELL, or "unknown".
func DetectShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return filepath.Base(shell)
	}
	return "unknown"
}

func currentUser() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}

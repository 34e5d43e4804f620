package validator

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/pkg/filesystem"
)

// Verdict is a prober's answer for one token.
type Verdict int

const (
	// Undecided passes the token to the next prober.
	Undecided Verdict = iota
	Found
	NotFound
)

func (v Verdict) String() string {
	switch v {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	default:
		return "undecided"
	}
}

// Prober is one existence-check strategy. An error means the probe mechanism
// itself failed; the chain moves on to the next prober.
type Prober interface {
	Name() string
	Probe(ctx context.Context, token string) (Verdict, error)
}

// DefaultProbers is the standard chain: file check for path tokens, a
// `command -v` lookup for bare names, then a version-flag spawn when the
// lookup could not run.
func DefaultProbers(workDir string) []Prober {
	return []Prober{
		PathProber{WorkDir: workDir},
		ShellLookupProber{Shell: "sh"},
		VersionProber{},
	}
}

// PathProber decides path-like tokens: the file must exist and carry an
// execute bit.
type PathProber struct {
	WorkDir string
}

func (PathProber) Name() string { return "path" }

func (p PathProber) Probe(_ context.Context, token string) (Verdict, error) {
	if !IsPathLike(token) {
		return Undecided, nil
	}
	path := filesystem.ExpandPath(token)
	if !filepath.IsAbs(path) && p.WorkDir != "" {
		path = filepath.Join(p.WorkDir, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return NotFound, nil
	}
	if info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0 {
		return Found, nil
	}
	return NotFound, nil
}

// ShellLookupProber resolves bare names with the shell's `command -v`, which
// also sees builtins such as cd and export.
type ShellLookupProber struct {
	Shell string
}

func (ShellLookupProber) Name() string { return "command-v" }

func (p ShellLookupProber) Probe(ctx context.Context, token string) (Verdict, error) {
	if IsPathLike(token) {
		return Undecided, nil
	}
	ctx, cancel := context.WithTimeout(ctx, domain.DefaultProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Shell, "-c", `command -v "$1"`, p.Shell, token)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	err := cmd.Run()
	if err == nil {
		return Found, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return NotFound, nil
	}
	return Undecided, err
}

// VersionProber spawns `<name> --version`; any spawn that runs to exit counts
// as existence.
type VersionProber struct{}

func (VersionProber) Name() string { return "version-flag" }

func (VersionProber) Probe(ctx context.Context, token string) (Verdict, error) {
	if IsPathLike(token) {
		return Undecided, nil
	}
	ctx, cancel := context.WithTimeout(ctx, domain.DefaultProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, token, "--version")
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	err := cmd.Run()
	if err == nil {
		return Found, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Found, nil
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return NotFound, nil
	}
	return Undecided, err
}

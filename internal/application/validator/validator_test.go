package validator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/li/internal/domain"
)

// fakeProber answers from a fixed set and counts calls.
type fakeProber struct {
	present map[string]bool
	calls   map[string]int
	err     error
}

func newFakeProber(present ...string) *fakeProber {
	p := &fakeProber{present: map[string]bool{}, calls: map[string]int{}}
	for _, name := range present {
		p.present[name] = true
	}
	return p
}

func (p *fakeProber) Name() string { return "fake" }

func (p *fakeProber) Probe(_ context.Context, token string) (Verdict, error) {
	p.calls[token]++
	if p.err != nil {
		return Undecided, p.err
	}
	if p.present[token] {
		return Found, nil
	}
	return NotFound, nil
}

type staticProber struct {
	verdict Verdict
	calls   int
}

func (p *staticProber) Name() string { return "static" }

func (p *staticProber) Probe(context.Context, string) (Verdict, error) {
	p.calls++
	return p.verdict, nil
}

func TestExtractCommand(t *testing.T) {
	tests := []struct {
		line   string
		want   string
		wantOK bool
	}{
		{"ls -la", "ls", true},
		{"git status", "git", true},
		{"docker run nginx", "docker", true},
		{"echo 'hello world'", "echo", true},
		{"/usr/bin/find . -name '*.go'", "/usr/bin/find", true},
		{"./script.sh --flag", "./script.sh", true},
		{"~/bin/tool run", "~/bin/tool", true},
		{"git add . && git commit -m x", "git", true},
		{"make || echo failed", "make", true},
		{"cat file.txt | grep needle", "cat", true},
		{"cd /tmp; ls", "cd", true},
		{"a;b", "a", true},
		{"  npm   install  ", "npm", true},
		{"sudo apt install jq", "sudo", true},
		{"FOO=bar make", "FOO=bar", true},
		{"", "", false},
		{"   ", "", false},
		{"&& ls", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ExtractCommand(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractCommandIsIdempotent(t *testing.T) {
	lines := []string{
		"git status",
		"./deploy.sh prod",
		"/usr/local/bin/terraform plan",
		"~/bin/tool --help | less",
		"FOO=bar env",
		"kubectl get pods && echo ok",
	}
	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			first, ok := ExtractCommand(line)
			require.True(t, ok)

			again, ok := ExtractCommand(first)
			require.True(t, ok)
			assert.Equal(t, first, again)

			bare := NormalizeName(first)
			reBare, ok := ExtractCommand(bare)
			require.True(t, ok)
			assert.Equal(t, bare, reBare)
			assert.Equal(t, bare, NormalizeName(reBare))
		})
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "git", NormalizeName("git"))
	assert.Equal(t, "script.sh", NormalizeName("./script.sh"))
	assert.Equal(t, "find", NormalizeName("/usr/bin/find"))
	assert.Equal(t, "tool", NormalizeName("~/bin/tool"))
}

func TestCommandExistsCachesProbes(t *testing.T) {
	prober := newFakeProber("git")
	v := New(WithProbers(prober))
	ctx := context.Background()

	assert.True(t, v.CommandExists(ctx, "git"))
	assert.True(t, v.CommandExists(ctx, "git"))
	assert.False(t, v.CommandExists(ctx, "foobarbaz"))
	assert.False(t, v.CommandExists(ctx, "foobarbaz"))

	assert.Equal(t, 1, prober.calls["git"])
	assert.Equal(t, 1, prober.calls["foobarbaz"])
	assert.Equal(t, 2, v.ProbeCount())
	assert.Equal(t, CacheStats{Total: 2, Hits: 1}, v.CacheStats())

	v.ClearCache()
	assert.Equal(t, 0, v.ProbeCount())
	assert.Equal(t, CacheStats{}, v.CacheStats())

	assert.True(t, v.CommandExists(ctx, "git"))
	assert.Equal(t, 2, prober.calls["git"])
	assert.Equal(t, 1, v.ProbeCount())
}

func TestCacheIsPerInstance(t *testing.T) {
	prober := newFakeProber("git")
	a := New(WithProbers(prober))
	b := New(WithProbers(prober))
	ctx := context.Background()

	a.CommandExists(ctx, "git")
	b.CommandExists(ctx, "git")

	assert.Equal(t, 2, prober.calls["git"])
	assert.Equal(t, 1, a.ProbeCount())
	assert.Equal(t, 1, b.ProbeCount())
}

func TestForgetReprobesSingleToken(t *testing.T) {
	prober := newFakeProber()
	v := New(WithProbers(prober))
	ctx := context.Background()

	assert.False(t, v.CommandExists(ctx, "jq"))
	prober.present["jq"] = true
	assert.False(t, v.CommandExists(ctx, "jq"), "cached verdict should stick")

	v.Forget("jq")
	assert.True(t, v.CommandExists(ctx, "jq"))
	assert.Equal(t, 2, prober.calls["jq"])
}

func TestProbeChainFallsThrough(t *testing.T) {
	broken := newFakeProber()
	broken.err = errors.New("sh: spawn failed")
	undecided := &staticProber{verdict: Undecided}
	fallback := &staticProber{verdict: Found}

	v := New(WithProbers(broken, undecided, fallback))
	assert.True(t, v.CommandExists(context.Background(), "node"))
	assert.Equal(t, 1, broken.calls["node"])
	assert.Equal(t, 1, undecided.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestProbeChainStopsAtFirstVerdict(t *testing.T) {
	first := &staticProber{verdict: NotFound}
	second := &staticProber{verdict: Found}

	v := New(WithProbers(first, second))
	assert.False(t, v.CommandExists(context.Background(), "node"))
	assert.Equal(t, 0, second.calls)
}

func TestNoDecisionMeansMissing(t *testing.T) {
	v := New(WithProbers(&staticProber{verdict: Undecided}))
	assert.False(t, v.CommandExists(context.Background(), "node"))
}

func TestValidatePlanScenarioGitPresent(t *testing.T) {
	v := New(WithProbers(newFakeProber("git")))
	plan := domain.Plan{
		DryRunCommands:  []string{"git status"},
		ExecuteCommands: []string{"git init", "git add .", `git commit -m "x"`},
	}

	result := v.ValidatePlan(context.Background(), plan)

	assert.Empty(t, result.MissingCommands)
	assert.True(t, result.PlanCanContinue)
	assert.Equal(t, 1, v.ProbeCount())
}

func TestValidatePlanScenarioMissingExecuteCommand(t *testing.T) {
	v := New()
	plan := domain.Plan{ExecuteCommands: []string{"foobarbaz --help"}}

	result := v.ValidatePlan(context.Background(), plan)

	require.Len(t, result.MissingCommands, 1)
	assert.Equal(t, domain.MissingCommand{
		Command:           "foobarbaz",
		FailedCommandLine: "foobarbaz --help",
		PlanStep:          0,
		IsDryRun:          false,
	}, result.MissingCommands[0])
	assert.False(t, result.PlanCanContinue)
}

func TestValidatePlanKeepsOrderAndPhase(t *testing.T) {
	v := New(WithProbers(newFakeProber("ls", "echo")))
	plan := domain.Plan{
		DryRunCommands:  []string{"ls", "jq --version", ""},
		ExecuteCommands: []string{"echo hi", "yq eval", "jq ."},
	}

	result := v.ValidatePlan(context.Background(), plan)

	want := []domain.MissingCommand{
		{Command: "jq", FailedCommandLine: "jq --version", PlanStep: 1, IsDryRun: true},
		{Command: "yq", FailedCommandLine: "yq eval", PlanStep: 1, IsDryRun: false},
		{Command: "jq", FailedCommandLine: "jq .", PlanStep: 2, IsDryRun: false},
	}
	assert.Equal(t, want, result.MissingCommands)
	assert.False(t, result.PlanCanContinue)
}

func TestValidatePlanOnlyDryRunMissingCanContinue(t *testing.T) {
	v := New(WithProbers(newFakeProber("git")))
	plan := domain.Plan{
		DryRunCommands:  []string{"shellcheck deploy.sh"},
		ExecuteCommands: []string{"git push"},
	}

	result := v.ValidatePlan(context.Background(), plan)

	require.Len(t, result.MissingCommands, 1)
	assert.True(t, result.MissingCommands[0].IsDryRun)
	assert.True(t, result.PlanCanContinue)
}

func TestValidatePlanIsIdempotentWithWarmCache(t *testing.T) {
	v := New(WithProbers(newFakeProber("git", "ls")))
	plan := domain.Plan{
		DryRunCommands:  []string{"git status", "missing-a"},
		ExecuteCommands: []string{"ls", "missing-b --flag"},
	}
	ctx := context.Background()

	first := v.ValidatePlan(ctx, plan)
	probes := v.ProbeCount()
	second := v.ValidatePlan(ctx, plan)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("validation differs on warm cache (-first +second):\n%s", diff)
	}
	assert.Equal(t, probes, v.ProbeCount())
}

func TestCheckSingleCommand(t *testing.T) {
	v := New(WithProbers(newFakeProber("ls")))
	ctx := context.Background()

	ok, err := v.CheckSingleCommand(ctx, "ls -la")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.CheckSingleCommand(ctx, "fakecommand123")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = v.CheckSingleCommand(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestAvailableToolsUsesDisposableCache(t *testing.T) {
	prober := newFakeProber("git", "tar", "curl")
	v := New(WithProbers(prober))

	tools := v.AvailableTools(context.Background())

	assert.Equal(t, []string{"git", "tar", "curl"}, tools)
	assert.Equal(t, CacheStats{}, v.CacheStats())
	assert.Equal(t, 0, v.ProbeCount())
	assert.Equal(t, len(CommonTools()), len(prober.calls))
}

func TestDefaultProbersOnHost(t *testing.T) {
	v := New()
	ctx := context.Background()

	assert.True(t, v.CommandExists(ctx, "sh"))
	assert.False(t, v.CommandExists(ctx, "li_definitely_missing_binary_xyz"))
}

func TestPathProber(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "run.sh")
	plain := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	require.NoError(t, os.WriteFile(plain, []byte("text"), 0o644))

	p := PathProber{WorkDir: dir}
	ctx := context.Background()

	verdict, err := p.Probe(ctx, exe)
	require.NoError(t, err)
	assert.Equal(t, Found, verdict)

	verdict, _ = p.Probe(ctx, plain)
	assert.Equal(t, NotFound, verdict)

	verdict, _ = p.Probe(ctx, "./run.sh")
	assert.Equal(t, Found, verdict)

	verdict, _ = p.Probe(ctx, filepath.Join(dir, "absent"))
	assert.Equal(t, NotFound, verdict)

	verdict, _ = p.Probe(ctx, "git")
	assert.Equal(t, Undecided, verdict)
}

func TestPathProberExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, "bin", "tool"), []byte("#!/bin/sh\n"), 0o755))

	verdict, err := PathProber{}.Probe(context.Background(), "~/bin/tool")
	require.NoError(t, err)
	assert.Equal(t, Found, verdict)
}

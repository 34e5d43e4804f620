package recovery

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/li/internal/domain"
)

func menuOptions() domain.RecoveryOptions {
	return domain.RecoveryOptions{
		CommandAlternatives: []domain.CommandAlternative{
			{Command: "zip -r a.zip .", Confidence: 0.8},
			{Command: "gzip a", Confidence: 0.6},
		},
		InstallationInstructions: []domain.InstallationInstruction{
			{PackageManager: "apt", InstallCommand: "sudo apt-get install tar"},
			{PackageManager: "yum", InstallCommand: "sudo yum install tar"},
		},
		CanSkipStep:   true,
		RetryPossible: true,
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		input string
		want  domain.RecoveryChoice
	}{
		{"1", domain.UseAlternative{Index: 0}},
		{" 2 ", domain.UseAlternative{Index: 1}},
		{"3", domain.InstallCommand{Index: 0}},
		{"4", domain.InstallCommand{Index: 1}},
		{"i1", domain.InstallCommand{Index: 0}},
		{"I2", domain.InstallCommand{Index: 1}},
		{"5", domain.SkipStep{}},
		{"skip", domain.SkipStep{}},
		{"Retry", domain.RetryOriginal{}},
		{"ABORT", domain.AbortPlan{}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseChoice(tt.input, menuOptions())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseChoiceRejectsInvalidInput(t *testing.T) {
	for _, input := range []string{"", "0", "6", "-1", "i0", "i3", "i", "ix", "yes", "1.5", "skipp"} {
		t.Run(input, func(t *testing.T) {
			got, err := ParseChoice(input, menuOptions())
			assert.Error(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestParseChoiceRespectsFlags(t *testing.T) {
	opts := domain.RecoveryOptions{
		CommandAlternatives: []domain.CommandAlternative{{Command: "a"}},
	}

	_, err := ParseChoice("skip", opts)
	assert.Error(t, err)
	_, err = ParseChoice("retry", opts)
	assert.Error(t, err)
	_, err = ParseChoice("2", opts)
	assert.Error(t, err, "skip number is not offered when skipping is disallowed")
	_, err = ParseChoice("i1", opts)
	assert.Error(t, err)

	got, err := ParseChoice("abort", opts)
	require.NoError(t, err)
	assert.Equal(t, domain.AbortPlan{}, got)
}

func TestRenderMenuNumbering(t *testing.T) {
	out := RenderMenu(menuOptions(), domain.MissingCommand{Command: "tar", FailedCommandLine: "tar czf x.tgz ."})

	assert.Contains(t, out, "The command 'tar' is not available")
	assert.Contains(t, out, "[1] zip -r a.zip . (80% confidence)")
	assert.Contains(t, out, "[2] gzip a (60% confidence)")
	assert.Contains(t, out, "[3|i1] Install tar (apt)")
	assert.Contains(t, out, "[4|i2] Install tar (yum)")
	assert.Contains(t, out, "[5|skip] Skip this step")
	assert.Contains(t, out, "[retry]")
	assert.Contains(t, out, "[abort]")
}

func TestRenderMenuSkipOnly(t *testing.T) {
	out := RenderMenu(domain.SkipOnlyOptions(), foobarbaz)
	assert.Contains(t, out, "[1|skip] Skip this step")
	assert.NotContains(t, out, "[retry]")
	assert.Equal(t, "Your choice [1-1] or [skip/abort]: ", menuPrompt(domain.SkipOnlyOptions()))
}

func TestPresentRecoveryMenuRepromptsUntilValid(t *testing.T) {
	console := &scriptedConsole{inputs: []string{"9", "banana", "", "i1"}}
	e := &Engine{Console: console}

	choice, err := e.PresentRecoveryMenu(context.Background(), menuOptions(), foobarbaz)

	require.NoError(t, err)
	assert.Equal(t, domain.InstallCommand{Index: 0}, choice)
	assert.Len(t, console.prompts, 4)
	assert.Contains(t, console.output(), "Invalid choice")
}

func TestPresentRecoveryMenuNeverDefaults(t *testing.T) {
	console := &scriptedConsole{inputs: []string{"7", "nope"}}
	e := &Engine{Console: console}

	choice, err := e.PresentRecoveryMenu(context.Background(), menuOptions(), foobarbaz)

	assert.ErrorIs(t, err, io.EOF)
	assert.Nil(t, choice)
	assert.Len(t, console.prompts, 3)
}

func TestPresentRecoveryMenuWithoutConsole(t *testing.T) {
	_, err := (&Engine{}).PresentRecoveryMenu(context.Background(), menuOptions(), foobarbaz)
	assert.ErrorIs(t, err, ErrNoConsole)
}

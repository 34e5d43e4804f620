package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/li/internal/domain"
)

type knownCommands map[string]bool

func (k knownCommands) CommandExists(_ context.Context, token string) bool { return k[token] }

var installed = knownCommands{
	"ls": true, "git": true, "find": true, "echo": true, "./run.sh": true, "docker": true,
	"kill": true, "top": true, "cat": true,
}

func TestHeuristicClassify(t *testing.T) {
	h := &Heuristic{Checker: installed}

	tests := []struct {
		input string
		want  domain.Classification
	}{
		{"ls", domain.ClassTerminal},
		{"top", domain.ClassTerminal},
		{"ls -la", domain.ClassTerminal},
		{"git log --oneline", domain.ClassTerminal},
		{"find . -name '*.go'", domain.ClassTerminal},
		{"echo hi | wc -l", domain.ClassTerminal},
		{"echo $HOME", domain.ClassTerminal},
		{"echo \"two words\"", domain.ClassTerminal},
		{"cat ~/notes.txt", domain.ClassTerminal},
		{"ls src/", domain.ClassTerminal},
		{"./run.sh prod", domain.ClassTerminal},
		{"git status", domain.ClassNaturalLanguage},
		{"docker ps", domain.ClassNaturalLanguage},
		{"kill process using port 3000", domain.ClassNaturalLanguage},
		{"find large log files", domain.ClassNaturalLanguage},
		{"git undo last commit", domain.ClassNaturalLanguage},
		{"top memory hogs", domain.ClassNaturalLanguage},
		{"find Bob's photos", domain.ClassNaturalLanguage},
		{"find all large files in my home", domain.ClassNaturalLanguage},
		{"git push the branch to origin", domain.ClassNaturalLanguage},
		{"list files", domain.ClassNaturalLanguage},
		{"ls?", domain.ClassNaturalLanguage},
		{"how do I undo a commit", domain.ClassNaturalLanguage},
		{"   ", domain.ClassNaturalLanguage},
		{"initialize a git repo and commit everything", domain.ClassNaturalLanguage},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := h.Classify(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHeuristicClassifyTyped(t *testing.T) {
	h := &Heuristic{Checker: installed}

	tests := []struct {
		input string
		want  domain.Classification
	}{
		{"git status", domain.ClassTerminal},
		{"docker ps", domain.ClassTerminal},
		{"ls -la", domain.ClassTerminal},
		{"git push the branch to origin", domain.ClassNaturalLanguage},
		{"find all large files in my home", domain.ClassNaturalLanguage},
		{"list files", domain.ClassNaturalLanguage},
		{"ls?", domain.ClassNaturalLanguage},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, h.ClassifyTyped(context.Background(), tt.input))
		})
	}
}

func TestHasShellSyntax(t *testing.T) {
	assert.True(t, HasShellSyntax("du -sh"))
	assert.True(t, HasShellSyntax("make && make install"))
	assert.True(t, HasShellSyntax("FOO=bar env"))
	assert.True(t, HasShellSyntax("ls *.log"))
	assert.True(t, HasShellSyntax("cd .."))
	assert.False(t, HasShellSyntax("kill process using port 3000"))
	assert.False(t, HasShellSyntax("what's taking space"))
	assert.False(t, HasShellSyntax("cat - "))
}

func TestHeuristicWithoutCheckerIsNaturalLanguage(t *testing.T) {
	got, err := (&Heuristic{}).Classify(context.Background(), "ls -la")
	require.NoError(t, err)
	assert.Equal(t, domain.ClassNaturalLanguage, got)
	assert.Equal(t, domain.ClassNaturalLanguage, (&Heuristic{}).ClassifyTyped(context.Background(), "ls"))
}

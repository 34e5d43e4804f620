// Package classifier tells a typed shell command apart from a natural-language
// goal without calling a model.
package classifier

import (
	"context"
	"strings"

	"github.com/doeshing/li/internal/application/validator"
	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/ports"
)

// CommandChecker resolves whether a program token exists on the host.
type CommandChecker interface {
	CommandExists(ctx context.Context, token string) bool
}

// Heuristic classifies input as Terminal only when its first word is a
// runnable program and the line is either that single word or carries shell
// syntax. A known program followed by plain words is a goal.
type Heuristic struct {
	Checker CommandChecker
}

var _ ports.Classifier = (*Heuristic)(nil)

// operators only show up in command lines.
var operators = []string{"|", "&&", "||", ";", ">", "<", "`", "$(", "${"}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "all": true, "my": true, "me": true, "to": true,
	"for": true, "in": true, "of": true, "with": true, "and": true, "that": true, "this": true,
	"these": true, "those": true, "which": true, "what": true, "how": true, "please": true,
	"from": true, "into": true, "on": true, "is": true, "are": true, "it": true, "some": true,
	"every": true, "any": true, "i": true, "you": true, "can": true, "should": true,
}

// Classify never fails; the error return satisfies ports.Classifier.
func (h *Heuristic) Classify(ctx context.Context, input string) (domain.Classification, error) {
	line, ok := h.runnable(ctx, input)
	if !ok {
		return domain.ClassNaturalLanguage, nil
	}
	if len(strings.Fields(line)) == 1 || HasShellSyntax(line) {
		return domain.ClassTerminal, nil
	}
	return domain.ClassNaturalLanguage, nil
}

// ClassifyTyped is the looser check for a line typed at the shell prompt,
// which the shell itself runs when it classifies as Terminal: a known
// program followed by words that do not read like English stays in the shell.
func (h *Heuristic) ClassifyTyped(ctx context.Context, input string) domain.Classification {
	line, ok := h.runnable(ctx, input)
	if !ok {
		return domain.ClassNaturalLanguage
	}
	if HasShellSyntax(line) {
		return domain.ClassTerminal
	}
	for _, word := range strings.Fields(line)[1:] {
		if stopwords[strings.ToLower(strings.Trim(word, ",.!"))] {
			return domain.ClassNaturalLanguage
		}
	}
	return domain.ClassTerminal
}

func (h *Heuristic) runnable(ctx context.Context, input string) (string, bool) {
	line := strings.TrimSpace(input)
	if line == "" || strings.HasSuffix(line, "?") {
		return "", false
	}
	token, ok := validator.ExtractCommand(line)
	if !ok || h.Checker == nil || !h.Checker.CommandExists(ctx, token) {
		return "", false
	}
	return line, true
}

// HasShellSyntax reports positive evidence that line was written for a
// shell: an operator or substitution, a flag, a quoted or variable word, a
// glob, an assignment, or a path argument. Apostrophes inside words do not
// count.
func HasShellSyntax(line string) bool {
	for _, op := range operators {
		if strings.Contains(line, op) {
			return true
		}
	}
	for _, word := range strings.Fields(line) {
		switch {
		case strings.HasPrefix(word, "-") && len(word) > 1:
			return true
		case strings.HasPrefix(word, "'"), strings.HasPrefix(word, "\""), strings.HasPrefix(word, "$"):
			return true
		case strings.ContainsAny(word, "*=/"):
			return true
		case word == "." || word == ".." || strings.HasPrefix(word, "./") || strings.HasPrefix(word, "~"):
			return true
		}
	}
	return false
}

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/doeshing/li/internal/domain"
	"github.com/doeshing/li/internal/infrastructure/cli/helpers"
	"github.com/doeshing/li/internal/ports"
)

// Prompter talks to the user on the terminal: it answers planner questions,
// approves plans and backs recovery prompts.
type Prompter struct {
	in       *bufio.Reader
	out      io.Writer
	renderer *Renderer
}

// NewPrompter constructs a prompter reading from in. renderer may be nil.
func NewPrompter(in io.Reader, out io.Writer, renderer *Renderer) *Prompter {
	return &Prompter{
		in:       bufio.NewReader(in),
		out:      out,
		renderer: renderer,
	}
}

var (
	_ ports.Console          = (*Prompter)(nil)
	_ ports.Approver         = (*Prompter)(nil)
	_ ports.QuestionResolver = (*Prompter)(nil)
)

// Print implements ports.Console. text carries its own line breaks.
func (p *Prompter) Print(text string) {
	p.quiet()
	fmt.Fprint(p.out, text)
}

// ErrInputClosed is returned once input is exhausted. It wraps
// context.Canceled so the pipeline treats it as the user backing out.
var ErrInputClosed = fmt.Errorf("input closed: %w", context.Canceled)

// ReadLine implements ports.Console. A final line without a newline is
// returned as is; after that ReadLine fails with ErrInputClosed.
func (p *Prompter) ReadLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.quiet()
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(p.out)
		if line == "" {
			return "", ErrInputClosed
		}
		return strings.TrimSpace(line), nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm implements ports.Console.
func (p *Prompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	line, err := p.ReadLine(ctx, prompt+" [y/N]: ")
	if err != nil {
		return false, err
	}
	return helpers.IsAffirmative(line), nil
}

// Resolve implements ports.QuestionResolver. An empty answer or "skip"
// cancels planning.
func (p *Prompter) Resolve(ctx context.Context, question domain.Question) (string, error) {
	p.quiet()
	fmt.Fprintln(p.out, question.Text)
	if question.Context != "" {
		fmt.Fprintf(p.out, "  (%s)\n", question.Context)
	}
	return p.ReadLine(ctx, "> ")
}

// Approve implements ports.Approver. Plans that need explicit confirmation
// only pass when the user types "yes".
func (p *Prompter) Approve(ctx context.Context, plan domain.Plan, risk domain.PlanRisk) (bool, error) {
	if p.renderer != nil {
		p.renderer.Plan(plan, risk)
	}
	if risk.Action == domain.ActionExplicitConfirm {
		line, err := p.ReadLine(ctx, "Type 'yes' to run this plan: ")
		if err != nil {
			return false, err
		}
		return line == "yes", nil
	}
	return p.Confirm(ctx, "Run this plan?")
}

func (p *Prompter) quiet() {
	if p.renderer != nil {
		p.renderer.StopSpinner()
	}
}

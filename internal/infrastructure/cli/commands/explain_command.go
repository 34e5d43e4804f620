package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/doeshing/li/internal/app"
	"github.com/doeshing/li/internal/application/explain"
)

// NewExplainCommand creates the explain command: run a command, or read its
// output from a pipe, and have the model explain it.
func NewExplainCommand(container *app.Container) *cobra.Command {
	var (
		question string
		yes      bool
	)
	cmd := &cobra.Command{
		Use:   "explain [-q question] [command...]",
		Short: "Explain a command's output, or piped output, with the model",
		Example: "  li explain df -h\n" +
			"  li explain -q 'which disk is nearly full?' df -h\n" +
			"  kubectl get pods | li explain -q 'anything unhealthy?'",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, command := explain.SplitArgs(question, args)
			req := explain.Request{Question: q, Command: command, Approved: yes}
			piped, ok, err := readPiped(cmd.InOrStdin())
			if err != nil {
				return err
			}
			req.Piped, req.HasPiped = piped, ok
			return runExplain(cmd, container, req)
		},
	}
	// Flags stop at the command so its own flags pass through.
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVarP(&question, "question", "q", "", "Question to answer about the output")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Run commands the guardrail asks to confirm")
	return cmd
}

func runExplain(cmd *cobra.Command, container *app.Container, req explain.Request) error {
	out := cmd.OutOrStdout()
	explainer, err := container.NewExplainer()
	if err != nil {
		return err
	}

	switch {
	case strings.TrimSpace(req.Piped) != "" && req.Command != "":
		fmt.Fprintf(out, "Analyzing piped input for '%s'\n\n", req.Command)
	case strings.TrimSpace(req.Piped) != "":
		fmt.Fprint(out, "Analyzing piped input from stdin\n\n")
	case req.Command != "":
		fmt.Fprintf(out, "Executing: %s\n\n", req.Command)
	}

	res, err := explainer.Explain(cmd.Context(), req)
	if res.Source != "" && !(res.Ran && container.Config.Execution.StreamOutput) {
		printSection(out, "Command output:", res.Stdout)
		printSection(out, "Error output:", res.Stderr)
	}
	if err != nil {
		return err
	}

	fmt.Fprint(out, "\nExplanation:\n\n")
	fmt.Fprintln(out, res.Explanation)
	return nil
}

func printSection(out io.Writer, title, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	fmt.Fprintln(out, title)
	fmt.Fprintln(out, strings.TrimRight(text, "\n"))
}

// readPiped returns stdin content when it is not a terminal. ok reports
// whether anything was piped at all, even blank text.
func readPiped(in io.Reader) (string, bool, error) {
	if in == nil {
		return "", false, nil
	}
	if f, isFile := in.(*os.File); isFile && term.IsTerminal(int(f.Fd())) {
		return "", false, nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", false, fmt.Errorf("read piped input: %w", err)
	}
	if len(data) == 0 {
		return "", false, nil
	}
	return string(data), true, nil
}

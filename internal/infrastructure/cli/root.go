package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/doeshing/li/internal/app"
	"github.com/doeshing/li/internal/infrastructure/cli/commands"
	"github.com/doeshing/li/internal/infrastructure/cli/helpers"
)

// Options holds CLI-level configuration.
type Options struct {
	Args    []string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Verbose bool
}

func (o *Options) defaults() {
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

// Execute builds the container, runs the command line and returns the
// process exit code.
func Execute(ctx context.Context, opts Options) int {
	opts.defaults()
	if debugRequested(opts.Args) {
		opts.Verbose = true
	}

	container, err := app.BuildContainer(ctx, app.Options{
		Verbose: opts.Verbose,
		Stdout:  opts.Stdout,
		Stderr:  opts.Stderr,
	})
	if err != nil {
		fmt.Fprintln(opts.Stderr, "error:", err)
		return 1
	}
	defer container.Close()

	root := NewRootCmd(container, opts)
	root.SetArgs(opts.Args)
	return exitCode(opts.Stderr, root.ExecuteContext(ctx))
}

func exitCode(stderr io.Writer, err error) int {
	if err == nil {
		return 0
	}
	var exit *helpers.ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	fmt.Fprintln(stderr, "error:", err)
	return 1
}

// debugRequested looks for --debug ahead of cobra so the container logger
// picks it up.
func debugRequested(args []string) bool {
	for _, arg := range args {
		if arg == "--" {
			return false
		}
		if arg == "--debug" || arg == "--debug=true" {
			return true
		}
	}
	return false
}

// NewRootCmd wires the cobra root command.
func NewRootCmd(container *app.Container, opts Options) *cobra.Command {
	opts.defaults()
	flags := &runFlags{}

	root := &cobra.Command{
		Use:   "li [goal...]",
		Short: "li - plan and run shell commands from natural language",
		Long: "li turns a natural-language goal into a checked shell plan, recovers " +
			"from missing tools and runs it after approval.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runGoal(cmd, container, opts, flags, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(opts.Stdin)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)
	flags.bind(root)
	root.PersistentFlags().BoolVar(&flags.debug, "debug", opts.Verbose, "Print pipeline events and debug logs")

	root.AddCommand(
		newRunCommand(container, opts, flags),
		commands.NewClassifyCommand(container),
		commands.NewValidateCommand(container),
		commands.NewToolsCommand(container),
		commands.NewDoctorCommand(container),
		commands.NewConfigCommand(container),
		commands.NewHistoryCommand(container),
		commands.NewHookCommand(container),
		commands.NewGuardrailCommand(container),
		commands.NewModelsCommand(container),
		commands.NewExplainCommand(container),
		commands.NewChatCommand(container),
		commands.NewSetupCommand(container),
		commands.NewVersionCommand(),
	)
	return root
}

// interactive reports whether r is a terminal we can prompt on.
func interactive(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func writerIsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions are the persistent flags shared by every subcommand.
type RootOptions struct {
	Verbose bool
	Format  string
}

var outputFormats = []string{"text", "json"}

// NewRootCommand assembles the stackvm command tree.
func NewRootCommand() *cobra.Command {
	opts := new(RootOptions)

	root := &cobra.Command{
		Use:   "stackvm",
		Short: "Assemble, run, trace and prove stack VM programs",
		Long: `stackvm compiles stack VM assembly, runs it, records per-cycle traces,
proves executions, and runs declarative test scenarios against golden traces.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(outputFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("unknown --format %q (want text or json)", opts.Format))
			}
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), opts.Verbose))
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "log progress and include error details")
	flags.StringVar(&opts.Format, "format", "text", "output format: text or json")

	root.AddCommand(
		NewCompileCommand(opts),
		NewRunCommand(opts),
		NewTraceCommand(opts),
		NewProveCommand(opts),
		NewTestCommand(opts),
		NewHistoryCommand(opts),
	)
	return root
}

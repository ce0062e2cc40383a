package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/stackvm/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DB       string
	Scenario string
}

// HistoryResult is the output of the history command.
type HistoryResult struct {
	Runs []store.RunRecord `json:"runs"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded scenario runs",
		Long: `List the scenario runs recorded by "stackvm test --db", oldest first.

Examples:
  stackvm history --db runs.db
  stackvm history --db runs.db --scenario add_two_numbers --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "run history database (required)")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "only show runs of this scenario")
	cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(cmd, opts.RootOptions)

	if _, err := os.Stat(opts.DB); os.IsNotExist(err) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.DB), nil)
	}
	s, err := store.Open(opts.DB)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open run history", err)
	}
	defer s.Close()

	runs, err := s.ListRuns(ctx, opts.Scenario)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to list runs", err)
	}
	return f.Success(HistoryResult{Runs: runs}, formatHistory(runs))
}

func formatHistory(runs []store.RunRecord) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tSCENARIO\tRESULT\tCYCLES\tPROGRAM\tID")
	for _, r := range runs {
		status := "pass"
		if !r.Pass {
			status = "FAIL"
		}
		program := r.ProgramHash
		if len(program) > 8 {
			program = program[:8]
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n", r.Seq, r.Scenario, status, r.Cycles, program, r.ID)
	}
	tw.Flush()
	return b.String()
}

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stackvm/internal/harness"
	"github.com/roach88/stackvm/internal/store"
)

// TestOptions are the flags of `stackvm test`. An empty DB disables run
// recording.
type TestOptions struct {
	*RootOptions
	Update bool
	Filter string
	DB     string
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name        string   `json:"name"`
	Pass        bool     `json:"pass"`
	ProgramHash string   `json:"program_hash,omitempty"`
	Cycles      int      `json:"cycles"`
	Errors      []string `json:"errors,omitempty"`
	RunID       string   `json:"run_id,omitempty"`
}

// TestResult summarizes a directory of scenarios.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// scenarioExts are the file extensions loaded as scenarios.
var scenarioExts = []string{".yaml", ".yml", ".cue"}

// NewTestCommand returns `stackvm test`.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run test scenarios",
		Long: `Run declarative test scenarios (YAML or CUE) and check their expectations.

Each scenario's trace is compared against golden/<name>.golden next to the
scenario file when that file exists. With --db every outcome is appended to
a SQLite run history.

Exit codes:
  0  every scenario passed
  1  at least one scenario failed
  2  the scenarios directory could not be read

Examples:
  stackvm test ./scenarios
  stackvm test ./scenarios --filter "stdlib_*"
  stackvm test ./scenarios --update
  stackvm test ./scenarios --db runs.db --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden traces from this run")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose file name matches this glob")
	cmd.Flags().StringVar(&opts.DB, "db", "", "record run outcomes in this SQLite database")

	return cmd
}

func runTests(cmd *cobra.Command, opts *TestOptions, scenariosDir string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(cmd, opts.RootOptions)

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	paths, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	var recorder *store.Recorder
	if opts.DB != "" {
		s, err := store.Open(opts.DB)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to open run history", err)
		}
		defer s.Close()
		recorder, err = store.NewRecorder(ctx, s, nil)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to open run history", err)
		}
	}

	if len(paths) == 0 {
		if f.JSON() {
			return outputTestJSON(f, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(f.Writer, "No scenarios found.")
		return nil
	}

	h := harness.New(slog.Default())
	result := TestResult{Total: len(paths), Scenarios: make([]ScenarioResult, 0, len(paths))}

	for _, path := range paths {
		res := runScenario(h, path, opts)
		if recorder != nil {
			rec, err := recorder.Record(ctx, store.RunRecord{
				Scenario:    res.Name,
				ProgramHash: res.ProgramHash,
				Cycles:      res.Cycles,
				Pass:        res.Pass,
				Errors:      res.Errors,
			})
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "failed to record run", err)
			}
			res.RunID = rec.ID
		}
		if !f.JSON() {
			printScenario(f.Writer, res, opts.Update)
		}

		result.Scenarios = append(result.Scenarios, res)
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if f.JSON() {
		return outputTestJSON(f, result)
	}
	return outputTestText(f.Writer, result)
}

// findScenarioFiles finds all scenario files in a directory, skipping
// golden directories.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if !slices.Contains(scenarioExts, ext) {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(d.Name(), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// runScenario loads, runs and golden-checks a single scenario.
func runScenario(h *harness.Harness, scenarioFile string, opts *TestOptions) ScenarioResult {
	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return ScenarioResult{
			Name:   strings.TrimSuffix(filepath.Base(scenarioFile), filepath.Ext(scenarioFile)),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	result, err := h.Run(scenario)
	if err != nil {
		return ScenarioResult{
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	out := ScenarioResult{
		Name:        scenario.Name,
		Pass:        result.Pass,
		ProgramHash: result.ProgramHash,
		Cycles:      result.Cycles,
		Errors:      result.Errors,
	}
	fail := func(msg string) ScenarioResult {
		out.Pass = false
		out.Errors = append(out.Errors, msg)
		return out
	}

	if opts.Update {
		if err := updateGoldenFile(scenario, result, scenarioFile); err != nil {
			return fail(fmt.Sprintf("failed to update golden file: %v", err))
		}
		return out
	}

	goldenPath := goldenFilePath(scenarioFile)
	if _, err := os.Stat(goldenPath); os.IsNotExist(err) {
		// No golden file: expectations only.
		return out
	}

	match, diff, err := compareWithGolden(scenario, result, goldenPath)
	if err != nil {
		return fail(fmt.Sprintf("golden comparison failed: %v", err))
	}
	if !match {
		msg := "trace does not match golden file (run with --update to regenerate)"
		if diff != "" {
			msg += "\n" + diff
		}
		return fail(msg)
	}
	return out
}

func printScenario(w io.Writer, r ScenarioResult, updated bool) {
	if r.Pass {
		if updated {
			fmt.Fprintf(w, "✓ %s (golden updated)\n", r.Name)
		} else {
			fmt.Fprintf(w, "✓ %s\n", r.Name)
		}
		return
	}
	fmt.Fprintf(w, "✗ %s\n", r.Name)
	for _, e := range r.Errors {
		for _, line := range strings.Split(strings.TrimRight(e, "\n"), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(f *OutputFormatter, result TestResult) error {
	if result.Failed == 0 {
		return f.Success(result, "")
	}
	msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
	if err := f.encode(CLIResponse{
		Status: "error",
		Data:   result,
		Error:  &CLIError{Code: ErrCodeTestFailed, Message: msg},
	}); err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}

// outputTestText outputs the test summary as text.
func outputTestText(w io.Writer, result TestResult) error {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}

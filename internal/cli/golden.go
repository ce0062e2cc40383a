package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"

	"github.com/roach88/stackvm/internal/harness"
)

// goldenFilePath returns the path to the golden file for a scenario file.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// snapshotBytes returns the canonical trace snapshot of a result.
func snapshotBytes(scenario *harness.Scenario, result *harness.Result) ([]byte, error) {
	snapshot := harness.NewTraceSnapshot(scenario.Name, result)
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trace: %w", err)
	}
	return data, nil
}

// updateGoldenFile writes the current trace snapshot as the golden file.
func updateGoldenFile(scenario *harness.Scenario, result *harness.Result, scenarioFile string) error {
	data, err := snapshotBytes(scenario, result)
	if err != nil {
		return err
	}
	goldenPath := goldenFilePath(scenarioFile)
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(goldenPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// compareWithGolden compares the result's trace snapshot against the golden
// file. On mismatch it returns a readable diff from golden to current.
func compareWithGolden(scenario *harness.Scenario, result *harness.Result, goldenPath string) (bool, string, error) {
	golden, err := os.ReadFile(goldenPath)
	if err != nil {
		return false, "", fmt.Errorf("failed to read golden file: %w", err)
	}
	current, err := snapshotBytes(scenario, result)
	if err != nil {
		return false, "", err
	}
	if bytes.Equal(golden, current) {
		return true, "", nil
	}
	return false, diffJSON(golden, current), nil
}

// diffJSON renders the structural difference between two JSON objects.
// It returns an empty string when either side is not a JSON object.
func diffJSON(expected, actual []byte) string {
	differ := gojsondiff.New()
	delta, err := differ.Compare(expected, actual)
	if err != nil || !delta.Modified() {
		return ""
	}
	var left map[string]any
	if err := json.Unmarshal(expected, &left); err != nil {
		return ""
	}
	cfg := formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
		Coloring:       false,
	}
	out, err := formatter.NewAsciiFormatter(left, cfg).Format(delta)
	if err != nil {
		return ""
	}
	return out
}

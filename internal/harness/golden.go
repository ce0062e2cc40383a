package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/stackvm/internal/canonical"
)

// TraceSnapshot is the golden-file form of a scenario run.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	ProgramHash  string       `json:"program_hash,omitempty"`
	Cycles       int          `json:"cycles"`
	Trace        []TraceEvent `json:"trace"`
}

// NewTraceSnapshot builds the snapshot of a result.
func NewTraceSnapshot(scenarioName string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: scenarioName,
		ProgramHash:  result.ProgramHash,
		Cycles:       result.Cycles,
		Trace:        result.Trace,
	}
}

// canonicalMap drops the empty optional fields so golden files only carry
// what a run actually produced.
func (s *TraceSnapshot) canonicalMap() map[string]any {
	events := make([]any, 0, len(s.Trace))
	for _, ev := range s.Trace {
		m := map[string]any{"clk": ev.Clk, "ctx": ev.Ctx, "fmp": ev.FMP, "stack": ev.Stack}
		for key, val := range map[string]string{"op": ev.Op, "marker": ev.Marker, "asm": ev.Asm} {
			if val != "" {
				m[key] = val
			}
		}
		events = append(events, m)
	}

	out := map[string]any{"scenario_name": s.ScenarioName, "cycles": s.Cycles, "trace": events}
	if s.ProgramHash != "" {
		out["program_hash"] = s.ProgramHash
	}
	return out
}

// MarshalCanonical returns the canonical JSON encoding of the snapshot.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return canonical.Marshal(s.canonicalMap())
}

// RunWithGolden runs scenario and fails t unless its snapshot matches
// testdata/golden/<name>.golden. Pass -update to rewrite the fixture.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden checks an existing result against its fixture.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := NewTraceSnapshot(scenarioName, result)
	traceJSON, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}

package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot captures the trace of a scenario execution for golden
// comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Backend      string       `json:"backend"`
	Kind         string       `json:"kind"`
	Trace        []TraceEvent `json:"trace"`
	FinalCount   int          `json:"final_count"`
}

// MarshalSnapshot renders the snapshot as indented JSON with a trailing
// newline. Struct field order makes the output stable.
func MarshalSnapshot(s TraceSnapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares the trace against
// {dir}/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, dir string, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, dir, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against the scenario's
// golden file without re-running it.
func AssertGolden(t *testing.T, dir string, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(TraceSnapshot{
		ScenarioName: scenario.Name,
		Backend:      scenario.Backend,
		Kind:         scenario.Kind,
		Trace:        result.Trace,
		FinalCount:   result.FinalCount,
	})
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}

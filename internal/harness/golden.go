package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/composable/internal/canon"
)

// TraceSnapshot is the golden form of a scenario run.
type TraceSnapshot struct {
	Scenario string       `json:"scenario"`
	Feature  string       `json:"feature"`
	Trace    []TraceEvent `json:"trace"`
}

// Snapshot returns the canonical JSON of a result's trace.
func Snapshot(result *Result) ([]byte, error) {
	return canon.Marshal(TraceSnapshot{
		Scenario: result.Scenario,
		Feature:  result.Feature,
		Trace:    result.Trace,
	})
}

// RunWithGolden runs a scenario, fails t if it does not pass, and compares
// its trace with testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) error {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares a result's trace with a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

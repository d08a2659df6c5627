package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	scenarioDir = "../harness/testdata/scenarios"
	goldenDir   = "../harness/testdata/golden"
)

func TestScenarioRunTestdata(t *testing.T) {
	out, _, code := execute(t, "scenario", "run", scenarioDir, "--golden-dir", goldenDir)
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "✓ counter_basic (counter, 4 actions, golden match)")
	assert.Contains(t, out, "✓ todos_timer (todos, 4 actions, golden match)")
	assert.Contains(t, out, "Scenario Summary: 4 passed, 0 failed, 4 total")
}

func TestScenarioRunJSON(t *testing.T) {
	out, _, code := execute(t, "scenario", "run", filepath.Join(scenarioDir, "todos_rename.yaml"), "--format", "json")
	require.Equal(t, ExitSuccess, code, out)

	var result RunResult
	resp := decodeData(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "todos_rename", result.Scenarios[0].Name)
	assert.Equal(t, 3, result.Scenarios[0].Actions)
	assert.Empty(t, result.Scenarios[0].Golden, "no golden file next to the scenario")
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const failingScenario = `
name: wrong_count
description: "expects too much"
feature: counter
steps: [{send: increment, finish: true}]
assertions: [{type: final_state, path: count, expect: 5}]
`

func TestScenarioRunFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "wrong.yaml", failingScenario)
	writeFile(t, dir, "broken.yaml", "name: [")

	out, _, code := execute(t, "scenario", "run", dir)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, "✗ wrong_count")
	assert.Contains(t, out, "count = 5")
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "Scenario Summary: 0 passed, 2 failed, 2 total")

	out, _, code = execute(t, "scenario", "run", dir, "--format", "json")
	assert.Equal(t, ExitFailure, code)
	var result RunResult
	resp := decodeData(t, out, &result)
	assert.Equal(t, ErrCodeScenarioFailed, resp.Error.Code)
	assert.Equal(t, 2, result.Failed)
}

func TestScenarioRunUpdatesAndChecksGolden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.yaml", `
name: ok
description: "one increment"
feature: counter
steps: [{send: increment, finish: true}]
`)

	out, _, code := execute(t, "scenario", "run", dir, "--update")
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "golden updated")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "ok.golden"))
	require.NoError(t, err)
	assert.Equal(t, `{"feature":"counter","scenario":"ok","trace":[{"kind":"increment","origin":"send","seq":1}]}`, string(golden))

	out, _, code = execute(t, "scenario", "run", dir)
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "golden match")

	writeFile(t, filepath.Join(dir, "golden"), "ok.golden", `{}`)
	out, _, code = execute(t, "scenario", "run", dir)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestScenarioRunMissingPath(t *testing.T) {
	_, stderr, code := execute(t, "scenario", "run", filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "failed to find scenarios")
}

func TestScenarioValidate(t *testing.T) {
	out, _, code := execute(t, "scenario", "validate", scenarioDir)
	require.Equal(t, ExitSuccess, code, out)
	assert.Contains(t, out, "(todos_timer)")

	dir := t.TempDir()
	writeFile(t, dir, "bad.yaml", `
name: bad
description: "unknown feature"
feature: spreadsheet
steps: [{send: increment}]
`)
	out, _, code = execute(t, "scenario", "validate", dir)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, `unknown feature "spreadsheet"`)
}

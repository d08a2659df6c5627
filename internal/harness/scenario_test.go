package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_YAML(t *testing.T) {
	path := writeScenario(t, "s.yaml", `
name: basic
description: "one increment"
feature: counter
steps:
  - send: increment
    finish: true
  - send: increment_later
    args: { delay_ms: 250 }
    as: later
  - advance: 250ms
    sleepers: 1
  - await: later
assertions:
  - type: trace_count
    action: increment
    count: 1
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "basic", s.Name)
	assert.Equal(t, "counter", s.Feature)
	require.Len(t, s.Steps, 4)
	assert.True(t, s.Steps[0].Finish)
	assert.Equal(t, 250, s.Steps[1].Args["delay_ms"])
	assert.Equal(t, "later", s.Steps[3].Await)
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertTraceCount, s.Assertions[0].Type)
}

func TestLoadScenario_CUE(t *testing.T) {
	path := writeScenario(t, "s.cue", `
name:        "basic_cue"
description: "rename a row"
feature:     "todos"
steps: [{send: "rename", args: {id: 1, name: "x"}, finish: true}]
assertions: [{type: "final_state", path: "active.0.name", expect: "x"}]
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "basic_cue", s.Name)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, "rename", s.Steps[0].Send)
	assert.Equal(t, "x", s.Steps[0].Args["name"])
	assert.Equal(t, "x", s.Assertions[0].Expect)
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{
			name: "unknown field",
			file: "s.yaml",
			content: `
name: typo
description: "d"
feature: counter
step:
  - send: increment
`,
			wantErr: "failed to parse YAML",
		},
		{
			name: "bad name",
			file: "s.yaml",
			content: `
name: Bad-Name
description: "d"
feature: counter
steps: [{send: increment}]
`,
			wantErr: "does not match schema",
		},
		{
			name: "bad duration",
			file: "s.yaml",
			content: `
name: bad_advance
description: "d"
feature: counter
steps: [{advance: soon}]
`,
			wantErr: "does not match schema",
		},
		{
			name: "unknown assertion type in cue",
			file: "s.cue",
			content: `
name: "bad_assertion"
description: "d"
feature: "counter"
steps: [{send: "increment"}]
assertions: [{type: "trace_magic"}]
`,
			wantErr: "does not match schema",
		},
		{
			name: "unknown field in cue",
			file: "s.cue",
			content: `
name: "extra"
description: "d"
feature: "counter"
steps: [{send: "increment", later: true}]
`,
			wantErr: "does not match schema",
		},
		{
			name: "unknown feature",
			file: "s.yaml",
			content: `
name: nope
description: "d"
feature: spreadsheet
steps: [{send: increment}]
`,
			wantErr: `unknown feature "spreadsheet"`,
		},
		{
			name: "two drivers",
			file: "s.yaml",
			content: `
name: two
description: "d"
feature: counter
steps: [{send: increment, await: x}]
`,
			wantErr: "exactly one of",
		},
		{
			name: "finish without send",
			file: "s.yaml",
			content: `
name: stray
description: "d"
feature: counter
steps: [{advance: 1s, finish: true}]
`,
			wantErr: "only apply to send",
		},
		{
			name: "await before send",
			file: "s.yaml",
			content: `
name: early
description: "d"
feature: counter
steps:
  - await: later
  - send: increment_later
    args: { delay_ms: 1 }
    as: later
`,
			wantErr: `await "later" does not name an earlier send`,
		},
		{
			name: "duplicate task name",
			file: "s.yaml",
			content: `
name: dup
description: "d"
feature: counter
steps:
  - { send: increment, as: a }
  - { send: decrement, as: a }
`,
			wantErr: `task name "a" is already used`,
		},
		{
			name: "final state without expect",
			file: "s.yaml",
			content: `
name: noexpect
description: "d"
feature: counter
steps: [{send: increment}]
assertions: [{type: final_state, path: count}]
`,
			wantErr: "expect is required for final_state",
		},
		{
			name:    "unsupported extension",
			file:    "s.json",
			content: `{}`,
			wantErr: "unsupported scenario format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI and returns stdout, stderr and the exit code.
func execute(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

// decodeData decodes the data of a JSON response into v.
func decodeData(t *testing.T, out string, v any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	resp.Data = v
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "composable", cmd.Use)
	assert.Contains(t, cmd.Long, "journal")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{
		{"features"},
		{"scenario", "run"},
		{"scenario", "validate"},
		{"journal", "sessions"},
		{"journal", "trace"},
		{"journal", "replay"},
	} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v should exist", path)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, stderr, code := execute(t, "features", "--format", "xml")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, `invalid format "xml"`)
}

func TestFeaturesCommand(t *testing.T) {
	out, _, code := execute(t, "features")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "counter")
	assert.Contains(t, out, "todos")

	out, _, code = execute(t, "features", "--format", "json")
	require.Equal(t, ExitSuccess, code)
	var infos []FeatureInfo
	resp := decodeData(t, out, &infos)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, infos, 3)
	assert.Equal(t, "app", infos[0].Name)
}

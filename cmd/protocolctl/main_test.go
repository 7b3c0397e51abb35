package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid regenerate payload from stdin", func(t *testing.T) {
		out, err := execute(t, `{"budget":"premium"}`, "validate", "regenerate", "-")
		require.NoError(t, err)

		var result map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, true, result["success"])
	})

	t.Run("invalid checklist payload", func(t *testing.T) {
		out, err := execute(t, `{"progress":[-1]}`, "validate", "checklist", "-")
		assert.ErrorIs(t, err, errInvalidPayload)
		assert.Contains(t, out, `"success": false`)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := execute(t, "", "validate", "implant", "-")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown payload kind")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := execute(t, "", "validate", "teeth", filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
	})
}

func TestEvalCommand_Offline(t *testing.T) {
	golden := `[{"id":"c1","kind":"cementation","ceramic_type":"e.max","difficulty":"easy",
		"completion":{"ceramic_treatment":[{"step":"Ácido fluorídrico 10% por 60s"}],
		"cementation":{"cement_type":"resinoso"},"checklist":["Silanizar"]},
		"expected_alerts":["5% por 20s"]}]`
	path := filepath.Join(t.TempDir(), "golden.json")
	require.NoError(t, os.WriteFile(path, []byte(golden), 0o600))

	out, err := execute(t, "", "eval", "--offline", path)
	require.NoError(t, err)

	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, float64(1), summary["total_cases"])
	assert.Equal(t, float64(1), summary["parsed_cases"])
}

package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/chainlens"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "chainlens version "+chainlens.Version+"\n", out)
}

func TestRecordsList_Empty(t *testing.T) {
	out, err := execute(t, "records", "list", "--store", "memory", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "No records.")
}

func TestDemoCommand(t *testing.T) {
	out, err := execute(t, "demo", "--store", "memory", "--log-level", "error", "-q", "-f", "json", "Why trace?")
	require.NoError(t, err)

	// First the summary line, then the record itself.
	line, body, ok := strings.Cut(out, "\n")
	require.True(t, ok)
	assert.Contains(t, line, "Recorded")

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &rec))
	assert.Equal(t, "default", rec["app_id"])
	assert.NotEmpty(t, rec["calls"])
}

func TestRecordsShow_Unknown(t *testing.T) {
	_, err := execute(t, "records", "show", "missing", "--store", "memory")
	assert.ErrorContains(t, err, "record not found")
}

func TestDemoCommand_Styled(t *testing.T) {
	out, err := execute(t, "demo", "--store", "memory", "--log-level", "error", "-q", "-f", "markdown", "--style", "notty")
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded")
	assert.Contains(t, out, "Calls")
}

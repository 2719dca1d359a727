package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func execRunCmd(t *testing.T, args ...string) (map[string]interface{}, string) {
	t.Helper()
	cmd := newRunCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	return decoded, out.String()
}

func TestRunCmdDefaultTurnProducesResolvedBundle(t *testing.T) {
	decoded, raw := execRunCmd(t, "--tool", "search-tool")
	require.NotEmpty(t, raw)
	require.Contains(t, decoded, "process")
	require.Contains(t, decoded, "bundle")
	require.Contains(t, decoded, "decision_trace")
}

func TestRunCmdClampTemperatureWinsOverBaseline(t *testing.T) {
	decoded, _ := execRunCmd(t, "--clamp-temperature", "0.2")
	bundle, ok := decoded["bundle"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, 0.2, bundle["Temperature"])
}

func TestRunCmdPersistsAuditWhenStoreDirSet(t *testing.T) {
	dir := t.TempDir()
	_, raw := execRunCmd(t, "--tool", "search-tool", "--store-dir", dir)
	require.NotEmpty(t, raw)

	tenants, err := os.ReadDir(filepath.Join(dir, "audit"))
	require.NoError(t, err)
	require.NotEmpty(t, tenants)
}

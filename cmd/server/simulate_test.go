package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExportCommand_Fixture(t *testing.T) {
	out, err := runCLI(t, "export", "sea001")
	require.NoError(t, err)

	require.True(t, gjson.Valid(out), out)
	assert.Equal(t, "SEA001", gjson.Get(out, "scan_id").String())
	assert.Equal(t, "(150, 300)", gjson.Get(out, "intensity_grid_shape").String())
}

func TestExportCommand_Unknown(t *testing.T) {
	_, err := runCLI(t, "export", "NOPE42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOPE42")
}

func TestSimulateCommand(t *testing.T) {
	out, err := runCLI(t, "simulate", "--type", "Land (GPR type)", "--area", "Quarry", "--seed", "3")
	require.NoError(t, err)

	require.True(t, gjson.Valid(out), out)
	assert.True(t, strings.HasPrefix(gjson.Get(out, "scan_id").String(), "SIM"))
	assert.Equal(t, "Quarry", gjson.Get(out, "location").String())
	assert.Equal(t, "Land (Ground Penetrating Radar - GPR)", gjson.Get(out, "sonar_type").String())
}

func TestSimulateCommand_WritesFile(t *testing.T) {
	dir := t.TempDir()
	out, err := runCLI(t, "simulate", "--type", "Air (Ultrasonic type)", "-o", dir)
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	assert.Equal(t, dir, filepath.Dir(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, gjson.ValidBytes(data))
}

func TestSimulateCommand_RequiresType(t *testing.T) {
	_, err := runCLI(t, "simulate")
	require.Error(t, err)
}

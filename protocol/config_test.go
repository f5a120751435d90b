package protocol

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casper-ee/execengine/xenv"
)

func TestDefaultMatchesXenvDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, uint64(100), cfg.GasCosts.GetArg)
	assert.Equal(t, uint64(2000), cfg.GasCosts.CallContract)
	assert.Equal(t, xenv.DefaultGasCosts, cfg.GasCosts.AsXenv())
}

func TestCheckRejectsBelowFloor(t *testing.T) {
	cfg := Default()
	cfg.MinProtocolVersion = 5

	err := cfg.Check(4)
	var tooOld *ErrProtocolVersionTooOld
	require.ErrorAs(t, err, &tooOld)
	assert.Equal(t, Version(4), tooOld.Requested)
	assert.Equal(t, Version(5), tooOld.Minimum)

	assert.NoError(t, cfg.Check(5))
	assert.NoError(t, cfg.Check(6))
}

func TestLoadOverridesOnlyProvidedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "protocol.yaml")
	body := "min_protocol_version: 3\ngas_costs:\n  call_contract: 9999\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Version(3), cfg.MinProtocolVersion)
	assert.Equal(t, uint64(9999), cfg.GasCosts.CallContract)
	// fields the file didn't mention fall back to Default()'s values.
	assert.Equal(t, uint64(100), cfg.GasCosts.GetArg)
	assert.Equal(t, 8, cfg.MaxCallDepth)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

package main

import (
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/texmill/repack/pkg/repack/config"
)

func TestWarnCollectsForReport(t *testing.T) {
	runWarnings = nil
	t.Cleanup(func() { runWarnings = nil })

	warn("dependency problem: ghost is required by a0poster")
	warn(`"a0poster" already collected`)

	assert.Equal(t, []string{
		"dependency problem: ghost is required by a0poster",
		`"a0poster" already collected`,
	}, runWarnings)
}

// isolateConfig points the XDG machinery at a throwaway home for the
// duration of the test.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Cleanup(xdg.Reload)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	xdg.Reload()
}

func TestConfigInit(t *testing.T) {
	isolateConfig(t)

	require.NoError(t, runConfigInit(nil, nil))
	assert.FileExists(t, configFilePath())

	// A second run leaves the existing file alone.
	require.NoError(t, runConfigInit(nil, nil))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTexmfPrefix, cfg.TexmfPrefix)
	assert.Equal(t, config.DefaultSeries, cfg.Series)
}

func TestConfigShow(t *testing.T) {
	isolateConfig(t)
	require.NoError(t, runConfigShow(nil, nil))
}

func TestConfigPathUnderConfigDir(t *testing.T) {
	isolateConfig(t)
	assert.Equal(t, filepath.Join(config.ConfigDir(), "config.yaml"), configFilePath())
}

package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsAppliesCLIOverridesOnTopOfDefaults(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "library.db")
	musicDir := t.TempDir()

	settings, err := loadSettings("", true, dbPath, musicDir, 9090)
	require.NoError(t, err)
	assert.True(t, settings.Server.DevMode)
	assert.Equal(t, dbPath, settings.Library.DBPath)
	assert.Equal(t, musicDir, settings.Library.MusicDir)
	assert.Equal(t, 9090, settings.Server.Port)
}

func TestLoadSettingsWithNoOverridesKeepsDefaults(t *testing.T) {
	t.Parallel()

	settings, err := loadSettings("", false, "", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 8765, settings.Server.Port)
	assert.False(t, settings.Server.DevMode)
}

func TestRootCommandRegistersAllSubcommands(t *testing.T) {
	t.Parallel()

	root := rootCommand()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["scan"])
	assert.True(t, names["version"])
}

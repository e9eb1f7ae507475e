package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPaths(t *testing.T) {
	cfg := Default("data")
	assert.Equal(t, filepath.Join("data", "models"), cfg.Paths.ModelsDir)
	assert.Equal(t, filepath.Join("data", "logs"), cfg.Paths.LogsDir)
	assert.Equal(t, 3, cfg.Training.Epochs)
	assert.Equal(t, 5, cfg.Training.MaxModels)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default("data")
	cfg.Training.Epochs = 12
	cfg.Chat.SpeakerName = "Echo"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Training.Epochs)
	assert.Equal(t, "Echo", loaded.Chat.SpeakerName)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	partial := "[training]\nepochs = 7\n"
	require.NoError(t, writeFile(path, partial))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Training.Epochs)
	// Untouched fields keep their defaults.
	assert.Equal(t, 0.01, cfg.Training.WeightDecay)
	assert.Equal(t, "Sin", cfg.Chat.SpeakerName)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

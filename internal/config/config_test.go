package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "medium", cfg.Audio.Sensitivity)
	assert.Equal(t, 20, cfg.Agent.MaxTurns)
	assert.EqualValues(t, 5*60*1000, cfg.Agent.HistoryWindowMS)
	assert.Equal(t, 5000, cfg.Bridge.TimeoutMS)
	assert.Equal(t, 150, cfg.Memory.RefreshSec)
	assert.Equal(t, "ws://127.0.0.1:8000/ws/app_bridge", cfg.Endpoints.Bridge)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFillsUnsetFieldsWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"audio":{"sensitivity":"high"}}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "high", cfg.Audio.Sensitivity)
	// Untouched sections keep their defaults.
	assert.Equal(t, 20, cfg.Agent.MaxTurns)
	assert.Equal(t, "ws://127.0.0.1:8000/ws/chat", cfg.Endpoints.Chat)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := DefaultConfig()
	cfg.Provider.Model = "claude-opus-4-5"
	cfg.Agent.MaxTurns = 8

	require.NoError(t, Save(cfg, path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "claude-opus-4-5", loaded.Provider.Model)
	assert.Equal(t, 8, loaded.Agent.MaxTurns)
}

func TestLoadBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestResolveEnv(t *testing.T) {
	t.Setenv("EASEL_PROVIDER_API_KEY", "pk")
	t.Setenv("EASEL_EMBEDDINGS_API_KEY", "ek")

	cfg := DefaultConfig()
	cfg.Transcriber.APIKey = "already-set"
	t.Setenv("EASEL_TRANSCRIBER_API_KEY", "ignored")
	cfg.ResolveEnv()

	assert.Equal(t, "pk", cfg.Provider.APIKey)
	assert.Equal(t, "ek", cfg.Embeddings.APIKey)
	assert.Equal(t, "already-set", cfg.Transcriber.APIKey)
}

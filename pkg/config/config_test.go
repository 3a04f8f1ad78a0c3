package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(file, []byte(`
stt:
  provider: openai
  serverURL: http://localai:8080
  model: whisper-1
generator:
  provider: gemini
  serverURL: https://generativelanguage.googleapis.com
  model: gemini-2.0-flash
requestTimeout: 15s
client:
  speak: true
  quantization: symmetric
`), 0o600)
	require.NoError(t, err)

	cfg, err := FromFile(file)
	require.NoError(t, err)
	require.Equal(t, "openai", cfg.STT.Provider)
	require.Equal(t, "http://localai:8080", cfg.STT.ServerURL)
	require.Equal(t, "en-US", cfg.STT.Language, "default retained")
	require.Equal(t, 16000, cfg.STT.SampleRate, "default retained")
	require.Equal(t, Duration(15*time.Second), cfg.RequestTimeout)
	require.True(t, cfg.Client.Speak)
	require.Equal(t, "symmetric", cfg.Client.Quantization)
	require.Equal(t, "http://localhost:8080", cfg.Client.RelayURL, "default retained")
}

func TestFromFileRejectsUnknownFields(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("stt:\n  unknownField: true\n"), 0o600))

	_, err := FromFile(file)
	require.Error(t, err)
}

func TestFromFileRejectsInvalidDuration(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("requestTimeout: soon\n"), 0o600))

	_, err := FromFile(file)
	require.Error(t, err)
}

func TestFlag(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("maxUploadBytes: 1024\n"), 0o600))

	cfg := Default()
	f := &Flag{Config: &cfg}

	require.NoError(t, f.Set(file))
	require.True(t, f.IsSet)
	require.Equal(t, file, f.String())
	require.Equal(t, int64(1024), cfg.MaxUploadBytes)

	require.Error(t, f.Set(filepath.Join(t.TempDir(), "missing.yaml")))
}

package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edlund/gpslinkd/internal/config"
)

func TestNewLogger_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpslinkd.log")
	cfg := &config.Config{LogFile: path, LogLevel: "info"}

	logger, closer, err := NewLogger(cfg)
	require.NoError(t, err)
	defer closer.Close()

	logger.Info().Str("peer", "AA:BB:CC:DD:EE:FF").Msg("client connected")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"client connected"`)
	assert.Contains(t, string(data), `"service":"gpslinkd"`)
	assert.Contains(t, string(data), `"peer":"AA:BB:CC:DD:EE:FF"`)
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpslinkd.log")
	cfg := &config.Config{LogFile: path, LogLevel: "warn"}

	logger, closer, err := NewLogger(cfg)
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug().Msg("poll returned no fix")
	logger.Warn().Msg("service record not registered")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "poll returned no fix")
	assert.Contains(t, string(data), "service record not registered")
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpslinkd.log")
	cfg := &config.Config{LogFile: path, LogLevel: "shouty"}

	logger, closer, err := NewLogger(cfg)
	require.NoError(t, err)
	defer closer.Close()

	logger.Info().Msg("still logged")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "still logged")
}

func TestNewLogger_UnwritablePath(t *testing.T) {
	cfg := &config.Config{LogFile: filepath.Join(t.TempDir(), "missing", "out.log")}

	_, _, err := NewLogger(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open log file")
}

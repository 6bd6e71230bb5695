package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finqa/internal/config"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug().Msg("hidden")
	logger.Info().Str("path", "10k.pdf").Int("chunks", 3).Msg("document processed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "document processed", entry["message"])
	assert.Equal(t, "10k.pdf", entry["path"])
	assert.EqualValues(t, 3, entry["chunks"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finqa.log")
	logger, closer, err := New(config.LoggingConfig{Level: "warn", Format: "console", File: path}, nil)
	require.NoError(t, err)
	logger.Warn().Msg("chunk skipped")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "chunk skipped")
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))
	l := Discard()
	assert.Same(t, l, OrDiscard(l))
}

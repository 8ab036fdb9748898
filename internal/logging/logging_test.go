package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhle/mailmerge/internal/model"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel(" error "))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, model.LogConfig{Level: "info", Format: "json"})
	log.Debug("hidden")
	log.Info("row sent", slog.Int("row", 2))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "row sent", rec["msg"])
	require.EqualValues(t, 2, rec["row"])
}

func TestOpen_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "mailmerge.log")
	log, closer, err := Open(model.LogConfig{Format: "text"}, path)
	require.NoError(t, err)

	log.Info("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "msg=hello")
}

package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProductionUsesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Environment: "production", Level: slog.LevelInfo})

	log.Info("atom created", "atom_id", 12)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "atom created", record["msg"])
	assert.EqualValues(t, 12, record["atom_id"])
}

func TestPrettyHandler_WritesMessageAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Environment: "development", Level: slog.LevelDebug})

	log.WithComponent("collection").Debug("tag merged", "source", "photo", "target", "photography")

	out := buf.String()
	assert.Contains(t, out, "DBG")
	assert.Contains(t, out, "tag merged")
	assert.Contains(t, out, "component=collection")
	assert.Contains(t, out, "source=photo")
}

func TestPrettyHandler_GroupsPrefixKeys(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "pretty"})

	log.WithGroup("merge").Info("done", "rewritten", 3)
	log.Info("stats", slog.Group("outbox", slog.Int("pending", 2)))

	out := buf.String()
	assert.Contains(t, out, "merge.rewritten=3")
	assert.Contains(t, out, "outbox.pending=2")
}

func TestPrettyHandler_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "pretty", Level: slog.LevelWarn})

	log.Info("hidden")
	log.Warn("shown")

	assert.False(t, strings.Contains(buf.String(), "hidden"))
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseLevel(in))
		})
	}
}

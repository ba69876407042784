package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		emitInfo bool
	}{
		{name: "debug emits info", level: "debug", emitInfo: true},
		{name: "warn filters info", level: "warn", emitInfo: false},
		{name: "invalid falls back to info", level: "bogus", emitInfo: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			log := NewWithWriter(buf, tt.level, false)
			log.Info().Str("route", "GET /users").Msg("analyzed")
			assert.Equal(t, tt.emitInfo, buf.Len() > 0)
		})
	}
}

func TestZeroLogger_StructuredFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf, "debug", false).WithFields(map[string]any{"component": "scheduler"})
	log.Warn().Err(errors.New("boom")).Int("workers", 4).Strs("routes", []string{"a", "b"}).Msg("task failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "scheduler", entry["component"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, float64(4), entry["workers"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "task failed", entry["message"])
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error().Str("k", "v").Msg("dropped")
	})
}

package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerWritesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "workload")

	l.Infow("cache refreshed", map[string]any{"date": "2025-11-05"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "workload", line["component"])
	assert.Equal(t, "2025-11-05", line["date"])
	assert.Equal(t, "cache refreshed", line["message"])
}

func TestSetLevelRejectsUnknown(t *testing.T) {
	assert.Error(t, SetLevel("loud"))
	assert.NoError(t, SetLevel(""))
}

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf).With("component", "scheduler")

	log.SweepFinished("send", 4, 2, 1, 1, 12)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "sweep_finished", line["msg"])
	assert.Equal(t, "scheduler", line["component"])
	assert.Equal(t, "send", line["sweep"])
	assert.EqualValues(t, 4, line["processed"])
}

func TestProductionLoggerDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("production", &buf).Debug("noise")
	assert.Empty(t, buf.String())

	buf.Reset()
	NewWithWriter("development", &buf).Debug("noise")
	assert.Contains(t, buf.String(), "noise")
}

func TestHTTPRequestLevelFollowsStatus(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	log.HTTPRequest("req-1", "GET", "/l/abc", 502, 30*time.Millisecond, "10.0.0.1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.EqualValues(t, 30, line["latency_ms"])
}

func TestDispatchFailedIsWarning(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("production", &buf).DispatchFailed("lead-1", 2, errors.New("gateway down"))
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), `"error":"gateway down"`)
}

package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContext_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	rc := NewRequestContextWithID(logger, "req-1", "POST /chat")
	rc.SessionID = "session_1_abc"
	rc.Error("send failed", errors.New("boom"), slog.Int(LogFieldStatus, 502))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry[LogFieldRequestID])
	assert.Equal(t, "POST /chat", entry[LogFieldRoute])
	assert.Equal(t, "session_1_abc", entry[LogFieldSessionID])
	assert.Equal(t, "boom", entry["error"])
	assert.EqualValues(t, 502, entry[LogFieldStatus])
}

func TestRequestContext_NoSession(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	rc := NewRequestContext(logger, "GET /")
	assert.NotEmpty(t, rc.RequestID)
	rc.Info("rendered")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, ok := entry[LogFieldSessionID]
	assert.False(t, ok)
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	assert.NotNil(t, LoggerFrom(context.Background()))

	rc := NewRequestContextWithID(nil, "", "GET /")
	assert.NotEmpty(t, rc.RequestID)
	ctx := WithRequestContext(context.Background(), rc)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, rc, got)
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("POST /chat", 200, 20*time.Millisecond)
	m.RecordRequest("POST /chat", 502, 40*time.Millisecond)
	m.RecordRequest("GET /", 200, time.Millisecond)
	m.RecordRateLimited()

	snap := m.Snapshot()
	assert.EqualValues(t, 3, snap.RequestTotal)
	assert.EqualValues(t, 1, snap.RequestFailed)
	assert.EqualValues(t, 1, snap.RateLimited)
	assert.Equal(t, []string{"GET /", "POST /chat"}, snap.RouteNames())

	chat := snap.Routes["POST /chat"]
	assert.EqualValues(t, 2, chat.Count)
	assert.EqualValues(t, 1, chat.ErrorCount)
	assert.EqualValues(t, 30, chat.AverageMs)

	m.Reset()
	assert.Empty(t, m.Snapshot().Routes)
	assert.Zero(t, m.Snapshot().RequestTotal)
}

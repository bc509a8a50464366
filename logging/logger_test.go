package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/wyfcoding/demaxmin/contextx"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLoggerInjectsTraceAndService(t *testing.T) {
	SetLevel("info")
	var buf bytes.Buffer
	l := newLogger(Config{Service: "demaxmin", Module: "solver"}, &buf)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(contextx.WithRequestID(context.Background(), "req-1"), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	l.Named("api").InfoContext(ctx, "problem configured", "origins", 2)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	rec := lines[0]
	assert.Equal(t, "demaxmin", rec["service"])
	assert.Equal(t, "solver", rec["module"])
	assert.Equal(t, "api", rec["component"])
	assert.Equal(t, traceID.String(), rec["trace_id"])
	assert.Equal(t, spanID.String(), rec["span_id"])
	assert.Equal(t, "req-1", rec["request_id"])
	assert.Contains(t, rec, "timestamp")
	assert.EqualValues(t, 2, rec["origins"])
}

func TestSetLevelAppliesToExistingLoggers(t *testing.T) {
	t.Cleanup(func() { SetLevel("info") })

	var buf bytes.Buffer
	SetLevel("info")
	l := newLogger(Config{Service: "demaxmin", Module: "test"}, &buf)

	l.Debug("hidden")
	SetLevel("debug")
	l.Debug("visible")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "visible", lines[0]["msg"])
}

func TestLogDurationLogsAtDebug(t *testing.T) {
	t.Cleanup(func() { SetLevel("info") })

	var buf bytes.Buffer
	SetLevel("debug")
	l := newLogger(Config{Service: "demaxmin", Module: "solver"}, &buf)

	done := l.LogDuration(context.Background(), "transport solve", "mode", "oneshot")
	done()

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "transport solve finished", lines[0]["msg"])
	assert.Equal(t, "DEBUG", lines[0]["level"])
	assert.Equal(t, "oneshot", lines[0]["mode"])
	assert.Contains(t, lines[0], "duration")

	buf.Reset()
	SetLevel("info")
	l.LogDuration(context.Background(), "transport solve")()
	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestMultiHandlerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := newMultiHandler(
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	l := slog.New(h).With("k", "v")

	l.Info("first")
	l.Error("second")

	assert.Len(t, decodeLines(t, &a), 2)
	bl := decodeLines(t, &b)
	require.Len(t, bl, 1)
	assert.Equal(t, "v", bl[0]["k"])
}

package log

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/reglet-dev/capgate/internal/wasmcontext"
	"github.com/reglet-dev/capgate/wireformat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	msgs []wireformat.LogMessageWire
}

func (r *recorder) sink(msg wireformat.LogMessageWire) error {
	r.msgs = append(r.msgs, msg)
	return nil
}

func attrMap(msg wireformat.LogMessageWire) map[string]string {
	out := make(map[string]string, len(msg.Attrs))
	for _, a := range msg.Attrs {
		out[a.Key] = a.Value
	}
	return out
}

func TestToLogAttrWire(t *testing.T) {
	tests := []struct {
		name     string
		attr     slog.Attr
		wantType string
		wantVal  string
	}{
		{"string", slog.String("key", "value"), "string", "value"},
		{"int64", slog.Int64("key", -123), "int64", "-123"},
		{"uint64", slog.Uint64("key", 7), "uint64", "7"},
		{"bool", slog.Bool("key", true), "bool", "true"},
		{"float64", slog.Float64("key", 1.25), "float64", "1.25"},
		{"time", slog.Time("key", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)), "time", "2024-01-01T00:00:00Z"},
		{"duration", slog.Duration("key", time.Hour), "duration", "1h0m0s"},
		{"error", slog.Any("key", errors.New("test error")), "error", "test error"},
		{"nil", slog.Any("key", nil), "any", "<nil>"},
		{"unmarshalable", slog.Any("key", make(chan int)), "any", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire := toLogAttrWire(tt.attr)
			assert.Equal(t, tt.attr.Key, wire.Key)
			assert.Equal(t, tt.wantType, wire.Type)
			if tt.wantVal != "" {
				assert.Equal(t, tt.wantVal, wire.Value)
			}
		})
	}
}

func TestToLogAttrWire_JSON(t *testing.T) {
	type payload struct {
		Field string `json:"field"`
	}
	wire := toLogAttrWire(slog.Any("key", payload{Field: "data"}))
	assert.Equal(t, "json", wire.Type)

	var decoded payload
	require.NoError(t, json.Unmarshal([]byte(wire.Value), &decoded))
	assert.Equal(t, "data", decoded.Field)
}

type logValuer struct{ val string }

func (l logValuer) LogValue() slog.Value { return slog.StringValue(l.val) }

func TestToLogAttrWire_LogValuer(t *testing.T) {
	wire := toLogAttrWire(slog.Any("key", logValuer{val: "resolved"}))
	assert.Equal(t, "string", wire.Type)
	assert.Equal(t, "resolved", wire.Value)
}

func TestHandler_Level(t *testing.T) {
	h := NewHandler()
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))

	var lv slog.LevelVar
	lv.Set(slog.LevelError)
	h = NewHandler(WithLevel(&lv))
	assert.False(t, h.Enabled(context.Background(), slog.LevelWarn))
	lv.Set(slog.LevelDebug)
	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
}

func TestHandler_AttrsAndGroups(t *testing.T) {
	rec := &recorder{}
	logger := slog.New(NewHandler(WithSink(rec.sink)))

	logger.With("module", "math").
		WithGroup("call").
		With("member", "sqrt").
		Info("called", "ok", true, slog.Group("args", "x", 9))

	require.Len(t, rec.msgs, 1)
	msg := rec.msgs[0]
	assert.Equal(t, "INFO", msg.Level)
	assert.Equal(t, "called", msg.Message)
	assert.Equal(t, map[string]string{
		"module":      "math",
		"call.member": "sqrt",
		"call.ok":     "true",
		"call.args.x": "9",
	}, attrMap(msg))
}

func TestHandler_WithAttrsDoesNotLeak(t *testing.T) {
	rec := &recorder{}
	base := slog.New(NewHandler(WithSink(rec.sink)))

	a := base.With("a", 1)
	b := base.With("b", 2)
	a.Info("one")
	b.Info("two")

	require.Len(t, rec.msgs, 2)
	assert.Equal(t, map[string]string{"a": "1"}, attrMap(rec.msgs[0]))
	assert.Equal(t, map[string]string{"b": "2"}, attrMap(rec.msgs[1]))
}

func TestHandler_Source(t *testing.T) {
	rec := &recorder{}
	slog.New(NewHandler(WithSink(rec.sink), WithSource(true))).Warn("where")

	require.Len(t, rec.msgs, 1)
	assert.Contains(t, attrMap(rec.msgs[0])[slog.SourceKey], "log_test.go:")
}

func TestHandler_Context(t *testing.T) {
	rec := &recorder{}
	logger := slog.New(NewHandler(WithSink(rec.sink)))

	ctx := wasmcontext.WithRequestID(context.Background(), "req-1")
	logger.InfoContext(ctx, "hello")

	require.Len(t, rec.msgs, 1)
	assert.Equal(t, "req-1", rec.msgs[0].Context.RequestID)
}

func TestInstall(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	rec := &recorder{}
	l := Install(WithSink(rec.sink))
	slog.Info("via default")

	assert.Same(t, l, slog.Default())
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, "via default", rec.msgs[0].Message)
}

// Package log provides an slog handler for capgate guests. Records are
// forwarded to the host's "log" import, which re-emits them on the host
// logger tagged with the guest name.
package log

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/reglet-dev/capgate/internal/wasmcontext"
	"github.com/reglet-dev/capgate/wireformat"
)

// Sink receives finished log records.
type Sink func(msg wireformat.LogMessageWire) error

// HandlerOption configures the GuestHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	sink      Sink
	level     slog.Leveler
	addSource bool
}

func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		sink:  platformSink,
		level: slog.LevelInfo,
	}
}

// WithLevel sets the minimum level forwarded to the host. Filtering happens
// in the guest, so suppressed records never cross the boundary.
func WithLevel(level slog.Leveler) HandlerOption {
	return func(c *handlerConfig) {
		if level != nil {
			c.level = level
		}
	}
}

// WithSource adds a "source" attribute with file:line.
func WithSource(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// WithSink replaces the destination of records.
func WithSink(s Sink) HandlerOption {
	return func(c *handlerConfig) {
		if s != nil {
			c.sink = s
		}
	}
}

// GuestHandler implements slog.Handler for guests.
type GuestHandler struct {
	config handlerConfig
	attrs  []wireformat.LogAttrWire
	prefix string
}

// NewHandler creates a GuestHandler.
func NewHandler(opts ...HandlerOption) *GuestHandler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &GuestHandler{config: cfg}
}

// Install makes a GuestHandler the slog default and returns its logger.
func Install(opts ...HandlerOption) *slog.Logger {
	l := slog.New(NewHandler(opts...))
	slog.SetDefault(l)
	return l
}

// Enabled reports whether the handler handles records at the given level.
func (h *GuestHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.config.level.Level()
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *GuestHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := h.clone()
	for _, a := range attrs {
		clone.attrs = appendAttr(clone.attrs, h.prefix, a)
	}
	return clone
}

// WithGroup returns a handler that qualifies later attribute keys with name.
func (h *GuestHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := h.clone()
	clone.prefix = h.prefix + name + "."
	return clone
}

// Handle converts record to a LogMessageWire and passes it to the sink.
func (h *GuestHandler) Handle(ctx context.Context, record slog.Record) error {
	msg := wireformat.LogMessageWire{
		Context:   wasmcontext.ContextToWire(ctx),
		Level:     record.Level.String(),
		Message:   record.Message,
		Timestamp: record.Time,
	}

	msg.Attrs = make([]wireformat.LogAttrWire, 0, len(h.attrs)+record.NumAttrs()+1)
	msg.Attrs = append(msg.Attrs, h.attrs...)
	if h.config.addSource && record.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{record.PC})
		f, _ := frames.Next()
		msg.Attrs = append(msg.Attrs, toLogAttrWire(slog.Attr{
			Key:   slog.SourceKey,
			Value: slog.StringValue(sourceString(f)),
		}))
	}
	record.Attrs(func(a slog.Attr) bool {
		msg.Attrs = appendAttr(msg.Attrs, h.prefix, a)
		return true
	})

	return h.config.sink(msg)
}

func (h *GuestHandler) clone() *GuestHandler {
	c := *h
	c.attrs = append([]wireformat.LogAttrWire(nil), h.attrs...)
	return &c
}

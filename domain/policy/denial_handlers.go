package policy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/reglet-dev/capgate/domain/ports"
)

// Ensure implementations satisfy the interface.
var (
	_ ports.DenialHandler = (*StderrDenialHandler)(nil)
	_ ports.DenialHandler = (*NopDenialHandler)(nil)
	_ ports.DenialHandler = (*SlogDenialHandler)(nil)
	_ ports.DenialHandler = (*RecordingDenialHandler)(nil)
)

// StderrDenialHandler logs denials to stderr.
type StderrDenialHandler struct{}

func (h *StderrDenialHandler) OnDenial(kind string, request any, reason string) {
	fmt.Fprintf(os.Stderr, "Permission Denied [%s]: %v (Reason: %s)\n", kind, request, reason)
}

// NopDenialHandler does nothing.
type NopDenialHandler struct{}

func (h *NopDenialHandler) OnDenial(kind string, request any, reason string) {}

// SlogDenialHandler reports denials as structured warnings.
type SlogDenialHandler struct {
	Logger *slog.Logger // nil means slog.Default()
}

func (h *SlogDenialHandler) OnDenial(kind string, request any, reason string) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(context.Background(), slog.LevelWarn, "capability denied",
		slog.String("kind", kind),
		slog.String("request", fmt.Sprint(request)),
		slog.String("reason", reason),
	)
}

// Denial is one recorded denial.
type Denial struct {
	Request any
	Kind    string
	Reason  string
}

// RecordingDenialHandler keeps every denial in memory. Safe for concurrent use.
type RecordingDenialHandler struct {
	denials []Denial
	mu      sync.Mutex
}

func (h *RecordingDenialHandler) OnDenial(kind string, request any, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.denials = append(h.denials, Denial{Kind: kind, Request: request, Reason: reason})
}

// Denials returns a copy of the recorded denials.
func (h *RecordingDenialHandler) Denials() []Denial {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Denial, len(h.denials))
	copy(out, h.denials)
	return out
}

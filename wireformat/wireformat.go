// Package wireformat defines the JSON structures exchanged between a WASM
// guest and the capgate host module. These types are the ABI contract and
// must stay backward compatible.
package wireformat

import (
	"encoding/json"
	"fmt"
	"time"
)

// HostModule is the import module name guests link against.
const HostModule = "capgate"

// ContextWire carries the guest's deadline and request id to the host.
type ContextWire struct {
	Deadline  *time.Time `json:"deadline,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
	TimeoutMs int64      `json:"timeout_ms,omitempty"`
	Canceled  bool       `json:"canceled,omitempty"`
}

// LoadRequestWire asks the host to load a capability through the gate.
type LoadRequestWire struct {
	Context ContextWire `json:"context"`
	Name    string      `json:"name"`
	Package string      `json:"package,omitempty"`
	Members []string    `json:"members,omitempty"`
	Depth   int         `json:"depth,omitempty"`
}

// LoadResponseWire describes the module a successful load returned.
type LoadResponseWire struct {
	Module  string   `json:"module"`
	Doc     string   `json:"doc,omitempty"`
	Members []string `json:"members"`
	// Bound lists the names the load bound into the guest's locals.
	Bound []string `json:"bound"`
}

// CallRequestWire invokes a member of a module the guest loaded earlier.
type CallRequestWire struct {
	Context ContextWire     `json:"context"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Module  string          `json:"module"`
	Member  string          `json:"member"`
}

// LogMessageWire is a guest log record.
type LogMessageWire struct {
	Timestamp time.Time     `json:"timestamp"`
	Attrs     []LogAttrWire `json:"attrs,omitempty"`
	Level     string        `json:"level"`
	Message   string        `json:"message"`
	Context   ContextWire   `json:"context"`
}

// LogAttrWire is one flattened slog attribute.
type LogAttrWire struct {
	Key   string `json:"key"`
	Type  string `json:"type"` // "string", "int64", "uint64", "bool", "float64", "time", "duration", "error", "json", "any"
	Value string `json:"value"`
}

// ErrorWire is the error body the host returns instead of trapping. It has
// the same shape as hostfuncs.ErrorResponse.
type ErrorWire struct {
	Kind    string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Error implements the error interface.
func (e *ErrorWire) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Code, e.Message)
}

// Denied reports whether the host refused the request at the gate.
func (e *ErrorWire) Denied() bool { return e.Kind == "CAPABILITY_DENIED" }

// NotFound reports whether the capability or member does not exist.
func (e *ErrorWire) NotFound() bool { return e.Kind == "NOT_FOUND" }

// ParseError reports whether data is an error body.
func ParseError(data []byte) (*ErrorWire, bool) {
	var body struct {
		Kind    *string `json:"error"`
		Message string  `json:"message"`
		Code    int     `json:"code"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Kind == nil || body.Code == 0 {
		return nil, false
	}
	return &ErrorWire{Kind: *body.Kind, Message: body.Message, Code: body.Code}, true
}

// PackPtrLen packs a guest pointer (high 32 bits) and length (low 32 bits).
func PackPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

// UnpackPtrLen is the inverse of PackPtrLen.
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	return uint32(packed >> 32), uint32(packed) //nolint:gosec // G115: packed format stores 32-bit values
}

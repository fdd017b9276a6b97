// Package guest is the Go API for WebAssembly programs run by capgate.
//
// A guest has no ambient capabilities: no filesystem, no sockets. Everything
// it can do beyond computation comes from modules loaded through the host's
// gate:
//
//	m, err := guest.Load(ctx, "math")
//	if err != nil {
//	    return err // guest.IsDenied(err) when "math" is not allow-listed
//	}
//	var out struct{ Value float64 `json:"value"` }
//	err = m.Call(ctx, "sqrt", map[string]float64{"x": 2}, &out)
//
// Build guests with GOOS=wasip1 GOARCH=wasm.
package guest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/reglet-dev/capgate/internal/wasmcontext"
	"github.com/reglet-dev/capgate/wireformat"
)

// ErrNoHost is returned when the program is not running inside capgate.
var ErrNoHost = errors.New("guest: capgate host not available")

// Module is a capability the host loaded for this guest.
type Module struct {
	client  *Client
	Name    string
	Doc     string
	Members []string
	// Bound lists the names the load bound into the guest's locals.
	Bound []string
}

// Transport is one host round trip: JSON request in, JSON reply out.
// A nil reply means the host did not answer.
type Transport func(request []byte) []byte

// Client issues load and call requests over a pair of transports.
type Client struct {
	load Transport
	call Transport
}

// NewClient creates a Client. Guests normally use Default; other transports
// are for tests and embedding.
func NewClient(load, call Transport) *Client {
	return &Client{load: load, call: call}
}

var host = NewClient(hostLoad, hostCall)

// Default returns the client bound to the capgate host imports.
func Default() *Client {
	return host
}

// Load asks the host for the absolute capability name. With members, each
// member (or child module) is bound under its own name.
func Load(ctx context.Context, name string, members ...string) (*Module, error) {
	return host.Load(ctx, name, members...)
}

// LoadRelative requests name relative to pkg, depth levels up (depth 1 is
// pkg itself).
func LoadRelative(ctx context.Context, name, pkg string, depth int, members ...string) (*Module, error) {
	return host.LoadRelative(ctx, name, pkg, depth, members...)
}

// Load is the package-level Load on c.
func (c *Client) Load(ctx context.Context, name string, members ...string) (*Module, error) {
	return c.loadRequest(ctx, wireformat.LoadRequestWire{Name: name, Members: members})
}

// LoadRelative is the package-level LoadRelative on c.
func (c *Client) LoadRelative(ctx context.Context, name, pkg string, depth int, members ...string) (*Module, error) {
	return c.loadRequest(ctx, wireformat.LoadRequestWire{
		Name:    name,
		Package: pkg,
		Depth:   depth,
		Members: members,
	})
}

func (c *Client) loadRequest(ctx context.Context, req wireformat.LoadRequestWire) (*Module, error) {
	req.Context = wasmcontext.ContextToWire(ctx)
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("guest: encode load request: %w", err)
	}

	reply := c.load(data)
	if reply == nil {
		return nil, ErrNoHost
	}
	if e, ok := wireformat.ParseError(reply); ok {
		return nil, e
	}

	var resp wireformat.LoadResponseWire
	if err := json.Unmarshal(reply, &resp); err != nil {
		return nil, fmt.Errorf("guest: decode load response: %w", err)
	}
	return &Module{
		client:  c,
		Name:    resp.Module,
		Doc:     resp.Doc,
		Members: resp.Members,
		Bound:   resp.Bound,
	}, nil
}

// Call invokes member with req encoded as JSON and decodes the reply into
// resp when resp is non-nil. Error replies come back as *wireformat.ErrorWire.
func (m *Module) Call(ctx context.Context, member string, req, resp any) error {
	call := wireformat.CallRequestWire{
		Context: wasmcontext.ContextToWire(ctx),
		Module:  m.Name,
		Member:  member,
	}
	if req != nil {
		payload, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("guest: encode %s.%s request: %w", m.Name, member, err)
		}
		call.Payload = payload
	}
	data, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("guest: encode call: %w", err)
	}

	reply := m.client.call(data)
	if reply == nil {
		return ErrNoHost
	}
	if e, ok := wireformat.ParseError(reply); ok {
		return e
	}
	if resp == nil {
		return nil
	}
	if err := json.Unmarshal(reply, resp); err != nil {
		return fmt.Errorf("guest: decode %s.%s response: %w", m.Name, member, err)
	}
	return nil
}

// IsDenied reports whether err is a gate refusal.
func IsDenied(err error) bool {
	var e *wireformat.ErrorWire
	return errors.As(err, &e) && e.Denied()
}

// IsNotFound reports whether err means the capability or member does not
// exist, although it may be allowed.
func IsNotFound(err error) bool {
	var e *wireformat.ErrorWire
	return errors.As(err, &e) && e.NotFound()
}

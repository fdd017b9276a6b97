package host

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/reglet-dev/capgate/domain/entities"
	"github.com/reglet-dev/capgate/domain/ports"
	"github.com/reglet-dev/capgate/hostfuncs"
)

// Program is in-process code run by a session. It sees the host only
// through its Env.
type Program func(ctx context.Context, env *Env) error

// Env is what a Program can reach: the session namespace, its own locals
// and the output streams of the run it belongs to.
//
// Every Load resolves the "load" binding afresh, so a Program started
// before Bootstrap talks to the original loader and one started after talks
// to the gate.
type Env struct {
	session *Session
	rc      *entities.RequestContext
	stdout  io.Writer
	stderr  io.Writer
}

// Requester returns the name loads and calls are attributed to.
func (e *Env) Requester() string {
	return e.rc.Requester
}

// Lookup returns the current value of an ambient binding.
func (e *Env) Lookup(name string) (any, bool) {
	return e.session.ns.Lookup(name)
}

// Names lists the ambient bindings.
func (e *Env) Names() []string {
	return e.session.ns.Names()
}

// Locals is the scope loads bind into.
func (e *Env) Locals() *entities.Scope {
	return e.rc.Locals
}

// Stdout is where print writes.
func (e *Env) Stdout() io.Writer { return e.stdout }

// Stderr is the program's error stream.
func (e *Env) Stderr() io.Writer { return e.stderr }

// Load requests an absolute capability name through the "load" binding.
func (e *Env) Load(ctx context.Context, name string, subMembers ...string) (*entities.Module, error) {
	return e.Import(ctx, entities.LoadRequest{Name: name, SubMembers: subMembers})
}

// Import issues req through the "load" binding. A nil req.Context is
// replaced with the program's own.
func (e *Env) Import(ctx context.Context, req entities.LoadRequest) (*entities.Module, error) {
	v, ok := e.session.ns.Lookup(entities.BindingLoad)
	if !ok {
		return nil, notDefined(entities.BindingLoad)
	}
	loader, ok := v.(ports.Loader)
	if !ok {
		return nil, fmt.Errorf("%q is not callable", entities.BindingLoad)
	}
	if req.Context == nil {
		req.Context = e.rc
	}
	return loader.Load(hostfuncs.WithRequester(ctx, e.rc.Requester), req)
}

// Call invokes member of mod with req marshalled as JSON and decodes the
// response into resp (when non-nil). An error body from the member comes
// back as a *hostfuncs.CallError.
func (e *Env) Call(ctx context.Context, mod *entities.Module, member string, req, resp any) error {
	if mod == nil {
		return fmt.Errorf("call %s: nil module", member)
	}
	var payload []byte
	if req != nil {
		var err error
		if payload, err = json.Marshal(req); err != nil {
			return fmt.Errorf("call %s.%s: encode request: %w", mod.Name, member, err)
		}
	}

	out, err := mod.Call(hostfuncs.WithRequester(ctx, e.rc.Requester), member, payload)
	if err != nil {
		return err
	}
	if er, isErr := hostfuncs.ParseErrorResponse(out); isErr {
		return er.Err()
	}
	if resp == nil {
		return nil
	}
	if err := json.Unmarshal(out, resp); err != nil {
		return fmt.Errorf("call %s.%s: decode response: %w", mod.Name, member, err)
	}
	return nil
}

// Print calls the "print" binding with the run's stdout.
func (e *Env) Print(args ...any) error {
	v, ok := e.session.ns.Lookup(entities.BindingPrint)
	if !ok {
		return notDefined(entities.BindingPrint)
	}
	fn, ok := v.(PrintFunc)
	if !ok {
		return fmt.Errorf("%q is not callable", entities.BindingPrint)
	}
	fn(e.stdout, args...)
	return nil
}

// Open calls the "open" binding. After Bootstrap with the default revoke
// list it fails with ErrNotDefined.
func (e *Env) Open(name string) (io.ReadCloser, error) {
	v, ok := e.session.ns.Lookup(entities.BindingOpen)
	if !ok {
		return nil, notDefined(entities.BindingOpen)
	}
	fn, ok := v.(OpenFunc)
	if !ok {
		return nil, fmt.Errorf("%q is not callable", entities.BindingOpen)
	}
	return fn(name)
}

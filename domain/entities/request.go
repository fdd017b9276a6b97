package entities

import (
	"fmt"
	"strings"
)

// LoadRequest represents one attempt by running code to acquire a capability.
// It is produced by the requester and consumed by a loader; nothing about it
// persists once the request has been answered.
type LoadRequest struct {
	// Context identifies the requester. Loaders bind results into Context.Locals.
	Context *RequestContext

	// Name is the dotted capability name as written by the requester.
	Name string

	// SubMembers lists members or child modules requested from Name.
	SubMembers []string

	// Depth is the relative resolution depth. 0 means Name is absolute.
	Depth int
}

// NewLoadRequest creates an absolute request for name on behalf of rc.
func NewLoadRequest(name string, rc *RequestContext, subMembers ...string) LoadRequest {
	return LoadRequest{
		Context:    rc,
		Name:       name,
		SubMembers: subMembers,
	}
}

// Package returns the requesting package, or "" when the request has no context.
func (r LoadRequest) Package() string {
	if r.Context == nil {
		return ""
	}
	return r.Context.Package
}

// AbsoluteName resolves Name against the requesting package.
func (r LoadRequest) AbsoluteName() (string, error) {
	return ResolveName(r.Name, r.Package(), r.Depth)
}

func (r LoadRequest) String() string {
	var b strings.Builder
	if r.Depth > 0 {
		b.WriteString(strings.Repeat(NameSeparator, r.Depth))
	}
	b.WriteString(r.Name)
	if len(r.SubMembers) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(r.SubMembers, ", "))
	}
	return b.String()
}

// RequestContext identifies where a load request comes from.
type RequestContext struct {
	// Locals receives the bindings a successful load produces.
	Locals *Scope

	// Requester names the running code (a session program or a guest module).
	Requester string

	// Package is the dotted package the requester lives in. Relative requests
	// resolve against it.
	Package string
}

// NewRequestContext creates a context with a fresh local scope.
func NewRequestContext(requester string) *RequestContext {
	return &RequestContext{
		Locals:    NewScope(),
		Requester: requester,
	}
}

// InPackage returns a copy of the context that requests from pkg.
// The copy shares the local scope.
func (c *RequestContext) InPackage(pkg string) *RequestContext {
	cp := *c
	cp.Package = pkg
	return &cp
}

package entities

import (
	"sort"
	"strings"
)

// defaultRoots are the roots admitted when no allow-list is configured:
// numeric and scientific libraries, text and pattern utilities, binary
// structs and time, collections, combinatorial and functional helpers,
// randomness, glob listing, hashing and queues.
var defaultRoots = []string{
	"numpy",
	"scipy",
	"math",
	"string",
	"re",
	"struct",
	"datetime",
	"collections",
	"enum",
	"fractions",
	"itertools",
	"functools",
	"random",
	"glob",
	"hashlib",
	"time",
	"queue",
}

// DefaultRoots returns a copy of the default allow-listed roots.
func DefaultRoots() []string {
	out := make([]string, len(defaultRoots))
	copy(out, defaultRoots)
	return out
}

// Allowlist is an immutable set of root capability names.
// There is no operation that adds to or removes from an existing Allowlist;
// With returns a new value.
type Allowlist struct {
	roots map[string]struct{}
}

// NewAllowlist builds an allow-list. Entries are reduced to their root
// segment; blank entries are ignored.
func NewAllowlist(roots ...string) Allowlist {
	a := Allowlist{roots: make(map[string]struct{}, len(roots))}
	for _, r := range roots {
		r = RootSegment(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		a.roots[r] = struct{}{}
	}
	return a
}

// DefaultAllowlist returns the allow-list built from DefaultRoots.
func DefaultAllowlist() Allowlist {
	return NewAllowlist(defaultRoots...)
}

// Contains reports whether root is admitted.
func (a Allowlist) Contains(root string) bool {
	_, ok := a.roots[root]
	return ok
}

// Allows reports whether the root segment of name is admitted.
func (a Allowlist) Allows(name string) bool {
	return a.Contains(RootSegment(name))
}

// Roots returns the admitted roots in sorted order.
func (a Allowlist) Roots() []string {
	out := make([]string, 0, len(a.roots))
	for r := range a.roots {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of admitted roots.
func (a Allowlist) Len() int {
	return len(a.roots)
}

// With returns a new allow-list holding the roots of a plus extra.
func (a Allowlist) With(extra ...string) Allowlist {
	return NewAllowlist(append(a.Roots(), extra...)...)
}

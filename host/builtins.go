package host

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/reglet-dev/capgate/hostfuncs"
)

// ErrNotDefined is returned when code uses an ambient binding that the
// session does not (or no longer) provide.
var ErrNotDefined = errors.New("name is not defined")

// PrintFunc is the ambient "print" binding. It writes to the stdout of the
// run that calls it, never to a stream fixed at session construction.
type PrintFunc func(w io.Writer, args ...any)

// OpenFunc is the ambient "open" binding: direct file access that bypasses
// every capability. Sessions revoke it by default.
type OpenFunc func(name string) (io.ReadCloser, error)

func osOpen(name string) (io.ReadCloser, error) {
	return os.Open(name) //nolint:gosec // G304: this binding is the ambient capability being revoked
}

func printLine(w io.Writer, args ...any) {
	fmt.Fprintln(w, args...)
}

func notDefined(name string) error {
	return fmt.Errorf("%w: %q", ErrNotDefined, name)
}

// GrantedCapabilities returns a hostfuncs.CapabilityGetter that grants the
// listed sub-capabilities ("shell", "env:PATH") to every requester.
// Entries may be doublestar patterns, e.g. "env:LC_*".
func GrantedCapabilities(grants []string) hostfuncs.CapabilityGetter {
	set := append([]string{}, grants...)
	return func(_ string, capability string) bool {
		for _, g := range set {
			if g == capability {
				return true
			}
			if ok, err := doublestar.Match(g, capability); err == nil && ok {
				return true
			}
		}
		return false
	}
}

package entities

import (
	"fmt"
	"strings"
)

// NameSeparator splits a capability name into segments.
const NameSeparator = "."

// RootSegment returns the first dotted segment of name.
// Allow-list decisions only ever look at this segment.
func RootSegment(name string) string {
	root, _, _ := strings.Cut(name, NameSeparator)
	return root
}

// ValidateName checks that name is a well-formed dotted capability name:
// non-empty segments made of letters, digits and underscores, never
// starting with a digit.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name is empty")
	}
	for i, seg := range strings.Split(name, NameSeparator) {
		if seg == "" {
			return fmt.Errorf("segment %d is empty", i)
		}
		for j, r := range seg {
			switch {
			case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			case r >= '0' && r <= '9' && j > 0:
			default:
				return fmt.Errorf("segment %q contains invalid character %q", seg, r)
			}
		}
	}
	return nil
}

// ResolveName turns a possibly relative request into an absolute name.
//
// Depth 0 returns name unchanged. Depth d > 0 resolves against pkg, the
// package of the requester: d-1 trailing segments are stripped from pkg and
// name (which may be empty) is appended.
func ResolveName(name, pkg string, depth int) (string, error) {
	if depth < 0 {
		return "", fmt.Errorf("negative depth %d", depth)
	}
	if depth == 0 {
		return name, nil
	}
	if pkg == "" {
		return "", fmt.Errorf("relative request for %q outside of a package", name)
	}

	parts := strings.Split(pkg, NameSeparator)
	if depth-1 >= len(parts) {
		return "", fmt.Errorf("relative request for %q goes beyond top-level package %q", name, pkg)
	}

	base := strings.Join(parts[:len(parts)-(depth-1)], NameSeparator)
	if name == "" {
		return base, nil
	}
	return base + NameSeparator + name, nil
}

// ParentName returns the name without its last segment, or "" for a root.
func ParentName(name string) string {
	i := strings.LastIndex(name, NameSeparator)
	if i < 0 {
		return ""
	}
	return name[:i]
}

// LeafName returns the last segment of name.
func LeafName(name string) string {
	i := strings.LastIndex(name, NameSeparator)
	return name[i+1:]
}

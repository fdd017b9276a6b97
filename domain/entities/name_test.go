package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootSegment(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"math", "math"},
		{"numpy.linalg", "numpy"},
		{"a.b.c", "a"},
		{"", ""},
		{".hidden", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RootSegment(tt.name))
		})
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"math", "numpy.linalg", "_private", "net.dns", "v2.x1"}
	for _, name := range valid {
		assert.NoError(t, ValidateName(name), name)
	}

	invalid := []string{"", ".", "math.", ".math", "a..b", "1abc", "os/exec", "sp ace", "a.2b"}
	for _, name := range invalid {
		assert.Error(t, ValidateName(name), name)
	}
}

func TestResolveName(t *testing.T) {
	tests := []struct {
		name    string
		req     string
		pkg     string
		want    string
		depth   int
		wantErr bool
	}{
		{name: "absolute", req: "math", depth: 0, want: "math"},
		{name: "sibling", req: "dns", pkg: "net", depth: 1, want: "net.dns"},
		{name: "parent package", req: "filter", pkg: "net.dns", depth: 2, want: "net.filter"},
		{name: "package itself", req: "", pkg: "net", depth: 1, want: "net"},
		{name: "beyond top level", req: "x", pkg: "net", depth: 2, wantErr: true},
		{name: "no package", req: "x", depth: 1, wantErr: true},
		{name: "negative depth", req: "x", depth: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveName(tt.req, tt.pkg, tt.depth)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParentAndLeafName(t *testing.T) {
	assert.Equal(t, "net", ParentName("net.dns"))
	assert.Equal(t, "", ParentName("net"))
	assert.Equal(t, "dns", LeafName("net.dns"))
	assert.Equal(t, "net", LeafName("net"))
}

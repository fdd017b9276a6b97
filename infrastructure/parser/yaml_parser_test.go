package parser_test

import (
	"testing"

	"github.com/reglet-dev/capgate/infrastructure/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Allowlist []string `yaml:"allowlist"`
	Timeout   string   `yaml:"timeout"`
}

func TestYamlParser_Parse(t *testing.T) {
	p := parser.NewYamlParser()

	var d doc
	require.NoError(t, p.Parse([]byte("allowlist: [math, re]\ntimeout: 1s\n"), &d))
	assert.Equal(t, []string{"math", "re"}, d.Allowlist)
	assert.Equal(t, "1s", d.Timeout)

	var fromJSON doc
	require.NoError(t, p.Parse([]byte(`{"allowlist": []}`), &fromJSON))
	assert.NotNil(t, fromJSON.Allowlist)
	assert.Empty(t, fromJSON.Allowlist)
}

func TestYamlParser_Empty(t *testing.T) {
	d := doc{Timeout: "5s"}
	require.NoError(t, parser.NewYamlParser().Parse(nil, &d))
	assert.Equal(t, "5s", d.Timeout)
}

func TestYamlParser_KnownFields(t *testing.T) {
	var d doc
	err := parser.NewYamlParser().Parse([]byte("allowlist: [math]\nimportlib: x\n"), &d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode yaml")

	lenient := parser.NewYamlParser(parser.WithKnownFields(false))
	require.NoError(t, lenient.Parse([]byte("allowlist: [math]\nimportlib: x\n"), &d))
	assert.Equal(t, []string{"math"}, d.Allowlist)
}

func TestYamlParser_Malformed(t *testing.T) {
	var d doc
	require.Error(t, parser.NewYamlParser().Parse([]byte("allowlist: [math\n"), &d))
}

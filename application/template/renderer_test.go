package template_test

import (
	"testing"

	"github.com/reglet-dev/capgate/application/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoTemplateEngine_Render(t *testing.T) {
	engine := template.NewGoTemplateEngine()

	t.Run("Successful Resolution", func(t *testing.T) {
		raw := []byte(`timeout: "{{.vars.timeout}}"` + "\n" + `log_level: info`)

		out, err := engine.Render(raw, map[string]interface{}{"timeout": "2s"})
		require.NoError(t, err)
		assert.Contains(t, string(out), `timeout: "2s"`)
	})

	t.Run("Missing Key Fails", func(t *testing.T) {
		raw := []byte(`timeout: "{{.vars.missing}}"`)

		_, err := engine.Render(raw, map[string]interface{}{"timeout": "2s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "map has no entry for key")
	})

	t.Run("Invalid Template Syntax", func(t *testing.T) {
		_, err := engine.Render([]byte(`timeout: "{{.vars.timeout"`), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config template")
	})

	t.Run("Plain Document Passes Through", func(t *testing.T) {
		raw := []byte("allowlist: [math, re]\n")

		out, err := engine.Render(raw, nil)
		require.NoError(t, err)
		assert.Equal(t, raw, out)
	})

	t.Run("Helpers", func(t *testing.T) {
		raw := []byte(`allowlist: [{{ join (split .vars.roots ",") ", " }}]` + "\n" +
			`log_level: {{ lower .vars.level }}`)

		out, err := engine.Render(raw, map[string]interface{}{"roots": "math,re", "level": "DEBUG"})
		require.NoError(t, err)
		assert.Contains(t, string(out), "allowlist: [math, re]")
		assert.Contains(t, string(out), "log_level: debug")
	})
}

func TestGoTemplateEngine_NonStrict(t *testing.T) {
	engine := template.NewGoTemplateEngine(template.WithStrict(false), template.WithName("session"))

	out, err := engine.Render([]byte(`guest_name: "{{.vars.missing}}"`), map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, `guest_name: "<no value>"`, string(out))

	_, err = engine.Render([]byte(`{{`), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session template")
}

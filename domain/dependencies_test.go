package domain_test

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modulePath = "github.com/reglet-dev/capgate/"

// TestDomainHasNoExternalDependencies verifies that the domain layer
// does not import from the gate, host, application or infrastructure layers.
func TestDomainHasNoExternalDependencies(t *testing.T) {
	fset := token.NewFileSet()

	for _, pkg := range []string{"entities", "errors", "ports", "policy"} {
		files, err := filepath.Glob(filepath.Join("..", "domain", pkg, "*.go"))
		require.NoError(t, err, "failed to glob %s files", pkg)
		require.NotEmpty(t, files, "domain/%s should contain Go files", pkg)

		for _, file := range files {
			if strings.HasSuffix(file, "_test.go") {
				continue
			}
			checkFileImports(t, fset, file, pkg)
		}
	}
}

func checkFileImports(t *testing.T, fset *token.FileSet, filename, pkg string) {
	t.Helper()

	f, err := parser.ParseFile(fset, filename, nil, parser.ImportsOnly)
	require.NoError(t, err, "failed to parse %s", filename)

	for _, imp := range f.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)

		if !strings.HasPrefix(importPath, modulePath) {
			// Domain packages only use the standard library.
			assert.NotContains(t, importPath, ".", "domain/%s (%s) imports third-party package %s",
				pkg, filepath.Base(filename), importPath)
			continue
		}

		assert.True(t, strings.HasPrefix(importPath, modulePath+"domain/"),
			"domain/%s package (%s) imports non-domain package: %s",
			pkg, filepath.Base(filename), importPath)
	}
}

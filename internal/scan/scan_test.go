package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newModule(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/shop\n\ngo 1.25\n")
	return dir
}

func functionNames(t *testing.T, root string) []string {
	t.Helper()
	targets, err := Targets(root, "tests")
	require.NoError(t, err)

	names := make([]string, len(targets))
	for i, tgt := range targets {
		names[i] = tgt.Function
	}
	return names
}

func TestModulePath(t *testing.T) {
	dir := newModule(t)
	path, err := ModulePath(dir)
	require.NoError(t, err)
	assert.Equal(t, "example.com/shop", path)
}

func TestModulePath_NoGoMod(t *testing.T) {
	_, err := ModulePath(t.TempDir())
	assert.Error(t, err)
}

func TestTargets_ExportedFunctionsAndMethods(t *testing.T) {
	dir := newModule(t)
	writeFile(t, dir, "cart/cart.go", `package cart

type Cart struct{ items []int }

func Total(items []int) int { return 0 }

func (c *Cart) Sum() int { return 0 }

func helper() int { return 0 }
`)

	names := functionNames(t, dir)
	assert.Equal(t, []string{"cart.Cart.Sum", "cart.Total"}, names)
}

func TestTargets_SkipsTestFilesAndBodylessDecls(t *testing.T) {
	dir := newModule(t)
	writeFile(t, dir, "pricing/pricing.go", `package pricing

func Quote(n int) int { return n }

func Imported() int
`)
	writeFile(t, dir, "pricing/pricing_test.go", `package pricing

import "testing"

func TestQuote(t *testing.T) {}
`)

	names := functionNames(t, dir)
	assert.Equal(t, []string{"pricing.Quote"}, names)
}

func TestTargets_SkipsVendorNestedModulesAndHiddenDirs(t *testing.T) {
	dir := newModule(t)
	writeFile(t, dir, "cart/cart.go", "package cart\n\nfunc Total() int { return 0 }\n")
	writeFile(t, dir, "vendor/dep/dep.go", "package dep\n\nfunc Vendored() int { return 0 }\n")
	writeFile(t, dir, "nested/go.mod", "module example.com/nested\n")
	writeFile(t, dir, "nested/n.go", "package nested\n\nfunc Hidden() int { return 0 }\n")
	writeFile(t, dir, ".build/gen.go", "package gen\n\nfunc Generated() int { return 0 }\n")
	writeFile(t, dir, "_archive/old.go", "package old\n\nfunc Retired() int { return 0 }\n")

	names := functionNames(t, dir)
	assert.Equal(t, []string{"cart.Total"}, names)
}

func TestTargets_DeterministicOrder(t *testing.T) {
	dir := newModule(t)
	writeFile(t, dir, "b/b.go", "package b\n\nfunc Zeta() int { return 0 }\n\nfunc Alpha() int { return 0 }\n")
	writeFile(t, dir, "a/a.go", "package a\n\nfunc Mid() int { return 0 }\n")

	first := functionNames(t, dir)
	assert.Equal(t, []string{"a.Mid", "b.Alpha", "b.Zeta"}, first)

	for i := 0; i < 5; i++ {
		assert.Equal(t, first, functionNames(t, dir))
	}
}

func TestTargets_BrokenFileSkipped(t *testing.T) {
	dir := newModule(t)
	writeFile(t, dir, "ok/ok.go", "package ok\n\nfunc Fine() int { return 0 }\n")
	writeFile(t, dir, "broken/broken.go", "package broken\n\nfunc Unclosed( {")

	names := functionNames(t, dir)
	assert.Equal(t, []string{"ok.Fine"}, names)
}

func TestTargets_PopulatesLocations(t *testing.T) {
	dir := newModule(t)
	writeFile(t, dir, "cart/cart.go", "package cart\n\nfunc Total() int { return 0 }\n")

	targets, err := Targets(dir, "tests")
	require.NoError(t, err)
	require.Len(t, targets, 1)

	assert.Equal(t, "cart/cart.go", targets[0].File)
	assert.Equal(t, "tests", targets[0].TestsRoot)
	assert.NotEmpty(t, targets[0].ModuleRoot)
	assert.Empty(t, targets[0].Tests, "test subset resolves at session start")
}

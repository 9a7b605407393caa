// Package scan discovers optimizable functions across a Go module tree.
// It backs the "--all" mode: every exported function or method with a
// body becomes an independent target, evaluated in isolation from its
// siblings.
package scan

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/roach88/perfsmith/internal/testkit"
)

// skipDirs are directory names never scanned for targets.
var skipDirs = map[string]bool{
	"vendor":       true,
	"testdata":     true,
	"node_modules": true,
}

// ModulePath reads the module path from the go.mod at root. Fails when
// root is not a Go module.
func ModulePath(root string) (string, error) {
	goModPath := filepath.Join(root, "go.mod")
	content, err := os.ReadFile(goModPath)
	if err != nil {
		return "", fmt.Errorf("read go.mod: %w", err)
	}

	f, err := modfile.Parse("go.mod", content, nil)
	if err != nil {
		return "", fmt.Errorf("parse go.mod: %w", err)
	}
	if f.Module == nil || f.Module.Mod.Path == "" {
		return "", fmt.Errorf("go.mod at %s declares no module path", root)
	}
	return f.Module.Mod.Path, nil
}

// Targets walks the module tree at root and returns one target per
// optimizable function: exported, with a body, declared in a non-test
// file of the module itself. Nested modules, vendor trees, testdata, and
// hidden directories are skipped. The result is sorted by file then
// function, so an "all" run visits targets in a reproducible order.
//
// Each target's test subset is left empty: tests are discovered per
// session, against the framework configured for the run.
func Targets(moduleRoot, testsRoot string) ([]testkit.Target, error) {
	absRoot, err := filepath.Abs(moduleRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve module root: %w", err)
	}

	if _, err := ModulePath(absRoot); err != nil {
		return nil, fmt.Errorf("scan targets: %w", err)
	}

	var targets []testkit.Target
	fset := token.NewFileSet()

	err = filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			name := d.Name()
			if path != absRoot {
				if skipDirs[name] || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
					return filepath.SkipDir
				}
				// A nested go.mod starts a different module; its
				// functions belong to that module's own runs.
				if _, statErr := os.Stat(filepath.Join(path, "go.mod")); statErr == nil {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}

		found, err := fileTargets(fset, path, filepath.ToSlash(rel), absRoot, testsRoot)
		if err != nil {
			return err
		}
		targets = append(targets, found...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan targets: %w", err)
	}

	sort.Slice(targets, func(i, j int) bool {
		if targets[i].File != targets[j].File {
			return targets[i].File < targets[j].File
		}
		return targets[i].Function < targets[j].Function
	})
	return targets, nil
}

// fileTargets parses one source file and extracts its optimizable
// functions. Parse errors skip the file rather than failing the scan: a
// broken file cannot be optimized, but its siblings still can.
func fileTargets(fset *token.FileSet, path, rel, moduleRoot, testsRoot string) ([]testkit.Target, error) {
	file, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
	if err != nil {
		return nil, nil
	}

	pkg := file.Name.Name
	var targets []testkit.Target

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil || !fn.Name.IsExported() {
			continue
		}

		targets = append(targets, testkit.Target{
			Function:   qualify(pkg, fn),
			File:       rel,
			ModuleRoot: moduleRoot,
			TestsRoot:  testsRoot,
		})
	}
	return targets, nil
}

// qualify builds the function's qualified name: "pkg.Fn" for plain
// functions, "pkg.Type.Method" for methods.
func qualify(pkg string, fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return pkg + "." + fn.Name.Name
	}
	return pkg + "." + receiverType(fn.Recv.List[0].Type) + "." + fn.Name.Name
}

// receiverType extracts the named type from a receiver expression,
// unwrapping pointers and type parameters.
func receiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverType(t.X)
	case *ast.IndexExpr:
		return receiverType(t.X)
	case *ast.IndexListExpr:
		return receiverType(t.X)
	case *ast.Ident:
		return t.Name
	default:
		return "unknown"
	}
}

// Package scratch provides isolated scratch copies of a module tree.
//
// Every implementation evaluation (the original baseline and each
// candidate) executes inside its own Workspace: a temporary copy of the
// caller's module root. Candidate source is overlaid onto the copy, never
// onto the caller-visible tree. A workspace is exclusively owned by one
// evaluation and torn down on every exit path.
package scratch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// skipDirs are directory names never copied into a workspace. They are
// either irrelevant to test execution or expensive to replicate.
var skipDirs = map[string]bool{
	".git":          true,
	".hg":           true,
	"node_modules":  true,
	"__pycache__":   true,
	".pytest_cache": true,
	".venv":         true,
}

// Workspace is a scratch copy of a module tree.
type Workspace struct {
	root string

	mu      sync.Mutex
	cleaned bool
}

// New copies the module tree at moduleRoot into a fresh temporary
// directory. The caller owns the returned workspace and must call Cleanup.
func New(moduleRoot string) (*Workspace, error) {
	abs, err := filepath.Abs(moduleRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve module root: %w", err)
	}

	dir, err := os.MkdirTemp("", "perfsmith-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	if err := copyTree(abs, dir); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("copy module tree: %w", err)
	}

	return &Workspace{root: dir}, nil
}

// Root returns the workspace's root directory.
func (w *Workspace) Root() string {
	return w.root
}

// Path resolves a module-relative path inside the workspace.
func (w *Workspace) Path(rel string) string {
	return filepath.Join(w.root, filepath.FromSlash(rel))
}

// ApplySource overwrites one file in the workspace with the given source.
// This is how a candidate implementation is overlaid onto the scratch copy.
// The path must stay inside the workspace.
func (w *Workspace) ApplySource(rel string, source []byte) error {
	dst := w.Path(rel)
	if !strings.HasPrefix(dst, w.root+string(os.PathSeparator)) {
		return fmt.Errorf("path %q escapes workspace", rel)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("apply source: %w", err)
	}
	if err := os.WriteFile(dst, source, 0o644); err != nil {
		return fmt.Errorf("apply source: %w", err)
	}
	return nil
}

// ReadFile reads a module-relative file from the workspace.
func (w *Workspace) ReadFile(rel string) ([]byte, error) {
	return os.ReadFile(w.Path(rel))
}

// Cleanup removes the workspace. Idempotent and safe to defer on every
// exit path, including error and cancellation.
func (w *Workspace) Cleanup() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cleaned {
		return nil
	}
	w.cleaned = true
	return os.RemoveAll(w.root)
}

// copyTree replicates src into dst. Regular files and directories only;
// symlinks are skipped (a scratch copy must not reach back into the
// original tree through a link).
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return os.MkdirAll(filepath.Join(dst, rel), 0o755)
		}

		if !d.Type().IsRegular() {
			return nil
		}

		return copyFile(path, filepath.Join(dst, rel))
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

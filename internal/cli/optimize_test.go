package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCandidate(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestLoadCandidates_SortedByFileName(t *testing.T) {
	dir := t.TempDir()
	writeCandidate(t, dir, "cand-02.go", "package p\n")
	writeCandidate(t, dir, "cand-01.go", "package p\n")
	writeCandidate(t, dir, ".hidden", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	candidates, err := loadCandidates(dir)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "cand-01", candidates[0].ID)
	assert.Equal(t, "cand-02", candidates[1].ID)
	assert.Equal(t, []byte("package p\n"), candidates[0].Source)
}

func TestLoadCandidates_EmptyDirFails(t *testing.T) {
	_, err := loadCandidates(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidate sources")
}

func TestOptimize_RequiresFunctionOrAll(t *testing.T) {
	dir := t.TempDir()
	writeCandidate(t, dir, "cand-01.go", "package p\n")

	_, err := execute(t, "optimize", "--candidates", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--function or --all")
}

func TestOptimize_RequiresFileWithFunction(t *testing.T) {
	dir := t.TempDir()
	writeCandidate(t, dir, "cand-01.go", "package p\n")

	_, err := execute(t, "optimize", "--candidates", dir, "--function", "p.F")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--file")
}

func TestOptimize_RejectsInvalidFlagOverride(t *testing.T) {
	dir := t.TempDir()
	writeCandidate(t, dir, "cand-01.go", "package p\n")

	_, err := execute(t, "optimize",
		"--candidates", dir,
		"--function", "p.F",
		"--file", "p.go",
		"--confidence", "1.5",
	)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "confidence")
}

func TestOptimize_UnknownFrameworkIsCommandError(t *testing.T) {
	module := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(module, "p.go"), []byte("package p\n"), 0o644))
	dir := t.TempDir()
	writeCandidate(t, dir, "cand-01.go", "package p\n")

	_, err := execute(t, "optimize",
		"--candidates", dir,
		"--function", "p.F",
		"--file", "p.go",
		"--module-root", module,
		"--test-framework", "jest",
	)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestOptimize_MissingTargetFileIsCommandError(t *testing.T) {
	module := t.TempDir()
	dir := t.TempDir()
	writeCandidate(t, dir, "cand-01.go", "package p\n")

	_, err := execute(t, "optimize",
		"--candidates", dir,
		"--function", "p.F",
		"--file", "absent.go",
		"--module-root", module,
	)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestBudgetContext_ZeroMeansNoDeadline(t *testing.T) {
	ctx, cancel := budgetContext(context.Background(), 0)
	defer cancel()

	_, ok := ctx.Deadline()
	assert.False(t, ok)
	assert.NoError(t, ctx.Err())
}

func TestBudgetContext_ExhaustionCancelsCooperatively(t *testing.T) {
	ctx, cancel := budgetContext(context.Background(), 5*time.Millisecond)
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(5*time.Millisecond), deadline, time.Second)

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("budget expiry never cancelled the context")
	}
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}

func TestOptimize_GlobalBudgetExhaustionExitsFailure(t *testing.T) {
	module := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(module, "p.go"), []byte("package p\n"), 0o644))
	dir := t.TempDir()
	writeCandidate(t, dir, "cand-01.go", "package p\n")

	_, err := execute(t, "optimize",
		"--candidates", dir,
		"--function", "p.F",
		"--file", "p.go",
		"--module-root", module,
		"--tests-root", "tests",
		"--global-budget", "1ns",
	)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "global time budget")
}

func TestOptimize_DiscoveryFailureRendersAbortAndExitsFailure(t *testing.T) {
	// A module root without the tests tree fails discovery before any
	// framework subprocess runs.
	module := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(module, "p.go"), []byte("package p\n"), 0o644))
	dir := t.TempDir()
	writeCandidate(t, dir, "cand-01.go", "package p\n")

	out, err := execute(t, "optimize",
		"--candidates", dir,
		"--function", "p.F",
		"--file", "p.go",
		"--module-root", module,
		"--tests-root", "tests",
	)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "aborted")
	assert.Contains(t, out, "Aborted")
	assert.Contains(t, out, "DISCOVERY_FAILED")
}

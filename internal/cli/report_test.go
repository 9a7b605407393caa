package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/perfsmith/internal/session"
	"github.com/roach88/perfsmith/internal/store"
	"github.com/roach88/perfsmith/internal/testkit"
)

func seedJournal(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.db")

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.RecordReport(context.Background(), session.TargetReport{
		Target: testkit.Target{Function: "cart.Total", File: "cart/total.go"},
		Epoch:  "epoch-01",
		State:  session.StateNoImprovement,
		Candidates: []session.CandidateResult{
			{ID: "cand-01", Status: session.StatusMeasured},
		},
	}))
	return path
}

func TestReport_MissingJournalIsCommandError(t *testing.T) {
	_, err := execute(t, "report", "--journal", filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "journal not found")
}

func TestReport_RendersStoredReports(t *testing.T) {
	path := seedJournal(t)

	out, err := execute(t, "report", "--journal", path)
	require.NoError(t, err)
	assert.Contains(t, out, "cart.Total")
	assert.Contains(t, out, "NoImprovement")
	assert.Contains(t, out, "cand-01")
}

func TestReport_TargetFilter(t *testing.T) {
	path := seedJournal(t)

	out, err := execute(t, "report", "--journal", path, "--target", "cart.Total")
	require.NoError(t, err)
	assert.Contains(t, out, "cart.Total")

	_, err = execute(t, "report", "--journal", path, "--target", "other.Fn")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReport_JSONFormat(t *testing.T) {
	path := seedJournal(t)

	out, err := execute(t, "--format", "json", "report", "--journal", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"target": "cart.Total"`)
	assert.Contains(t, out, `"state": "NoImprovement"`)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "gotest", cfg.Framework)
	assert.Equal(t, 30*time.Second, cfg.TestTimeout.Std())
	assert.InDelta(t, 0.95, cfg.Confidence, 1e-9)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
framework: pytest
tests_root: tests
test_timeout: 45s
time_budget: 5m
min_samples: 20
confidence: 0.99
volatile_fields:
  - "result.timestamp"
  - "items.*.id"
float_epsilon: 1e-9
`))
	require.NoError(t, err)

	assert.Equal(t, "pytest", cfg.Framework)
	assert.Equal(t, 45*time.Second, cfg.TestTimeout.Std())
	assert.Equal(t, 5*time.Minute, cfg.TimeBudget.Std())
	assert.Equal(t, 20, cfg.MinSamples)
	assert.InDelta(t, 0.99, cfg.Confidence, 1e-9)
	assert.Equal(t, []string{"result.timestamp", "items.*.id"}, cfg.VolatileFields)

	// Untouched options keep their defaults.
	assert.Equal(t, Default().MaxSamples, cfg.MaxSamples)
	assert.Equal(t, Default().Parallelism, cfg.Parallelism)
}

func TestParse_EmptyDocumentKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_RejectsUnknownFramework(t *testing.T) {
	_, err := Parse([]byte("framework: jest\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func TestParse_RejectsOutOfRangeConfidence(t *testing.T) {
	_, err := Parse([]byte("confidence: 1.5\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("confidence: 0\n"))
	assert.Error(t, err)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("frmaework: gotest\n"))
	assert.Error(t, err, "typoed keys must not be silently dropped")
}

func TestParse_GlobalBudget(t *testing.T) {
	assert.Equal(t, time.Duration(0), Default().GlobalBudget.Std(), "unset means no cap")

	cfg, err := Parse([]byte("global_budget: 30m\n"))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.GlobalBudget.Std())
}

func TestParse_RejectsMalformedGlobalBudget(t *testing.T) {
	_, err := Parse([]byte("global_budget: unbounded\n"))
	assert.Error(t, err)
}

func TestValidate_RejectsNegativeGlobalBudget(t *testing.T) {
	cfg := Default()
	cfg.GlobalBudget = Duration(-time.Second)
	require.Error(t, cfg.Validate())
}

func TestParse_RejectsMalformedDuration(t *testing.T) {
	_, err := Parse([]byte("test_timeout: fast\n"))
	assert.Error(t, err)
}

func TestParse_RejectsInvertedSampleBounds(t *testing.T) {
	_, err := Parse([]byte("min_samples: 100\nmax_samples: 10\n"))
	assert.Error(t, err, "min above max fails cross-field validation")
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perfsmith.yaml")
	require.NoError(t, os.WriteFile(path, []byte("framework: gotest\njournal: session.db\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "session.db", cfg.Journal)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestComponentConfigMapping(t *testing.T) {
	cfg := Default()
	cfg.MinSamples = 15
	cfg.VolatileFields = []string{"result.id"}
	cfg.FloatEpsilon = 1e-6

	assert.Equal(t, 15, cfg.SamplingConfig().MinSamples)
	assert.Equal(t, []string{"result.id"}, cfg.Tolerance().VolatileFields)
	assert.InDelta(t, 1e-6, cfg.Tolerance().FloatEpsilon, 1e-12)
	assert.InDelta(t, cfg.Confidence, cfg.SelectorConfig().Confidence, 1e-9)
}

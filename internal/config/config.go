// Package config is the session configuration surface: a YAML file
// validated against an embedded CUE schema, with CLI flags layered on
// top by the command layer.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/perfsmith/internal/capture"
	"github.com/roach88/perfsmith/internal/sampling"
	"github.com/roach88/perfsmith/internal/selector"
)

//go:embed schema.cue
var schemaCUE string

// Duration wraps time.Duration with YAML decoding from strings like
// "30s" or "2m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds every recognized session option.
type Config struct {
	// Framework selects the test framework adapter ("gotest", "pytest").
	Framework string `yaml:"framework"`

	// TestsRoot is the test tree, relative to ModuleRoot.
	TestsRoot string `yaml:"tests_root"`

	// ModuleRoot is the project root that scratch workspaces copy.
	ModuleRoot string `yaml:"module_root"`

	// All scans the module tree for every optimizable function instead
	// of optimizing a single one.
	All bool `yaml:"all"`

	// TestTimeout is the per-test wall-clock timeout.
	TestTimeout Duration `yaml:"test_timeout"`

	// TimeBudget caps the measurement time of one implementation/scenario
	// pair (the sampler's stopping rule consumes it per scenario).
	TimeBudget Duration `yaml:"time_budget"`

	// GlobalBudget caps the wall clock of the whole optimize run across
	// every target and candidate. Zero means no cap. Exhaustion propagates
	// as cooperative cancellation; no partial commit can result.
	GlobalBudget Duration `yaml:"global_budget"`

	MinSamples    int     `yaml:"min_samples"`
	MaxSamples    int     `yaml:"max_samples"`
	WarmupSamples int     `yaml:"warmup_samples"`
	Confidence    float64 `yaml:"confidence"`

	// Parallelism is the number of concurrent candidate workers.
	Parallelism int `yaml:"parallelism"`

	// Journal is the SQLite journal path; empty disables journaling.
	Journal string `yaml:"journal"`

	// VolatileFields are captured-value paths masked during equivalence
	// comparison, e.g. "result.timestamp" or "items.*.id".
	VolatileFields []string `yaml:"volatile_fields"`

	// FloatEpsilon is the tolerance for float comparison; zero means
	// exact.
	FloatEpsilon float64 `yaml:"float_epsilon"`
}

// Default returns the configuration used when no file or flag overrides
// a value.
func Default() Config {
	samples := sampling.DefaultConfig()
	return Config{
		Framework:     "gotest",
		TestsRoot:     ".",
		ModuleRoot:    ".",
		TestTimeout:   Duration(30 * time.Second),
		TimeBudget:    Duration(samples.TimeBudget),
		MinSamples:    samples.MinSamples,
		MaxSamples:    samples.MaxSamples,
		WarmupSamples: samples.WarmupSamples,
		Confidence:    selector.DefaultConfig().Confidence,
		Parallelism:   4,
	}
}

// Load reads a YAML config file, validates it against the embedded CUE
// schema, and decodes it over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes raw YAML config bytes.
func Parse(data []byte) (Config, error) {
	if err := validateSchema(data); err != nil {
		return Config{}, err
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validateSchema unifies the YAML document with #Config and reports any
// constraint violation.
func validateSchema(data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if raw == nil {
		return nil
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	unified := schema.Unify(ctx.Encode(raw))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	return nil
}

// Validate checks cross-field consistency the schema cannot express.
func (c Config) Validate() error {
	if err := c.SamplingConfig().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.SelectorConfig().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("config: parallelism must be at least 1, got %d", c.Parallelism)
	}
	if c.TestTimeout <= 0 {
		return fmt.Errorf("config: test_timeout must be positive")
	}
	if c.GlobalBudget < 0 {
		return fmt.Errorf("config: global_budget must not be negative")
	}
	return nil
}

// SamplingConfig maps the options onto the sampler's stopping rule,
// keeping its defaults for thresholds the surface does not expose.
func (c Config) SamplingConfig() sampling.Config {
	cfg := sampling.DefaultConfig()
	cfg.MinSamples = c.MinSamples
	cfg.MaxSamples = c.MaxSamples
	cfg.WarmupSamples = c.WarmupSamples
	cfg.TimeBudget = c.TimeBudget.Std()
	return cfg
}

// SelectorConfig maps the options onto the statistical decision.
func (c Config) SelectorConfig() selector.Config {
	return selector.Config{Confidence: c.Confidence}
}

// Tolerance maps the options onto structural-equality tolerance.
func (c Config) Tolerance() capture.Tolerance {
	return capture.Tolerance{
		VolatileFields: c.VolatileFields,
		FloatEpsilon:   c.FloatEpsilon,
	}
}

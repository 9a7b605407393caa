package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/perfsmith/internal/config"
	"github.com/roach88/perfsmith/internal/report"
	"github.com/roach88/perfsmith/internal/scan"
	"github.com/roach88/perfsmith/internal/session"
	"github.com/roach88/perfsmith/internal/store"
	"github.com/roach88/perfsmith/internal/testkit"
)

// OptimizeOptions holds flags for the optimize command.
type OptimizeOptions struct {
	*RootOptions

	Function      string
	File          string
	ModuleRoot    string
	TestsRoot     string
	Framework     string
	CandidatesDir string
	All           bool
	ConfigPath    string

	TestTimeout  time.Duration
	TimeBudget   time.Duration
	GlobalBudget time.Duration
	MinSamples   int
	MaxSamples   int
	Confidence   float64
	Parallelism  int
	Journal      string

	VerifyBaseline bool

	// Epochs allows overriding the epoch token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Epochs session.EpochGenerator
}

// NewOptimizeCommand creates the optimize command.
func NewOptimizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OptimizeOptions{RootOptions: rootOpts}
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Evaluate candidate implementations and commit the winner",
		Long: `Evaluate candidate implementations of a target function.

Each candidate runs against the project's own test suite in an isolated
scratch copy of the module. Candidates that reproduce the original's
behavior are measured; a candidate is committed only when it is
statistically significantly faster than the original at the configured
confidence level. The source tree is untouched on every other outcome.

Candidates are source files in the --candidates directory, one full
replacement of the target file each; the file name (without extension)
is the candidate identifier. With --all, the directory holds one
subdirectory per target function instead.

Example:
  perfsmith optimize --function cart.Total --file cart/total.go \
    --candidates ./candidates --tests-root ./tests --journal session.db
  perfsmith optimize --all --candidates ./candidates --config perfsmith.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Function, "function", "", "qualified target function, e.g. pkg.Fn")
	cmd.Flags().StringVar(&opts.File, "file", "", "target file path, relative to the module root")
	cmd.Flags().StringVar(&opts.ModuleRoot, "module-root", defaults.ModuleRoot, "project root copied into scratch workspaces")
	cmd.Flags().StringVar(&opts.TestsRoot, "tests-root", defaults.TestsRoot, "test tree, relative to the module root")
	cmd.Flags().StringVar(&opts.Framework, "test-framework", defaults.Framework,
		fmt.Sprintf("test framework (%s)", strings.Join(testkit.SupportedFrameworks(), "|")))
	cmd.Flags().StringVar(&opts.CandidatesDir, "candidates", "", "directory of candidate source files (required)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "scan the module for every optimizable function")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to YAML session config")
	cmd.Flags().DurationVar(&opts.TestTimeout, "test-timeout", defaults.TestTimeout.Std(), "per-test wall-clock timeout")
	cmd.Flags().DurationVar(&opts.TimeBudget, "time-budget", defaults.TimeBudget.Std(), "per-scenario measurement budget")
	cmd.Flags().DurationVar(&opts.GlobalBudget, "global-budget", defaults.GlobalBudget.Std(), "wall-clock cap for the whole run (0 = no cap)")
	cmd.Flags().IntVar(&opts.MinSamples, "min-samples", defaults.MinSamples, "minimum timing samples per implementation")
	cmd.Flags().IntVar(&opts.MaxSamples, "max-samples", defaults.MaxSamples, "maximum timing samples per implementation")
	cmd.Flags().Float64Var(&opts.Confidence, "confidence", defaults.Confidence, "confidence level for the speed comparison")
	cmd.Flags().IntVar(&opts.Parallelism, "parallelism", defaults.Parallelism, "concurrent candidate workers")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite journal path (empty disables journaling)")
	cmd.Flags().BoolVar(&opts.VerifyBaseline, "verify-baseline", false, "run the original twice and require reproducible outcomes")
	_ = cmd.MarkFlagRequired("candidates")

	return cmd
}

func runOptimize(cmd *cobra.Command, opts *OptimizeOptions) error {
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return err
	}

	if _, fwErr := testkit.LookupFramework(cfg.Framework); fwErr != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", fwErr)
	}
	if !cfg.All && opts.Function == "" {
		return NewExitError(ExitCommandError, "either --function or --all is required")
	}
	if !cfg.All && opts.File == "" {
		return NewExitError(ExitCommandError, "--file is required with --function")
	}

	targets, err := resolveTargets(cfg, opts)
	if err != nil {
		return err
	}

	var journal session.Recorder
	if cfg.Journal != "" {
		st, openErr := store.Open(cfg.Journal)
		if openErr != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", openErr)
		}
		defer st.Close()
		journal = st
	}

	ctrl, err := buildController(cfg, opts, journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid session configuration", err)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()
	ctx, budgetCancel := budgetContext(ctx, cfg.GlobalBudget.Std())
	defer budgetCancel()

	var rendered []report.Target
	aborted := 0
	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}

		candidates, original, loadErr := loadTarget(cfg, opts, target)
		if loadErr != nil {
			return loadErr
		}

		rep, runErr := ctrl.Run(ctx, target, candidates)
		if runErr != nil {
			aborted++
		}

		rendered = append(rendered, report.Target{
			TargetReport: rep,
			Diff:         commitDiff(rep, original, candidates),
		})
	}

	if err := report.Render(cmd.OutOrStdout(), rendered, opts.Format); err != nil {
		return WrapExitError(ExitCommandError, "render report", err)
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewExitError(ExitFailure, fmt.Sprintf("global time budget %s exhausted after %d of %d targets",
			cfg.GlobalBudget.Std(), len(rendered), len(targets)))
	}
	if aborted > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d targets aborted", aborted, len(targets)))
	}
	return nil
}

// resolveConfig loads the config file (or defaults) and layers changed
// flags on top, so a flag always wins over the file.
func resolveConfig(cmd *cobra.Command, opts *OptimizeOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("test-framework") {
		cfg.Framework = opts.Framework
	}
	if flags.Changed("module-root") {
		cfg.ModuleRoot = opts.ModuleRoot
	}
	if flags.Changed("tests-root") {
		cfg.TestsRoot = opts.TestsRoot
	}
	if flags.Changed("all") {
		cfg.All = opts.All
	}
	if flags.Changed("test-timeout") {
		cfg.TestTimeout = config.Duration(opts.TestTimeout)
	}
	if flags.Changed("time-budget") {
		cfg.TimeBudget = config.Duration(opts.TimeBudget)
	}
	if flags.Changed("global-budget") {
		cfg.GlobalBudget = config.Duration(opts.GlobalBudget)
	}
	if flags.Changed("min-samples") {
		cfg.MinSamples = opts.MinSamples
	}
	if flags.Changed("max-samples") {
		cfg.MaxSamples = opts.MaxSamples
	}
	if flags.Changed("confidence") {
		cfg.Confidence = opts.Confidence
	}
	if flags.Changed("parallelism") {
		cfg.Parallelism = opts.Parallelism
	}
	if flags.Changed("journal") {
		cfg.Journal = opts.Journal
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// resolveTargets produces the target list: one explicit target, or every
// scanned function that has a candidate subdirectory under --all.
func resolveTargets(cfg config.Config, opts *OptimizeOptions) ([]testkit.Target, error) {
	if !cfg.All {
		return []testkit.Target{{
			Function:   opts.Function,
			File:       filepath.ToSlash(opts.File),
			ModuleRoot: cfg.ModuleRoot,
			TestsRoot:  cfg.TestsRoot,
		}}, nil
	}

	scanned, err := scan.Targets(cfg.ModuleRoot, cfg.TestsRoot)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "scan module for targets", err)
	}

	var targets []testkit.Target
	for _, target := range scanned {
		if _, statErr := os.Stat(filepath.Join(opts.CandidatesDir, target.Function)); statErr == nil {
			targets = append(targets, target)
		}
	}
	if len(targets) == 0 {
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("no scanned target has candidates under %s", opts.CandidatesDir))
	}
	return targets, nil
}

// loadTarget reads the target's candidate sources and its current
// original source (kept for the commit diff).
func loadTarget(cfg config.Config, opts *OptimizeOptions, target testkit.Target) ([]session.Candidate, []byte, error) {
	dir := opts.CandidatesDir
	if cfg.All {
		dir = filepath.Join(dir, target.Function)
	}

	candidates, err := loadCandidates(dir)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "load candidates", err)
	}

	original, err := os.ReadFile(filepath.Join(cfg.ModuleRoot, filepath.FromSlash(target.File)))
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "read target file", err)
	}
	return candidates, original, nil
}

// loadCandidates reads every regular file in dir as one candidate. The
// file name without extension is the candidate ID; os.ReadDir's sorted
// order makes IDs and downstream tie-breaking deterministic.
func loadCandidates(dir string) ([]session.Candidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var candidates []session.Candidate
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		src, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, session.Candidate{
			ID:     strings.TrimSuffix(name, filepath.Ext(name)),
			Source: src,
		})
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidate sources in %s", dir)
	}
	return candidates, nil
}

func buildController(cfg config.Config, opts *OptimizeOptions, journal session.Recorder) (*session.Controller, error) {
	factory := func(root string) (testkit.Adapter, error) {
		return testkit.NewCommandAdapter(cfg.Framework, root, cfg.TestsRoot)
	}

	epochs := opts.Epochs
	if epochs == nil {
		epochs = session.UUIDv7Generator{}
	}

	ctrlOpts := []session.Option{
		session.WithTolerance(cfg.Tolerance()),
		session.WithSamplingConfig(cfg.SamplingConfig()),
		session.WithSelectorConfig(cfg.SelectorConfig()),
		session.WithTestTimeout(cfg.TestTimeout.Std()),
		session.WithParallelism(cfg.Parallelism),
	}
	if journal != nil {
		ctrlOpts = append(ctrlOpts, session.WithJournal(journal))
	}
	if opts.VerifyBaseline {
		ctrlOpts = append(ctrlOpts, session.WithBaselineVerification())
	}

	return session.New(factory, epochs, ctrlOpts...)
}

// commitDiff renders the committed change, empty for every other state.
func commitDiff(rep session.TargetReport, original []byte, candidates []session.Candidate) string {
	if rep.State != session.StateCommitted {
		return ""
	}
	for _, cand := range candidates {
		if cand.ID == rep.Accepted {
			return report.Diff(original, cand.Source)
		}
	}
	return ""
}

// budgetContext caps the run at the global time budget. Exhaustion rides
// the same cooperative cancellation path as an interrupt, so in-flight
// workers stop and no commit can happen mid-flight. Zero means no cap.
func budgetContext(parent context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	if budget <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, budget)
}

// signalContext derives a context cancelled on SIGINT/SIGTERM, so an
// interrupt propagates as cooperative cancellation and no commit can
// happen mid-flight.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// Package report renders finished sessions for humans and machines: a
// per-target text summary with candidate fates, verdicts, scenario
// runtime annotations, and the committed diff, or the same data as JSON.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/perfsmith/internal/selector"
	"github.com/roach88/perfsmith/internal/session"
)

// Format selects the rendering.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Target pairs a terminal report with presentation-only extras the
// session itself does not carry.
type Target struct {
	session.TargetReport

	// Diff is the unified diff of the committed change, empty when
	// nothing was committed or the sources are unavailable.
	Diff string
}

// Render writes the targets in the given format.
func Render(w io.Writer, targets []Target, format string) error {
	switch format {
	case FormatText:
		return RenderText(w, targets)
	case FormatJSON:
		return RenderJSON(w, targets)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// RenderText writes the human-readable summary. The output is fully
// determined by its inputs, so golden files pin the exact layout.
func RenderText(w io.Writer, targets []Target) error {
	for i, t := range targets {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if err := renderTarget(w, t); err != nil {
			return err
		}
	}
	return nil
}

func renderTarget(w io.Writer, t Target) error {
	fmt.Fprintf(w, "=== %s: %s (epoch %s)\n", t.Target.Function, t.State, t.Epoch)

	if t.AbortReason != "" {
		fmt.Fprintf(w, "aborted: %s\n", t.AbortReason)
	}
	if t.Accepted != "" {
		fmt.Fprintf(w, "accepted: %s (%.2fx faster)\n", t.Accepted, t.Speedup)
	}

	if len(t.Candidates) > 0 {
		fmt.Fprintln(w, "candidates:")
		for _, c := range t.Candidates {
			fmt.Fprintf(w, "  %s  %s", c.ID, c.Status)
			if c.Reason != "" {
				fmt.Fprintf(w, "  (%s)", c.Reason)
			}
			fmt.Fprintln(w)
		}
	}

	if len(t.Verdicts) > 0 {
		fmt.Fprintln(w, "verdicts:")
		for _, v := range t.Verdicts {
			fmt.Fprintf(w, "  %s  %s", v.Candidate, v.Kind)
			if v.Kind == selector.KindEquivalentFaster || v.Kind == selector.KindEquivalentNotFaster {
				fmt.Fprintf(w, "  speedup=%.2f  p=%.4f", v.Speedup, v.PValue)
			}
			if v.Reason != "" {
				fmt.Fprintf(w, "  (%s)", v.Reason)
			}
			fmt.Fprintln(w)
		}
	}

	if len(t.Scenarios) > 0 {
		fmt.Fprintln(w, "scenario runtimes:")
		for _, sc := range t.Scenarios {
			fmt.Fprintf(w, "  %s  original=%s  candidate=%s\n", sc.Test, sc.OriginalBest, sc.CandidateBest)
		}
	}

	if t.Diff != "" {
		fmt.Fprintln(w, "diff:")
		for _, line := range strings.Split(strings.TrimSuffix(t.Diff, "\n"), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}

	return nil
}

package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/roach88/perfsmith/internal/selector"
)

// Wire structs keep the JSON shape stable regardless of internal
// struct changes.

type jsonReport struct {
	Target      string         `json:"target"`
	File        string         `json:"file"`
	Epoch       string         `json:"epoch"`
	State       string         `json:"state"`
	AbortReason string         `json:"abort_reason,omitempty"`
	Accepted    string         `json:"accepted,omitempty"`
	Speedup     float64        `json:"speedup,omitempty"`
	Candidates  []jsonCandidate `json:"candidates,omitempty"`
	Verdicts    []jsonVerdict  `json:"verdicts,omitempty"`
	Scenarios   []jsonScenario `json:"scenarios,omitempty"`
	Diff        string         `json:"diff,omitempty"`
}

type jsonCandidate struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type jsonVerdict struct {
	Candidate  string  `json:"candidate"`
	Kind       string  `json:"kind"`
	Speedup    float64 `json:"speedup,omitempty"`
	PValue     float64 `json:"p_value,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Variance   float64 `json:"variance,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

type jsonScenario struct {
	Test            string `json:"test"`
	OriginalBestNs  int64  `json:"original_best_ns"`
	CandidateBestNs int64  `json:"candidate_best_ns"`
}

// RenderJSON writes the targets as an indented JSON array followed by a
// trailing newline.
func RenderJSON(w io.Writer, targets []Target) error {
	out := make([]jsonReport, 0, len(targets))
	for _, t := range targets {
		out = append(out, toJSON(t))
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

func toJSON(t Target) jsonReport {
	rep := jsonReport{
		Target:      t.Target.Function,
		File:        t.Target.File,
		Epoch:       t.Epoch,
		State:       string(t.State),
		AbortReason: t.AbortReason,
		Accepted:    t.Accepted,
		Speedup:     t.Speedup,
		Diff:        t.Diff,
	}
	for _, c := range t.Candidates {
		rep.Candidates = append(rep.Candidates, jsonCandidate{
			ID:     c.ID,
			Status: string(c.Status),
			Reason: c.Reason,
		})
	}
	for _, v := range t.Verdicts {
		rep.Verdicts = append(rep.Verdicts, toJSONVerdict(v))
	}
	for _, sc := range t.Scenarios {
		rep.Scenarios = append(rep.Scenarios, jsonScenario{
			Test:            string(sc.Test),
			OriginalBestNs:  sc.OriginalBest.Nanoseconds(),
			CandidateBestNs: sc.CandidateBest.Nanoseconds(),
		})
	}
	return rep
}

func toJSONVerdict(v selector.Verdict) jsonVerdict {
	return jsonVerdict{
		Candidate:  v.Candidate,
		Kind:       string(v.Kind),
		Speedup:    v.Speedup,
		PValue:     v.PValue,
		Confidence: v.Confidence,
		Variance:   v.Variance,
		Reason:     v.Reason,
	}
}

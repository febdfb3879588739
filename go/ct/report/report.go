// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package report aggregates the verdicts of a run into a deterministic
// report and renders it for humans and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/Fantom-foundation/fvm-conformance/go/ct/verify"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
)

// ErrRunFailed is returned by Report.Err if any pair failed.
const ErrRunFailed = fvm.ConstError("conformance run failed")

// Counts summarizes the outcomes of a run.
type Counts struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Fatal   int `json:"fatal"`
	Skipped int `json:"skipped"`
}

func (c *Counts) add(outcome verify.Outcome) {
	switch outcome {
	case verify.Pass:
		c.Passed++
	case verify.Fail:
		c.Failed++
	case verify.Fatal:
		c.Fatal++
	case verify.Skipped:
		c.Skipped++
	}
}

func (c Counts) Total() int {
	return c.Passed + c.Failed + c.Fatal + c.Skipped
}

// Report is the ordered collection of all verdicts of a run.
type Report struct {
	Engine   string           `json:"engine,omitempty"`
	Counts   Counts           `json:"counts"`
	Verdicts []verify.Verdict `json:"verdicts"`
}

// New creates a report of the given verdicts, ordered by their resolution
// index independently of the order in which they were produced.
func New(engine string, verdicts []verify.Verdict) *Report {
	res := &Report{
		Engine:   engine,
		Verdicts: make([]verify.Verdict, len(verdicts)),
	}
	copy(res.Verdicts, verdicts)
	sort.SliceStable(res.Verdicts, func(i, j int) bool {
		return res.Verdicts[i].Index < res.Verdicts[j].Index
	})
	for _, verdict := range res.Verdicts {
		res.Counts.add(verdict.Outcome)
	}
	return res
}

// Failures lists the verdicts with a failing outcome.
func (r *Report) Failures() []verify.Verdict {
	res := []verify.Verdict{}
	for _, verdict := range r.Verdicts {
		if verdict.Outcome.IsFailure() {
			res = append(res, verdict)
		}
	}
	return res
}

// Err reports whether the run is considered failed. Lenient runs never
// fail.
func (r *Report) Err(lenient bool) error {
	if lenient {
		return nil
	}
	if failures := r.Counts.Failed + r.Counts.Fatal; failures > 0 {
		return fmt.Errorf("%w: %d of %d pairs failed", ErrRunFailed, failures, r.Counts.Total())
	}
	return nil
}

// WriteSummary prints the counts and details of all failing pairs.
func (r *Report) WriteSummary(out io.Writer) error {
	failures := r.Failures()
	for _, verdict := range failures {
		fmt.Fprintf(out, "----------------------------\n")
		fmt.Fprintf(out, "%v\n", verdict)
		if verdict.Mismatch != nil {
			fmt.Fprintf(out, "\t%v\n", verdict.Mismatch)
		}
		for _, note := range verdict.Notes {
			fmt.Fprintf(out, "\tnote: %s\n", note)
		}
	}
	if len(failures) > 0 {
		fmt.Fprintf(out, "----------------------------\n")
	}
	_, err := fmt.Fprintf(out, "Passed: %d, failed: %d, fatal: %d, skipped: %d, total: %d\n",
		r.Counts.Passed, r.Counts.Failed, r.Counts.Fatal, r.Counts.Skipped, r.Counts.Total())
	return err
}

func (r *Report) WriteJSON(out io.Writer) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

func ReadJSON(in io.Reader) (*Report, error) {
	var res Report
	if err := json.NewDecoder(in).Decode(&res); err != nil {
		return nil, fmt.Errorf("invalid report: %w", err)
	}
	return &res, nil
}

// Collector gathers verdicts produced concurrently by workers.
type Collector struct {
	verdicts []verify.Verdict
	counts   Counts
	mu       sync.Mutex
}

func (c *Collector) Add(verdict verify.Verdict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verdicts = append(c.verdicts, verdict)
	c.counts.add(verdict.Outcome)
}

func (c *Collector) Counts() Counts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts
}

func (c *Collector) NumFailures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts.Failed + c.counts.Fatal
}

// Report creates a report of all verdicts collected so far.
func (c *Collector) Report(engine string) *Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return New(engine, c.verdicts)
}

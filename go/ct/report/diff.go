// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package report

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Fantom-foundation/fvm-conformance/go/ct/verify"
	"github.com/nsf/jsondiff"
)

// Change is a pair whose outcome differs between two reports. Pairs
// missing in one of the reports have an empty outcome there.
type Change struct {
	Pair   string
	Before string
	After  string
}

// IsRegression is true if a pair that used to pass does not pass anymore.
func (c Change) IsRegression() bool {
	return c.Before == verify.Pass.String() && c.After != verify.Pass.String()
}

func (c Change) String() string {
	show := func(outcome string) string {
		if outcome == "" {
			return "-"
		}
		return outcome
	}
	return fmt.Sprintf("%s: %s -> %s", c.Pair, show(c.Before), show(c.After))
}

// entry is the part of a verdict that is stable between runs.
type entry struct {
	Outcome  verify.Outcome   `json:"outcome"`
	Reason   string           `json:"reason,omitempty"`
	Mismatch *verify.Mismatch `json:"mismatch,omitempty"`
}

func (r *Report) entries() map[string]entry {
	res := make(map[string]entry, len(r.Verdicts))
	for _, verdict := range r.Verdicts {
		res[verdict.VectorID+"/"+verdict.Variant] = entry{
			Outcome:  verdict.Outcome,
			Reason:   verdict.Reason,
			Mismatch: verdict.Mismatch,
		}
	}
	return res
}

// Compare lists the pairs whose outcome differs between the reports,
// sorted by pair.
func Compare(before, after *Report) []Change {
	old, current := before.entries(), after.entries()
	res := []Change{}
	for pair, entry := range old {
		if next, found := current[pair]; !found {
			res = append(res, Change{Pair: pair, Before: entry.Outcome.String()})
		} else if next.Outcome != entry.Outcome {
			res = append(res, Change{Pair: pair, Before: entry.Outcome.String(), After: next.Outcome.String()})
		}
	}
	for pair, entry := range current {
		if _, found := old[pair]; !found {
			res = append(res, Change{Pair: pair, After: entry.Outcome.String()})
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Pair < res[j].Pair })
	return res
}

// Diff renders the differences between the stable parts of two reports,
// ignoring durations and resolution indexes. The result is true if both
// reports match.
func Diff(before, after *Report) (bool, string, error) {
	a, err := json.Marshal(before.entries())
	if err != nil {
		return false, "", err
	}
	b, err := json.Marshal(after.entries())
	if err != nil {
		return false, "", err
	}
	options := jsondiff.DefaultConsoleOptions()
	difference, text := jsondiff.Compare(a, b, &options)
	return difference == jsondiff.FullMatch, text, nil
}

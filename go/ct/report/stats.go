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
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/maps"
)

// VariantStatistics counts outcomes per variant label.
type VariantStatistics struct {
	data map[string]Counts
}

// Statistics computes per-variant outcome counts of the report.
func (r *Report) Statistics() *VariantStatistics {
	res := &VariantStatistics{data: map[string]Counts{}}
	for _, verdict := range r.Verdicts {
		counts := res.data[verdict.Variant]
		counts.add(verdict.Outcome)
		res.data[verdict.Variant] = counts
	}
	return res
}

func (s *VariantStatistics) CountsFor(variant string) Counts {
	return s.data[variant]
}

func (s *VariantStatistics) String() string {
	builder := strings.Builder{}

	variants := maps.Keys(s.data)
	sort.Strings(variants)

	builder.WriteString("variant,passed,failed,fatal,skipped\n")
	for _, variant := range variants {
		counts := s.data[variant]
		builder.WriteString(fmt.Sprintf("%s,%d,%d,%d,%d\n", variant, counts.Passed, counts.Failed, counts.Fatal, counts.Skipped))
	}
	return builder.String()
}

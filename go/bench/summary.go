// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package bench

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/dsnet/golib/unitconv"
	"golang.org/x/exp/maps"
)

// Row summarizes the costs of all samples exhibiting a feature.
type Row struct {
	Category string
	Count    int
	Mean     float64
	P50, P95 float64
	Max      float64
}

// Summarize computes per-category statistics of the given samples, sorted
// by category name.
func Summarize(samples []Sample) []Row {
	costs := map[string][]float64{}
	for _, sample := range samples {
		for feature := range sample.Features {
			costs[feature] = append(costs[feature], sample.Cost)
		}
	}

	categories := maps.Keys(costs)
	sort.Strings(categories)
	res := make([]Row, 0, len(categories))
	for _, category := range categories {
		values := costs[category]
		sort.Float64s(values)
		total := 0.0
		for _, value := range values {
			total += value
		}
		p95Index := int(float64(len(values))*0.95) - 1
		if p95Index < 0 {
			p95Index = 0
		}
		res = append(res, Row{
			Category: category,
			Count:    len(values),
			Mean:     total / float64(len(values)),
			P50:      values[len(values)/2],
			P95:      values[p95Index],
			Max:      values[len(values)-1],
		})
	}
	return res
}

// PrintSummary writes the given rows as a table. Time costs are printed
// with SI prefixes, gas costs as plain numbers.
func PrintSummary(out io.Writer, rows []Row, metric Metric) error {
	format := func(value float64) string {
		if metric == MetricTime {
			return unitconv.FormatPrefix(value*1e-9, unitconv.SI, 2) + "s"
		}
		return fmt.Sprintf("%.0f", value)
	}
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "category\tcount\tmean\tp50\tp95\tmax")
	for _, row := range rows {
		fmt.Fprintf(writer, "%s\t%d\t%s\t%s\t%s\t%s\n",
			row.Category, row.Count, format(row.Mean), format(row.P50), format(row.P95), format(row.Max))
	}
	return writer.Flush()
}

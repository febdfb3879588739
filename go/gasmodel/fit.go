// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package gasmodel fits linear cost models to benchmark samples. A model
// assigns a non-negative cost to each feature category such that the cost
// of a message is the weighted sum of the costs of its features.
package gasmodel

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/Fantom-foundation/fvm-conformance/go/bench"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/exp/maps"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	ErrUnderdetermined = fvm.ConstError("underdetermined system")
	ErrIllConditioned  = fvm.ConstError("ill-conditioned system")
)

const (
	DefaultTolerance  = 1e-10
	DefaultConfidence = 0.95
)

type Options struct {
	// Tolerance bounds the reciprocal condition number of the design
	// matrix. Systems with a condition number above 1/Tolerance are
	// rejected. DefaultTolerance is used if zero.
	Tolerance float64
	// Confidence is the level of the reported confidence intervals,
	// DefaultConfidence if zero.
	Confidence float64
}

// Coefficient is the fitted cost of a single category.
type Coefficient struct {
	Category string  `json:"category"`
	Value    float64 `json:"value"`
	StdErr   float64 `json:"std_err"`
	Lower    float64 `json:"ci_lower"`
	Upper    float64 `json:"ci_upper"`
	// Pinned coefficients were fixed to zero since their unconstrained
	// fit was negative.
	Pinned bool `json:"pinned,omitempty"`
}

// CostModel is the result of a fit. Diagnostics are advisory.
type CostModel struct {
	Coefficients     []Coefficient `json:"coefficients"`
	RSS              float64       `json:"rss"`
	RSquared         float64       `json:"r_squared"`
	Samples          int           `json:"samples"`
	DegreesOfFreedom int           `json:"degrees_of_freedom"`
	Confidence       float64       `json:"confidence"`
}

// Coefficient looks up the coefficient of the given category.
func (m *CostModel) Coefficient(category string) (Coefficient, bool) {
	i := sort.Search(len(m.Coefficients), func(i int) bool {
		return m.Coefficients[i].Category >= category
	})
	if i < len(m.Coefficients) && m.Coefficients[i].Category == category {
		return m.Coefficients[i], true
	}
	return Coefficient{}, false
}

// Predict computes the modeled cost of the given features. Features
// without a coefficient do not contribute.
func (m *CostModel) Predict(features map[string]float64) float64 {
	res := 0.0
	for category, weight := range features {
		if coefficient, found := m.Coefficient(category); found {
			res += coefficient.Value * weight
		}
	}
	return res
}

// Fit computes a least squares cost model for the given samples in which
// every coefficient is non-negative. Categories whose unconstrained
// coefficient is negative are pinned to zero one at a time, the most
// negative first, until the remaining fit is non-negative.
func Fit(samples []bench.Sample, opts Options) (*CostModel, error) {
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.Confidence <= 0 || opts.Confidence >= 1 {
		opts.Confidence = DefaultConfidence
	}

	categories := categoriesOf(samples)
	if independent := countDistinctRows(samples, categories); len(categories) == 0 || len(categories) > independent {
		return nil, fmt.Errorf("%w: %d categories, %d independent samples", ErrUnderdetermined, len(categories), independent)
	}

	design := mat.NewDense(len(samples), len(categories), nil)
	costs := mat.NewVecDense(len(samples), nil)
	for i, sample := range samples {
		for j, category := range categories {
			design.Set(i, j, sample.Features[category])
		}
		costs.SetVec(i, sample.Cost)
	}

	active := make([]int, len(categories))
	for i := range active {
		active[i] = i
	}
	values := make([]float64, len(categories))
	pinned := make([]bool, len(categories))
	var current *solution
	for len(active) > 0 {
		var err error
		current, err = solve(design, costs, active, opts.Tolerance)
		if err != nil {
			return nil, err
		}
		worst := -1
		for k, value := range current.values {
			if value < 0 && (worst < 0 || value < current.values[worst]) {
				worst = k
			}
		}
		if worst < 0 {
			break
		}
		log.Debug("Pinning negative coefficient", "category", categories[active[worst]], "value", current.values[worst])
		pinned[active[worst]] = true
		active = append(active[:worst:worst], active[worst+1:]...)
		current = nil
	}
	if current != nil {
		for k, j := range active {
			values[j] = current.values[k]
		}
	}

	return diagnose(design, costs, categories, values, pinned, active, current, opts.Confidence), nil
}

// solution is the unconstrained least squares fit of the active columns.
type solution struct {
	values []float64
	// inverse is (XᵀX)⁻¹ of the active columns.
	inverse *mat.Dense
}

func solve(design *mat.Dense, costs *mat.VecDense, active []int, tolerance float64) (*solution, error) {
	rows, _ := design.Dims()
	columns := mat.NewDense(rows, len(active), nil)
	for k, j := range active {
		columns.SetCol(k, mat.Col(nil, j, design))
	}

	var qr mat.QR
	qr.Factorize(columns)
	if cond := qr.Cond(); math.IsInf(cond, 0) || math.IsNaN(cond) || cond > 1/tolerance {
		return nil, fmt.Errorf("%w: condition number %g exceeds %g", ErrIllConditioned, cond, 1/tolerance)
	}
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, costs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIllConditioned, err)
	}

	var normal, inverse mat.Dense
	normal.Mul(columns.T(), columns)
	if err := inverse.Inverse(&normal); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIllConditioned, err)
	}
	return &solution{
		values:  mat.Col(nil, 0, &beta),
		inverse: &inverse,
	}, nil
}

func diagnose(
	design *mat.Dense,
	costs *mat.VecDense,
	categories []string,
	values []float64,
	pinned []bool,
	active []int,
	fit *solution,
	confidence float64,
) *CostModel {
	var predicted mat.VecDense
	predicted.MulVec(design, mat.NewVecDense(len(values), values))

	n := costs.Len()
	mean := mat.Sum(costs) / float64(n)
	rss, tss := 0.0, 0.0
	for i := 0; i < n; i++ {
		residual := costs.AtVec(i) - predicted.AtVec(i)
		rss += residual * residual
		deviation := costs.AtVec(i) - mean
		tss += deviation * deviation
	}
	rSquared := 1.0
	if tss > 0 {
		rSquared = 1 - rss/tss
	} else if rss > 0 {
		rSquared = 0
	}

	dof := n - len(active)
	res := &CostModel{
		Coefficients:     make([]Coefficient, len(categories)),
		RSS:              rss,
		RSquared:         rSquared,
		Samples:          n,
		DegreesOfFreedom: dof,
		Confidence:       confidence,
	}
	for j, category := range categories {
		res.Coefficients[j] = Coefficient{
			Category: category,
			Value:    values[j],
			Lower:    values[j],
			Upper:    values[j],
			Pinned:   pinned[j],
		}
	}

	// Intervals require residual degrees of freedom; exactly determined
	// fits report degenerate intervals.
	if fit == nil || dof <= 0 {
		return res
	}
	variance := rss / float64(dof)
	quantile := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dof)}.Quantile(1 - (1-confidence)/2)
	for k, j := range active {
		stdErr := math.Sqrt(math.Max(variance*fit.inverse.At(k, k), 0))
		coefficient := &res.Coefficients[j]
		coefficient.StdErr = stdErr
		coefficient.Lower = coefficient.Value - quantile*stdErr
		coefficient.Upper = coefficient.Value + quantile*stdErr
	}
	return res
}

func categoriesOf(samples []bench.Sample) []string {
	set := map[string]bool{}
	for _, sample := range samples {
		for category := range sample.Features {
			set[category] = true
		}
	}
	res := maps.Keys(set)
	sort.Strings(res)
	return res
}

// countDistinctRows counts the samples with pairwise different feature
// vectors. Repeated measurements of the same input add no information on
// how costs are split among categories.
func countDistinctRows(samples []bench.Sample, categories []string) int {
	seen := map[string]bool{}
	var key strings.Builder
	for _, sample := range samples {
		key.Reset()
		for _, category := range categories {
			key.WriteString(strconv.FormatFloat(sample.Features[category], 'g', -1, 64))
			key.WriteByte(',')
		}
		seen[key.String()] = true
	}
	return len(seen)
}

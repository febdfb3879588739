// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"context"
	"regexp"
	"testing"

	"github.com/Fantom-foundation/fvm-conformance/go/bench"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/selection"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/vector"
	"github.com/Fantom-foundation/fvm-conformance/go/engine/ledger"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/Fantom-foundation/fvm-conformance/go/gasmodel"
	"github.com/stretchr/testify/require"
)

func TestCollectSamples_GasModelOfExamplesIsNonNegative(t *testing.T) {
	engine, err := fvm.NewEngine("ledger")
	require.NoError(t, err)
	vectors, err := exampleVectors(7, 20, 256)
	require.NoError(t, err)

	sampler := &bench.Sampler{Engine: engine, Repetitions: 2, Metric: bench.MetricGas}
	filter := selection.Filter{NamePattern: regexp.MustCompile("^examples/(transfer|store)$")}
	samples, err := collectSamples(context.Background(), sampler, vectors, filter, "", vector.StoreOptions{})
	require.NoError(t, err)
	require.Len(t, samples, 2*20)
	for _, sample := range samples {
		require.Equal(t, "nv21", sample.Variant)
	}

	model, err := gasmodel.Fit(samples, gasmodel.Options{})
	require.NoError(t, err)
	for _, coefficient := range model.Coefficients {
		require.GreaterOrEqual(t, coefficient.Value, 0.0, coefficient.Category)
	}
	for _, sample := range samples {
		require.InDelta(t, sample.Cost, model.Predict(sample.Features), 1e-3*sample.Cost+1e-6)
	}
	_, found := model.Coefficient(bench.MethodFeature(ledger.MethodStore))
	require.True(t, found)
}

func TestCollectSamples_VectorsLackingTheVariantAreIgnored(t *testing.T) {
	engine, err := fvm.NewEngine("ledger")
	require.NoError(t, err)
	vectors, err := exampleVectors(7, 3, 16)
	require.NoError(t, err)

	sampler := &bench.Sampler{Engine: engine, Repetitions: 2, Metric: bench.MetricGas}
	samples, err := collectSamples(context.Background(), sampler, vectors, selection.Filter{}, "nv99", vector.StoreOptions{})
	require.NoError(t, err)
	require.Empty(t, samples)
}

func TestCollectSamples_VariantsRequiringDisabledFeaturesAreIgnored(t *testing.T) {
	engine, err := fvm.NewEngine("ledger")
	require.NoError(t, err)
	vectors, err := exampleVectors(7, 3, 16)
	require.NoError(t, err)
	for _, v := range vectors {
		v.Variants[len(v.Variants)-1].Requires = []string{ledger.CapabilityNativeExecution}
	}

	sampler := &bench.Sampler{Engine: engine, Repetitions: 2, Metric: bench.MetricGas}
	samples, err := collectSamples(context.Background(), sampler, vectors, selection.Filter{}, "", vector.StoreOptions{})
	require.NoError(t, err)
	require.Empty(t, samples)

	enabled := selection.Filter{Features: map[string]bool{ledger.CapabilityNativeExecution: true}}
	samples, err = collectSamples(context.Background(), sampler, vectors, enabled, "", vector.StoreOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, samples)
}

// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package bench measures the cost of applying the messages of test vectors.
// Samples produced here are the input of the gas model calibration.
package bench

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/Fantom-foundation/fvm-conformance/go/blockstore"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/vector"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/ethereum/go-ethereum/log"
)

const ErrTooFewRepetitions = fvm.ConstError("at least two repetitions are required")

// FeatureParamBytes is the feature weighted by the size of the message
// parameters.
const FeatureParamBytes = "param_bytes"

// FeatureInvalidMessage marks messages whose header could not be decoded.
const FeatureInvalidMessage = "method:invalid"

// MethodFeature is the indicator feature of messages invoking the given
// method.
func MethodFeature(method fvm.MethodNum) string {
	return fmt.Sprintf("method:%d", method)
}

// Metric selects the cost recorded for each message.
type Metric string

const (
	MetricTime Metric = "time" // < wall clock time in nanoseconds
	MetricGas  Metric = "gas"  // < gas charged by the machine
)

func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricTime, MetricGas:
		return Metric(s), nil
	}
	return "", fmt.Errorf("unknown metric %q, supported are %q and %q", s, MetricTime, MetricGas)
}

// Sample is the cost of a single message in a single repetition.
type Sample struct {
	VectorID     string
	Variant      string
	Repetition   int
	MessageIndex int
	Method       fvm.MethodNum
	SizeBucket   string
	InputSize    int
	// Features maps cost categories to their weight in this message.
	Features map[string]float64
	Cost     float64
}

// Sampler repeatedly executes vectors to collect cost samples. Executions
// are strictly sequential.
type Sampler struct {
	Engine      fvm.Engine
	Repetitions int
	Metric      Metric
	// Clock provides timestamps for time measurements, time.Now if nil.
	Clock func() time.Time
}

// Sample executes the messages of the given vector Repetitions times, each
// time on a fresh machine and a fresh overlay of the given base store. The
// first repetition warms up caches and is not reported.
func (s *Sampler) Sample(ctx context.Context, v *vector.Vector, variant vector.Variant, base blockstore.Reader) ([]Sample, error) {
	if s.Repetitions < 2 {
		return nil, fmt.Errorf("%w, got %d", ErrTooFewRepetitions, s.Repetitions)
	}
	clock := s.Clock
	if clock == nil {
		clock = time.Now
	}

	descriptors := make([]Sample, len(v.Messages))
	for i, message := range v.Messages {
		descriptors[i] = describe(message)
		descriptors[i].VectorID = v.ID
		descriptors[i].Variant = variant.ID
		descriptors[i].MessageIndex = i
	}

	res := make([]Sample, 0, (s.Repetitions-1)*len(v.Messages))
	for rep := 0; rep < s.Repetitions; rep++ {
		runtime.GC()
		costs, err := s.run(ctx, v, variant, base, clock)
		if err != nil {
			return nil, fmt.Errorf("repetition %d of %s/%s: %w", rep, v.ID, variant.ID, err)
		}
		if rep == 0 {
			continue
		}
		for i, cost := range costs {
			sample := descriptors[i]
			sample.Repetition = rep
			sample.Cost = cost
			res = append(res, sample)
		}
	}
	log.Debug("Sampled vector", "vector", v.ID, "variant", variant.ID, "samples", len(res))
	return res, nil
}

func (s *Sampler) run(ctx context.Context, v *vector.Vector, variant vector.Variant, base blockstore.Reader, clock func() time.Time) ([]float64, error) {
	store := blockstore.NewOverlay(base)
	machine, err := s.Engine.NewMachine(ctx, v.MachineConfig(variant), store, v.Preconditions.StateRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to create machine: %w", err)
	}
	costs := make([]float64, 0, len(v.Messages))
	for i, message := range v.Messages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := clock()
		receipt, err := machine.Apply(ctx, message)
		elapsed := clock().Sub(start)
		if err != nil {
			return nil, fmt.Errorf("failed to apply message %d: %w", i, err)
		}
		if s.Metric == MetricGas {
			costs = append(costs, float64(receipt.GasUsed))
		} else {
			costs = append(costs, float64(elapsed.Nanoseconds()))
		}
	}
	if _, _, err := machine.Finish(); err != nil {
		return nil, fmt.Errorf("failed to finish machine: %w", err)
	}
	return costs, nil
}

// describe derives the features of a message from its header.
func describe(message fvm.Message) Sample {
	header, err := message.Header()
	if err != nil {
		return Sample{
			SizeBucket: SizeBucket(len(message.Bytes)),
			InputSize:  len(message.Bytes),
			Features:   map[string]float64{FeatureInvalidMessage: 1},
		}
	}
	features := map[string]float64{MethodFeature(header.Method): 1}
	if size := len(header.Params); size > 0 {
		features[FeatureParamBytes] = float64(size)
	}
	return Sample{
		Method:     header.Method,
		SizeBucket: SizeBucket(len(header.Params)),
		InputSize:  len(header.Params),
		Features:   features,
	}
}

// SizeBucket classifies input sizes into coarse labels.
func SizeBucket(size int) string {
	switch {
	case size == 0:
		return "0"
	case size <= 64:
		return "<=64"
	case size <= 1<<10:
		return "<=1KiB"
	case size <= 16<<10:
		return "<=16KiB"
	}
	return ">16KiB"
}

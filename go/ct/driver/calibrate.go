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
	"fmt"
	"io"
	"os"

	"github.com/Fantom-foundation/fvm-conformance/go/bench"
	cliUtils "github.com/Fantom-foundation/fvm-conformance/go/ct/driver/cli"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/selection"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/vector"
	"github.com/Fantom-foundation/fvm-conformance/go/gasmodel"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var CalibrateCmd = cliUtils.AddCommonFlags(cli.Command{
	Action: doCalibrate,
	Name:   "calibrate",
	Usage:  "Measure message costs and fit a non-negative gas model",
	Flags: []cli.Flag{
		cliUtils.EngineFlag,
		cliUtils.InputFlag,
		cliUtils.ExamplesFlag,
		cliUtils.SeedFlag,
		cliUtils.CountFlag,
		cliUtils.MaxArgumentFlag,
		cliUtils.FilterFlag,
		cliUtils.TagsFlag,
		cliUtils.VariantFlag,
		cliUtils.RepetitionsFlag,
		cliUtils.MetricFlag,
		cliUtils.GasPerUnitFlag,
		cliUtils.OutputFlag,
		cliUtils.PlotFlag,
		cliUtils.JobsFlag,
		cliUtils.DiskDirFlag,
	},
})

func doCalibrate(context *cli.Context) error {
	engine, engineName, err := getEngine(context)
	if err != nil {
		return err
	}
	metric, err := cliUtils.MetricFlag.Fetch(context)
	if err != nil {
		return err
	}
	gasPerUnit, err := cliUtils.GasPerUnitFlag.Fetch(context)
	if err != nil {
		return err
	}
	filter, err := buildFilter(context, engine)
	if err != nil {
		return err
	}

	vectors, err := fetchVectors(context)
	if err != nil {
		return err
	}

	sampler := &bench.Sampler{
		Engine:      engine,
		Repetitions: cliUtils.RepetitionsFlag.Fetch(context),
		Metric:      metric,
	}
	store := vector.StoreOptions{DiskDir: cliUtils.DiskDirFlag.Fetch(context)}
	samples, err := collectSamples(context.Context, sampler, vectors, filter, cliUtils.VariantFlag.Fetch(context), store)
	if err != nil {
		return err
	}

	output := cliUtils.OutputFlag.Fetch(context)
	var summary io.Writer = os.Stdout
	if output == "" {
		summary = os.Stderr
	}
	fmt.Fprintf(summary, "Collected %d samples on engine %s\n", len(samples), engineName)
	if err := bench.PrintSummary(summary, bench.Summarize(samples), metric); err != nil {
		return err
	}

	model, err := gasmodel.Fit(samples, gasmodel.Options{})
	if err != nil {
		return fmt.Errorf("calibration failed: %w", err)
	}
	calibration := gasmodel.NewCalibration(string(metric), model, gasPerUnit)
	fmt.Fprintf(summary, "Fitted %d categories, R^2 = %.4f\n", len(model.Coefficients), model.RSquared)

	if path := cliUtils.PlotFlag.Fetch(context); path != "" {
		if err := gasmodel.PlotFit(samples, model, path); err != nil {
			return err
		}
	}

	if output == "" {
		return gasmodel.WriteJSON(os.Stdout, calibration)
	}
	file, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := gasmodel.WriteJSON(file, calibration); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// collectSamples measures the messages of all vectors kept by the filter
// under the named variant, or the last declared one if empty. Vectors are
// sampled one at a time so measurements do not interfere.
func collectSamples(
	ctx context.Context,
	sampler *bench.Sampler,
	vectors []*vector.Vector,
	filter selection.Filter,
	variantID string,
	store vector.StoreOptions,
) ([]bench.Sample, error) {
	res := []bench.Sample{}
	for _, v := range vectors {
		if !filter.Selects(v) {
			continue
		}
		variant := v.Variants[len(v.Variants)-1]
		if variantID != "" {
			var found bool
			if variant, found = v.Variant(variantID); !found {
				log.Debug("Vector lacks variant", "vector", v.ID, "variant", variantID)
				continue
			}
		}
		if reason := filter.SkipReason(v, variant); reason != "" {
			log.Debug("Skipping variant", "vector", v.ID, "variant", variant.ID, "reason", reason)
			continue
		}

		snapshot, err := v.OpenStore(store)
		if err != nil {
			return nil, fmt.Errorf("failed to open archive of %s: %w", v.ID, err)
		}
		samples, err := sampler.Sample(ctx, v, variant, snapshot.Store)
		snapshot.Close()
		if err != nil {
			return nil, err
		}
		log.Info("Sampled vector", "vector", v.ID, "variant", variant.ID, "samples", len(samples))
		res = append(res, samples...)
	}
	return res, nil
}

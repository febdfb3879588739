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
	"os"
	"time"

	cliUtils "github.com/Fantom-foundation/fvm-conformance/go/ct/driver/cli"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/report"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/runner"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/selection"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/vector"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/verify"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/dsnet/golib/unitconv"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var RunCmd = cliUtils.AddCommonFlags(cli.Command{
	Action: doRun,
	Name:   "run",
	Usage:  "Replay test vectors on an engine and verify the results",
	Flags: []cli.Flag{
		cliUtils.EngineFlag,
		cliUtils.InputFlag,
		cliUtils.FilterFlag,
		cliUtils.TagsFlag,
		cliUtils.FeaturesFlag,
		cliUtils.SkipFlag,
		cliUtils.JobsFlag,
		cliUtils.FailFastFlag,
		cliUtils.TimeoutFlag,
		cliUtils.GasToleranceFlag,
		cliUtils.LenientFlag,
		cliUtils.ReportFlag,
		cliUtils.StatsFlag,
		cliUtils.DiskDirFlag,
	},
})

func doRun(context *cli.Context) error {
	engine, engineName, err := getEngine(context)
	if err != nil {
		return err
	}

	filter, err := buildFilter(context, engine)
	if err != nil {
		return err
	}

	tolerance, err := cliUtils.GasToleranceFlag.Fetch(context)
	if err != nil {
		return err
	}
	options := runner.Options{
		Store:        vector.StoreOptions{DiskDir: cliUtils.DiskDirFlag.Fetch(context)},
		Timeout:      cliUtils.TimeoutFlag.Fetch(context),
		GasTolerance: tolerance,
	}

	jobs := cliUtils.JobsFlag.Fetch(context)
	vectors, failures, err := loadInputs(context.Context, cliUtils.InputFlag.Fetch(context), jobs)
	if err != nil {
		return err
	}

	collector := &report.Collector{}
	printProgress := func(relativeTime time.Duration, rate float64, current int64) {
		fmt.Printf(
			"[t=%4d:%02d] - Processing ~%s pairs per second, total %d, skipped %d, failed %d\n",
			int(relativeTime.Seconds())/60, int(relativeTime.Seconds())%60,
			unitconv.FormatPrefix(rate, unitconv.SI, 0), current, collector.Counts().Skipped, collector.NumFailures(),
		)
	}
	pool := runner.PoolConfig{
		Jobs:     jobs,
		FailFast: cliUtils.FailFastFlag.Fetch(context),
		Progress: printProgress,
	}

	fmt.Printf("Running %d vectors on engine %s ...\n", len(vectors), engineName)
	res := runVectors(context.Context, engine, engineName, vectors, failures, filter, options, pool, collector)

	if err := res.WriteSummary(os.Stdout); err != nil {
		return err
	}
	if cliUtils.StatsFlag.Fetch(context) {
		fmt.Print(res.Statistics())
	}
	if path := cliUtils.ReportFlag.Fetch(context); path != "" {
		if err := writeReport(path, res); err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", path)
	}
	return res.Err(cliUtils.LenientFlag.Fetch(context))
}

// buildFilter combines the selection flags with the capabilities of the
// engine.
func buildFilter(context *cli.Context, engine fvm.Engine) (selection.Filter, error) {
	namePattern, err := cliUtils.FilterFlag.Fetch(context)
	if err != nil {
		return selection.Filter{}, err
	}
	tags, err := cliUtils.TagsFlag.Fetch(context)
	if err != nil {
		return selection.Filter{}, err
	}

	features := map[string]bool{}
	for _, feature := range capabilities(engine) {
		features[feature] = true
	}
	for _, feature := range cliUtils.FeaturesFlag.Fetch(context) {
		features[feature] = true
	}
	skipList := map[string]bool{}
	for _, id := range cliUtils.SkipFlag.Fetch(context) {
		skipList[id] = true
	}

	return selection.Filter{
		NamePattern:  namePattern,
		TagPredicate: tags,
		Features:     features,
		SkipList:     skipList,
	}, nil
}

// runVectors resolves the work list of the given vectors, runs it, and
// reports the verdicts of all pairs followed by those of files that could
// not be loaded. All verdicts end up in the collector, including those of
// pairs never started after an abort.
func runVectors(
	ctx context.Context,
	engine fvm.Engine,
	engineName string,
	vectors []*vector.Vector,
	failures []loadFailure,
	filter selection.Filter,
	options runner.Options,
	pool runner.PoolConfig,
	collector *report.Collector,
) *report.Report {
	work := selection.Resolve(vectors, filter)
	log.Info("Resolved work list", "vectors", len(vectors), "pairs", len(work))

	started := make([]bool, len(work))
	verdicts := runner.ForEach(ctx, work, pool, func(ctx context.Context, sel selection.Selection) verify.Verdict {
		started[sel.Index] = true
		verdict := runner.RunPair(ctx, engine, sel, options)
		if verdict.Outcome.IsFailure() {
			log.Warn("Pair failed", "pair", sel, "outcome", verdict.Outcome, "reason", verdict.Reason)
		}
		collector.Add(verdict)
		return verdict
	})

	for i, verdict := range verdicts {
		if !started[i] {
			collector.Add(verdict)
		}
	}
	for i, failure := range failures {
		collector.Add(failure.verdict(len(work) + i))
	}
	return collector.Report(engineName)
}

func writeReport(path string, res *report.Report) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := res.WriteJSON(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

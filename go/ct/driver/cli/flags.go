// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package cliUtils

import (
	"fmt"
	"regexp"
	"runtime"
	"time"

	"github.com/Fantom-foundation/fvm-conformance/go/bench"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/selection"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

type engineFlagType struct {
	cli.StringFlag
}

var EngineFlag = &engineFlagType{
	cli.StringFlag{
		Name:    "engine",
		Aliases: []string{"e"},
		Usage:   "name of the registered engine to run vectors on",
		Value:   "ledger",
	},
}

// Fetch creates the selected engine.
func (f *engineFlagType) Fetch(context *cli.Context) (fvm.Engine, error) {
	return fvm.NewEngine(context.String(f.Name))
}

type inputFlagType struct {
	cli.StringSliceFlag
}

var InputFlag = &inputFlagType{
	cli.StringSliceFlag{
		Name:      "input",
		Aliases:   []string{"i"},
		Usage:     "vector file, or directory of vector files (recursively)",
		Value:     cli.NewStringSlice("./vectors"),
		TakesFile: true,
	},
}

func (f *inputFlagType) Fetch(context *cli.Context) []string {
	return context.StringSlice(f.Name)
}

type filterFlagType struct {
	cli.StringFlag
}

var FilterFlag = &filterFlagType{
	cli.StringFlag{
		Name:    "filter",
		Aliases: []string{"f"},
		Usage:   "execute only vectors which id matches the given regex",
		Value:   "",
	},
}

func (f *filterFlagType) Fetch(context *cli.Context) (*regexp.Regexp, error) {
	return regexp.Compile(context.String(f.Name))
}

type tagsFlagType struct {
	cli.StringFlag
}

var TagsFlag = &tagsFlagType{
	cli.StringFlag{
		Name:    "tags",
		Aliases: []string{"t"},
		Usage:   "execute only vectors which selector tags satisfy the given predicate, e.g. 'transfer && !slow'",
	},
}

func (f *tagsFlagType) Fetch(context *cli.Context) (selection.Predicate, error) {
	return selection.ParsePredicate(context.String(f.Name))
}

type featuresFlagType struct {
	cli.StringSliceFlag
}

var FeaturesFlag = &featuresFlagType{
	cli.StringSliceFlag{
		Name:  "features",
		Usage: "capabilities enabled in addition to those reported by the engine",
	},
}

func (f *featuresFlagType) Fetch(context *cli.Context) []string {
	return context.StringSlice(f.Name)
}

type skipFlagType struct {
	cli.StringSliceFlag
}

var SkipFlag = &skipFlagType{
	cli.StringSliceFlag{
		Name:  "skip",
		Usage: "ids of vectors to skip",
	},
}

func (f *skipFlagType) Fetch(context *cli.Context) []string {
	return context.StringSlice(f.Name)
}

type jobsFlagType struct {
	cli.IntFlag
}

var JobsFlag = &jobsFlagType{
	cli.IntFlag{
		Name:    "jobs",
		Aliases: []string{"j"},
		Usage:   "number of jobs run simultaneously",
		Value:   runtime.NumCPU(),
	},
}

func (f *jobsFlagType) Fetch(context *cli.Context) int {
	return context.Int(f.Name)
}

type failFastFlagType struct {
	cli.BoolFlag
}

var FailFastFlag = &failFastFlagType{
	cli.BoolFlag{
		Name:  "fail-fast",
		Usage: "stop dispatching vectors after the first failure",
	},
}

func (f *failFastFlagType) Fetch(context *cli.Context) bool {
	return context.Bool(f.Name)
}

type timeoutFlagType struct {
	cli.DurationFlag
}

var TimeoutFlag = &timeoutFlagType{
	cli.DurationFlag{
		Name:  "timeout",
		Usage: "time budget of a single vector and variant, 0 for no limit",
		Value: time.Minute,
	},
}

func (f *timeoutFlagType) Fetch(context *cli.Context) time.Duration {
	return context.Duration(f.Name)
}

type gasToleranceFlagType struct {
	cli.Int64Flag
}

var GasToleranceFlag = &gasToleranceFlagType{
	cli.Int64Flag{
		Name:  "gas-tolerance",
		Usage: "accepted absolute gas deviation, overriding the tolerance declared by vectors",
	},
}

// Fetch returns nil if the flag is not set.
func (f *gasToleranceFlagType) Fetch(context *cli.Context) (*fvm.Gas, error) {
	if !context.IsSet(f.Name) {
		return nil, nil
	}
	value := context.Int64(f.Name)
	if value < 0 {
		return nil, fmt.Errorf("gas tolerance must not be negative, got %d", value)
	}
	res := fvm.Gas(value)
	return &res, nil
}

type lenientFlagType struct {
	cli.BoolFlag
}

var LenientFlag = &lenientFlagType{
	cli.BoolFlag{
		Name:  "lenient",
		Usage: "exit successfully even if vectors fail",
	},
}

func (f *lenientFlagType) Fetch(context *cli.Context) bool {
	return context.Bool(f.Name)
}

type repetitionsFlagType struct {
	cli.IntFlag
}

var RepetitionsFlag = &repetitionsFlagType{
	cli.IntFlag{
		Name:    "repetitions",
		Aliases: []string{"r"},
		Usage:   "number of executions per vector, the first one is discarded",
		Value:   5,
	},
}

func (f *repetitionsFlagType) Fetch(context *cli.Context) int {
	return context.Int(f.Name)
}

type seedFlagType struct {
	cli.Uint64Flag
}

var SeedFlag = &seedFlagType{
	cli.Uint64Flag{
		Name:    "seed",
		Aliases: []string{"s"},
		Usage:   "seed for the random number generator",
	},
}

func (f *seedFlagType) Fetch(context *cli.Context) uint64 {
	return context.Uint64(f.Name)
}

type metricFlagType struct {
	cli.StringFlag
}

var MetricFlag = &metricFlagType{
	cli.StringFlag{
		Name:  "metric",
		Usage: "cost recorded per message, 'time' or 'gas'",
		Value: string(bench.MetricTime),
	},
}

func (f *metricFlagType) Fetch(context *cli.Context) (bench.Metric, error) {
	return bench.ParseMetric(context.String(f.Name))
}

type gasPerUnitFlagType struct {
	cli.StringFlag
}

var GasPerUnitFlag = &gasPerUnitFlagType{
	cli.StringFlag{
		Name:  "gas-per-unit",
		Usage: "gas charged per unit of the measured cost, e.g. per nanosecond",
		Value: "10",
	},
}

func (f *gasPerUnitFlagType) Fetch(context *cli.Context) (decimal.Decimal, error) {
	res, err := decimal.NewFromString(context.String(f.Name))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid gas per unit: %w", err)
	}
	if res.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("gas per unit must not be negative, got %v", res)
	}
	return res, nil
}

type variantFlagType struct {
	cli.StringFlag
}

var VariantFlag = &variantFlagType{
	cli.StringFlag{
		Name:  "variant",
		Usage: "variant to execute, the last declared variant of each vector if empty",
	},
}

func (f *variantFlagType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

type outputFlagType struct {
	cli.StringFlag
}

var OutputFlag = &outputFlagType{
	cli.StringFlag{
		Name:      "output",
		Aliases:   []string{"o"},
		Usage:     "file or directory results are written to",
		TakesFile: true,
	},
}

func (f *outputFlagType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

type reportFlagType struct {
	cli.StringFlag
}

var ReportFlag = &reportFlagType{
	cli.StringFlag{
		Name:      "report",
		Usage:     "write a JSON report of all verdicts to the given file",
		TakesFile: true,
	},
}

func (f *reportFlagType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

type diskDirFlagType struct {
	cli.StringFlag
}

var DiskDirFlag = &diskDirFlagType{
	cli.StringFlag{
		Name:      "disk-dir",
		Usage:     "unpack compressed archives into on-disk stores below the given directory",
		TakesFile: true,
	},
}

func (f *diskDirFlagType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

type cpuProfileType struct {
	cli.StringFlag
}

var CpuProfileFlag = &cpuProfileType{
	cli.StringFlag{
		Name:      "cpuprofile",
		Usage:     "store CPU profile in the provided filename",
		TakesFile: true,
	},
}

func (f *cpuProfileType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

type verbosityFlagType struct {
	cli.IntFlag
}

var VerbosityFlag = &verbosityFlagType{
	cli.IntFlag{
		Name:  "verbosity",
		Usage: "log level, 0=crit, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value: 2,
	},
}

func (f *verbosityFlagType) Fetch(context *cli.Context) int {
	return context.Int(f.Name)
}

type statsFlagType struct {
	cli.BoolFlag
}

var StatsFlag = &statsFlagType{
	cli.BoolFlag{
		Name:  "stats",
		Usage: "print outcome counts per variant as CSV",
	},
}

func (f *statsFlagType) Fetch(context *cli.Context) bool {
	return context.Bool(f.Name)
}

type examplesFlagType struct {
	cli.BoolFlag
}

var ExamplesFlag = &examplesFlagType{
	cli.BoolFlag{
		Name:  "examples",
		Usage: "use vectors of the built-in example workloads instead of input files",
	},
}

func (f *examplesFlagType) Fetch(context *cli.Context) bool {
	return context.Bool(f.Name)
}

type countFlagType struct {
	cli.IntFlag
}

var CountFlag = &countFlagType{
	cli.IntFlag{
		Name:    "count",
		Aliases: []string{"n"},
		Usage:   "number of messages per example vector",
		Value:   20,
	},
}

func (f *countFlagType) Fetch(context *cli.Context) int {
	return context.Int(f.Name)
}

type maxArgumentFlagType struct {
	cli.IntFlag
}

var MaxArgumentFlag = &maxArgumentFlagType{
	cli.IntFlag{
		Name:  "max-argument",
		Usage: "largest argument of generated example messages",
		Value: 4096,
	},
}

func (f *maxArgumentFlagType) Fetch(context *cli.Context) int {
	return context.Int(f.Name)
}

type plotFlagType struct {
	cli.StringFlag
}

var PlotFlag = &plotFlagType{
	cli.StringFlag{
		Name:      "plot",
		Usage:     "render observed against predicted costs into the given image file",
		TakesFile: true,
	},
}

func (f *plotFlagType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

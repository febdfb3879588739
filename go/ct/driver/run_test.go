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
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	cliUtils "github.com/Fantom-foundation/fvm-conformance/go/ct/driver/cli"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/report"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/runner"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/selection"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/verify"
	"github.com/Fantom-foundation/fvm-conformance/go/examples"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/urfave/cli/v2"
)

// writeExampleVectors records vectors of all example workloads on the
// ledger engine into the given directory.
func writeExampleVectors(t *testing.T, dir string) ([]string, error) {
	t.Helper()
	engine, err := fvm.NewEngine("ledger")
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	vectors, err := exampleVectors(42, 3, 64)
	if err != nil {
		return nil, err
	}
	return recordVectors(context.Background(), engine, vectors, "", runner.Options{Timeout: time.Minute}, dir)
}

func TestRunVectors_RecordedExamplesPass(t *testing.T) {
	dir := t.TempDir()
	files, err := writeExampleVectors(t, dir)
	if err != nil {
		t.Fatalf("failed to record vectors: %v", err)
	}
	if want, got := len(examples.GetAllExamples()), len(files); want != got {
		t.Fatalf("unexpected number of recorded vectors, wanted %d, got %d", want, got)
	}

	vectors, failures, err := loadInputs(context.Background(), []string{dir}, 4)
	if err != nil || len(failures) != 0 {
		t.Fatalf("failed to load recorded vectors: %v, %v", err, failures)
	}

	engine, err := fvm.NewEngine("ledger")
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	res := runVectors(
		context.Background(), engine, "ledger", vectors, nil,
		selection.Filter{}, runner.Options{}, runner.PoolConfig{Jobs: 4},
		&report.Collector{},
	)

	counts := res.Statistics().CountsFor("nv21")
	if want, got := len(vectors), counts.Passed; want != got {
		t.Errorf("unexpected number of passing pairs on the recorded variant, wanted %d, got %d\n%v", want, got, res.Failures())
	}
	if want, got := 2*len(vectors), res.Counts.Total(); want != got {
		t.Errorf("unexpected number of verdicts, wanted %d, got %d", want, got)
	}
	if res.Counts.Fatal != 0 {
		t.Errorf("unexpected fatal verdicts: %v", res.Failures())
	}
}

func TestRunVectors_FilterAndLoadFailuresAreReported(t *testing.T) {
	dir := t.TempDir()
	if _, err := writeExampleVectors(t, dir); err != nil {
		t.Fatalf("failed to record vectors: %v", err)
	}
	vectors, _, err := loadInputs(context.Background(), []string{dir}, 1)
	if err != nil {
		t.Fatalf("failed to load vectors: %v", err)
	}

	engine, err := fvm.NewEngine("ledger")
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	failures := []loadFailure{{path: filepath.Join(dir, "broken.json"), err: errBroken}}
	filter := selection.Filter{
		NamePattern: regexp.MustCompile("transfer"),
		SkipList:    map[string]bool{"examples/transfer": true},
	}
	collector := &report.Collector{}
	res := runVectors(context.Background(), engine, "ledger", vectors, failures, filter,
		runner.Options{}, runner.PoolConfig{Jobs: 2}, collector)

	if want, got := (report.Counts{Skipped: 2, Failed: 1}), res.Counts; want != got {
		t.Errorf("unexpected counts, wanted %+v, got %+v", want, got)
	}
	if want, got := 2, collector.Counts().Skipped; want != got {
		t.Errorf("collector missed verdicts, wanted %d skipped, got %d", want, got)
	}
	last := res.Verdicts[len(res.Verdicts)-1]
	if want, got := 2, last.Index; want != got {
		t.Errorf("load failures should follow the work list, wanted index %d, got %d", want, got)
	}
	if want, got := verify.Fail, last.Outcome; want != got {
		t.Errorf("unexpected outcome of load failure, wanted %v, got %v", want, got)
	}
	if !strings.Contains(last.Reason, errBroken.Error()) {
		t.Errorf("unexpected reason %q", last.Reason)
	}
	if err := res.Err(false); err == nil {
		t.Errorf("run with failures should fail")
	}
	if err := res.Err(true); err != nil {
		t.Errorf("lenient run should not fail, got %v", err)
	}
}

func TestRunVectors_PairsNotStartedAfterAbortReachTheCollector(t *testing.T) {
	vectors, err := exampleVectors(3, 2, 16)
	if err != nil {
		t.Fatalf("failed to create vectors: %v", err)
	}
	engine, err := fvm.NewEngine("ledger")
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	failures := []loadFailure{{path: "broken.json", err: errBroken}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	collector := &report.Collector{}
	res := runVectors(ctx, engine, "ledger", vectors, failures, selection.Filter{},
		runner.Options{}, runner.PoolConfig{Jobs: 2}, collector)

	numPairs := len(selection.Resolve(vectors, selection.Filter{}))
	if want, got := (report.Counts{Skipped: numPairs, Failed: 1}), res.Counts; want != got {
		t.Errorf("unexpected counts, wanted %+v, got %+v", want, got)
	}
	if want, got := res.Counts, collector.Counts(); want != got {
		t.Errorf("collector out of sync with report, wanted %+v, got %+v", want, got)
	}
	if want, got := 1, collector.NumFailures(); want != got {
		t.Errorf("unexpected number of failures, wanted %d, got %d", want, got)
	}
	for _, verdict := range res.Verdicts[:numPairs] {
		if want, got := runner.ReasonAborted, verdict.Reason; want != got {
			t.Errorf("unexpected reason for %s, wanted %q, got %q", verdict.VectorID, want, got)
		}
	}
	if want, got := "ledger", res.Engine; want != got {
		t.Errorf("unexpected engine, wanted %s, got %s", want, got)
	}
}

const errBroken = fvm.ConstError("broken manifest")

func TestPrintWorkList_ListsSkipReasons(t *testing.T) {
	vectors, err := exampleVectors(1, 1, 8)
	if err != nil {
		t.Fatalf("failed to create vectors: %v", err)
	}
	filter := selection.Filter{
		NamePattern: regexp.MustCompile("^examples/(hash|store)$"),
		SkipList:    map[string]bool{"examples/store": true},
	}

	var out strings.Builder
	if err := printWorkList(&out, selection.Resolve(vectors, filter)); err != nil {
		t.Fatalf("failed to print work list: %v", err)
	}
	want := "examples/store/nv20 (skipped: skipped)\n" +
		"examples/store/nv21 (skipped: skipped)\n" +
		"examples/hash/nv20\n" +
		"examples/hash/nv21\n"
	if got := out.String(); want != got {
		t.Errorf("unexpected work list, wanted\n%s\ngot\n%s", want, got)
	}
}

func TestRecordVectors_UnknownVariantIsAnError(t *testing.T) {
	engine, err := fvm.NewEngine("ledger")
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	vectors, err := exampleVectors(1, 1, 8)
	if err != nil {
		t.Fatalf("failed to create vectors: %v", err)
	}
	if _, err := recordVectors(context.Background(), engine, vectors, "nv99", runner.Options{}, t.TempDir()); err == nil {
		t.Errorf("recording an unknown variant should fail")
	}
}

func TestFileName_ReplacesSeparators(t *testing.T) {
	if want, got := "examples_transfer.json", fileName("examples/transfer"); want != got {
		t.Errorf("unexpected file name, wanted %s, got %s", want, got)
	}
}

func TestGetEngine_UnknownEngineListsRegisteredEngines(t *testing.T) {
	var err error
	app := &cli.App{
		Flags: []cli.Flag{cliUtils.EngineFlag},
		Action: func(ctx *cli.Context) error {
			_, _, err = getEngine(ctx)
			return nil
		},
	}
	if runErr := app.Run([]string{"driver", "--engine", "unknown"}); runErr != nil {
		t.Fatalf("failed to run app: %v", runErr)
	}
	if err == nil {
		t.Fatalf("unknown engine should be reported")
	}
	if !strings.Contains(err.Error(), "ledger") {
		t.Errorf("error should list registered engines, got %v", err)
	}
}

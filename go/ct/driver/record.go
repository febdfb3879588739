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
	"path/filepath"
	"strings"

	cliUtils "github.com/Fantom-foundation/fvm-conformance/go/ct/driver/cli"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/runner"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/vector"
	"github.com/Fantom-foundation/fvm-conformance/go/examples"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"pgregory.net/rand"
)

var RecordCmd = cliUtils.AddCommonFlags(cli.Command{
	Action: doRecord,
	Name:   "record",
	Usage:  "Execute vectors on an engine and store the observed results as their expectations",
	Flags: []cli.Flag{
		cliUtils.EngineFlag,
		cliUtils.InputFlag,
		cliUtils.ExamplesFlag,
		cliUtils.SeedFlag,
		cliUtils.CountFlag,
		cliUtils.MaxArgumentFlag,
		cliUtils.VariantFlag,
		cliUtils.OutputFlag,
		cliUtils.TimeoutFlag,
		cliUtils.JobsFlag,
		cliUtils.DiskDirFlag,
	},
})

func doRecord(context *cli.Context) error {
	engine, engineName, err := getEngine(context)
	if err != nil {
		return err
	}

	outDir := cliUtils.OutputFlag.Fetch(context)
	if outDir == "" {
		return fmt.Errorf("missing output directory, use --%s", cliUtils.OutputFlag.Name)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	vectors, err := fetchVectors(context)
	if err != nil {
		return err
	}

	options := runner.Options{
		Store:   vector.StoreOptions{DiskDir: cliUtils.DiskDirFlag.Fetch(context)},
		Timeout: cliUtils.TimeoutFlag.Fetch(context),
	}
	files, err := recordVectors(context.Context, engine, vectors, cliUtils.VariantFlag.Fetch(context), options, outDir)
	if err != nil {
		return err
	}
	fmt.Printf("Recorded %d vectors on engine %s into %s\n", len(files), engineName, outDir)
	return nil
}

// fetchVectors loads the vectors named on the command line, or generates
// vectors of the example workloads if requested. Inputs are read as
// templates since neither recording nor sampling checks postconditions.
// Vectors that fail to load abort the command.
func fetchVectors(context *cli.Context) ([]*vector.Vector, error) {
	if cliUtils.ExamplesFlag.Fetch(context) {
		return exampleVectors(
			cliUtils.SeedFlag.Fetch(context),
			cliUtils.CountFlag.Fetch(context),
			cliUtils.MaxArgumentFlag.Fetch(context),
		)
	}
	vectors, failures, err := loadTemplates(context.Context, cliUtils.InputFlag.Fetch(context), cliUtils.JobsFlag.Fetch(context))
	if err != nil {
		return nil, err
	}
	if len(failures) > 0 {
		return nil, fmt.Errorf("failed to load %s: %w", failures[0].path, failures[0].err)
	}
	return vectors, nil
}

// exampleVectors creates one vector per example workload with randomly
// drawn arguments.
func exampleVectors(seed uint64, count, maxArgument int) ([]*vector.Vector, error) {
	rnd := rand.New(seed)
	res := []*vector.Vector{}
	for _, example := range examples.GetAllExamples() {
		v, err := example.RandomVector(rnd, count, maxArgument)
		if err != nil {
			return nil, fmt.Errorf("failed to create vector of example %s: %w", example.Name, err)
		}
		res = append(res, v)
	}
	return res, nil
}

// recordVectors records the given vectors under the named variant, or the
// last declared variant if empty, and writes the results into outDir.
func recordVectors(
	ctx context.Context,
	engine fvm.Engine,
	vectors []*vector.Vector,
	variantID string,
	options runner.Options,
	outDir string,
) ([]string, error) {
	files := make([]string, 0, len(vectors))
	for _, v := range vectors {
		variant := v.Variants[len(v.Variants)-1]
		if variantID != "" {
			var found bool
			if variant, found = v.Variant(variantID); !found {
				return nil, fmt.Errorf("vector %s has no variant %s", v.ID, variantID)
			}
		}

		recorded, err := runner.Record(ctx, engine, v, variant, options)
		if err != nil {
			return nil, err
		}
		if ref := recorded.Archive.Ref; ref != "" && !filepath.IsAbs(ref) && v.Path != "" {
			recorded.Archive.Ref = relocate(filepath.Join(filepath.Dir(v.Path), ref), outDir)
		}

		data, err := vector.Encode(recorded)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", v.ID, err)
		}
		path := filepath.Join(outDir, fileName(v.ID))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, err
		}
		log.Info("Recorded vector", "vector", v.ID, "variant", variant.ID, "file", path)
		files = append(files, path)
	}
	return files, nil
}

// relocate expresses the given archive path relative to dir if possible.
func relocate(path, dir string) string {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return path
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return absPath
	}
	return rel
}

func fileName(id string) string {
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(id) + ".json"
}

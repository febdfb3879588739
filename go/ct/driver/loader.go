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
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/Fantom-foundation/fvm-conformance/go/ct/vector"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/verify"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"
)

// enumerateInputs lists the vector files named by the given inputs. Files
// are taken as given, directories are searched recursively for manifests.
func enumerateInputs(inputs []string) ([]string, error) {
	var inputFiles []string

	for _, input := range inputs {
		path, err := filepath.Abs(input)
		if err != nil {
			return nil, err
		}

		stat, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !stat.IsDir() {
			inputFiles = append(inputFiles, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}

		for _, entry := range entries {
			filePath := filepath.Join(path, entry.Name())
			if entry.IsDir() {
				recInputs, err := enumerateInputs([]string{filePath})
				if err != nil {
					return nil, err
				}
				inputFiles = append(inputFiles, recInputs...)
			} else if strings.HasSuffix(entry.Name(), ".json") {
				inputFiles = append(inputFiles, filePath)
			}
		}
	}

	return inputFiles, nil
}

// loadFailure is a vector file that could not be decoded.
type loadFailure struct {
	path string
	err  error
}

// verdict reports the failure as the result of the file. Manifests of an
// unsupported format version are skipped, all other failures fail.
func (f loadFailure) verdict(index int) verify.Verdict {
	outcome := verify.Fail
	if errors.Is(f.err, vector.ErrUnsupportedFormatVersion) {
		outcome = verify.Skipped
	}
	return verify.Verdict{
		Index:    index,
		VectorID: f.path,
		Outcome:  outcome,
		Reason:   f.err.Error(),
	}
}

// loadVectors decodes the given files using up to jobs goroutines. The
// resulting vectors are in the order of the files. Files that can not be
// decoded by load are reported as failures instead of aborting the load.
func loadVectors(ctx context.Context, files []string, jobs int, load func(string) (*vector.Vector, error)) ([]*vector.Vector, []loadFailure, error) {
	vectors := make([]*vector.Vector, len(files))
	errs := make([]error, len(files))

	group, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		group.SetLimit(jobs)
	}
	for i, file := range files {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			vectors[i], errs[i] = load(file)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	loaded := make([]*vector.Vector, 0, len(files))
	var failures []loadFailure
	for i, file := range files {
		if errs[i] != nil {
			log.Warn("Failed to load vector", "file", file, "err", errs[i])
			failures = append(failures, loadFailure{path: file, err: errs[i]})
			continue
		}
		loaded = append(loaded, vectors[i])
	}
	log.Info("Loaded vectors", "files", len(files), "vectors", len(loaded), "failures", len(failures))
	return loaded, failures, nil
}

// loadInputs enumerates and loads the given inputs.
func loadInputs(ctx context.Context, inputs []string, jobs int) ([]*vector.Vector, []loadFailure, error) {
	files, err := enumerateInputs(inputs)
	if err != nil {
		return nil, nil, err
	}
	return loadVectors(ctx, files, jobs, vector.LoadFile)
}

// loadTemplates enumerates and loads the given inputs as templates, which
// may lack postconditions.
func loadTemplates(ctx context.Context, inputs []string, jobs int) ([]*vector.Vector, []loadFailure, error) {
	files, err := enumerateInputs(inputs)
	if err != nil {
		return nil, nil, err
	}
	return loadVectors(ctx, files, jobs, vector.LoadTemplateFile)
}

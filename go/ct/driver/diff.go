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
	"fmt"
	"os"

	cliUtils "github.com/Fantom-foundation/fvm-conformance/go/ct/driver/cli"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/report"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/urfave/cli/v2"
)

// ErrRegression is reported by the diff command if a pair got worse.
const ErrRegression = fvm.ConstError("regression detected")

var DiffCmd = cliUtils.AddCommonFlags(cli.Command{
	Action:    doDiff,
	Name:      "diff",
	Usage:     "Compare two JSON run reports and fail on regressions",
	ArgsUsage: "<before> <after>",
	Flags: []cli.Flag{
		cliUtils.LenientFlag,
	},
})

func doDiff(context *cli.Context) error {
	if context.Args().Len() != 2 {
		return fmt.Errorf("expected two report files, got %d arguments", context.Args().Len())
	}
	before, err := readReport(context.Args().Get(0))
	if err != nil {
		return err
	}
	after, err := readReport(context.Args().Get(1))
	if err != nil {
		return err
	}

	equal, text, err := report.Diff(before, after)
	if err != nil {
		return err
	}
	if equal {
		fmt.Println("Reports are equivalent")
		return nil
	}
	fmt.Println(text)

	regressions := 0
	for _, change := range report.Compare(before, after) {
		marker := " "
		if change.IsRegression() {
			marker = "!"
			regressions++
		}
		fmt.Printf("%s %v\n", marker, change)
	}
	if regressions > 0 && !cliUtils.LenientFlag.Fetch(context) {
		return fmt.Errorf("%w: %d pairs", ErrRegression, regressions)
	}
	return nil
}

func readReport(path string) (*report.Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	res, err := report.ReadJSON(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

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
	"io"
	"os"

	cliUtils "github.com/Fantom-foundation/fvm-conformance/go/ct/driver/cli"
	"github.com/Fantom-foundation/fvm-conformance/go/ct/selection"
	"github.com/urfave/cli/v2"
)

var ListCmd = cliUtils.AddCommonFlags(cli.Command{
	Action: doList,
	Name:   "list",
	Usage:  "List the (vector, variant) pairs a run would execute",
	Flags: []cli.Flag{
		cliUtils.EngineFlag,
		cliUtils.InputFlag,
		cliUtils.FilterFlag,
		cliUtils.TagsFlag,
		cliUtils.FeaturesFlag,
		cliUtils.SkipFlag,
		cliUtils.JobsFlag,
	},
})

func doList(context *cli.Context) error {
	engine, _, err := getEngine(context)
	if err != nil {
		return err
	}
	filter, err := buildFilter(context, engine)
	if err != nil {
		return err
	}

	vectors, failures, err := loadInputs(context.Context, cliUtils.InputFlag.Fetch(context), cliUtils.JobsFlag.Fetch(context))
	if err != nil {
		return err
	}
	for _, failure := range failures {
		fmt.Fprintf(os.Stderr, "%s: %v\n", failure.path, failure.err)
	}
	return printWorkList(os.Stdout, selection.Resolve(vectors, filter))
}

func printWorkList(out io.Writer, work []selection.Selection) error {
	for _, sel := range work {
		line := sel.String()
		if sel.Skip != "" {
			line += " (skipped: " + sel.Skip + ")"
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

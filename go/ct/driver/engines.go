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
	"slices"

	cliUtils "github.com/Fantom-foundation/fvm-conformance/go/ct/driver/cli"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/maps"

	// Engines available to the driver.
	_ "github.com/Fantom-foundation/fvm-conformance/go/engine/ledger"
)

var EnginesCmd = cli.Command{
	Action: doEngines,
	Name:   "engines",
	Usage:  "List all registered engines and their capabilities",
}

func doEngines(context *cli.Context) error {
	for _, name := range registeredEngines() {
		engine, err := fvm.NewEngine(name)
		if err != nil {
			return err
		}
		fmt.Printf("%s %v\n", name, capabilities(engine))
	}
	return nil
}

// getEngine creates the engine selected on the command line.
func getEngine(context *cli.Context) (fvm.Engine, string, error) {
	name := context.String(cliUtils.EngineFlag.Name)
	engine, err := cliUtils.EngineFlag.Fetch(context)
	if err != nil {
		return nil, "", fmt.Errorf("invalid engine identifier %q, use one of: %v", name, registeredEngines())
	}
	return engine, name, nil
}

func registeredEngines() []string {
	res := maps.Keys(fvm.GetAllRegisteredEngines())
	slices.Sort(res)
	return res
}

// capabilities lists the features the given engine reports, if any.
func capabilities(engine fvm.Engine) []string {
	reporter, ok := engine.(fvm.CapabilityReporter)
	if !ok {
		return nil
	}
	res := slices.Clone(reporter.Capabilities())
	slices.Sort(res)
	return res
}

// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package examples

import (
	"github.com/Fantom-foundation/fvm-conformance/go/engine/ledger"
	"github.com/Fantom-foundation/fvm-conformance/go/fvm"
)

// burnerGasPerArgument is the gas budget granted per unit of the argument
// on top of the message inclusion cost.
const burnerGasPerArgument = 1000

// GetGasBurnerExample provides a message consuming a controlled amount of
// gas. It starts an unbounded hash computation with a gas limit growing
// with the argument, so it always ends running out of gas after burning
// exactly its gas limit.
func GetGasBurnerExample() Example {
	return exampleSpec{
		Name:   "gas_burner",
		method: ledger.MethodHash,
		params: func(int) ([]byte, error) {
			return ledger.EncodeHashParams(1<<62, nil)
		},
		gasLimit: func(argument int) fvm.Gas {
			return ledger.PricesFor(ledger.NetworkVersionRepricing).OnChainMessageBase +
				fvm.Gas(max(argument, 0)+1)*burnerGasPerArgument
		},
		reference: burnGas,
	}.build()
}

func burnGas(int) Result {
	return Result{ExitCode: fvm.SysErrOutOfGas}
}
